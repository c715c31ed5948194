package stack

import (
	"path/filepath"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/naming"
	"github.com/picket-io/picket/internal/render"
)

const prometheusVersion = "2.52.0"
const nodeExporterVersion = "1.8.1"

// bootstrapScript is the monitoring host's startup script. It installs
// Prometheus and node_exporter and points the scrape config at the
// application's metrics endpoint. Rendered once at expansion time; the
// instance consumes the result as opaque user data.
const bootstrapScript = `#!/bin/bash
set -euo pipefail

apt-get update -y
apt-get install -y wget tar

wget -q https://github.com/prometheus/prometheus/releases/download/v${prometheus_version}/prometheus-${prometheus_version}.linux-amd64.tar.gz
tar xf prometheus-${prometheus_version}.linux-amd64.tar.gz
mv prometheus-${prometheus_version}.linux-amd64 /usr/local/prometheus

wget -q https://github.com/prometheus/node_exporter/releases/download/v${node_exporter_version}/node_exporter-${node_exporter_version}.linux-amd64.tar.gz
tar xf node_exporter-${node_exporter_version}.linux-amd64.tar.gz
mv node_exporter-${node_exporter_version}.linux-amd64 /usr/local/node_exporter

cat > /usr/local/prometheus/prometheus.yml <<'PROM'
global:
  scrape_interval: 15s
scrape_configs:
  - job_name: node
    static_configs:
      - targets: ['localhost:9100']
  - job_name: app
    static_configs:
      - targets: ['${scrape_target}']
PROM

nohup /usr/local/prometheus/prometheus --config.file=/usr/local/prometheus/prometheus.yml --web.listen-address=':9090' > /var/log/prometheus.log 2>&1 &
nohup /usr/local/node_exporter/node_exporter > /var/log/node_exporter.log 2>&1 &
`

// Monitor expands into a monitoring host: a generated SSH key pair, a
// security group opening SSH and the monitoring ports, and an EC2
// instance bootstrapped with Prometheus scraping the given target.
//
// Parameters: project, network, scrapeTarget, machineImage (required);
// instanceType, keyDir, adminCidr.
func Monitor(name string, params map[string]any) ([]*ir.Resource, error) {
	project, err := stringParam(params, "project")
	if err != nil {
		return nil, err
	}
	network, err := stringParam(params, "network")
	if err != nil {
		return nil, err
	}
	scrapeTarget, err := stringParam(params, "scrapeTarget")
	if err != nil {
		return nil, err
	}
	machineImage, err := stringParam(params, "machineImage")
	if err != nil {
		return nil, err
	}

	base, err := naming.Normalize(project, 24)
	if err != nil {
		return nil, err
	}

	instanceType := stringParamOr(params, "instanceType", "t3.micro")
	keyDir := stringParamOr(params, "keyDir", ".picket/keys")
	adminCidr := stringParamOr(params, "adminCidr", "0.0.0.0/0")

	userData, err := render.Render(bootstrapScript, map[string]string{
		"prometheus_version":    prometheusVersion,
		"node_exporter_version": nodeExporterVersion,
		"scrape_target":         scrapeTarget,
	})
	if err != nil {
		return nil, err
	}

	key := name + "-key"
	keyPair := name + "-keypair"
	sg := name + "-sg"
	host := name + "-host"

	return []*ir.Resource{
		{
			Type: "tls:PrivateKey", Name: key, Provider: "tls",
			Properties: map[string]any{
				"bits": 4096,
				"path": filepath.Join(keyDir, base+"-monitor.pem"),
			},
		},
		{
			Type: "aws:EC2.KeyPair", Name: keyPair, Provider: "aws",
			Properties: map[string]any{
				"name":      base + "-monitor",
				"publicKey": ir.Ref("tls:PrivateKey", key, "publicKeyOpenssh"),
			},
		},
		{
			Type: "aws:EC2.SecurityGroup", Name: sg, Provider: "aws",
			Properties: map[string]any{
				"name":        base + "-monitor-sg",
				"description": "SSH and monitoring ports",
				"vpcId":       ir.Ref("aws:EC2.Vpc", network+"-vpc", "id"),
				"ingress": []any{
					map[string]any{"fromPort": 22, "toPort": 22, "protocol": "tcp", "cidrBlocks": []any{adminCidr}},
					map[string]any{"fromPort": 9090, "toPort": 9090, "protocol": "tcp", "cidrBlocks": []any{adminCidr}},
					map[string]any{"fromPort": 9100, "toPort": 9100, "protocol": "tcp", "cidrBlocks": []any{adminCidr}},
				},
				"egress": []any{
					map[string]any{"fromPort": 0, "toPort": 0, "protocol": "-1", "cidrBlocks": []any{"0.0.0.0/0"}},
				},
			},
		},
		{
			Type: "aws:EC2.Instance", Name: host, Provider: "aws",
			Properties: map[string]any{
				"machineImage":   machineImage,
				"instanceType":   instanceType,
				"subnetId":       ir.Ref("aws:EC2.Subnet", network+"-public-0", "id"),
				"securityGroups": []any{ir.Ref("aws:EC2.SecurityGroup", sg, "id")},
				"keyName":        ir.Ref("aws:EC2.KeyPair", keyPair, "name"),
				"userData":       userData,
				"tags":           map[string]any{"Name": base + "-monitor", "Project": base},
			},
		},
	}, nil
}
