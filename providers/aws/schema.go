package aws

import (
	"fmt"

	"github.com/picket-io/picket/internal/provider"
)

var schemas = map[string]*provider.Schema{
	"aws:EC2.Vpc": {
		Attributes: map[string]provider.AttrType{
			"cidrBlock":          provider.TypeString,
			"enableDnsSupport":   provider.TypeBool,
			"enableDnsHostnames": provider.TypeBool,
			"tags":               provider.TypeMap,
		},
		Required: []string{"cidrBlock"},
	},
	"aws:EC2.Subnet": {
		Attributes: map[string]provider.AttrType{
			"vpcId":               provider.TypeString,
			"cidrBlock":           provider.TypeString,
			"availabilityZone":    provider.TypeString,
			"mapPublicIpOnLaunch": provider.TypeBool,
			"tags":                provider.TypeMap,
		},
		Required: []string{"vpcId", "cidrBlock"},
	},
	"aws:EC2.InternetGateway": {
		Attributes: map[string]provider.AttrType{
			"vpcId": provider.TypeString,
			"tags":  provider.TypeMap,
		},
		Required: []string{"vpcId"},
	},
	"aws:EC2.RouteTable": {
		Attributes: map[string]provider.AttrType{
			"vpcId":             provider.TypeString,
			"defaultRouteCidr":  provider.TypeString,
			"internetGatewayId": provider.TypeString,
			"tags":              provider.TypeMap,
		},
		Required: []string{"vpcId"},
	},
	"aws:EC2.RouteTableAssociation": {
		Attributes: map[string]provider.AttrType{
			"subnetId":     provider.TypeString,
			"routeTableId": provider.TypeString,
		},
		Required: []string{"subnetId", "routeTableId"},
	},
	"aws:EC2.SecurityGroup": {
		Attributes: map[string]provider.AttrType{
			"name":        provider.TypeString,
			"description": provider.TypeString,
			"vpcId":       provider.TypeString,
			"ingress":     provider.TypeList,
			"egress":      provider.TypeList,
			"tags":        provider.TypeMap,
		},
		Required: []string{"name", "vpcId"},
	},
	"aws:EC2.KeyPair": {
		Attributes: map[string]provider.AttrType{
			"name":      provider.TypeString,
			"publicKey": provider.TypeString,
		},
		Required: []string{"name", "publicKey"},
	},
	"aws:EC2.Instance": {
		Attributes: map[string]provider.AttrType{
			"machineImage":   provider.TypeString,
			"instanceType":   provider.TypeString,
			"subnetId":       provider.TypeString,
			"securityGroups": provider.TypeList,
			"keyName":        provider.TypeString,
			"userData":       provider.TypeString,
			"tags":           provider.TypeMap,
		},
		Required: []string{"machineImage", "instanceType"},
	},
	"aws:IAM.Role": {
		Attributes: map[string]provider.AttrType{
			"name":              provider.TypeString,
			"assumeRoleService": provider.TypeString,
			"assumeRolePolicy":  provider.TypeString,
			"tags":              provider.TypeMap,
		},
		Required: []string{"name"},
	},
	"aws:IAM.RolePolicyAttachment": {
		Attributes: map[string]provider.AttrType{
			"roleName":  provider.TypeString,
			"policyArn": provider.TypeString,
		},
		Required: []string{"roleName", "policyArn"},
	},
	"aws:Logs.LogGroup": {
		Attributes: map[string]provider.AttrType{
			"name":            provider.TypeString,
			"retentionInDays": provider.TypeNumber,
			"tags":            provider.TypeMap,
		},
		Required: []string{"name"},
	},
	"aws:ECS.Cluster": {
		Attributes: map[string]provider.AttrType{
			"name": provider.TypeString,
			"tags": provider.TypeMap,
		},
		Required: []string{"name"},
	},
	"aws:ECS.TaskDefinition": {
		Attributes: map[string]provider.AttrType{
			"family":           provider.TypeString,
			"cpu":              provider.TypeString,
			"memory":           provider.TypeString,
			"networkMode":      provider.TypeString,
			"executionRoleArn": provider.TypeString,
			"container":        provider.TypeMap,
		},
		Required: []string{"family", "cpu", "memory", "container"},
	},
	"aws:ECS.Service": {
		Attributes: map[string]provider.AttrType{
			"name":           provider.TypeString,
			"clusterArn":     provider.TypeString,
			"taskDefinition": provider.TypeString,
			"desiredCount":   provider.TypeNumber,
			"launchType":     provider.TypeString,
			"subnets":        provider.TypeList,
			"securityGroups": provider.TypeList,
			"assignPublicIp": provider.TypeBool,
			"loadBalancer":   provider.TypeMap,
		},
		Required: []string{"name", "clusterArn", "taskDefinition"},
	},
	"aws:ELBv2.LoadBalancer": {
		Attributes: map[string]provider.AttrType{
			"name":           provider.TypeString,
			"scheme":         provider.TypeString,
			"type":           provider.TypeString,
			"subnets":        provider.TypeList,
			"securityGroups": provider.TypeList,
			"tags":           provider.TypeMap,
		},
		Required: []string{"name", "subnets"},
	},
	"aws:ELBv2.TargetGroup": {
		Attributes: map[string]provider.AttrType{
			"name":               provider.TypeString,
			"port":               provider.TypeNumber,
			"protocol":           provider.TypeString,
			"vpcId":              provider.TypeString,
			"targetType":         provider.TypeString,
			"healthCheckPath":    provider.TypeString,
			"healthyStatusCodes": provider.TypeString,
		},
		Required: []string{"name", "port", "protocol", "vpcId"},
	},
	"aws:ELBv2.Listener": {
		Attributes: map[string]provider.AttrType{
			"loadBalancerArn": provider.TypeString,
			"port":            provider.TypeNumber,
			"protocol":        provider.TypeString,
			"targetGroupArn":  provider.TypeString,
		},
		Required: []string{"loadBalancerArn", "port", "protocol", "targetGroupArn"},
	},
}

func (p *Provider) Schema(resourceType string) (*provider.Schema, error) {
	s, ok := schemas[resourceType]
	if !ok {
		return nil, fmt.Errorf("unknown resource type: %s", resourceType)
	}
	return s, nil
}
