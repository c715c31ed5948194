package stack

import (
	"fmt"
	"sort"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/naming"
)

// AppService expands into a containerized web service: ECS cluster, task
// definition with a log group, Fargate service behind an application load
// balancer, the security groups between them, and the IAM execution role
// with its managed policy attachment.
//
// Parameters: project, network, image (required); containerPort, cpu,
// memory, desiredCount, envVars, healthCheckPath, subnetCount.
func AppService(name string, params map[string]any) ([]*ir.Resource, error) {
	project, err := stringParam(params, "project")
	if err != nil {
		return nil, err
	}
	network, err := stringParam(params, "network")
	if err != nil {
		return nil, err
	}
	image, err := stringParam(params, "image")
	if err != nil {
		return nil, err
	}

	// Load balancer and target group names cap at 32 characters.
	albName, err := naming.ForKind(project, "alb", 32)
	if err != nil {
		return nil, err
	}
	tgName, err := naming.ForKind(project, "tg", 32)
	if err != nil {
		return nil, err
	}
	base, err := naming.Normalize(project, 24)
	if err != nil {
		return nil, err
	}

	containerPort := numberParamOr(params, "containerPort", 3000)
	cpu := numberParamOr(params, "cpu", 256)
	memory := numberParamOr(params, "memory", 512)
	desired := numberParamOr(params, "desiredCount", 1)
	subnetCount := int(numberParamOr(params, "subnetCount", 2))
	healthPath := stringParamOr(params, "healthCheckPath", "/")
	envVars := mapParamOr(params, "envVars")

	var environment []any
	for _, k := range sortedKeys(envVars) {
		environment = append(environment, map[string]any{
			"name":  k,
			"value": fmt.Sprintf("%v", envVars[k]),
		})
	}

	subnets := SubnetRefs(network, subnetCount)
	vpcRef := ir.Ref("aws:EC2.Vpc", network+"-vpc", "id")

	albSG := name + "-alb-sg"
	svcSG := name + "-svc-sg"
	role := name + "-exec-role"
	logGroup := name + "-logs"
	cluster := name + "-cluster"
	taskDef := name + "-task"
	service := name + "-service"
	alb := name + "-alb"
	tg := name + "-tg"
	listener := name + "-listener"

	return []*ir.Resource{
		{
			Type: "aws:EC2.SecurityGroup", Name: albSG, Provider: "aws",
			Properties: map[string]any{
				"name":        base + "-alb-sg",
				"description": "Inbound HTTP to the load balancer",
				"vpcId":       vpcRef,
				"ingress": []any{
					map[string]any{"fromPort": 80, "toPort": 80, "protocol": "tcp", "cidrBlocks": []any{"0.0.0.0/0"}},
				},
				"egress": []any{
					map[string]any{"fromPort": 0, "toPort": 0, "protocol": "-1", "cidrBlocks": []any{"0.0.0.0/0"}},
				},
			},
		},
		{
			Type: "aws:EC2.SecurityGroup", Name: svcSG, Provider: "aws",
			Properties: map[string]any{
				"name":        base + "-svc-sg",
				"description": "Container traffic from the load balancer only",
				"vpcId":       vpcRef,
				"ingress": []any{
					map[string]any{
						"fromPort": containerPort, "toPort": containerPort, "protocol": "tcp",
						"sourceSecurityGroupId": ir.Ref("aws:EC2.SecurityGroup", albSG, "id"),
					},
				},
				"egress": []any{
					map[string]any{"fromPort": 0, "toPort": 0, "protocol": "-1", "cidrBlocks": []any{"0.0.0.0/0"}},
				},
			},
		},
		{
			Type: "aws:IAM.Role", Name: role, Provider: "aws",
			Properties: map[string]any{
				"name":              base + "-exec-role",
				"assumeRoleService": "ecs-tasks.amazonaws.com",
			},
		},
		{
			Type: "aws:IAM.RolePolicyAttachment", Name: role + "-attach", Provider: "aws",
			Properties: map[string]any{
				"roleName":  ir.Ref("aws:IAM.Role", role, "name"),
				"policyArn": "arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy",
			},
		},
		{
			Type: "aws:Logs.LogGroup", Name: logGroup, Provider: "aws",
			Properties: map[string]any{
				"name":            "/ecs/" + base,
				"retentionInDays": 30,
			},
		},
		{
			Type: "aws:ECS.Cluster", Name: cluster, Provider: "aws",
			Properties: map[string]any{
				"name": base + "-cluster",
				"tags": map[string]any{"Project": base},
			},
		},
		{
			Type: "aws:ECS.TaskDefinition", Name: taskDef, Provider: "aws",
			Properties: map[string]any{
				"family":           base,
				"cpu":              cpu,
				"memory":           memory,
				"networkMode":      "awsvpc",
				"executionRoleArn": ir.Ref("aws:IAM.Role", role, "arn"),
				"container": map[string]any{
					"name":          base,
					"image":         image,
					"containerPort": containerPort,
					"environment":   environment,
					"logGroup":      ir.Ref("aws:Logs.LogGroup", logGroup, "name"),
				},
			},
		},
		{
			Type: "aws:ELBv2.LoadBalancer", Name: alb, Provider: "aws",
			Properties: map[string]any{
				"name":           albName,
				"securityGroups": []any{ir.Ref("aws:EC2.SecurityGroup", albSG, "id")},
				"subnets":        subnets,
			},
		},
		{
			Type: "aws:ELBv2.TargetGroup", Name: tg, Provider: "aws",
			Properties: map[string]any{
				"name":            tgName,
				"port":            containerPort,
				"protocol":        "HTTP",
				"vpcId":           vpcRef,
				"targetType":      "ip",
				"healthCheckPath": healthPath,
				// Client and server errors both count as unhealthy.
				"healthyStatusCodes": "200-299",
			},
		},
		{
			Type: "aws:ELBv2.Listener", Name: listener, Provider: "aws",
			Properties: map[string]any{
				"loadBalancerArn": ir.Ref("aws:ELBv2.LoadBalancer", alb, "arn"),
				"port":            80,
				"protocol":        "HTTP",
				"targetGroupArn":  ir.Ref("aws:ELBv2.TargetGroup", tg, "arn"),
			},
		},
		{
			Type: "aws:ECS.Service", Name: service, Provider: "aws",
			DependsOn: []string{
				fmt.Sprintf("aws:ELBv2.Listener.%s", listener),
			},
			Properties: map[string]any{
				"name":           base + "-service",
				"clusterArn":     ir.Ref("aws:ECS.Cluster", cluster, "arn"),
				"taskDefinition": ir.Ref("aws:ECS.TaskDefinition", taskDef, "arn"),
				"desiredCount":   desired,
				"launchType":     "FARGATE",
				"subnets":        subnets,
				"securityGroups": []any{ir.Ref("aws:EC2.SecurityGroup", svcSG, "id")},
				"assignPublicIp": true,
				"loadBalancer": map[string]any{
					"targetGroupArn": ir.Ref("aws:ELBv2.TargetGroup", tg, "arn"),
					"containerName":  base,
					"containerPort":  containerPort,
				},
			},
		},
	}, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
