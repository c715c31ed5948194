package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/picket-io/picket/internal/provider"
)

type ClusterConfig struct {
	Name string            `json:"name"`
	Tags map[string]string `json:"tags"`
}

func (p *Provider) createCluster(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired ClusterConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	input := &ecs.CreateClusterInput{ClusterName: &desired.Name}
	for k, v := range desired.Tags {
		input.Tags = append(input.Tags, types.Tag{Key: &k, Value: &v})
	}

	resp, err := p.ecsClient.CreateCluster(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster: %w", err)
	}

	return &provider.CreateResponse{
		ProviderID: *resp.Cluster.ClusterArn,
		Computed: map[string]any{
			"name": *resp.Cluster.ClusterName,
			"arn":  *resp.Cluster.ClusterArn,
		},
	}, nil
}

func (p *Provider) destroyCluster(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.ecsClient.DeleteCluster(ctx, &ecs.DeleteClusterInput{Cluster: &req.ProviderID})
	if err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}
	return nil
}

type TaskDefinitionConfig struct {
	Family           string          `json:"family"`
	Cpu              string          `json:"cpu"`
	Memory           string          `json:"memory"`
	NetworkMode      string          `json:"networkMode"`
	ExecutionRoleArn string          `json:"executionRoleArn"`
	Container        ContainerConfig `json:"container"`
}

type ContainerConfig struct {
	Name          string            `json:"name"`
	Image         string            `json:"image"`
	ContainerPort int               `json:"containerPort"`
	Environment   map[string]string `json:"environment"`
	LogGroup      string            `json:"logGroup"`
	Region        string            `json:"region"`
}

func (p *Provider) createTaskDefinition(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	return p.registerTaskDefinition(ctx, req.Attributes)
}

// updateTaskDefinition registers a new revision of the family; prior
// revisions stay registered until the old state record is destroyed.
func (p *Provider) updateTaskDefinition(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	resp, err := p.registerTaskDefinition(ctx, req.Attributes)
	if err != nil {
		return nil, err
	}
	return &provider.UpdateResponse{Computed: resp.Computed}, nil
}

func (p *Provider) registerTaskDefinition(ctx context.Context, attrs map[string]any) (*provider.CreateResponse, error) {
	var desired TaskDefinitionConfig
	if err := decode(attrs, &desired); err != nil {
		return nil, err
	}
	c := desired.Container

	var env []types.KeyValuePair
	names := make([]string, 0, len(c.Environment))
	for name := range c.Environment {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := c.Environment[name]
		env = append(env, types.KeyValuePair{Name: &name, Value: &value})
	}

	containerDef := types.ContainerDefinition{
		Name:      &c.Name,
		Image:     &c.Image,
		Essential: boolptr(true),
		PortMappings: []types.PortMapping{{
			ContainerPort: int32ptr(c.ContainerPort),
			Protocol:      types.TransportProtocolTcp,
		}},
		Environment: env,
	}
	if c.LogGroup != "" {
		region := c.Region
		if region == "" {
			region = p.region
		}
		containerDef.LogConfiguration = &types.LogConfiguration{
			LogDriver: types.LogDriverAwslogs,
			Options: map[string]string{
				"awslogs-group":         c.LogGroup,
				"awslogs-region":        region,
				"awslogs-stream-prefix": "ecs",
			},
		}
	}

	input := &ecs.RegisterTaskDefinitionInput{
		Family:                  &desired.Family,
		Cpu:                     &desired.Cpu,
		Memory:                  &desired.Memory,
		NetworkMode:             types.NetworkMode(desired.NetworkMode),
		ContainerDefinitions:    []types.ContainerDefinition{containerDef},
		RequiresCompatibilities: []types.Compatibility{types.CompatibilityFargate},
	}
	if desired.ExecutionRoleArn != "" {
		input.ExecutionRoleArn = &desired.ExecutionRoleArn
	}

	resp, err := p.ecsClient.RegisterTaskDefinition(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to register task definition: %w", err)
	}

	arn := *resp.TaskDefinition.TaskDefinitionArn
	return &provider.CreateResponse{
		ProviderID: arn,
		Computed: map[string]any{
			"arn":      arn,
			"family":   *resp.TaskDefinition.Family,
			"revision": int(resp.TaskDefinition.Revision),
		},
	}, nil
}

func (p *Provider) destroyTaskDefinition(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.ecsClient.DeregisterTaskDefinition(ctx, &ecs.DeregisterTaskDefinitionInput{
		TaskDefinition: &req.ProviderID,
	})
	if err != nil {
		return fmt.Errorf("failed to deregister task definition: %w", err)
	}
	return nil
}

type ServiceConfig struct {
	Name           string              `json:"name"`
	ClusterArn     string              `json:"clusterArn"`
	TaskDefinition string              `json:"taskDefinition"`
	DesiredCount   int                 `json:"desiredCount"`
	LaunchType     string              `json:"launchType"`
	Subnets        []string            `json:"subnets"`
	SecurityGroups []string            `json:"securityGroups"`
	AssignPublicIp bool                `json:"assignPublicIp"`
	LoadBalancer   *LoadBalancerTarget `json:"loadBalancer"`
}

type LoadBalancerTarget struct {
	TargetGroupArn string `json:"targetGroupArn"`
	ContainerName  string `json:"containerName"`
	ContainerPort  int    `json:"containerPort"`
}

func (p *Provider) createService(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired ServiceConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	input := &ecs.CreateServiceInput{
		ServiceName:    &desired.Name,
		Cluster:        &desired.ClusterArn,
		TaskDefinition: &desired.TaskDefinition,
		DesiredCount:   int32ptr(desired.DesiredCount),
		LaunchType:     types.LaunchType(desired.LaunchType),
	}
	if len(desired.Subnets) > 0 {
		input.NetworkConfiguration = networkConfiguration(&desired)
	}
	if lb := desired.LoadBalancer; lb != nil {
		input.LoadBalancers = []types.LoadBalancer{{
			TargetGroupArn: &lb.TargetGroupArn,
			ContainerName:  &lb.ContainerName,
			ContainerPort:  int32ptr(lb.ContainerPort),
		}}
	}

	resp, err := p.ecsClient.CreateService(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &provider.CreateResponse{
		ProviderID: *resp.Service.ServiceArn,
		Computed: map[string]any{
			"name":       *resp.Service.ServiceName,
			"arn":        *resp.Service.ServiceArn,
			"clusterArn": desired.ClusterArn,
		},
	}, nil
}

func (p *Provider) updateService(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	var desired ServiceConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	input := &ecs.UpdateServiceInput{
		Service:        &req.ProviderID,
		Cluster:        &desired.ClusterArn,
		TaskDefinition: &desired.TaskDefinition,
		DesiredCount:   int32ptr(desired.DesiredCount),
	}
	if len(desired.Subnets) > 0 {
		input.NetworkConfiguration = networkConfiguration(&desired)
	}

	resp, err := p.ecsClient.UpdateService(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}
	return &provider.UpdateResponse{Computed: map[string]any{
		"name":       *resp.Service.ServiceName,
		"arn":        *resp.Service.ServiceArn,
		"clusterArn": desired.ClusterArn,
	}}, nil
}

func (p *Provider) destroyService(ctx context.Context, req *provider.DestroyRequest) error {
	input := &ecs.DeleteServiceInput{
		Service: &req.ProviderID,
		Force:   boolptr(true),
	}
	if clusterArn, ok := req.Prior["clusterArn"].(string); ok && clusterArn != "" {
		input.Cluster = &clusterArn
	}
	_, err := p.ecsClient.DeleteService(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	return nil
}

func networkConfiguration(cfg *ServiceConfig) *types.NetworkConfiguration {
	assignPublic := types.AssignPublicIpDisabled
	if cfg.AssignPublicIp {
		assignPublic = types.AssignPublicIpEnabled
	}
	return &types.NetworkConfiguration{
		AwsvpcConfiguration: &types.AwsVpcConfiguration{
			Subnets:        cfg.Subnets,
			SecurityGroups: cfg.SecurityGroups,
			AssignPublicIp: assignPublic,
		},
	}
}
