// Package aws implements the AWS provider. It manages the EC2, ECS,
// ELBv2, IAM and CloudWatch Logs resource kinds the deployment stacks
// emit. Each resource type has a typed config struct decoded from the
// declared attributes; computed attributes are returned as plain maps
// for downstream references to resolve against.
package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/smithy-go"

	"github.com/picket-io/picket/internal/provider"
)

type Provider struct {
	region     string
	ec2Client  *ec2.Client
	ecsClient  *ecs.Client
	elbClient  *elasticloadbalancingv2.Client
	iamClient  *iam.Client
	logsClient *cloudwatchlogs.Client
}

// Factory builds a Provider from backend settings. Recognized settings:
// "region" (required) and "profile" (optional, falls back to the default
// credential chain).
func Factory(settings map[string]string) (provider.Provider, error) {
	region := settings["region"]
	if region == "" {
		return nil, fmt.Errorf("aws provider requires a region setting")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile := settings["profile"]; profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &Provider{
		region:     region,
		ec2Client:  ec2.NewFromConfig(cfg),
		ecsClient:  ecs.NewFromConfig(cfg),
		elbClient:  elasticloadbalancingv2.NewFromConfig(cfg),
		iamClient:  iam.NewFromConfig(cfg),
		logsClient: cloudwatchlogs.NewFromConfig(cfg),
	}, nil
}

func (p *Provider) Create(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	switch req.Type {
	case "aws:EC2.Vpc":
		return p.createVpc(ctx, req)
	case "aws:EC2.Subnet":
		return p.createSubnet(ctx, req)
	case "aws:EC2.InternetGateway":
		return p.createInternetGateway(ctx, req)
	case "aws:EC2.RouteTable":
		return p.createRouteTable(ctx, req)
	case "aws:EC2.RouteTableAssociation":
		return p.createRouteTableAssociation(ctx, req)
	case "aws:EC2.SecurityGroup":
		return p.createSecurityGroup(ctx, req)
	case "aws:EC2.KeyPair":
		return p.createKeyPair(ctx, req)
	case "aws:EC2.Instance":
		return p.createInstance(ctx, req)
	case "aws:IAM.Role":
		return p.createRole(ctx, req)
	case "aws:IAM.RolePolicyAttachment":
		return p.createRolePolicyAttachment(ctx, req)
	case "aws:Logs.LogGroup":
		return p.createLogGroup(ctx, req)
	case "aws:ECS.Cluster":
		return p.createCluster(ctx, req)
	case "aws:ECS.TaskDefinition":
		return p.createTaskDefinition(ctx, req)
	case "aws:ECS.Service":
		return p.createService(ctx, req)
	case "aws:ELBv2.LoadBalancer":
		return p.createLoadBalancer(ctx, req)
	case "aws:ELBv2.TargetGroup":
		return p.createTargetGroup(ctx, req)
	case "aws:ELBv2.Listener":
		return p.createListener(ctx, req)
	}
	return nil, fmt.Errorf("unknown resource type: %s", req.Type)
}

func (p *Provider) Update(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	switch req.Type {
	case "aws:IAM.Role":
		return p.updateRole(ctx, req)
	case "aws:Logs.LogGroup":
		return p.updateLogGroup(ctx, req)
	case "aws:ECS.TaskDefinition":
		return p.updateTaskDefinition(ctx, req)
	case "aws:ECS.Service":
		return p.updateService(ctx, req)
	}

	// Everything else is immutable once created; converge by replacing.
	if err := p.Destroy(ctx, &provider.DestroyRequest{Type: req.Type, ProviderID: req.ProviderID, Prior: req.Prior}); err != nil {
		return nil, err
	}
	resp, err := p.Create(ctx, &provider.CreateRequest{Type: req.Type, Name: req.Name, Attributes: req.Attributes})
	if err != nil {
		return nil, err
	}
	return &provider.UpdateResponse{ProviderID: resp.ProviderID, Computed: resp.Computed}, nil
}

func (p *Provider) Destroy(ctx context.Context, req *provider.DestroyRequest) error {
	if req.ProviderID == "" {
		return nil
	}
	var err error
	switch req.Type {
	case "aws:EC2.Vpc":
		err = p.destroyVpc(ctx, req)
	case "aws:EC2.Subnet":
		err = p.destroySubnet(ctx, req)
	case "aws:EC2.InternetGateway":
		err = p.destroyInternetGateway(ctx, req)
	case "aws:EC2.RouteTable":
		err = p.destroyRouteTable(ctx, req)
	case "aws:EC2.RouteTableAssociation":
		err = p.destroyRouteTableAssociation(ctx, req)
	case "aws:EC2.SecurityGroup":
		err = p.destroySecurityGroup(ctx, req)
	case "aws:EC2.KeyPair":
		err = p.destroyKeyPair(ctx, req)
	case "aws:EC2.Instance":
		err = p.destroyInstance(ctx, req)
	case "aws:IAM.Role":
		err = p.destroyRole(ctx, req)
	case "aws:IAM.RolePolicyAttachment":
		err = p.destroyRolePolicyAttachment(ctx, req)
	case "aws:Logs.LogGroup":
		err = p.destroyLogGroup(ctx, req)
	case "aws:ECS.Cluster":
		err = p.destroyCluster(ctx, req)
	case "aws:ECS.TaskDefinition":
		err = p.destroyTaskDefinition(ctx, req)
	case "aws:ECS.Service":
		err = p.destroyService(ctx, req)
	case "aws:ELBv2.LoadBalancer":
		err = p.destroyLoadBalancer(ctx, req)
	case "aws:ELBv2.TargetGroup":
		err = p.destroyTargetGroup(ctx, req)
	case "aws:ELBv2.Listener":
		err = p.destroyListener(ctx, req)
	default:
		return fmt.Errorf("unknown resource type: %s", req.Type)
	}
	if isNotFound(err) {
		return nil
	}
	return err
}

func (p *Provider) Get(ctx context.Context, req *provider.GetRequest) (*provider.GetResponse, error) {
	switch req.Type {
	case "aws:EC2.Vpc":
		return p.getVpc(ctx, req)
	case "aws:EC2.Instance":
		return p.getInstance(ctx, req)
	case "aws:ELBv2.LoadBalancer":
		return p.getLoadBalancer(ctx, req)
	}
	return nil, fmt.Errorf("refresh is not supported for %s", req.Type)
}

// decode round-trips a declared attribute map into a typed config
// struct, so each resource reads its inputs through json tags instead of
// type-asserting map entries one by one.
func decode(attrs map[string]any, out any) error {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode attributes: %w", err)
	}
	return nil
}

// isNotFound reports whether err is an API error for a resource that no
// longer exists, which destroy treats as success.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "InvalidVpcID.NotFound", "InvalidSubnetID.NotFound", "InvalidInternetGatewayID.NotFound",
		"InvalidRouteTableID.NotFound", "InvalidAssociationID.NotFound", "InvalidGroup.NotFound",
		"InvalidInstanceID.NotFound", "InvalidKeyPair.NotFound", "NoSuchEntity",
		"ResourceNotFoundException", "ClusterNotFoundException", "ServiceNotFoundException",
		"LoadBalancerNotFound", "TargetGroupNotFound", "ListenerNotFound":
		return true
	}
	return false
}

func int32ptr(i int) *int32 {
	v := int32(i)
	return &v
}

func boolptr(b bool) *bool { return &b }
