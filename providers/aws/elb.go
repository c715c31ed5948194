package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/picket-io/picket/internal/provider"
)

type LoadBalancerConfig struct {
	Name           string   `json:"name"`
	Scheme         string   `json:"scheme"`
	Type           string   `json:"type"`
	Subnets        []string `json:"subnets"`
	SecurityGroups []string `json:"securityGroups"`
}

func (p *Provider) createLoadBalancer(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired LoadBalancerConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}
	if desired.Scheme == "" {
		desired.Scheme = "internet-facing"
	}
	if desired.Type == "" {
		desired.Type = "application"
	}

	resp, err := p.elbClient.CreateLoadBalancer(ctx, &elasticloadbalancingv2.CreateLoadBalancerInput{
		Name:           &desired.Name,
		Subnets:        desired.Subnets,
		SecurityGroups: desired.SecurityGroups,
		Scheme:         types.LoadBalancerSchemeEnum(desired.Scheme),
		Type:           types.LoadBalancerTypeEnum(desired.Type),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create load balancer: %w", err)
	}

	lb := resp.LoadBalancers[0]
	return &provider.CreateResponse{
		ProviderID: *lb.LoadBalancerArn,
		Computed: map[string]any{
			"arn":     *lb.LoadBalancerArn,
			"name":    *lb.LoadBalancerName,
			"dnsName": *lb.DNSName,
		},
	}, nil
}

func (p *Provider) destroyLoadBalancer(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.elbClient.DeleteLoadBalancer(ctx, &elasticloadbalancingv2.DeleteLoadBalancerInput{
		LoadBalancerArn: &req.ProviderID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete load balancer: %w", err)
	}
	return nil
}

func (p *Provider) getLoadBalancer(ctx context.Context, req *provider.GetRequest) (*provider.GetResponse, error) {
	resp, err := p.elbClient.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{
		LoadBalancerArns: []string{req.ProviderID},
	})
	if isNotFound(err) {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe load balancer: %w", err)
	}
	if len(resp.LoadBalancers) == 0 {
		return nil, provider.ErrNotFound
	}
	lb := resp.LoadBalancers[0]
	return &provider.GetResponse{Computed: map[string]any{
		"arn":     *lb.LoadBalancerArn,
		"name":    *lb.LoadBalancerName,
		"dnsName": *lb.DNSName,
	}}, nil
}

type TargetGroupConfig struct {
	Name               string `json:"name"`
	Port               int    `json:"port"`
	Protocol           string `json:"protocol"`
	VpcID              string `json:"vpcId"`
	TargetType         string `json:"targetType"`
	HealthCheckPath    string `json:"healthCheckPath"`
	HealthyStatusCodes string `json:"healthyStatusCodes"`
}

func (p *Provider) createTargetGroup(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired TargetGroupConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}
	if desired.TargetType == "" {
		desired.TargetType = "ip"
	}

	input := &elasticloadbalancingv2.CreateTargetGroupInput{
		Name:       &desired.Name,
		Port:       int32ptr(desired.Port),
		Protocol:   types.ProtocolEnum(desired.Protocol),
		VpcId:      &desired.VpcID,
		TargetType: types.TargetTypeEnum(desired.TargetType),
	}
	if desired.HealthCheckPath != "" {
		input.HealthCheckPath = &desired.HealthCheckPath
	}
	if desired.HealthyStatusCodes != "" {
		input.Matcher = &types.Matcher{HttpCode: &desired.HealthyStatusCodes}
	}

	resp, err := p.elbClient.CreateTargetGroup(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create target group: %w", err)
	}

	tg := resp.TargetGroups[0]
	return &provider.CreateResponse{
		ProviderID: *tg.TargetGroupArn,
		Computed: map[string]any{
			"arn":  *tg.TargetGroupArn,
			"name": *tg.TargetGroupName,
		},
	}, nil
}

func (p *Provider) destroyTargetGroup(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.elbClient.DeleteTargetGroup(ctx, &elasticloadbalancingv2.DeleteTargetGroupInput{
		TargetGroupArn: &req.ProviderID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete target group: %w", err)
	}
	return nil
}

type ListenerConfig struct {
	LoadBalancerArn string `json:"loadBalancerArn"`
	Port            int    `json:"port"`
	Protocol        string `json:"protocol"`
	TargetGroupArn  string `json:"targetGroupArn"`
}

func (p *Provider) createListener(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired ListenerConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	resp, err := p.elbClient.CreateListener(ctx, &elasticloadbalancingv2.CreateListenerInput{
		LoadBalancerArn: &desired.LoadBalancerArn,
		Port:            int32ptr(desired.Port),
		Protocol:        types.ProtocolEnum(desired.Protocol),
		DefaultActions: []types.Action{{
			Type:           types.ActionTypeEnumForward,
			TargetGroupArn: &desired.TargetGroupArn,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	return &provider.CreateResponse{
		ProviderID: *resp.Listeners[0].ListenerArn,
		Computed:   map[string]any{"arn": *resp.Listeners[0].ListenerArn},
	}, nil
}

func (p *Provider) destroyListener(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.elbClient.DeleteListener(ctx, &elasticloadbalancingv2.DeleteListenerInput{
		ListenerArn: &req.ProviderID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete listener: %w", err)
	}
	return nil
}
