package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/picket-io/picket/internal/provider"
)

type LogGroupConfig struct {
	Name            string            `json:"name"`
	RetentionInDays int               `json:"retentionInDays"`
	Tags            map[string]string `json:"tags"`
}

func (p *Provider) createLogGroup(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired LogGroupConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	_, err := p.logsClient.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: &desired.Name,
		Tags:         desired.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create log group: %w", err)
	}

	if err := p.putRetention(ctx, desired.Name, desired.RetentionInDays); err != nil {
		return nil, err
	}

	return &provider.CreateResponse{
		ProviderID: desired.Name,
		Computed:   map[string]any{"name": desired.Name},
	}, nil
}

func (p *Provider) updateLogGroup(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	var desired LogGroupConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}
	if desired.Name != req.ProviderID {
		return nil, fmt.Errorf("log group name is immutable (%s -> %s)", req.ProviderID, desired.Name)
	}
	if err := p.putRetention(ctx, desired.Name, desired.RetentionInDays); err != nil {
		return nil, err
	}
	return &provider.UpdateResponse{Computed: map[string]any{"name": desired.Name}}, nil
}

func (p *Provider) destroyLogGroup(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.logsClient.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: &req.ProviderID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete log group: %w", err)
	}
	return nil
}

func (p *Provider) putRetention(ctx context.Context, name string, days int) error {
	if days <= 0 {
		return nil
	}
	_, err := p.logsClient.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    &name,
		RetentionInDays: int32ptr(days),
	})
	if err != nil {
		return fmt.Errorf("failed to put retention policy: %w", err)
	}
	return nil
}
