package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/picket-io/picket/internal/provider"
)

type RoleConfig struct {
	Name              string            `json:"name"`
	AssumeRoleService string            `json:"assumeRoleService"`
	AssumeRolePolicy  string            `json:"assumeRolePolicy"`
	Tags              map[string]string `json:"tags"`
}

func (c *RoleConfig) trustPolicy() (string, error) {
	if c.AssumeRolePolicy != "" {
		return c.AssumeRolePolicy, nil
	}
	if c.AssumeRoleService == "" {
		return "", fmt.Errorf("role %s needs assumeRoleService or assumeRolePolicy", c.Name)
	}
	doc, err := json.Marshal(map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{{
			"Effect":    "Allow",
			"Principal": map[string]any{"Service": c.AssumeRoleService},
			"Action":    "sts:AssumeRole",
		}},
	})
	if err != nil {
		return "", err
	}
	return string(doc), nil
}

func (p *Provider) createRole(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired RoleConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}
	policy, err := desired.trustPolicy()
	if err != nil {
		return nil, err
	}

	resp, err := p.iamClient.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 &desired.Name,
		AssumeRolePolicyDocument: &policy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	return &provider.CreateResponse{
		ProviderID: *resp.Role.RoleName,
		Computed: map[string]any{
			"name": *resp.Role.RoleName,
			"arn":  *resp.Role.Arn,
		},
	}, nil
}

func (p *Provider) updateRole(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	var desired RoleConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}
	policy, err := desired.trustPolicy()
	if err != nil {
		return nil, err
	}

	_, err = p.iamClient.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
		RoleName:       &req.ProviderID,
		PolicyDocument: &policy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update assume role policy: %w", err)
	}

	resp, err := p.iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: &req.ProviderID})
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &provider.UpdateResponse{Computed: map[string]any{
		"name": *resp.Role.RoleName,
		"arn":  *resp.Role.Arn,
	}}, nil
}

func (p *Provider) destroyRole(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.iamClient.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: &req.ProviderID})
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

type RolePolicyAttachmentConfig struct {
	RoleName  string `json:"roleName"`
	PolicyArn string `json:"policyArn"`
}

func (p *Provider) createRolePolicyAttachment(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired RolePolicyAttachmentConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	_, err := p.iamClient.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  &desired.RoleName,
		PolicyArn: &desired.PolicyArn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach policy: %w", err)
	}

	id := desired.RoleName + "/" + desired.PolicyArn
	return &provider.CreateResponse{
		ProviderID: id,
		Computed:   map[string]any{"id": id},
	}, nil
}

func (p *Provider) destroyRolePolicyAttachment(ctx context.Context, req *provider.DestroyRequest) error {
	roleName, policyArn, ok := strings.Cut(req.ProviderID, "/")
	if !ok {
		return fmt.Errorf("malformed attachment id %q", req.ProviderID)
	}
	_, err := p.iamClient.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  &roleName,
		PolicyArn: &policyArn,
	})
	if err != nil {
		return fmt.Errorf("failed to detach policy: %w", err)
	}
	return nil
}
