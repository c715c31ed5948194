package aws

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/picket-io/picket/internal/provider"
)

type KeyPairConfig struct {
	Name      string `json:"name"`
	PublicKey string `json:"publicKey"`
}

func (p *Provider) createKeyPair(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired KeyPairConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	resp, err := p.ec2Client.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           &desired.Name,
		PublicKeyMaterial: []byte(desired.PublicKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import key pair: %w", err)
	}

	return &provider.CreateResponse{
		ProviderID: *resp.KeyName,
		Computed: map[string]any{
			"id":          *resp.KeyPairId,
			"name":        *resp.KeyName,
			"fingerprint": *resp.KeyFingerprint,
		},
	}, nil
}

func (p *Provider) destroyKeyPair(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.ec2Client.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyName: &req.ProviderID})
	if err != nil {
		return fmt.Errorf("failed to delete key pair: %w", err)
	}
	return nil
}

type InstanceConfig struct {
	MachineImage   string            `json:"machineImage"`
	InstanceType   string            `json:"instanceType"`
	SubnetID       string            `json:"subnetId"`
	SecurityGroups []string          `json:"securityGroups"`
	KeyName        string            `json:"keyName"`
	UserData       string            `json:"userData"`
	Tags           map[string]string `json:"tags"`
}

const instanceRunningWait = 5 * time.Minute

func (p *Provider) createInstance(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired InstanceConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	input := &ec2.RunInstancesInput{
		ImageId:      &desired.MachineImage,
		InstanceType: types.InstanceType(desired.InstanceType),
		MinCount:     int32ptr(1),
		MaxCount:     int32ptr(1),
	}
	if desired.SubnetID != "" {
		input.SubnetId = &desired.SubnetID
	}
	if len(desired.SecurityGroups) > 0 {
		input.SecurityGroupIds = desired.SecurityGroups
	}
	if desired.KeyName != "" {
		input.KeyName = &desired.KeyName
	}
	if desired.UserData != "" {
		encoded := base64.StdEncoding.EncodeToString([]byte(desired.UserData))
		input.UserData = &encoded
	}

	resp, err := p.ec2Client.RunInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run instance: %w", err)
	}
	instanceID := *resp.Instances[0].InstanceId

	if err := p.tagResources(ctx, desired.Tags, instanceID); err != nil {
		return nil, err
	}

	// Public addressing is only assigned once the instance is running.
	waiter := ec2.NewInstanceRunningWaiter(p.ec2Client)
	describe := &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}
	if err := waiter.Wait(ctx, describe, instanceRunningWait); err != nil {
		return nil, fmt.Errorf("instance %s did not reach running state: %w", instanceID, err)
	}

	computed, err := p.describeInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return &provider.CreateResponse{ProviderID: instanceID, Computed: computed}, nil
}

func (p *Provider) destroyInstance(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{req.ProviderID},
	})
	if err != nil {
		return fmt.Errorf("failed to terminate instance: %w", err)
	}
	return nil
}

func (p *Provider) getInstance(ctx context.Context, req *provider.GetRequest) (*provider.GetResponse, error) {
	computed, err := p.describeInstance(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	return &provider.GetResponse{Computed: computed}, nil
}

func (p *Provider) describeInstance(ctx context.Context, instanceID string) (map[string]any, error) {
	resp, err := p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if isNotFound(err) {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance: %w", err)
	}
	if len(resp.Reservations) == 0 || len(resp.Reservations[0].Instances) == 0 {
		return nil, provider.ErrNotFound
	}

	instance := resp.Reservations[0].Instances[0]
	if instance.State.Name == types.InstanceStateNameTerminated {
		return nil, provider.ErrNotFound
	}

	computed := map[string]any{"id": instanceID}
	if instance.PublicIpAddress != nil {
		computed["publicIp"] = *instance.PublicIpAddress
	}
	if instance.PrivateIpAddress != nil {
		computed["privateIp"] = *instance.PrivateIpAddress
	}
	if instance.PublicDnsName != nil && *instance.PublicDnsName != "" {
		computed["publicDns"] = *instance.PublicDnsName
	}
	return computed, nil
}
