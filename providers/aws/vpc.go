package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/picket-io/picket/internal/provider"
)

type VpcConfig struct {
	CidrBlock          string            `json:"cidrBlock"`
	EnableDnsSupport   bool              `json:"enableDnsSupport"`
	EnableDnsHostnames bool              `json:"enableDnsHostnames"`
	Tags               map[string]string `json:"tags"`
}

func (p *Provider) createVpc(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired VpcConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	resp, err := p.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: &desired.CidrBlock,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}
	vpcID := *resp.Vpc.VpcId

	if desired.EnableDnsSupport {
		_, err = p.ec2Client.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:            &vpcID,
			EnableDnsSupport: &types.AttributeBooleanValue{Value: boolptr(true)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to enable DNS support: %w", err)
		}
	}
	if desired.EnableDnsHostnames {
		_, err = p.ec2Client.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:              &vpcID,
			EnableDnsHostnames: &types.AttributeBooleanValue{Value: boolptr(true)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to enable DNS hostnames: %w", err)
		}
	}

	if err := p.tagResources(ctx, desired.Tags, vpcID); err != nil {
		return nil, err
	}

	return &provider.CreateResponse{
		ProviderID: vpcID,
		Computed: map[string]any{
			"id":        vpcID,
			"cidrBlock": *resp.Vpc.CidrBlock,
		},
	}, nil
}

func (p *Provider) destroyVpc(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.ec2Client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: &req.ProviderID})
	if err != nil {
		return fmt.Errorf("failed to delete VPC: %w", err)
	}
	return nil
}

func (p *Provider) getVpc(ctx context.Context, req *provider.GetRequest) (*provider.GetResponse, error) {
	resp, err := p.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{req.ProviderID}})
	if isNotFound(err) {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPC: %w", err)
	}
	if len(resp.Vpcs) == 0 {
		return nil, provider.ErrNotFound
	}
	vpc := resp.Vpcs[0]
	return &provider.GetResponse{Computed: map[string]any{
		"id":        *vpc.VpcId,
		"cidrBlock": *vpc.CidrBlock,
	}}, nil
}

type SubnetConfig struct {
	VpcID               string            `json:"vpcId"`
	CidrBlock           string            `json:"cidrBlock"`
	AvailabilityZone    string            `json:"availabilityZone"`
	MapPublicIpOnLaunch bool              `json:"mapPublicIpOnLaunch"`
	Tags                map[string]string `json:"tags"`
}

func (p *Provider) createSubnet(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired SubnetConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	input := &ec2.CreateSubnetInput{
		VpcId:     &desired.VpcID,
		CidrBlock: &desired.CidrBlock,
	}
	if desired.AvailabilityZone != "" {
		input.AvailabilityZone = &desired.AvailabilityZone
	}

	resp, err := p.ec2Client.CreateSubnet(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create subnet: %w", err)
	}
	subnetID := *resp.Subnet.SubnetId

	if desired.MapPublicIpOnLaunch {
		_, err = p.ec2Client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            &subnetID,
			MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: boolptr(true)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to enable public IP mapping: %w", err)
		}
	}

	if err := p.tagResources(ctx, desired.Tags, subnetID); err != nil {
		return nil, err
	}

	return &provider.CreateResponse{
		ProviderID: subnetID,
		Computed: map[string]any{
			"id":               subnetID,
			"vpcId":            *resp.Subnet.VpcId,
			"availabilityZone": *resp.Subnet.AvailabilityZone,
		},
	}, nil
}

func (p *Provider) destroySubnet(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.ec2Client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: &req.ProviderID})
	if err != nil {
		return fmt.Errorf("failed to delete subnet: %w", err)
	}
	return nil
}

type InternetGatewayConfig struct {
	VpcID string            `json:"vpcId"`
	Tags  map[string]string `json:"tags"`
}

func (p *Provider) createInternetGateway(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired InternetGatewayConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	resp, err := p.ec2Client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to create internet gateway: %w", err)
	}
	igwID := *resp.InternetGateway.InternetGatewayId

	_, err = p.ec2Client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: &igwID,
		VpcId:             &desired.VpcID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach internet gateway: %w", err)
	}

	if err := p.tagResources(ctx, desired.Tags, igwID); err != nil {
		return nil, err
	}

	return &provider.CreateResponse{
		ProviderID: igwID,
		Computed: map[string]any{
			"id":    igwID,
			"vpcId": desired.VpcID,
		},
	}, nil
}

func (p *Provider) destroyInternetGateway(ctx context.Context, req *provider.DestroyRequest) error {
	// Detach before delete; the attachment VPC comes from prior state.
	if vpcID, ok := req.Prior["vpcId"].(string); ok && vpcID != "" {
		_, _ = p.ec2Client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: &req.ProviderID,
			VpcId:             &vpcID,
		})
	}
	_, err := p.ec2Client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{InternetGatewayId: &req.ProviderID})
	if err != nil {
		return fmt.Errorf("failed to delete internet gateway: %w", err)
	}
	return nil
}

type RouteTableConfig struct {
	VpcID             string            `json:"vpcId"`
	DefaultRouteCidr  string            `json:"defaultRouteCidr"`
	InternetGatewayID string            `json:"internetGatewayId"`
	Tags              map[string]string `json:"tags"`
}

func (p *Provider) createRouteTable(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired RouteTableConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	resp, err := p.ec2Client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{VpcId: &desired.VpcID})
	if err != nil {
		return nil, fmt.Errorf("failed to create route table: %w", err)
	}
	rtID := *resp.RouteTable.RouteTableId

	if desired.DefaultRouteCidr != "" {
		_, err = p.ec2Client.CreateRoute(ctx, &ec2.CreateRouteInput{
			RouteTableId:         &rtID,
			DestinationCidrBlock: &desired.DefaultRouteCidr,
			GatewayId:            &desired.InternetGatewayID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create default route: %w", err)
		}
	}

	if err := p.tagResources(ctx, desired.Tags, rtID); err != nil {
		return nil, err
	}

	return &provider.CreateResponse{
		ProviderID: rtID,
		Computed:   map[string]any{"id": rtID},
	}, nil
}

func (p *Provider) destroyRouteTable(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.ec2Client.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: &req.ProviderID})
	if err != nil {
		return fmt.Errorf("failed to delete route table: %w", err)
	}
	return nil
}

type RouteTableAssociationConfig struct {
	SubnetID     string `json:"subnetId"`
	RouteTableID string `json:"routeTableId"`
}

func (p *Provider) createRouteTableAssociation(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired RouteTableAssociationConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}

	resp, err := p.ec2Client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		SubnetId:     &desired.SubnetID,
		RouteTableId: &desired.RouteTableID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to associate route table: %w", err)
	}

	return &provider.CreateResponse{
		ProviderID: *resp.AssociationId,
		Computed:   map[string]any{"id": *resp.AssociationId},
	}, nil
}

func (p *Provider) destroyRouteTableAssociation(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.ec2Client.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{AssociationId: &req.ProviderID})
	if err != nil {
		return fmt.Errorf("failed to disassociate route table: %w", err)
	}
	return nil
}

type SecurityGroupConfig struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	VpcID       string              `json:"vpcId"`
	Ingress     []SecurityGroupRule `json:"ingress"`
	Egress      []SecurityGroupRule `json:"egress"`
	Tags        map[string]string   `json:"tags"`
}

type SecurityGroupRule struct {
	FromPort              int      `json:"fromPort"`
	ToPort                int      `json:"toPort"`
	Protocol              string   `json:"protocol"`
	CidrBlocks            []string `json:"cidrBlocks"`
	SourceSecurityGroupID string   `json:"sourceSecurityGroupId"`
}

func (p *Provider) createSecurityGroup(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	var desired SecurityGroupConfig
	if err := decode(req.Attributes, &desired); err != nil {
		return nil, err
	}
	if desired.Description == "" {
		desired.Description = "Managed by picket"
	}

	resp, err := p.ec2Client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   &desired.Name,
		Description: &desired.Description,
		VpcId:       &desired.VpcID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create security group: %w", err)
	}
	groupID := *resp.GroupId

	if len(desired.Ingress) > 0 {
		_, err = p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       &groupID,
			IpPermissions: ipPermissions(desired.Ingress),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to authorize ingress: %w", err)
		}
	}

	// AWS seeds new groups with an allow-all egress rule, so declared
	// egress rules only need applying when they differ from that.
	if len(desired.Egress) > 0 && !isAllowAllEgress(desired.Egress) {
		_, err = p.ec2Client.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       &groupID,
			IpPermissions: ipPermissions(desired.Egress),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to authorize egress: %w", err)
		}
	}

	if err := p.tagResources(ctx, desired.Tags, groupID); err != nil {
		return nil, err
	}

	return &provider.CreateResponse{
		ProviderID: groupID,
		Computed: map[string]any{
			"id":   groupID,
			"name": desired.Name,
		},
	}, nil
}

func (p *Provider) destroySecurityGroup(ctx context.Context, req *provider.DestroyRequest) error {
	_, err := p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: &req.ProviderID})
	if err != nil {
		return fmt.Errorf("failed to delete security group: %w", err)
	}
	return nil
}

func ipPermissions(rules []SecurityGroupRule) []types.IpPermission {
	var perms []types.IpPermission
	for _, rule := range rules {
		perm := types.IpPermission{
			IpProtocol: &rule.Protocol,
			FromPort:   int32ptr(rule.FromPort),
			ToPort:     int32ptr(rule.ToPort),
		}
		for _, cidr := range rule.CidrBlocks {
			perm.IpRanges = append(perm.IpRanges, types.IpRange{CidrIp: &cidr})
		}
		if rule.SourceSecurityGroupID != "" {
			perm.UserIdGroupPairs = []types.UserIdGroupPair{{GroupId: &rule.SourceSecurityGroupID}}
		}
		perms = append(perms, perm)
	}
	return perms
}

func isAllowAllEgress(rules []SecurityGroupRule) bool {
	if len(rules) != 1 {
		return false
	}
	r := rules[0]
	return r.Protocol == "-1" && r.FromPort == 0 && r.ToPort == 0 &&
		len(r.CidrBlocks) == 1 && r.CidrBlocks[0] == "0.0.0.0/0"
}

func (p *Provider) tagResources(ctx context.Context, tags map[string]string, ids ...string) error {
	if len(tags) == 0 {
		return nil
	}
	var ec2Tags []types.Tag
	for k, v := range tags {
		ec2Tags = append(ec2Tags, types.Tag{Key: &k, Value: &v})
	}
	_, err := p.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{Resources: ids, Tags: ec2Tags})
	if err != nil {
		return fmt.Errorf("failed to tag %v: %w", ids, err)
	}
	return nil
}
