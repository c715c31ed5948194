package stack

import (
	"fmt"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/naming"
)

// Network expands into a VPC with public subnets, an internet gateway,
// and a route table wired to it. Other stacks reference its subnets and
// VPC by the addresses produced here.
//
// Parameters: project (required), cidrBlock, availabilityZones.
func Network(name string, params map[string]any) ([]*ir.Resource, error) {
	project, err := stringParam(params, "project")
	if err != nil {
		return nil, err
	}
	base, err := naming.Normalize(project, 24)
	if err != nil {
		return nil, err
	}

	cidr := stringParamOr(params, "cidrBlock", "10.0.0.0/16")
	azs := listParamOr(params, "availabilityZones", []any{"a", "b"})

	vpcName := name + "-vpc"
	igwName := name + "-igw"
	rtName := name + "-rt"

	resources := []*ir.Resource{
		{
			Type: "aws:EC2.Vpc", Name: vpcName, Provider: "aws",
			Properties: map[string]any{
				"cidrBlock":          cidr,
				"enableDnsSupport":   true,
				"enableDnsHostnames": true,
				"tags":               map[string]any{"Name": base + "-vpc", "Project": base},
			},
		},
		{
			Type: "aws:EC2.InternetGateway", Name: igwName, Provider: "aws",
			Properties: map[string]any{
				"vpcId": ir.Ref("aws:EC2.Vpc", vpcName, "id"),
				"tags":  map[string]any{"Name": base + "-igw"},
			},
		},
		{
			Type: "aws:EC2.RouteTable", Name: rtName, Provider: "aws",
			Properties: map[string]any{
				"vpcId":             ir.Ref("aws:EC2.Vpc", vpcName, "id"),
				"defaultRouteCidr":  "0.0.0.0/0",
				"internetGatewayId": ir.Ref("aws:EC2.InternetGateway", igwName, "id"),
				"tags":              map[string]any{"Name": base + "-rt"},
			},
		},
	}

	for i, az := range azs {
		azStr, ok := az.(string)
		if !ok {
			return nil, fmt.Errorf("availabilityZones[%d] must be a string", i)
		}
		subnetName := fmt.Sprintf("%s-public-%d", name, i)
		resources = append(resources,
			&ir.Resource{
				Type: "aws:EC2.Subnet", Name: subnetName, Provider: "aws",
				Properties: map[string]any{
					"vpcId":               ir.Ref("aws:EC2.Vpc", vpcName, "id"),
					"cidrBlock":           fmt.Sprintf("10.0.%d.0/24", i+1),
					"availabilityZone":    azStr,
					"mapPublicIpOnLaunch": true,
					"tags":                map[string]any{"Name": fmt.Sprintf("%s-public-%d", base, i)},
				},
			},
			&ir.Resource{
				Type: "aws:EC2.RouteTableAssociation", Name: fmt.Sprintf("%s-assoc-%d", name, i), Provider: "aws",
				Properties: map[string]any{
					"subnetId":     ir.Ref("aws:EC2.Subnet", subnetName, "id"),
					"routeTableId": ir.Ref("aws:EC2.RouteTable", rtName, "id"),
				},
			},
		)
	}

	return resources, nil
}

// SubnetRefs returns references to the public subnet ids of a network
// stack, for stacks layered on top of it.
func SubnetRefs(networkName string, count int) []any {
	refs := make([]any, count)
	for i := range refs {
		refs[i] = ir.Ref("aws:EC2.Subnet", fmt.Sprintf("%s-public-%d", networkName, i), "id")
	}
	return refs
}
