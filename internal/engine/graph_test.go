package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/provider"
)

func res(typ, name string, props map[string]any, deps ...string) *ir.Resource {
	return &ir.Resource{
		Type:       typ,
		Name:       name,
		Provider:   "aws",
		DependsOn:  deps,
		Properties: props,
	}
}

func TestBuildGraphEdges(t *testing.T) {
	resources := []*ir.Resource{
		res("aws:EC2.Vpc", "main", map[string]any{"cidrBlock": "10.0.0.0/16"}),
		res("aws:EC2.Subnet", "a", map[string]any{
			"vpcId": "ptr://aws:EC2.Vpc/main/id",
		}),
		res("aws:EC2.Instance", "web", map[string]any{
			"subnetId": "ptr://aws:EC2.Subnet/a/id",
		}, "aws:EC2.Vpc.main"),
	}

	g, err := BuildGraph(resources, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"aws:EC2.Vpc.main", "aws:EC2.Subnet.a", "aws:EC2.Instance.web"}, g.Addrs())
	assert.Empty(t, g.Dependencies("aws:EC2.Vpc.main"))
	assert.Equal(t, []string{"aws:EC2.Vpc.main"}, g.Dependencies("aws:EC2.Subnet.a"))
	assert.ElementsMatch(t,
		[]string{"aws:EC2.Vpc.main", "aws:EC2.Subnet.a"},
		g.Dependencies("aws:EC2.Instance.web"))
	assert.Equal(t, "main", g.Resource("aws:EC2.Vpc.main").Name)
	assert.Nil(t, g.Resource("aws:EC2.Vpc.missing"))
}

func TestBuildGraphNestedRefs(t *testing.T) {
	resources := []*ir.Resource{
		res("aws:EC2.Vpc", "main", nil),
		res("aws:EC2.SecurityGroup", "web", map[string]any{
			"vpcId": "ptr://aws:EC2.Vpc/main/id",
			"ingress": []any{
				map[string]any{"sourceSecurityGroupId": "ptr://aws:EC2.SecurityGroup/lb/id"},
			},
		}),
		res("aws:EC2.SecurityGroup", "lb", map[string]any{
			"vpcId": "ptr://aws:EC2.Vpc/main/id",
		}),
	}

	g, err := BuildGraph(resources, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"aws:EC2.Vpc.main", "aws:EC2.SecurityGroup.lb"},
		g.Dependencies("aws:EC2.SecurityGroup.web"))
}

func TestBuildGraphValidation(t *testing.T) {
	tests := []struct {
		name      string
		resources []*ir.Resource
		wantIssue string
	}{
		{
			name: "duplicate address",
			resources: []*ir.Resource{
				res("aws:EC2.Vpc", "main", nil),
				res("aws:EC2.Vpc", "main", nil),
			},
			wantIssue: "duplicate resource aws:EC2.Vpc.main",
		},
		{
			name: "undeclared reference",
			resources: []*ir.Resource{
				res("aws:EC2.Subnet", "a", map[string]any{
					"vpcId": "ptr://aws:EC2.Vpc/missing/id",
				}),
			},
			wantIssue: "aws:EC2.Subnet.a references undeclared resource aws:EC2.Vpc.missing (ptr://aws:EC2.Vpc/missing/id)",
		},
		{
			name: "self reference",
			resources: []*ir.Resource{
				res("aws:EC2.Vpc", "main", nil, "aws:EC2.Vpc.main"),
			},
			wantIssue: "aws:EC2.Vpc.main references itself (dependsOn)",
		},
		{
			name: "malformed reference",
			resources: []*ir.Resource{
				res("aws:EC2.Subnet", "a", map[string]any{
					"vpcId": "ptr://aws:EC2.Vpc/main",
				}),
			},
			wantIssue: `aws:EC2.Subnet.a contains malformed reference "ptr://aws:EC2.Vpc/main"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildGraph(tt.resources, nil)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Issues, tt.wantIssue)
		})
	}
}

func TestBuildGraphIssuesSorted(t *testing.T) {
	resources := []*ir.Resource{
		res("aws:EC2.Subnet", "z", map[string]any{"vpcId": "ptr://aws:EC2.Vpc/zz/id"}),
		res("aws:EC2.Subnet", "a", map[string]any{"vpcId": "ptr://aws:EC2.Vpc/aa/id"}),
	}
	_, err := BuildGraph(resources, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 2)
	assert.True(t, verr.Issues[0] < verr.Issues[1])
}

func TestBuildGraphCycle(t *testing.T) {
	resources := []*ir.Resource{
		res("null:Echo", "a", nil, "null:Echo.b"),
		res("null:Echo", "b", nil, "null:Echo.c"),
		res("null:Echo", "c", nil, "null:Echo.a"),
	}

	_, err := BuildGraph(resources, nil)
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	// The path closes the loop: first and last members match.
	require.GreaterOrEqual(t, len(cerr.Nodes), 4)
	assert.Equal(t, cerr.Nodes[0], cerr.Nodes[len(cerr.Nodes)-1])
	assert.ElementsMatch(t,
		[]string{"null:Echo.a", "null:Echo.b", "null:Echo.c"},
		cerr.Nodes[:len(cerr.Nodes)-1])
}

func TestBuildGraphSchemaValidation(t *testing.T) {
	lookup := func(providerName, resourceType string) (*provider.Schema, error) {
		return &provider.Schema{
			Attributes: map[string]provider.AttrType{
				"cidrBlock": provider.TypeString,
			},
			Required: []string{"cidrBlock"},
		}, nil
	}

	_, err := BuildGraph([]*ir.Resource{
		res("aws:EC2.Vpc", "main", map[string]any{}),
	}, lookup)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	g, err := BuildGraph([]*ir.Resource{
		res("aws:EC2.Vpc", "main", map[string]any{"cidrBlock": "10.0.0.0/16"}),
	}, lookup)
	require.NoError(t, err)
	assert.Len(t, g.Addrs(), 1)
}

func TestBuildGraphFromState(t *testing.T) {
	records := []*ir.ResourceState{
		{Type: "aws:EC2.Vpc", Name: "main"},
		{Type: "aws:EC2.Subnet", Name: "a", Dependencies: []string{"aws:EC2.Vpc.main", "aws:EC2.Vpc.gone"}},
	}
	g := BuildGraphFromState(records)
	assert.Equal(t, []string{"aws:EC2.Vpc.main", "aws:EC2.Subnet.a"}, g.Addrs())
	// Edges to records no longer present are dropped.
	assert.Equal(t, []string{"aws:EC2.Vpc.main"}, g.Dependencies("aws:EC2.Subnet.a"))
}

func TestRefParsing(t *testing.T) {
	assert.Equal(t, "aws:EC2.Vpc.main", RefAddr("ptr://aws:EC2.Vpc/main/id"))
	assert.Equal(t, "id", RefAttribute("ptr://aws:EC2.Vpc/main/id"))
	assert.Equal(t, "dnsName", RefAttribute("ptr://aws:ELBv2.LoadBalancer/app/dnsName"))

	for _, bad := range []string{
		"aws:EC2.Vpc/main/id",
		"ptr://aws:EC2.Vpc/main",
		"ptr://aws:EC2.Vpc//id",
		"ptr:///main/id",
		"ptr://",
	} {
		assert.Empty(t, RefAddr(bad), "ref %q", bad)
	}
}

func TestRefRoundTrip(t *testing.T) {
	ref := ir.Ref("tls:PrivateKey", "deployer", "publicKeyOpenssh")
	assert.Equal(t, "ptr://tls:PrivateKey/deployer/publicKeyOpenssh", ref)
	assert.Equal(t, "tls:PrivateKey.deployer", RefAddr(ref))
	assert.Equal(t, "publicKeyOpenssh", RefAttribute(ref))
}
