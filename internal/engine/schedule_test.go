package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picket-io/picket/internal/ir"
)

func buildTestSchedule(t *testing.T, resources []*ir.Resource) *Schedule {
	t.Helper()
	g, err := BuildGraph(resources, nil)
	require.NoError(t, err)
	return BuildSchedule(g)
}

func TestBuildSchedulePhases(t *testing.T) {
	s := buildTestSchedule(t, []*ir.Resource{
		res("aws:EC2.Vpc", "main", nil),
		res("aws:EC2.Subnet", "a", nil, "aws:EC2.Vpc.main"),
		res("aws:EC2.Subnet", "b", nil, "aws:EC2.Vpc.main"),
		res("aws:EC2.Instance", "web", nil, "aws:EC2.Subnet.a"),
	})

	assert.Equal(t, [][]string{
		{"aws:EC2.Vpc.main"},
		{"aws:EC2.Subnet.a", "aws:EC2.Subnet.b"},
		{"aws:EC2.Instance.web"},
	}, s.Phases)
}

func TestBuildScheduleDeclarationOrder(t *testing.T) {
	// Independent resources share a phase in declaration order.
	s := buildTestSchedule(t, []*ir.Resource{
		res("null:Echo", "zebra", nil),
		res("null:Echo", "apple", nil),
		res("null:Echo", "mango", nil),
	})
	require.Len(t, s.Phases, 1)
	assert.Equal(t, []string{"null:Echo.zebra", "null:Echo.apple", "null:Echo.mango"}, s.Phases[0])
}

func TestScheduleReversed(t *testing.T) {
	s := &Schedule{Phases: [][]string{{"a"}, {"b", "c"}, {"d"}}}
	rev := s.Reversed()
	assert.Equal(t, [][]string{{"d"}, {"b", "c"}, {"a"}}, rev.Phases)
	// Original untouched.
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, s.Phases)
}

func TestScheduleLinear(t *testing.T) {
	s := &Schedule{Phases: [][]string{{"a"}, {"b", "c"}, {"d"}}}
	assert.Equal(t, []string{"a", "b", "c", "d"}, s.Linear())
}

func TestScheduleFilter(t *testing.T) {
	s := &Schedule{Phases: [][]string{{"a"}, {"b", "c"}, {"d"}}}
	out := s.Filter(map[string]bool{"b": true, "d": true})
	assert.Equal(t, [][]string{{"b"}, {"d"}}, out.Phases)

	assert.Empty(t, s.Filter(nil).Phases)
}

func TestScheduleChain(t *testing.T) {
	s := buildTestSchedule(t, []*ir.Resource{
		res("null:Echo", "c", nil, "null:Echo.b"),
		res("null:Echo", "b", nil, "null:Echo.a"),
		res("null:Echo", "a", nil),
	})
	assert.Equal(t, [][]string{
		{"null:Echo.a"},
		{"null:Echo.b"},
		{"null:Echo.c"},
	}, s.Phases)
}
