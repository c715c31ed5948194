package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picket-io/picket/internal/ir"
)

func TestExtractOutputs(t *testing.T) {
	st := ir.NewState("test")
	st.Upsert(&ir.ResourceState{
		Type:    "aws:ELBv2.LoadBalancer",
		Name:    "app",
		Inputs:  map[string]any{"scheme": "internet-facing"},
		Outputs: map[string]any{"dnsName": "app-123.elb.amazonaws.com"},
	})

	out, err := ExtractOutputs(map[string]any{
		"url":     "ptr://aws:ELBv2.LoadBalancer/app/dnsName",
		"scheme":  "ptr://aws:ELBv2.LoadBalancer/app/scheme",
		"literal": "fixed",
	}, st)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"url":     "app-123.elb.amazonaws.com",
		"scheme":  "internet-facing",
		"literal": "fixed",
	}, out)
}

func TestExtractOutputsEmpty(t *testing.T) {
	out, err := ExtractOutputs(nil, ir.NewState("test"))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestExtractOutputsUnresolved(t *testing.T) {
	_, err := ExtractOutputs(map[string]any{
		"url": "ptr://aws:ELBv2.LoadBalancer/gone/dnsName",
	}, ir.NewState("test"))

	var uerr *UnresolvedOutputError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "url", uerr.Output)
	assert.Equal(t, "aws:ELBv2.LoadBalancer/gone/dnsName", uerr.Reference)
}
