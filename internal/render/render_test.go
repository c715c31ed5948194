package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		vars     map[string]string
		expected string
	}{
		{
			name:     "single substitution",
			body:     "host=${target}",
			vars:     map[string]string{"target": "10.0.0.5:9100"},
			expected: "host=10.0.0.5:9100",
		},
		{
			name:     "repeated placeholder",
			body:     "${name} and ${name}",
			vars:     map[string]string{"name": "web"},
			expected: "web and web",
		},
		{
			name:     "escaped dollar",
			body:     "cost is $$5",
			vars:     nil,
			expected: "cost is $5",
		},
		{
			name:     "escaped dollar before placeholder",
			body:     "$${literal} ${real}",
			vars:     map[string]string{"real": "x"},
			expected: "${literal} x",
		},
		{
			name:     "bare dollar passes through",
			body:     "echo $PATH",
			vars:     nil,
			expected: "echo $PATH",
		},
		{
			name:     "unterminated brace passes through",
			body:     "${oops",
			vars:     nil,
			expected: "${oops",
		},
		{
			name:     "empty body",
			body:     "",
			vars:     map[string]string{"unused": "v"},
			expected: "",
		},
		{
			name:     "multiline script",
			body:     "#!/bin/sh\nscrape=${addr}\nport=${port}\n",
			vars:     map[string]string{"addr": "10.0.1.4", "port": "9100"},
			expected: "#!/bin/sh\nscrape=10.0.1.4\nport=9100\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.body, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRenderUnresolved(t *testing.T) {
	_, err := Render("${b} ${a} ${b}", map[string]string{})
	var unresolved *UnresolvedVariableError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"a", "b"}, unresolved.Keys)

	// Partial resolution still fails: no output with holes in it.
	_, err = Render("${known} ${unknown}", map[string]string{"known": "v"})
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"unknown"}, unresolved.Keys)
}
