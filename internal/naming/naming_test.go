package naming

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		maxLen   int
		expected string
	}{
		{name: "already valid", raw: "myapp", maxLen: 16, expected: "myapp"},
		{name: "stops at first illegal char", raw: "My App!!", maxLen: 16, expected: "My"},
		{name: "keeps hyphens inside", raw: "my-app-prod", maxLen: 16, expected: "my-app-prod"},
		{name: "truncates to max length", raw: "averylongprojectname", maxLen: 8, expected: "averylon"},
		{name: "strips trailing hyphen after truncation", raw: "my-app-x", maxLen: 7, expected: "my-app"},
		{name: "strips trailing hyphens", raw: "web--", maxLen: 16, expected: "web"},
		{name: "single character", raw: "a", maxLen: 16, expected: "a"},
		{name: "digits allowed", raw: "app123", maxLen: 16, expected: "app123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, tt.maxLen)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.LessOrEqual(t, len(got), tt.maxLen)
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	first, err := Normalize("My Project 2024!", 12)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Normalize("My Project 2024!", 12)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNormalizeInvalid(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		maxLen int
	}{
		{name: "all illegal characters", raw: "###", maxLen: 16},
		{name: "empty input", raw: "", maxLen: 16},
		{name: "leading hyphen", raw: "-app", maxLen: 16},
		{name: "leading space", raw: " app", maxLen: 16},
		{name: "zero budget", raw: "app", maxLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, tt.maxLen)
			var invalidErr *InvalidNameError
			require.ErrorAs(t, err, &invalidErr)
		})
	}
}

func TestForKind(t *testing.T) {
	name, err := ForKind("my-project", "alb", 32)
	require.NoError(t, err)
	assert.Equal(t, "my-project-alb", name)

	// The kind suffix survives even when the project name eats the budget.
	name, err = ForKind("an-extremely-long-project-name-here", "tg", 16)
	require.NoError(t, err)
	assert.Equal(t, "-tg", name[len(name)-3:])
	assert.LessOrEqual(t, len(name), 16)

	_, err = ForKind("###", "alb", 32)
	var invalidErr *InvalidNameError
	assert.True(t, errors.As(err, &invalidErr))

	_, err = ForKind("app", "averylongkindname", 8)
	assert.Error(t, err)
}

func TestEpochSuffix(t *testing.T) {
	s := EpochSuffix()
	assert.NotEmpty(t, s)
	for _, c := range s {
		assert.True(t, c >= '0' && c <= '9')
	}
}

func TestWithSuffix(t *testing.T) {
	name, err := WithSuffix("my-project", func() string { return "1700000000" }, 32)
	require.NoError(t, err)
	assert.Equal(t, "my-project-1700000000", name)
	assert.LessOrEqual(t, len(name), 32)
}
