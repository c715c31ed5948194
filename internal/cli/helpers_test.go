package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace(t *testing.T) {
	dir := t.TempDir()
	pklFile := filepath.Join(dir, "deploy.pkl")
	require.NoError(t, os.WriteFile(pklFile, []byte("// empty"), 0o644))

	t.Run("no args uses cwd and main.pkl", func(t *testing.T) {
		wd, entry, err := workspace(nil)
		require.NoError(t, err)
		cwd, _ := os.Getwd()
		assert.Equal(t, cwd, wd)
		assert.Equal(t, "main.pkl", entry)
	})

	t.Run("directory argument", func(t *testing.T) {
		wd, entry, err := workspace([]string{dir})
		require.NoError(t, err)
		assert.Equal(t, dir, wd)
		assert.Equal(t, "main.pkl", entry)
	})

	t.Run("file argument", func(t *testing.T) {
		wd, entry, err := workspace([]string{pklFile})
		require.NoError(t, err)
		assert.Equal(t, dir, wd)
		assert.Equal(t, "deploy.pkl", entry)
	})

	t.Run("missing path", func(t *testing.T) {
		_, _, err := workspace([]string{filepath.Join(dir, "nope")})
		assert.Error(t, err)
	})
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, `"short"`, formatValue("short"))
	assert.Equal(t, "42", formatValue(42))
	assert.Equal(t, "true", formatValue(true))

	long := strings.Repeat("x", 100)
	got := formatValue(long)
	assert.True(t, strings.HasSuffix(got, `...`))
	assert.Less(t, len(got), 70)
}
