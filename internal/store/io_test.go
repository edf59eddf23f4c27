package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceFile_CreatesDirAndRestrictsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "f.json")
	require.NoError(t, saveJSON(path, map[string]int{"a": 1}))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fileMode, fi.Mode().Perm())

	var got map[string]int
	found, err := loadJSON(path, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, got["a"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestLoadJSON_Missing(t *testing.T) {
	out := map[string]int{"keep": 1}
	found, err := loadJSON(filepath.Join(t.TempDir(), "nope.json"), &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, out["keep"])
	assert.NoError(t, removeFile(filepath.Join(t.TempDir(), "nope.json")))
}
