package template

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Render(t *testing.T) {
	e := NewEngine()

	out, err := e.Render(`{{ underscore .Name }}:{{ cmakeList .Items }}`, map[string]any{
		"Name":  "gain-example",
		"Items": []string{"a", "b;c"},
	})
	require.NoError(t, err)
	assert.Equal(t, `gain_example:a;b\;c`, out)
}

func TestEngine_Render_MissingKey(t *testing.T) {
	_, err := NewEngine().Render(`{{ .Nope }}`, map[string]any{})
	assert.Error(t, err)
}

func TestEngine_ReadEmbeddedFile(t *testing.T) {
	content, err := NewEngine().ReadEmbeddedFile("clap_entry.h")
	require.NoError(t, err)
	assert.Contains(t, string(content), "CLAP_EXPORT")

	_, err = NewEngine().ReadEmbeddedFile("missing.txt")
	assert.Error(t, err)
}

func TestWriteIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "CMakeLists.txt")

	wrote, err := WriteIfChanged(path, []byte("a"))
	require.NoError(t, err)
	assert.True(t, wrote)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	wrote, err = WriteIfChanged(path, []byte("a"))
	require.NoError(t, err)
	assert.False(t, wrote)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.WithinDuration(t, old, info.ModTime(), time.Second)

	wrote, err = WriteIfChanged(path, []byte("b"))
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestUnderscore(t *testing.T) {
	tests := map[string]string{
		"gain-example": "gain_example",
		"gain":         "gain",
		"9lives":       "_9lives",
		"a.b c":        "a_b_c",
	}
	for in, want := range tests {
		assert.Equal(t, want, Underscore(in), in)
	}
}
