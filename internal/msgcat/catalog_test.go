package msgcat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chessroom/internal/domain"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	s, err := c.Render("errors.room_full", nil)
	require.NoError(t, err)
	assert.Equal(t, "Room is full", s)

	s, err = c.Render("errors.unknown_type", map[string]any{"type": "dance"})
	require.NoError(t, err)
	assert.Equal(t, "Unknown request type dance", s)

	_, err = c.Render("errors.unknown_type", map[string]any{})
	assert.Error(t, err, "missing template keys are errors")
}

func TestOverridesAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  room_full: \"Full house\"\n"), 0o644))

	c, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "Full house", c.Text("errors.room_full", nil, "x"))
	assert.Equal(t, "fallback", c.Text("errors.nope", nil, "fallback"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("errors:\n  room_full: \"Again\"\n"), 0o644))
	_, err = New(dir)
	assert.ErrorContains(t, err, "duplicate override key")
}

func TestMissingKeysAndBrokenOverride(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Empty(t, c.Missing(domain.RejectionKeys()...))
	assert.Equal(t, []string{"errors.nope"}, c.Missing("errors.bad_room", "errors.nope"))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  room_full: \"{{.oops\"\n"), 0o644))
	_, err = New(dir)
	assert.ErrorContains(t, err, "compile errors.room_full")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  - a\n  - b\n"), 0o644))
	_, err = New(dir)
	assert.ErrorContains(t, err, "unsupported value at errors")
}
