package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	Scale  float64 `json:"multiplier"`
	Offset float64 `json:"offset"`
}

func TestDirRoundTrip(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, PutJSON(d, "/calibration/pressure", params{Scale: 1.5, Offset: -2}))

	var got params
	require.NoError(t, GetJSON(d, "/calibration/pressure", &got))
	assert.Equal(t, params{Scale: 1.5, Offset: -2}, got)

	_, err = os.Stat(filepath.Join(d.Root(), "calibration", "pressure.json"))
	assert.NoError(t, err)
}

func TestDirMissingKey(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	_, err = d.Get("/tank/level/curve")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirEmptyFileIsMissing(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.json"), []byte("  \n"), 0644))
	_, err = d.Get("/empty")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirKeyCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(filepath.Join(root, "store"))
	require.NoError(t, err)

	require.NoError(t, d.Put("../../outside", []byte("{}")))
	_, err = os.Stat(filepath.Join(root, "store", "outside.json"))
	assert.NoError(t, err)

	assert.Error(t, d.Put("/", []byte("{}")))
}

func TestDirCorruptValue(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Put("/bad", []byte("{not json")))
	var got params
	err = GetJSON(d, "/bad", &got)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryFailing(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put("/a", []byte("1")))

	m.SetFailing(true)
	assert.ErrorIs(t, m.Put("/a", []byte("2")), ErrUnavailable)

	b, err := m.Get("/a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(b))
	assert.Equal(t, 1, m.Keys())
}
