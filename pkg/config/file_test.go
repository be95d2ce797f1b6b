package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, 1000.0, f.CapacityLiters())
	assert.Equal(t, "0", f.TankID())
	assert.Equal(t, "freshWater", f.TankType())
	assert.Equal(t, LevelSourceSim, f.LevelSource())
	assert.Equal(t, AtmosphereSourceSim, f.AtmosphereSource())
	assert.Equal(t, 200*time.Millisecond, f.LevelInterval())
	assert.Equal(t, time.Second, f.AtmosphereInterval())
	assert.Equal(t, "@every 5s", f.CapacitySchedule())
	assert.Equal(t, 5, f.AverageWindow())
	assert.False(t, f.AllowNonRootAccess())
}

func TestLoadEmptyFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte("  \n"), 0644))

	f, err := NewFile(p)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, f.CapacityLiters())
}

func TestLoadMalformed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte("{"), 0644))

	_, err := NewFile(p)
	assert.Error(t, err)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"capacityLiters": -5, "tankId": "a b", "levelIntervalMs": 0, "averageWindow": -1}`), 0644))

	f, err := NewFile(p)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, f.CapacityLiters())
	assert.Equal(t, "0", f.TankID())
	assert.Equal(t, 200*time.Millisecond, f.LevelInterval())
	assert.Equal(t, 1, f.AverageWindow())
}

func TestSetAndSave(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	f, err := NewFile(p)
	require.NoError(t, err)

	require.NoError(t, f.SetCapacityLiters(250))
	require.NoError(t, f.SetTankID("port_1"))
	f.SetAllowNonRootAccess(true)
	require.NoError(t, f.Save())

	g, err := NewFile(p)
	require.NoError(t, err)
	assert.Equal(t, 250.0, g.CapacityLiters())
	assert.Equal(t, "port_1", g.TankID())
	assert.True(t, g.AllowNonRootAccess())
}

func TestSetRejects(t *testing.T) {
	f := NewFileFromConfig(nil, "")

	for _, l := range []float64{0, -1, math.NaN()} {
		assert.Error(t, f.SetCapacityLiters(l), "capacity %v", l)
	}
	assert.Equal(t, 1000.0, f.CapacityLiters())

	for _, id := range []string{"", "has space", "a.b", "0123456789012345678901234567890123"} {
		assert.Error(t, f.SetTankID(id), "id %q", id)
	}
	assert.Equal(t, "0", f.TankID())
}

func TestRawFileConfigFromConfig(t *testing.T) {
	f := NewFileFromConfig(nil, "")
	require.NoError(t, f.SetCapacityLiters(42))

	raw, err := NewRawFileConfigFromConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 42.0, *raw.CapacityLiters)
	assert.Equal(t, 200, *raw.LevelIntervalMs)
	assert.Equal(t, "@every 5s", *raw.CapacitySchedule)

	_, err = NewRawFileConfigFromConfig(nil)
	assert.Error(t, err)
}
