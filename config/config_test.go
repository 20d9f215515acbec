package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/vrm_spring_bones/animnode"
	"github.com/mogaika/vrm_spring_bones/vrm"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, animnode.DefaultSettings(), c.Node())
	assert.Equal(t, vrm.DefaultOptions(), c.Import.Options())
}

const yamlConfig = `
solver:
  weight: 0.5
  fixed_time_step: 0.0166
  max_substeps: 4
  rotation_dead_zone: 0.5
  paused: true
preview:
  sway_bone: J_Bip_C_Neck
`

const tomlConfig = `
[solver]
weight = 0.5
fixed_time_step = 0.0166
max_substeps = 4
rotation_dead_zone = 0.5
paused = true

[preview]
sway_bone = "J_Bip_C_Neck"
`

func TestDecode(t *testing.T) {
	for _, tc := range []struct {
		format string
		data   string
	}{
		{"yaml", yamlConfig},
		{".yml", yamlConfig},
		{"toml", tomlConfig},
	} {
		t.Run(tc.format, func(t *testing.T) {
			c, err := Decode([]byte(tc.data), tc.format)
			require.NoError(t, err)

			def := Default()
			assert.Equal(t, float32(0.5), c.Solver.Weight)
			assert.Equal(t, float32(0.0166), c.Solver.FixedTimeStep)
			assert.Equal(t, 4, c.Solver.MaxSubsteps)
			assert.Equal(t, "J_Bip_C_Neck", c.Preview.SwayBone)

			// untouched keys keep defaults
			assert.Equal(t, def.Solver.MaxDeltaTime, c.Solver.MaxDeltaTime)
			assert.Equal(t, def.Import, c.Import)
			assert.Equal(t, def.Preview.TickRate, c.Preview.TickRate)

			node := c.Node()
			assert.Equal(t, float32(0.5), node.Solver.Weight)
			assert.Equal(t, 4, node.MaxSubsteps)
			assert.True(t, node.Paused)
			assert.Equal(t, float32(0.5), node.Solver.RotationDeadZone)
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	c, err := Decode(nil, "yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("{}"), "json")
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	_, err = Decode([]byte("solver: [1, 2"), "yaml")
	assert.Error(t, err)

	for _, data := range []string{
		"solver:\n  weight: 2\n",
		"solver:\n  max_delta_time: 0\n",
		"solver:\n  rotation_dead_zone: -1\n",
		"solver:\n  fixed_time_step: 0.01\n  max_substeps: 0\n",
		"import:\n  reference_rate: -1\n",
		"preview:\n  tick_rate: 0\n",
	} {
		_, err := Decode([]byte(data), "yaml")
		assert.Error(t, err, data)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewer.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlConfig), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), c.Solver.Weight)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestCurrent(t *testing.T) {
	defer SetCurrent(Default())

	c := Default()
	c.Preview.SwayBone = "Hips"
	SetCurrent(c)
	assert.Equal(t, "Hips", Current().Preview.SwayBone)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  weight: 1\n"), 0644))

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0644))
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0644))

	select {
	case c := <-w.Configs:
		assert.Equal(t, float32(0.5), c.Solver.Weight)
	case err := <-w.Errors:
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
