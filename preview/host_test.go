package preview

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/vrm_spring_bones/config"
	"github.com/mogaika/vrm_spring_bones/skel"
	"github.com/mogaika/vrm_spring_bones/status"
	"github.com/mogaika/vrm_spring_bones/vrm"
)

func testModel(t *testing.T, springs ...vrm.SpringDef) *vrm.Model {
	bone := func(name string, parent int, x, y float32) skel.Bone {
		rest := skel.Identity()
		rest.Translation = mgl32.Vec3{x, y, 0}
		return skel.Bone{Name: name, Parent: parent, Rest: rest}
	}
	s, err := skel.New([]skel.Bone{
		bone("Hips", skel.BONE_PARENT_NONE, 0, 1),
		bone("Head", 0, 0, 0.5),
		bone("Hair0", 1, 0.1, 0),
		bone("Hair1", 2, 0.2, 0),
		bone("Hair2", 3, 0.2, 0),
	})
	require.NoError(t, err)
	return &vrm.Model{
		Skeleton: s,
		Spring: &vrm.Spring{
			Version: vrm.VERSION_1,
			Springs: springs,
		},
	}
}

func hairSpring() vrm.SpringDef {
	joint := func(node int) vrm.JointDef {
		return vrm.JointDef{
			Node:         node,
			Stiffness:    1,
			DragForce:    0.4,
			GravityPower: 0.1,
			GravityDir:   mgl32.Vec3{0, -1, 0},
		}
	}
	return vrm.SpringDef{
		Name:   "hair",
		Joints: []vrm.JointDef{joint(2), joint(3), joint(4)},
		Center: vrm.NODE_NONE,
	}
}

func stillConfig() config.Config {
	cfg := config.Default()
	cfg.Preview.SwayAmplitude = 0
	return cfg
}

func TestHostStep(t *testing.T) {
	hub := status.NewHub()
	h, err := New(testModel(t, hairSpring()), stillConfig(), hub)
	require.NoError(t, err)
	assert.Nil(t, h.Frame())

	var f *Frame
	for i := 0; i < 120; i++ {
		f = h.Step(1.0 / 60)
	}
	require.NotNil(t, f)
	assert.True(t, f.Evaluated)
	assert.Equal(t, uint64(120), f.Tick)
	assert.Equal(t, 0, f.Faults)
	assert.NotNil(t, hub.Last(status.KIND_FRAME))

	require.Len(t, f.Chains, 1)
	c := f.Chains[0]
	assert.Equal(t, "hair", c.Name)
	require.Len(t, c.Points, 3)
	for i := 1; i < len(c.Points); i++ {
		seg := mgl32.Vec3(c.Points[i]).Sub(mgl32.Vec3(c.Points[i-1]))
		assert.InDelta(t, 0.2, seg.Len(), 1e-3)
	}
	assert.InDelta(t, 1.5, c.Points[0][1], 1e-5)
	assert.Less(t, c.Points[2][1], float32(1.5-1e-3), "hair droops under gravity")
}

func TestHostDisable(t *testing.T) {
	h, err := New(testModel(t, hairSpring()), stillConfig(), nil)
	require.NoError(t, err)

	h.Step(1.0 / 60)
	require.NoError(t, h.SetEnabled(false))
	f := h.Step(1.0 / 60)
	assert.False(t, f.Evaluated)
	assert.False(t, f.Enabled)
	assert.Equal(t, uint64(1), f.Tick)

	require.NoError(t, h.SetEnabled(true))
	require.NoError(t, h.Reset())
	f = h.Step(1.0 / 60)
	assert.True(t, f.Evaluated)
}

func TestHostApply(t *testing.T) {
	h, err := New(testModel(t, hairSpring()), stillConfig(), nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		h.Step(1.0 / 60)
	}

	cfg := stillConfig()
	cfg.Solver.Weight = 0
	require.NoError(t, h.Apply(cfg))
	assert.Equal(t, float32(0), config.Current().Solver.Weight)
	defer config.SetCurrent(config.Default())

	// zero weight leaves animated pose
	f := h.Step(1.0 / 60)
	require.Len(t, f.Chains, 1)
	assert.InDelta(t, 0.5, f.Chains[0].Points[2][0], 1e-4)
	assert.InDelta(t, 1.5, f.Chains[0].Points[2][1], 1e-4)

	bad := stillConfig()
	bad.Solver.MaxDeltaTime = -1
	assert.Error(t, h.Apply(bad))
	assert.Equal(t, float32(0), h.Config().Solver.Weight)
}

func TestHostDumps(t *testing.T) {
	h, err := New(testModel(t, hairSpring()), config.Default(), nil)
	require.NoError(t, err)
	h.Step(1.0 / 60)

	var buf bytes.Buffer
	require.NoError(t, h.DumpState(&buf))
	assert.Contains(t, buf.String(), "Hair0")

	buf.Reset()
	require.NoError(t, h.ExportPose(&buf, true))
	assert.Equal(t, "glTF", buf.String()[:4])

	assert.True(t, h.Report().Valid())
}

func TestHostNoChains(t *testing.T) {
	_, err := New(testModel(t), config.Default(), nil)
	assert.True(t, errors.Is(err, ErrNoChains))
}
