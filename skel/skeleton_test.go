package skel

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bone(name string, parent int, x, y, z float32) Bone {
	t := Identity()
	t.Translation = mgl32.Vec3{x, y, z}
	return Bone{Name: name, Parent: parent, Rest: t}
}

func TestSkeletonOrder(t *testing.T) {
	// children listed before parents on purpose
	s, err := New([]Bone{
		bone("tip", 2, 0, 1, 0),
		bone("root", BONE_PARENT_NONE, 0, 0, 0),
		bone("mid", 1, 0, 1, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 0}, s.Order())
	assert.Equal(t, 2, s.Depth(0))
	assert.True(t, s.IsAncestor(1, 0))
	assert.False(t, s.IsAncestor(0, 1))

	i, ok := s.Index("Mid")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
}

func TestSkeletonInvalid(t *testing.T) {
	for _, tc := range []struct {
		name  string
		bones []Bone
	}{
		{"cycle", []Bone{bone("a", 1, 0, 0, 0), bone("b", 0, 0, 0, 0)}},
		{"self parent", []Bone{bone("a", 0, 0, 0, 0)}},
		{"out of range", []Bone{bone("a", 5, 0, 0, 0)}},
		{"duplicate", []Bone{bone("a", BONE_PARENT_NONE, 0, 0, 0), bone("a", 0, 0, 0, 0)}},
		{"unnamed", []Bone{bone("", BONE_PARENT_NONE, 0, 0, 0)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.bones)
			assert.True(t, errors.Is(err, ErrInvalidHierarchy), "got %v", err)
		})
	}
}

func TestPoseWorldInvalidation(t *testing.T) {
	s, err := New([]Bone{
		bone("root", BONE_PARENT_NONE, 0, 0, 0),
		bone("mid", 0, 1, 0, 0),
		bone("tip", 1, 1, 0, 0),
	})
	require.NoError(t, err)

	p := NewPose(s)
	assert.InDelta(t, 2, p.World(2).Translation.X(), 1e-6)

	// quarter turn around Z at root swings the arm up
	p.SetLocalRotation(0, mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	tip := p.World(2).Translation
	assert.InDelta(t, 0, tip.X(), 1e-5)
	assert.InDelta(t, 2, tip.Y(), 1e-5)

	p.ResetToRest()
	assert.InDelta(t, 2, p.World(2).Translation.X(), 1e-6)
}

func TestTransformComposition(t *testing.T) {
	parent := Identity()
	parent.Translation = mgl32.Vec3{1, 2, 3}
	parent.Scale = mgl32.Vec3{2, 2, 2}
	parent.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})

	child := Identity()
	child.Translation = mgl32.Vec3{1, 0, 0}

	w := parent.Mul(child)
	want := mgl32.TransformCoordinate(mgl32.Vec3{1, 0, 0}, parent.Mat4())
	assert.True(t, w.Translation.ApproxEqualThreshold(want, 1e-5), "%v != %v", w.Translation, want)
	assert.Equal(t, float32(2), w.MaxScale())

	back := FromMat4(w.Mat4())
	assert.True(t, back.Translation.ApproxEqualThreshold(w.Translation, 1e-5))
	assert.True(t, back.Scale.ApproxEqualThreshold(w.Scale, 1e-5))
	assert.True(t, back.Rotation.ApproxEqualThreshold(w.Rotation, 1e-4) ||
		back.Rotation.ApproxEqualThreshold(w.Rotation.Scale(-1), 1e-4))
}
