package skel

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/vrm_spring_bones/utils"
)

// Transform is translation, rotation and non uniform scale.
// Shear produced by rotated non uniform scale is dropped on composition.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

func Identity() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Mul composes parent t with child local transform
func (t Transform) Mul(local Transform) Transform {
	return Transform{
		Translation: t.TransformPoint(local.Translation),
		Rotation:    t.Rotation.Mul(local.Rotation).Normalize(),
		Scale: mgl32.Vec3{
			t.Scale[0] * local.Scale[0],
			t.Scale[1] * local.Scale[1],
			t.Scale[2] * local.Scale[2],
		},
	}
}

func (t Transform) TransformVector(v mgl32.Vec3) mgl32.Vec3 {
	return t.Rotation.Rotate(mgl32.Vec3{v[0] * t.Scale[0], v[1] * t.Scale[1], v[2] * t.Scale[2]})
}

func (t Transform) TransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return t.Translation.Add(t.TransformVector(p))
}

func (t Transform) Mat4() mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// MaxScale is used for radii of shapes attached to the transform
func (t Transform) MaxScale() float32 {
	m := abs(t.Scale[0])
	if s := abs(t.Scale[1]); s > m {
		m = s
	}
	if s := abs(t.Scale[2]); s > m {
		m = s
	}
	return m
}

func (t Transform) IsFinite() bool {
	return utils.IsFiniteV3(t.Translation) && utils.IsFiniteQuat(t.Rotation) && utils.IsFiniteV3(t.Scale)
}

// FromMat4 decomposes affine matrix without shear
func FromMat4(m mgl32.Mat4) Transform {
	t := Identity()
	t.Translation = m.Col(3).Vec3()
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	if m.Mat3().Det() < 0 {
		sx = -sx
	}
	t.Scale = mgl32.Vec3{sx, sy, sz}
	if sx == 0 || sy == 0 || sz == 0 {
		return t
	}
	var r mgl32.Mat4
	r.SetCol(0, m.Col(0).Mul(1/sx))
	r.SetCol(1, m.Col(1).Mul(1/sy))
	r.SetCol(2, m.Col(2).Mul(1/sz))
	r.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	t.Rotation = mgl32.Mat4ToQuat(r).Normalize()
	return t
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
