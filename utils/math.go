package utils

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-6

func IsFinite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}

func IsFiniteV3(v mgl32.Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

func IsFiniteQuat(q mgl32.Quat) bool {
	return IsFinite(q.W) && IsFiniteV3(q.V)
}

// SafeNormalize returns v scaled to unit length and false when v is too short
// or not finite to carry a direction.
func SafeNormalize(v mgl32.Vec3) (mgl32.Vec3, bool) {
	l := v.Len()
	if !IsFinite(l) || l < epsilon {
		return mgl32.Vec3{}, false
	}
	return v.Mul(1 / l), true
}

// FromToRotation returns rotation that turns direction from into direction to.
// Identity when either vector has no direction.
func FromToRotation(from, to mgl32.Vec3) mgl32.Quat {
	f, ok := SafeNormalize(from)
	if !ok {
		return mgl32.QuatIdent()
	}
	t, ok := SafeNormalize(to)
	if !ok {
		return mgl32.QuatIdent()
	}
	if f.ApproxEqualThreshold(t, epsilon) {
		return mgl32.QuatIdent()
	}
	return mgl32.QuatBetweenVectors(f, t).Normalize()
}

// QuatFromXYZW converts glTF component order into mgl32 quaternion
func QuatFromXYZW(v [4]float32) mgl32.Quat {
	q := mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
	if q.Len() < epsilon {
		return mgl32.QuatIdent()
	}
	return q.Normalize()
}

func QuatToXYZW(q mgl32.Quat) [4]float32 {
	return [4]float32{q.V[0], q.V[1], q.V[2], q.W}
}

// ClosestPointOnSegment returns point of segment [a,b] nearest to p
func ClosestPointOnSegment(p, a, b mgl32.Vec3) mgl32.Vec3 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 < epsilon*epsilon {
		return a
	}
	t := p.Sub(a).Dot(ab) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return a.Add(ab.Mul(t))
}

func ClampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
