package springbone

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/vrm_spring_bones/utils"
)

var pushFallbackDir = mgl32.Vec3{0, 1, 0}

// collide pushes sphere of hitRadius at p out of (or into, for inside
// colliders) the shape
func (ws *worldShape) collide(p mgl32.Vec3, hitRadius float32) mgl32.Vec3 {
	switch ws.shape {
	case SHAPE_SPHERE:
		return pushSphere(p, ws.head, ws.radius, hitRadius, ws.inside)
	case SHAPE_CAPSULE:
		return pushSphere(p, utils.ClosestPointOnSegment(p, ws.head, ws.tail), ws.radius, hitRadius, ws.inside)
	case SHAPE_PLANE:
		return pushPlane(p, ws.head, ws.normal, ws.radius, hitRadius, ws.inside)
	}
	return p
}

func pushSphere(p, center mgl32.Vec3, radius, hitRadius float32, inside bool) mgl32.Vec3 {
	delta := p.Sub(center)
	dist := delta.Len()
	if inside {
		limit := radius - hitRadius
		if limit < 0 {
			limit = 0
		}
		if dist <= limit {
			return p
		}
		dir, _ := utils.SafeNormalize(delta)
		return center.Add(dir.Mul(limit))
	}

	limit := radius + hitRadius
	if dist >= limit {
		return p
	}
	dir, ok := utils.SafeNormalize(delta)
	if !ok {
		dir = pushFallbackDir
	}
	return center.Add(dir.Mul(limit))
}

func pushPlane(p, point, normal mgl32.Vec3, thickness, hitRadius float32, inside bool) mgl32.Vec3 {
	if inside {
		normal = normal.Mul(-1)
	}
	dist := p.Sub(point).Dot(normal) - thickness - hitRadius
	if dist >= 0 {
		return p
	}
	return p.Sub(normal.Mul(dist))
}
