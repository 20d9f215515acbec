package springbone

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/vrm_spring_bones/skel"
	"github.com/mogaika/vrm_spring_bones/utils"
)

type Shape int

const (
	SHAPE_SPHERE Shape = iota
	SHAPE_CAPSULE
	SHAPE_PLANE
)

func (s Shape) String() string {
	switch s {
	case SHAPE_SPHERE:
		return "sphere"
	case SHAPE_CAPSULE:
		return "capsule"
	case SHAPE_PLANE:
		return "plane"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ColliderDesc is load time description of collider.
// Offset is sphere center, capsule head or plane point in bone local space.
// Tail is capsule end. Normal is plane normal.
type ColliderDesc struct {
	Name   string
	Bone   string
	Shape  Shape
	Offset mgl32.Vec3
	Tail   mgl32.Vec3
	Normal mgl32.Vec3
	Radius float32
	Inside bool
	Groups []string
}

type Collider struct {
	Name   string     `json:"name"`
	Bone   int        `json:"bone"`
	Shape  Shape      `json:"shape"`
	Offset mgl32.Vec3 `json:"offset"`
	Tail   mgl32.Vec3 `json:"tail,omitempty"`
	Normal mgl32.Vec3 `json:"normal,omitempty"`
	Radius float32    `json:"radius"`
	Inside bool       `json:"inside,omitempty"`
}

func NewCollider(s *skel.Skeleton, desc ColliderDesc) (*Collider, error) {
	bone, ok := s.Index(desc.Bone)
	if !ok {
		return nil, errors.Wrapf(ErrUnresolved, "collider %q: unknown bone %q", desc.Name, desc.Bone)
	}
	c := &Collider{
		Name:   desc.Name,
		Bone:   bone,
		Shape:  desc.Shape,
		Offset: desc.Offset,
		Tail:   desc.Tail,
		Radius: desc.Radius,
		Inside: desc.Inside,
	}
	if !utils.IsFiniteV3(desc.Offset) || !utils.IsFiniteV3(desc.Tail) || !utils.IsFiniteV3(desc.Normal) {
		return nil, errors.Wrapf(ErrInvalidGeometry, "collider %q: non finite shape", desc.Name)
	}

	switch desc.Shape {
	case SHAPE_SPHERE, SHAPE_CAPSULE:
		if !utils.IsFinite(desc.Radius) || desc.Radius <= 0 {
			return nil, errors.Wrapf(ErrInvalidGeometry, "collider %q: radius %v", desc.Name, desc.Radius)
		}
		if desc.Shape == SHAPE_CAPSULE && desc.Offset.ApproxEqualThreshold(desc.Tail, 1e-6) {
			return nil, errors.Wrapf(ErrInvalidGeometry, "collider %q: capsule endpoints coincide", desc.Name)
		}
	case SHAPE_PLANE:
		n, ok := utils.SafeNormalize(desc.Normal)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidGeometry, "collider %q: zero plane normal", desc.Name)
		}
		if !utils.IsFinite(desc.Radius) || desc.Radius < 0 {
			return nil, errors.Wrapf(ErrInvalidGeometry, "collider %q: radius %v", desc.Name, desc.Radius)
		}
		c.Normal = n
	default:
		return nil, errors.Wrapf(ErrInvalidGeometry, "collider %q: unknown shape %v", desc.Name, desc.Shape)
	}
	return c, nil
}

// worldShape is collider placed by current bone transform
type worldShape struct {
	shape  Shape
	head   mgl32.Vec3
	tail   mgl32.Vec3
	normal mgl32.Vec3
	radius float32
	inside bool
	valid  bool
}

func (c *Collider) place(w skel.Transform) worldShape {
	ws := worldShape{
		shape:  c.Shape,
		head:   w.TransformPoint(c.Offset),
		radius: c.Radius * w.MaxScale(),
		inside: c.Inside,
	}
	switch c.Shape {
	case SHAPE_CAPSULE:
		ws.tail = w.TransformPoint(c.Tail)
	case SHAPE_PLANE:
		ws.normal, ws.valid = utils.SafeNormalize(w.Rotation.Rotate(c.Normal))
		ws.valid = ws.valid && utils.IsFiniteV3(ws.head)
		return ws
	}
	ws.valid = utils.IsFiniteV3(ws.head) && utils.IsFiniteV3(ws.tail) && utils.IsFinite(ws.radius)
	return ws
}
