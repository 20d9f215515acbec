package vrm

import (
	"encoding/json"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/vrm_spring_bones/springbone"
)

// vec3 accepts both [x,y,z] and {"x":..,"y":..,"z":..} forms
type vec3 mgl32.Vec3

func (v *vec3) UnmarshalJSON(data []byte) error {
	var arr []float32
	if err := json.Unmarshal(data, &arr); err == nil {
		*v = vec3{}
		copy(v[:], arr)
		return nil
	}
	var obj struct{ X, Y, Z float32 }
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrapf(err, "Failed to parse vector %s", string(data))
	}
	*v = vec3{obj.X, obj.Y, obj.Z}
	return nil
}

// nodeRef accepts node index either as number or as {"node": index}
type nodeRef int

func (n *nodeRef) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*n = nodeRef(i)
		return nil
	}
	var obj struct {
		Node *int `json:"node"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrapf(err, "Failed to parse node reference %s", string(data))
	}
	*n = NODE_NONE
	if obj.Node != nil {
		*n = nodeRef(*obj.Node)
	}
	return nil
}

func (n *nodeRef) index() int {
	if n == nil {
		return NODE_NONE
	}
	return int(*n)
}

// VRMC_springBone

type springBone1 struct {
	SpecVersion    string           `json:"specVersion"`
	Colliders      []collider1      `json:"colliders"`
	ColliderGroups []colliderGroup1 `json:"colliderGroups"`
	Springs        []spring1        `json:"springs"`
}

type collider1 struct {
	Node       *nodeRef        `json:"node"`
	Shape      json.RawMessage `json:"shape"`
	Shapes     []shapeEntry    `json:"shapes"`
	Extensions struct {
		Extended *extendedCollider `json:"VRMC_springBone_extended_collider"`
	} `json:"extensions"`
}

type extendedCollider struct {
	SpecVersion string          `json:"specVersion"`
	Shape       *shapeContainer `json:"shape"`
}

type colliderGroup1 struct {
	Name      string `json:"name"`
	Colliders []int  `json:"colliders"`
}

type spring1 struct {
	Name           string   `json:"name"`
	Joints         []joint1 `json:"joints"`
	ColliderGroups []int    `json:"colliderGroups"`
	Center         *nodeRef `json:"center"`
}

type joint1 struct {
	Node         nodeRef  `json:"node"`
	HitRadius    *float32 `json:"hitRadius"`
	Stiffness    *float32 `json:"stiffness"`
	GravityPower *float32 `json:"gravityPower"`
	GravityDir   *vec3    `json:"gravityDir"`
	DragForce    *float32 `json:"dragForce"`
}

type shapeSphere struct {
	Offset vec3    `json:"offset"`
	Radius float32 `json:"radius"`
	Inside bool    `json:"inside"`
}

type shapeCapsule struct {
	Offset vec3    `json:"offset"`
	Tail   vec3    `json:"tail"`
	Radius float32 `json:"radius"`
	Inside bool    `json:"inside"`
}

type shapePlane struct {
	Offset vec3  `json:"offset"`
	Normal *vec3 `json:"normal"`
}

type shapeContainer struct {
	Sphere  *shapeSphere  `json:"sphere"`
	Capsule *shapeCapsule `json:"capsule"`
	Plane   *shapePlane   `json:"plane"`
}

func planeNormal(n *vec3) mgl32.Vec3 {
	if n == nil {
		return mgl32.Vec3{0, 0, 1}
	}
	return mgl32.Vec3(*n)
}

func (c *shapeContainer) defs() []ShapeDef {
	if c == nil {
		return nil
	}
	var out []ShapeDef
	if s := c.Sphere; s != nil {
		out = append(out, ShapeDef{Shape: springbone.SHAPE_SPHERE, Offset: mgl32.Vec3(s.Offset), Radius: s.Radius, Inside: s.Inside})
	}
	if s := c.Capsule; s != nil {
		out = append(out, ShapeDef{Shape: springbone.SHAPE_CAPSULE, Offset: mgl32.Vec3(s.Offset), Tail: mgl32.Vec3(s.Tail), Radius: s.Radius, Inside: s.Inside})
	}
	if s := c.Plane; s != nil {
		out = append(out, ShapeDef{Shape: springbone.SHAPE_PLANE, Offset: mgl32.Vec3(s.Offset), Normal: planeNormal(s.Normal)})
	}
	return out
}

// shapeEntry covers every shape layout seen in the wild: bare container,
// wrapped {"shape": container}, flat {"type": "sphere", ...} and the
// extended collider extension which takes priority.
type shapeEntry struct {
	shapeContainer
	Shape  *shapeContainer `json:"shape"`
	Type   string          `json:"type"`
	Offset vec3            `json:"offset"`
	Tail   vec3            `json:"tail"`
	Normal *vec3           `json:"normal"`
	Radius float32         `json:"radius"`
	Inside bool            `json:"inside"`

	Extensions struct {
		Extended *extendedCollider `json:"VRMC_springBone_extended_collider"`
	} `json:"extensions"`
}

func (e *shapeEntry) defs() []ShapeDef {
	if ext := e.Extensions.Extended; ext != nil && ext.Shape != nil {
		return ext.Shape.defs()
	}
	out := e.shapeContainer.defs()
	out = append(out, e.Shape.defs()...)
	switch strings.ToLower(strings.TrimSpace(e.Type)) {
	case "sphere":
		out = append(out, ShapeDef{Shape: springbone.SHAPE_SPHERE, Offset: mgl32.Vec3(e.Offset), Radius: e.Radius, Inside: e.Inside})
	case "capsule":
		out = append(out, ShapeDef{Shape: springbone.SHAPE_CAPSULE, Offset: mgl32.Vec3(e.Offset), Tail: mgl32.Vec3(e.Tail), Radius: e.Radius, Inside: e.Inside})
	case "plane":
		out = append(out, ShapeDef{Shape: springbone.SHAPE_PLANE, Offset: mgl32.Vec3(e.Offset), Normal: planeNormal(e.Normal)})
	}
	return out
}

func (c *collider1) defs() ([]ShapeDef, error) {
	if ext := c.Extensions.Extended; ext != nil && ext.Shape != nil {
		return ext.Shape.defs(), nil
	}
	var out []ShapeDef
	for i := range c.Shapes {
		out = append(out, c.Shapes[i].defs()...)
	}
	if len(out) != 0 || len(c.Shape) == 0 {
		return out, nil
	}
	if strings.HasPrefix(strings.TrimSpace(string(c.Shape)), "[") {
		var entries []shapeEntry
		if err := json.Unmarshal(c.Shape, &entries); err != nil {
			return nil, errors.Wrapf(err, "Failed to parse collider shapes")
		}
		for i := range entries {
			out = append(out, entries[i].defs()...)
		}
		return out, nil
	}
	var entry shapeEntry
	if err := json.Unmarshal(c.Shape, &entry); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse collider shape")
	}
	return entry.defs(), nil
}

// VRMC_node_collider, root level or per node

type nodeCollider struct {
	Colliders []collider1 `json:"colliders"`
	Collider  *collider1  `json:"collider"`
}

// VRM 0.x

type vrm0 struct {
	SecondaryAnimation *secondaryAnimation `json:"secondaryAnimation"`
}

type secondaryAnimation struct {
	BoneGroups     []boneGroup0     `json:"boneGroups"`
	ColliderGroups []colliderGroup0 `json:"colliderGroups"`
}

type boneGroup0 struct {
	Comment string `json:"comment"`
	// misspelled key is what VRM 0.x exporters write
	Stiffiness     *float32 `json:"stiffiness"`
	Stiffness      *float32 `json:"stiffness"`
	GravityPower   *float32 `json:"gravityPower"`
	GravityDir     *vec3    `json:"gravityDir"`
	DragForce      *float32 `json:"dragForce"`
	Center         *nodeRef `json:"center"`
	HitRadius      *float32 `json:"hitRadius"`
	Bones          []int    `json:"bones"`
	ColliderGroups []int    `json:"colliderGroups"`
}

type colliderGroup0 struct {
	Node      int `json:"node"`
	Colliders []struct {
		Offset vec3    `json:"offset"`
		Radius float32 `json:"radius"`
	} `json:"colliders"`
}

func floatOr(v *float32, def float32) float32 {
	if v == nil {
		return def
	}
	return *v
}

func vecOr(v *vec3, def mgl32.Vec3) mgl32.Vec3 {
	if v == nil {
		return def
	}
	return mgl32.Vec3(*v)
}
