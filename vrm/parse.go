package vrm

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	log "github.com/sirupsen/logrus"

	"github.com/mogaika/vrm_spring_bones/springbone"
)

const (
	EXTENSION_VRM0          = "VRM"
	EXTENSION_SPRING_BONE   = "VRMC_springBone"
	EXTENSION_NODE_COLLIDER = "VRMC_node_collider"
)

const NODE_NONE = -1

var ErrNoSpringData = errors.New("no spring bone data")

type Version int

const (
	VERSION_NONE Version = iota
	VERSION_0
	VERSION_1
)

func (v Version) String() string {
	switch v {
	case VERSION_0:
		return "VRM 0.x"
	case VERSION_1:
		return "VRM 1.0"
	default:
		return "None"
	}
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ShapeDef offsets are in glTF space of the collider node
type ShapeDef struct {
	Shape  springbone.Shape `json:"shape"`
	Offset mgl32.Vec3       `json:"offset"`
	Tail   mgl32.Vec3       `json:"tail,omitempty"`
	Normal mgl32.Vec3       `json:"normal,omitempty"`
	Radius float32          `json:"radius"`
	Inside bool             `json:"inside,omitempty"`
}

type ColliderDef struct {
	Node   int        `json:"node"`
	Shapes []ShapeDef `json:"shapes"`
}

type ColliderGroupDef struct {
	Name      string `json:"name"`
	Colliders []int  `json:"colliders"`
}

// JointDef parameters are stored as authored in the file
type JointDef struct {
	Node         int        `json:"node"`
	Stiffness    float32    `json:"stiffness"`
	DragForce    float32    `json:"drag_force"`
	GravityPower float32    `json:"gravity_power"`
	GravityDir   mgl32.Vec3 `json:"gravity_dir"`
	HitRadius    float32    `json:"hit_radius"`
}

type SpringDef struct {
	Name           string     `json:"name"`
	Joints         []JointDef `json:"joints"`
	ColliderGroups []int      `json:"collider_groups"`
	Center         int        `json:"center"`
	// Subtree marks VRM 0.x groups: joints are roots, whole subtree swings
	Subtree bool `json:"subtree,omitempty"`
}

// Spring is spring bone data of one VRM file, node indexes unresolved
type Spring struct {
	Version        Version            `json:"version"`
	SpecVersion    string             `json:"spec_version,omitempty"`
	Colliders      []ColliderDef      `json:"colliders"`
	ColliderGroups []ColliderGroupDef `json:"collider_groups"`
	Springs        []SpringDef        `json:"springs"`
}

func (s *Spring) JointCount() int {
	n := 0
	for _, sp := range s.Springs {
		n += len(sp.Joints)
	}
	return n
}

// extensionJSON returns raw json of extension. Unregistered extensions are
// kept by gltf decoder as json.RawMessage.
func extensionJSON(ext gltf.Extensions, name string) ([]byte, bool) {
	v, ok := ext[name]
	if !ok || v == nil {
		return nil, false
	}
	switch raw := v.(type) {
	case json.RawMessage:
		return raw, true
	case []byte:
		return raw, true
	default:
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, false
		}
		return data, true
	}
}

// Parse extracts spring bone data, VRM 1.0 takes priority over VRM 0.x
func Parse(doc *gltf.Document) (*Spring, error) {
	if raw, ok := extensionJSON(doc.Extensions, EXTENSION_SPRING_BONE); ok {
		return parse1(doc, raw)
	}
	if raw, ok := extensionJSON(doc.Extensions, EXTENSION_VRM0); ok {
		return parse0(raw)
	}
	return nil, ErrNoSpringData
}

func parse1(doc *gltf.Document, raw []byte) (*Spring, error) {
	var ext springBone1
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse %s", EXTENSION_SPRING_BONE)
	}

	nodeShapes, err := nodeColliderShapes(doc)
	if err != nil {
		return nil, err
	}

	out := &Spring{Version: VERSION_1, SpecVersion: ext.SpecVersion}
	for i := range ext.Colliders {
		c := &ext.Colliders[i]
		shapes, err := c.defs()
		if err != nil {
			return nil, errors.Wrapf(err, "collider %d", i)
		}
		node := c.Node.index()
		if len(shapes) == 0 && node != NODE_NONE {
			shapes = nodeShapes[node]
		}
		out.Colliders = append(out.Colliders, ColliderDef{Node: node, Shapes: shapes})
	}
	if len(out.Colliders) == 0 && len(nodeShapes) != 0 {
		nodes := make([]int, 0, len(nodeShapes))
		for node := range nodeShapes {
			nodes = append(nodes, node)
		}
		sort.Ints(nodes)
		for _, node := range nodes {
			log.Debugf("[vrm] collider for node %d taken from %s", node, EXTENSION_NODE_COLLIDER)
			out.Colliders = append(out.Colliders, ColliderDef{Node: node, Shapes: nodeShapes[node]})
		}
	}

	for _, g := range ext.ColliderGroups {
		out.ColliderGroups = append(out.ColliderGroups, ColliderGroupDef{Name: g.Name, Colliders: g.Colliders})
	}

	for _, s := range ext.Springs {
		sd := SpringDef{
			Name:           s.Name,
			ColliderGroups: s.ColliderGroups,
			Center:         s.Center.index(),
		}
		for _, j := range s.Joints {
			sd.Joints = append(sd.Joints, JointDef{
				Node:         int(j.Node),
				Stiffness:    floatOr(j.Stiffness, 1),
				DragForce:    floatOr(j.DragForce, 0.5),
				GravityPower: floatOr(j.GravityPower, 0),
				GravityDir:   vecOr(j.GravityDir, mgl32.Vec3{0, -1, 0}),
				HitRadius:    floatOr(j.HitRadius, 0),
			})
		}
		out.Springs = append(out.Springs, sd)
	}
	return out, nil
}

// nodeColliderShapes collects shapes declared through VRMC_node_collider on
// the root or on individual nodes
func nodeColliderShapes(doc *gltf.Document) (map[int][]ShapeDef, error) {
	out := make(map[int][]ShapeDef)
	add := func(node int, c *collider1) error {
		shapes, err := c.defs()
		if err != nil {
			return errors.Wrapf(err, "%s of node %d", EXTENSION_NODE_COLLIDER, node)
		}
		if len(shapes) != 0 {
			out[node] = append(out[node], shapes...)
		}
		return nil
	}

	if raw, ok := extensionJSON(doc.Extensions, EXTENSION_NODE_COLLIDER); ok {
		var nc nodeCollider
		if err := json.Unmarshal(raw, &nc); err != nil {
			return nil, errors.Wrapf(err, "Failed to parse %s", EXTENSION_NODE_COLLIDER)
		}
		for i := range nc.Colliders {
			if node := nc.Colliders[i].Node.index(); node != NODE_NONE {
				if err := add(node, &nc.Colliders[i]); err != nil {
					return nil, err
				}
			}
		}
	}

	for node, n := range doc.Nodes {
		if n == nil {
			continue
		}
		raw, ok := extensionJSON(n.Extensions, EXTENSION_NODE_COLLIDER)
		if !ok {
			continue
		}
		var nc nodeCollider
		if err := json.Unmarshal(raw, &nc); err != nil {
			return nil, errors.Wrapf(err, "Failed to parse %s of node %d", EXTENSION_NODE_COLLIDER, node)
		}
		if nc.Collider != nil {
			nc.Colliders = append(nc.Colliders, *nc.Collider)
		}
		for i := range nc.Colliders {
			if err := add(node, &nc.Colliders[i]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func parse0(raw []byte) (*Spring, error) {
	var ext vrm0
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse %s", EXTENSION_VRM0)
	}
	sa := ext.SecondaryAnimation
	if sa == nil {
		return nil, errors.Wrapf(ErrNoSpringData, "%s has no secondaryAnimation", EXTENSION_VRM0)
	}

	out := &Spring{Version: VERSION_0}
	for i, g := range sa.ColliderGroups {
		c := ColliderDef{Node: g.Node}
		for _, s := range g.Colliders {
			// z axis of 0.x collider offsets is flipped relative to glTF
			c.Shapes = append(c.Shapes, ShapeDef{
				Shape:  springbone.SHAPE_SPHERE,
				Offset: mgl32.Vec3{s.Offset[0], s.Offset[1], -s.Offset[2]},
				Radius: s.Radius,
			})
		}
		out.Colliders = append(out.Colliders, c)
		out.ColliderGroups = append(out.ColliderGroups, ColliderGroupDef{Colliders: []int{i}})
	}

	for _, g := range sa.BoneGroups {
		stiffness := floatOr(g.Stiffiness, floatOr(g.Stiffness, 1))
		sd := SpringDef{
			Name:           g.Comment,
			ColliderGroups: g.ColliderGroups,
			Center:         g.Center.index(),
			Subtree:        true,
		}
		for _, b := range g.Bones {
			sd.Joints = append(sd.Joints, JointDef{
				Node:         b,
				Stiffness:    stiffness,
				DragForce:    floatOr(g.DragForce, 0.4),
				GravityPower: floatOr(g.GravityPower, 0),
				GravityDir:   vecOr(g.GravityDir, mgl32.Vec3{0, -1, 0}),
				HitRadius:    floatOr(g.HitRadius, 0.02),
			})
		}
		out.Springs = append(out.Springs, sd)
	}
	return out, nil
}

func (sd *SpringDef) String() string {
	return fmt.Sprintf("spring %q (%d joints)", sd.Name, len(sd.Joints))
}
