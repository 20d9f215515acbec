package springbone

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/vrm_spring_bones/skel"
)

const NODE_TAIL_VIRTUAL = -1

// minBoneLength is shortest rest length accepted for a bone segment
const minBoneLength = 1e-5

// LinkDesc is one (parent, child, parameters) tuple of a chain.
// Parent is the bone whose rotation gets driven, Child is the bone whose
// origin is simulated. Empty Child means virtual tail at TailOffset, given in
// Parent local space.
type LinkDesc struct {
	Parent     string
	Child      string
	TailOffset mgl32.Vec3
	Params     *Params
}

type ChainDesc struct {
	Name           string
	Params         Params
	Links          []LinkDesc
	ColliderGroups []string
	// Center bone name, state of chain is kept in this bone space when set
	Center string
}

// Node is one simulated segment: bone from its origin to its tail
type Node struct {
	Bone   int        `json:"bone"`
	Name   string     `json:"name"`
	Parent int        `json:"parent"`
	Tail   int        `json:"tail"`
	Offset mgl32.Vec3 `json:"offset"`
	Length float32    `json:"length"`
	Params Params     `json:"params"`

	gravity mgl32.Vec3
}

// Chain is immutable root to leaf array of nodes
type Chain struct {
	Name      string `json:"name"`
	Nodes     []Node `json:"nodes"`
	Colliders []int  `json:"colliders"`
	Center    int    `json:"center"`
}

// NewChain validates chain description against skeleton.
// groups maps collider group names to collider indexes of the owning rig.
func NewChain(s *skel.Skeleton, desc ChainDesc, groups map[string][]int) (*Chain, error) {
	if len(desc.Links) == 0 {
		return nil, errors.Wrapf(ErrInvalidTopology, "chain %q has no links", desc.Name)
	}
	defaults, err := desc.Params.Validate()
	if err != nil {
		return nil, errors.Wrapf(err, "chain %q", desc.Name)
	}

	links, err := sortLinks(s, desc)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		Name:   desc.Name,
		Nodes:  make([]Node, len(links)),
		Center: skel.BONE_PARENT_NONE,
	}
	rest := s.RestPose()
	for i, l := range links {
		n := &c.Nodes[i]
		n.Bone = l.parent
		n.Name = s.Name(l.parent)
		n.Parent = s.Parent(l.parent)
		n.Tail = l.child
		n.Params = defaults
		if l.desc.Params != nil {
			if n.Params, err = l.desc.Params.Validate(); err != nil {
				return nil, errors.Wrapf(err, "chain %q bone %q", desc.Name, n.Name)
			}
		}
		n.gravity = n.Params.Gravity()
		if l.child == NODE_TAIL_VIRTUAL {
			n.Offset = l.desc.TailOffset
		} else {
			n.Offset = s.Bone(l.child).Rest.Translation
		}
		n.Length = rest.World(l.parent).TransformVector(n.Offset).Len()
		if !(n.Length >= minBoneLength) {
			return nil, errors.Wrapf(ErrDegenerateBone, "chain %q bone %q has rest length %v", desc.Name, n.Name, n.Length)
		}
	}

	seen := make(map[int]struct{})
	for _, g := range desc.ColliderGroups {
		idx, ok := groups[g]
		if !ok {
			return nil, errors.Wrapf(ErrUnresolved, "chain %q: unknown collider group %q", desc.Name, g)
		}
		for _, ci := range idx {
			if _, dup := seen[ci]; !dup {
				seen[ci] = struct{}{}
				c.Colliders = append(c.Colliders, ci)
			}
		}
	}

	if desc.Center != "" {
		center, ok := s.Index(desc.Center)
		if !ok {
			return nil, errors.Wrapf(ErrUnresolved, "chain %q: unknown center bone %q", desc.Name, desc.Center)
		}
		for _, n := range c.Nodes {
			if n.Bone == center || s.IsAncestor(n.Bone, center) {
				return nil, errors.Wrapf(ErrInvalidTopology, "chain %q: center %q is driven by the chain", desc.Name, desc.Center)
			}
		}
		c.Center = center
	}

	return c, nil
}

// Root returns bone index of first node
func (c *Chain) Root() int { return c.Nodes[0].Bone }

type resolvedLink struct {
	parent int
	child  int
	desc   LinkDesc
}

// sortLinks orders links root to leaf and checks they form simple path
func sortLinks(s *skel.Skeleton, desc ChainDesc) ([]resolvedLink, error) {
	byParent := make(map[int]int, len(desc.Links))
	isChild := make(map[int]bool, len(desc.Links))
	links := make([]resolvedLink, len(desc.Links))

	for i, l := range desc.Links {
		parent, ok := s.Index(l.Parent)
		if !ok {
			return nil, errors.Wrapf(ErrUnresolved, "chain %q: unknown bone %q", desc.Name, l.Parent)
		}
		child := NODE_TAIL_VIRTUAL
		if l.Child != "" {
			if child, ok = s.Index(l.Child); !ok {
				return nil, errors.Wrapf(ErrUnresolved, "chain %q: unknown bone %q", desc.Name, l.Child)
			}
			if s.Parent(child) != parent {
				return nil, errors.Wrapf(ErrInvalidTopology, "chain %q: %q is not a child of %q", desc.Name, l.Child, l.Parent)
			}
			isChild[child] = true
		}
		if _, dup := byParent[parent]; dup {
			return nil, errors.Wrapf(ErrInvalidTopology, "chain %q branches at %q", desc.Name, l.Parent)
		}
		byParent[parent] = i
		links[i] = resolvedLink{parent: parent, child: child, desc: l}
	}

	root := -1
	for i, l := range links {
		if !isChild[l.parent] {
			if root != -1 {
				return nil, errors.Wrapf(ErrInvalidTopology, "chain %q is disconnected", desc.Name)
			}
			root = i
		}
	}
	if root == -1 {
		return nil, errors.Wrapf(ErrInvalidTopology, "chain %q has a cycle", desc.Name)
	}

	sorted := make([]resolvedLink, 0, len(links))
	for cur := root; ; {
		sorted = append(sorted, links[cur])
		child := links[cur].child
		if child == NODE_TAIL_VIRTUAL {
			break
		}
		next, ok := byParent[child]
		if !ok {
			break
		}
		cur = next
	}
	if len(sorted) != len(links) {
		return nil, errors.Wrapf(ErrInvalidTopology, "chain %q is disconnected", desc.Name)
	}
	return sorted, nil
}
