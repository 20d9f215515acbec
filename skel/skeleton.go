package skel

import (
	"github.com/pkg/errors"

	"github.com/mogaika/vrm_spring_bones/utils"
)

const BONE_PARENT_NONE = -1

var ErrInvalidHierarchy = errors.New("invalid bone hierarchy")

type Bone struct {
	Name   string
	Parent int
	Rest   Transform
}

// Skeleton is immutable bone hierarchy. Bones are not required to be sorted,
// Order() gives parent-before-child traversal.
type Skeleton struct {
	bones    []Bone
	children [][]int
	depth    []int
	order    []int
	byName   map[string]int
	byKey    map[string]int
}

func New(bones []Bone) (*Skeleton, error) {
	s := &Skeleton{
		bones:    make([]Bone, len(bones)),
		children: make([][]int, len(bones)),
		depth:    make([]int, len(bones)),
		order:    make([]int, 0, len(bones)),
		byName:   make(map[string]int, len(bones)),
		byKey:    make(map[string]int, len(bones)),
	}
	copy(s.bones, bones)

	var roots []int
	for i, b := range s.bones {
		if b.Name == "" {
			return nil, errors.Wrapf(ErrInvalidHierarchy, "bone %d has no name", i)
		}
		if _, dup := s.byName[b.Name]; dup {
			return nil, errors.Wrapf(ErrInvalidHierarchy, "duplicate bone name %q", b.Name)
		}
		s.byName[b.Name] = i
		if key := utils.NormalizeName(b.Name); key != "" {
			if _, dup := s.byKey[key]; !dup {
				s.byKey[key] = i
			}
		}

		switch {
		case b.Parent == BONE_PARENT_NONE:
			roots = append(roots, i)
		case b.Parent < 0 || b.Parent >= len(s.bones) || b.Parent == i:
			return nil, errors.Wrapf(ErrInvalidHierarchy, "bone %q has invalid parent %d", b.Name, b.Parent)
		default:
			s.children[b.Parent] = append(s.children[b.Parent], i)
		}
	}

	stack := make([]int, 0, len(s.bones))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) != 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s.order = append(s.order, i)
		if p := s.bones[i].Parent; p != BONE_PARENT_NONE {
			s.depth[i] = s.depth[p] + 1
		}
		childs := s.children[i]
		for c := len(childs) - 1; c >= 0; c-- {
			stack = append(stack, childs[c])
		}
	}
	if len(s.order) != len(s.bones) {
		return nil, errors.Wrapf(ErrInvalidHierarchy, "%d bones are part of a cycle", len(s.bones)-len(s.order))
	}

	return s, nil
}

func (s *Skeleton) Len() int { return len(s.bones) }

func (s *Skeleton) Bone(i int) Bone { return s.bones[i] }

func (s *Skeleton) Name(i int) string { return s.bones[i].Name }

func (s *Skeleton) Parent(i int) int { return s.bones[i].Parent }

func (s *Skeleton) Children(i int) []int { return s.children[i] }

func (s *Skeleton) Depth(i int) int { return s.depth[i] }

// Order lists bones parents first
func (s *Skeleton) Order() []int { return s.order }

// Index finds bone by exact name, falling back to normalized name match
func (s *Skeleton) Index(name string) (int, bool) {
	if i, ok := s.byName[name]; ok {
		return i, true
	}
	i, ok := s.byKey[utils.NormalizeName(name)]
	return i, ok
}

// IsAncestor reports whether a is a strict ancestor of b
func (s *Skeleton) IsAncestor(a, b int) bool {
	for p := s.bones[b].Parent; p != BONE_PARENT_NONE; p = s.bones[p].Parent {
		if p == a {
			return true
		}
	}
	return false
}

func (s *Skeleton) RestPose() *Pose {
	return NewPose(s)
}
