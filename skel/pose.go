package skel

import "github.com/go-gl/mathgl/mgl32"

// Pose holds local transforms of every bone of a skeleton. World transforms
// are computed on demand and cached until a local transform of the bone or
// of one of its ancestors changes.
type Pose struct {
	skel  *Skeleton
	local []Transform
	world []Transform
	valid []bool
	stack []int
}

func NewPose(s *Skeleton) *Pose {
	p := &Pose{
		skel:  s,
		local: make([]Transform, s.Len()),
		world: make([]Transform, s.Len()),
		valid: make([]bool, s.Len()),
		stack: make([]int, 0, s.Len()),
	}
	for i := range p.local {
		p.local[i] = s.bones[i].Rest
	}
	return p
}

func (p *Pose) Skeleton() *Skeleton { return p.skel }

func (p *Pose) Len() int { return len(p.local) }

func (p *Pose) Local(i int) Transform { return p.local[i] }

func (p *Pose) SetLocal(i int, t Transform) {
	p.local[i] = t
	p.invalidate(i)
}

func (p *Pose) SetLocalRotation(i int, q mgl32.Quat) {
	p.local[i].Rotation = q
	p.invalidate(i)
}

// ResetToRest copies rest transforms into every bone
func (p *Pose) ResetToRest() {
	for i := range p.local {
		p.local[i] = p.skel.bones[i].Rest
		p.valid[i] = false
	}
}

// CopyFrom copies locals of pose with the same skeleton
func (p *Pose) CopyFrom(o *Pose) {
	copy(p.local, o.local)
	for i := range p.valid {
		p.valid[i] = false
	}
}

func (p *Pose) World(i int) Transform {
	if p.valid[i] {
		return p.world[i]
	}
	// walk up to the first cached ancestor, then fill down
	p.stack = p.stack[:0]
	for j := i; j != BONE_PARENT_NONE && !p.valid[j]; j = p.skel.bones[j].Parent {
		p.stack = append(p.stack, j)
	}
	for k := len(p.stack) - 1; k >= 0; k-- {
		j := p.stack[k]
		if parent := p.skel.bones[j].Parent; parent == BONE_PARENT_NONE {
			p.world[j] = p.local[j]
		} else {
			p.world[j] = p.world[parent].Mul(p.local[j])
		}
		p.valid[j] = true
	}
	return p.world[i]
}

// ParentWorld returns world transform of bone parent, identity for roots
func (p *Pose) ParentWorld(i int) Transform {
	if parent := p.skel.bones[i].Parent; parent != BONE_PARENT_NONE {
		return p.World(parent)
	}
	return Identity()
}

func (p *Pose) invalidate(i int) {
	if !p.valid[i] {
		// descendants of an invalid bone are never valid
		return
	}
	p.stack = append(p.stack[:0], i)
	for len(p.stack) != 0 {
		j := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		if !p.valid[j] {
			continue
		}
		p.valid[j] = false
		p.stack = append(p.stack, p.skel.children[j]...)
	}
}
