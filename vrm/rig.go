package vrm

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	log "github.com/sirupsen/logrus"

	"github.com/mogaika/vrm_spring_bones/skel"
	"github.com/mogaika/vrm_spring_bones/springbone"
	"github.com/mogaika/vrm_spring_bones/utils"
)

const (
	DefaultReferenceRate     = 60
	DefaultVirtualTailLength = 0.07
)

type Options struct {
	// ReferenceRate converts VRM per tick velocity terms (stiffness, gravity
	// power) into accelerations used by the solver
	ReferenceRate float32
	// VirtualTailLength is length of tail added to leaf joints, in meters
	VirtualTailLength float32
}

func DefaultOptions() Options {
	return Options{
		ReferenceRate:     DefaultReferenceRate,
		VirtualTailLength: DefaultVirtualTailLength,
	}
}

// Model is everything the solver needs from one VRM file
type Model struct {
	Skeleton *skel.Skeleton
	Spring   *Spring
	Desc     springbone.RigDesc
}

func Build(doc *gltf.Document, opts Options) (*Model, error) {
	s, err := Skeleton(doc)
	if err != nil {
		return nil, err
	}
	spring, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	return &Model{
		Skeleton: s,
		Spring:   spring,
		Desc:     RigDesc(s, spring, opts),
	}, nil
}

// NewRig resolves model description into solver rig
func (m *Model) NewRig() (*springbone.Rig, []error) {
	return springbone.NewRig(m.Skeleton, m.Desc)
}

type rigBuilder struct {
	s     *skel.Skeleton
	rest  *skel.Pose
	opts  Options
	names utils.RandomNameGenerator
	desc  springbone.RigDesc
}

// RigDesc converts parsed spring data into load time rig description. Broken
// references are skipped with a warning, Validate reports them in detail.
func RigDesc(s *skel.Skeleton, spring *Spring, opts Options) springbone.RigDesc {
	if opts.ReferenceRate <= 0 {
		opts.ReferenceRate = DefaultReferenceRate
	}
	if opts.VirtualTailLength <= 0 {
		opts.VirtualTailLength = DefaultVirtualTailLength
	}
	b := &rigBuilder{s: s, rest: s.RestPose(), opts: opts}

	groupNames := make([]string, len(spring.ColliderGroups))
	colliderGroups := make([][]string, len(spring.Colliders))
	for gi, g := range spring.ColliderGroups {
		groupNames[gi] = b.uniqueName(g.Name)
		for _, ci := range g.Colliders {
			if ci >= 0 && ci < len(colliderGroups) {
				colliderGroups[ci] = append(colliderGroups[ci], groupNames[gi])
			}
		}
	}

	for ci, c := range spring.Colliders {
		bone, ok := b.bone(c.Node)
		if !ok {
			log.Warnf("[vrm] collider %d: invalid node %d", ci, c.Node)
			continue
		}
		for si, sh := range c.Shapes {
			b.desc.Colliders = append(b.desc.Colliders, springbone.ColliderDesc{
				Name:   fmt.Sprintf("%s#%d.%d", bone, ci, si),
				Bone:   bone,
				Shape:  sh.Shape,
				Offset: sh.Offset,
				Tail:   sh.Tail,
				Normal: sh.Normal,
				Radius: sh.Radius,
				Inside: sh.Inside,
				Groups: colliderGroups[ci],
			})
		}
	}

	for si := range spring.Springs {
		sd := &spring.Springs[si]
		if len(sd.Joints) == 0 {
			log.Warnf("[vrm] %v skipped: no joints", sd)
			continue
		}
		var groups []string
		for _, gi := range sd.ColliderGroups {
			if gi >= 0 && gi < len(groupNames) {
				groups = append(groups, groupNames[gi])
			} else {
				log.Warnf("[vrm] %v: invalid collider group %d", sd, gi)
			}
		}
		center := ""
		if sd.Center != NODE_NONE {
			if center, _ = b.bone(sd.Center); center == "" {
				log.Warnf("[vrm] %v: invalid center node %d", sd, sd.Center)
			}
		}

		if sd.Subtree {
			b.subtreeChains(sd, groups, center)
		} else {
			b.jointChain(sd, groups, center)
		}
	}
	return b.desc
}

func (b *rigBuilder) bone(node int) (string, bool) {
	if node < 0 || node >= b.s.Len() {
		return "", false
	}
	return b.s.Name(node), true
}

func (b *rigBuilder) uniqueName(name string) string {
	if name == "" {
		return b.names.RandomName()
	}
	if b.names.Reserve(name) {
		return name
	}
	return name + "_" + b.names.RandomName()
}

func (b *rigBuilder) params(j JointDef) springbone.Params {
	return springbone.Params{
		Stiffness:    j.Stiffness * b.opts.ReferenceRate,
		Drag:         j.DragForce,
		GravityDir:   j.GravityDir,
		GravityPower: j.GravityPower * b.opts.ReferenceRate,
		HitRadius:    j.HitRadius,
	}
}

// jointChain maps VRM 1.0 joint list: every joint drives itself toward the
// next one, the last joint is only a tail. Single joint gets virtual tail.
func (b *rigBuilder) jointChain(sd *SpringDef, groups []string, center string) {
	cd := springbone.ChainDesc{
		Name:           b.uniqueName(sd.Name),
		Params:         b.params(sd.Joints[0]),
		ColliderGroups: groups,
		Center:         center,
	}
	for i, j := range sd.Joints {
		bone, ok := b.bone(j.Node)
		if !ok {
			log.Warnf("[vrm] %v: invalid joint node %d", sd, j.Node)
			return
		}
		p := b.params(j)
		if i+1 < len(sd.Joints) {
			next, ok := b.bone(sd.Joints[i+1].Node)
			if !ok {
				log.Warnf("[vrm] %v: invalid joint node %d", sd, sd.Joints[i+1].Node)
				return
			}
			cd.Links = append(cd.Links, springbone.LinkDesc{Parent: bone, Child: next, Params: &p})
		} else if len(sd.Joints) == 1 {
			cd.Links = append(cd.Links, springbone.LinkDesc{Parent: bone, TailOffset: b.virtualTail(j.Node), Params: &p})
		}
	}
	b.desc.Chains = append(b.desc.Chains, cd)
}

// subtreeChains maps VRM 0.x bone group: every listed root swings with its
// whole subtree, each bone pointing at its first child. Other children start
// chains of their own.
func (b *rigBuilder) subtreeChains(sd *SpringDef, groups []string, center string) {
	base := sd.Name
	if base == "" {
		base = b.names.RandomName()
	}
	count := 0
	for _, j := range sd.Joints {
		if _, ok := b.bone(j.Node); !ok {
			log.Warnf("[vrm] %v: invalid bone node %d", sd, j.Node)
			continue
		}
		p := b.params(j)
		queue := []int{j.Node}
		for len(queue) != 0 {
			start := queue[0]
			queue = queue[1:]

			name := base
			if count != 0 {
				name = fmt.Sprintf("%s.%d", base, count)
			}
			count++
			cd := springbone.ChainDesc{
				Name:           b.uniqueName(name),
				Params:         p,
				ColliderGroups: groups,
				Center:         center,
			}
			for cur := start; ; {
				children := b.s.Children(cur)
				if len(children) == 0 {
					cd.Links = append(cd.Links, springbone.LinkDesc{Parent: b.s.Name(cur), TailOffset: b.virtualTail(cur)})
					break
				}
				cd.Links = append(cd.Links, springbone.LinkDesc{Parent: b.s.Name(cur), Child: b.s.Name(children[0])})
				queue = append(queue, children[1:]...)
				cur = children[0]
			}
			b.desc.Chains = append(b.desc.Chains, cd)
		}
	}
}

// virtualTail continues direction parent -> bone past a leaf bone, result is
// in bone local space
func (b *rigBuilder) virtualTail(bone int) mgl32.Vec3 {
	w := b.rest.World(bone)
	dir := mgl32.Vec3{}
	ok := false
	if parent := b.s.Parent(bone); parent != skel.BONE_PARENT_NONE {
		dir, ok = utils.SafeNormalize(w.Translation.Sub(b.rest.World(parent).Translation))
	}
	if !ok {
		dir = w.Rotation.Rotate(mgl32.Vec3{0, 1, 0})
	}
	tail := w.Translation.Add(dir.Mul(b.opts.VirtualTailLength))
	m := w.Mat4()
	if m.Det() == 0 {
		return mgl32.Vec3{}
	}
	return mgl32.TransformCoordinate(tail, m.Inv())
}
