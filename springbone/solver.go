package springbone

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/vrm_spring_bones/skel"
	"github.com/mogaika/vrm_spring_bones/utils"
)

const DefaultFaultLogWindow = 600

type Settings struct {
	// Weight blends animated (0) and simulated (1) rotations
	Weight float32
	// FaultLogWindow is number of ticks between two numeric fault log lines
	FaultLogWindow int
	// RotationDeadZone in degrees. Smaller deviations from animated tail
	// direction keep animated rotation. 0 disables.
	RotationDeadZone float32
}

func DefaultSettings() Settings {
	return Settings{
		Weight:         1,
		FaultLogWindow: DefaultFaultLogWindow,
	}
}

type NodeState struct {
	Current  mgl32.Vec3 `json:"current"`
	Previous mgl32.Vec3 `json:"previous"`
}

// Solver owns simulation state of one rig instance. It is not safe for
// concurrent use, but any number of solvers may share the same Rig.
type Solver struct {
	rig      *Rig
	settings Settings

	offsets []int
	state   []NodeState
	anim    []mgl32.Quat
	shapes  []worldShape
	rest    *skel.Pose

	seeded bool
	tick   uint64
	faults faultLog
}

func NewSolver(rig *Rig, settings Settings) *Solver {
	settings.Weight = utils.ClampF(settings.Weight, 0, 1)
	if settings.RotationDeadZone < 0 || !utils.IsFinite(settings.RotationDeadZone) {
		settings.RotationDeadZone = 0
	}
	if settings.FaultLogWindow <= 0 {
		settings.FaultLogWindow = DefaultFaultLogWindow
	}
	s := &Solver{
		rig:      rig,
		settings: settings,
		offsets:  make([]int, len(rig.Chains)),
		state:    make([]NodeState, rig.NodeCount()),
		anim:     make([]mgl32.Quat, rig.NodeCount()),
		shapes:   make([]worldShape, len(rig.Colliders)),
		rest:     rig.Skeleton.RestPose(),
		faults:   faultLog{window: uint64(settings.FaultLogWindow)},
	}
	off := 0
	for i, c := range rig.Chains {
		s.offsets[i] = off
		off += len(c.Nodes)
	}
	return s
}

func (s *Solver) Rig() *Rig { return s.rig }

func (s *Solver) Settings() Settings { return s.settings }

// Tick returns number of integration steps done since creation
func (s *Solver) Tick() uint64 { return s.tick }

// Faults returns number of transient numeric faults since creation
func (s *Solver) Faults() int { return s.faults.total }

func (s *Solver) NodeState(chain, node int) NodeState {
	return s.state[s.offsets[chain]+node]
}

// Positions returns current tail positions of chain nodes. Chains with
// center bone report them in center bone space.
func (s *Solver) Positions(chain int) []mgl32.Vec3 {
	c := s.rig.Chains[chain]
	res := make([]mgl32.Vec3, len(c.Nodes))
	for i := range res {
		res[i] = s.state[s.offsets[chain]+i].Current
	}
	return res
}

// Apply writes rotations of current state into pose without advancing time
func (s *Solver) Apply(pose *skel.Pose) {
	s.Update(pose, 0, 0)
}

// Reset seeds every node with its animated rest target taken from pose.
// Velocity becomes zero.
func (s *Solver) Reset(pose *skel.Pose) {
	for ci, c := range s.rig.Chains {
		toCenter, hasCenter := s.centerInverse(pose, c)
		base := s.offsets[ci]
		parentWorld := pose.ParentWorld(c.Nodes[0].Bone)
		for k := range c.Nodes {
			n := &c.Nodes[k]
			boneWorld := parentWorld.Mul(pose.Local(n.Bone))
			target := boneWorld.TransformPoint(n.Offset)
			if hasCenter {
				target = mgl32.TransformCoordinate(target, toCenter)
			}
			s.state[base+k] = NodeState{Current: target, Previous: target}
			parentWorld = boneWorld
		}
	}
	s.seeded = true
}

// ResetToRest seeds state from skeleton rest pose and requests reseed from
// the next pose passed to Update.
func (s *Solver) ResetToRest() {
	s.Reset(s.rest)
	s.seeded = false
}

// Update advances simulation by steps integration steps of dt seconds each
// and writes simulated rotations of every driven bone into pose. With zero
// steps the current state is written without integration.
func (s *Solver) Update(pose *skel.Pose, dt float32, steps int) {
	if !s.seeded {
		s.Reset(pose)
	}
	if !utils.IsFinite(dt) || dt < 0 {
		dt = 0
	}

	for ci, c := range s.rig.Chains {
		base := s.offsets[ci]
		for k := range c.Nodes {
			s.anim[base+k] = pose.Local(c.Nodes[k].Bone).Rotation
		}
	}

	if steps <= 0 || dt == 0 {
		s.solve(pose, 0, false)
		return
	}
	for step := 0; step < steps; step++ {
		if step != 0 {
			s.restore(pose)
		}
		s.solve(pose, dt, true)
	}
}

func (s *Solver) restore(pose *skel.Pose) {
	for ci, c := range s.rig.Chains {
		base := s.offsets[ci]
		for k := range c.Nodes {
			pose.SetLocalRotation(c.Nodes[k].Bone, s.anim[base+k])
		}
	}
}

func (s *Solver) centerInverse(pose *skel.Pose, c *Chain) (mgl32.Mat4, bool) {
	if c.Center == skel.BONE_PARENT_NONE {
		return mgl32.Ident4(), false
	}
	m := pose.World(c.Center).Mat4()
	if m.Det() == 0 {
		return mgl32.Ident4(), false
	}
	return m.Inv(), true
}

func (s *Solver) solve(pose *skel.Pose, dt float32, integrate bool) {
	if integrate {
		s.tick++
	}
	for i, col := range s.rig.Colliders {
		s.shapes[i] = col.place(pose.World(col.Bone))
	}

	for ci, c := range s.rig.Chains {
		base := s.offsets[ci]
		toCenter, hasCenter := s.centerInverse(pose, c)
		var toWorld mgl32.Mat4
		if hasCenter {
			toWorld = pose.World(c.Center).Mat4()
		}

		parentWorld := pose.ParentWorld(c.Nodes[0].Bone)
		var simHead mgl32.Vec3
		for k := range c.Nodes {
			n := &c.Nodes[k]
			st := &s.state[base+k]
			local := pose.Local(n.Bone)
			boneWorld := parentWorld.Mul(local)
			// segments after root hang from simulated tail of previous one
			head := boneWorld.Translation
			if k != 0 && utils.IsFiniteV3(simHead) {
				head = simHead
			}
			animTail := boneWorld.TransformVector(n.Offset)

			cur, prev := st.Current, st.Previous
			if hasCenter {
				cur = mgl32.TransformCoordinate(cur, toWorld)
				prev = mgl32.TransformCoordinate(prev, toWorld)
			}

			if integrate {
				next, ok := s.integrate(c, n, cur, prev, head, head.Add(animTail), dt)
				if ok {
					prev, cur = cur, next
				} else {
					s.faults.report(s.tick, c.Name, n.Name, NodeState{Current: cur, Previous: prev}, head)
					if !utils.IsFiniteV3(cur) {
						cur = head.Add(animTail)
					}
					prev = cur
				}
				if hasCenter {
					st.Current = mgl32.TransformCoordinate(cur, toCenter)
					st.Previous = mgl32.TransformCoordinate(prev, toCenter)
				} else {
					st.Current, st.Previous = cur, prev
				}
			}

			rot := s.rotation(parentWorld, boneWorld, local.Rotation, animTail, cur.Sub(head))
			if !utils.IsFiniteQuat(rot) {
				if integrate {
					s.faults.report(s.tick, c.Name, n.Name, NodeState{Current: cur, Previous: prev}, head)
				}
				rot = local.Rotation
			}
			pose.SetLocalRotation(n.Bone, rot)
			local.Rotation = rot
			parentWorld = parentWorld.Mul(local)
			simHead = cur
		}
	}
}

// integrate is one verlet step of node tail, returns false on numeric fault
func (s *Solver) integrate(c *Chain, n *Node, cur, prev, head, restTarget mgl32.Vec3, dt float32) (mgl32.Vec3, bool) {
	if !utils.IsFiniteV3(cur) || !utils.IsFiniteV3(prev) || !utils.IsFiniteV3(head) || !utils.IsFiniteV3(restTarget) {
		return cur, false
	}
	p := &n.Params
	dt2 := dt * dt
	velocity := cur.Sub(prev).Mul(1 - p.Drag)
	next := cur.Add(velocity).
		Add(n.gravity.Mul(dt2)).
		Add(restTarget.Sub(cur).Mul(p.Stiffness * dt2))

	next, ok := constrainLength(head, next, n.Length)
	if !ok {
		return cur, false
	}
	// hit sphere never reaches past middle of the bone
	radius := math32.Min(p.HitRadius, 0.5*n.Length)
	for _, ci := range c.Colliders {
		if ws := &s.shapes[ci]; ws.valid {
			next = ws.collide(next, radius)
		}
	}
	next, ok = constrainLength(head, next, n.Length)
	if !ok || !utils.IsFiniteV3(next) {
		return cur, false
	}
	return next, true
}

func constrainLength(head, p mgl32.Vec3, length float32) (mgl32.Vec3, bool) {
	dir, ok := utils.SafeNormalize(p.Sub(head))
	if !ok {
		return p, false
	}
	return head.Add(dir.Mul(length)), true
}

// rotation returns local rotation turning animated tail direction into
// simulated one, blended by weight
func (s *Solver) rotation(parentWorld, boneWorld skel.Transform, animLocal mgl32.Quat, animTail, simTail mgl32.Vec3) mgl32.Quat {
	if dz := s.settings.RotationDeadZone; dz > 0 {
		a, okA := utils.SafeNormalize(animTail)
		b, okB := utils.SafeNormalize(simTail)
		if okA && okB && math32.Acos(utils.ClampF(a.Dot(b), -1, 1)) < mgl32.DegToRad(dz) {
			return animLocal
		}
	}
	delta := utils.FromToRotation(animTail, simTail)
	world := delta.Mul(boneWorld.Rotation)
	local := parentWorld.Rotation.Inverse().Mul(world).Normalize()
	if s.settings.Weight >= 1 {
		return local
	}
	return mgl32.QuatSlerp(animLocal, local, s.settings.Weight)
}
