package springbone

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/vrm_spring_bones/skel"
)

const testDt = float32(1.0 / 60.0)

func armRig(t *testing.T, params Params, center string, colliders ...ColliderDesc) *Rig {
	chain := ChainDesc{
		Name:   "arm",
		Params: params,
		Center: center,
		Links:  []LinkDesc{{Parent: "root", Child: "child"}},
	}
	if len(colliders) != 0 {
		chain.ColliderGroups = []string{"body"}
	}
	r, errs := NewRig(testSkeleton(t), RigDesc{Chains: []ChainDesc{chain}, Colliders: colliders})
	require.Empty(t, errs)
	require.Len(t, r.Chains, 1)
	return r
}

// simulate runs ticks on static rest animation and returns tail positions
func simulate(s *Solver, ticks int, each func(pose *skel.Pose)) []mgl32.Vec3 {
	pose := s.Rig().Skeleton.RestPose()
	out := make([]mgl32.Vec3, 0, ticks)
	for i := 0; i < ticks; i++ {
		pose.ResetToRest()
		s.Update(pose, testDt, 1)
		if each != nil {
			each(pose)
		}
		out = append(out, s.NodeState(0, 0).Current)
	}
	return out
}

func TestSolverHangingChainSettles(t *testing.T) {
	s := NewSolver(armRig(t, hangingParams(), ""), DefaultSettings())

	var pose *skel.Pose
	path := simulate(s, 300, func(p *skel.Pose) {
		pose = p
		// length law holds every tick
		assert.InDelta(t, 1, s.NodeState(0, 0).Current.Len(), 1e-5)
	})

	last := path[len(path)-1]
	assert.InDelta(t, 0.1015, last.X(), 2e-3)
	assert.InDelta(t, -0.9948, last.Y(), 2e-3)
	assert.InDelta(t, 0, last.Z(), 1e-6)
	assert.Less(t, last.Sub(path[len(path)-2]).Len(), float32(1e-4))

	// written rotation puts child bone where the tail was simulated
	child := pose.World(2).Translation
	assert.True(t, child.ApproxEqualThreshold(last, 1e-4), "%v != %v", child, last)

	// swing amplitude never grows once it starts decaying
	var peaks []float32
	for i := 1; i+1 < len(path); i++ {
		d := path[i].Sub(last).Len()
		if d > path[i-1].Sub(last).Len() && d >= path[i+1].Sub(last).Len() {
			peaks = append(peaks, d)
		}
	}
	for i := 1; i < len(peaks); i++ {
		assert.LessOrEqual(t, peaks[i], peaks[i-1]+1e-6)
	}
	assert.Equal(t, uint64(300), s.Tick())
	assert.Zero(t, s.Faults())
}

func TestSolverFreePendulumGainsNoEnergy(t *testing.T) {
	p := Params{GravityDir: mgl32.Vec3{0, -1, 0}, GravityPower: 9.8}
	s := NewSolver(armRig(t, p, ""), DefaultSettings())

	for _, pos := range simulate(s, 600, nil) {
		assert.LessOrEqual(t, pos.Y(), float32(1e-3))
		assert.InDelta(t, 1, pos.Len(), 1e-5)
	}
}

func TestSolverFreeChainWithoutGravityIsBounded(t *testing.T) {
	for _, tc := range []struct {
		name string
		kick float64
	}{
		{"at rest", 0},
		{"swinging", 0.02},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSolver(armRig(t, Params{}, ""), DefaultSettings())
			s.Reset(s.Rig().Skeleton.RestPose())
			prev := mgl32.Vec3{float32(math.Cos(tc.kick)), -float32(math.Sin(tc.kick)), 0}
			s.state[0].Previous = prev
			start := s.state[0].Current.Sub(prev).Len()

			last := s.state[0].Current
			for _, pos := range simulate(s, 600, nil) {
				assert.InDelta(t, 1, pos.Len(), 1e-5)
				assert.LessOrEqual(t, pos.Sub(last).Len(), start+1e-6)
				last = pos
			}
			if tc.kick == 0 {
				assert.True(t, last.ApproxEqualThreshold(mgl32.Vec3{1, 0, 0}, 1e-6), "%v", last)
			}
		})
	}
}

func TestSolverStaysOutsideCollider(t *testing.T) {
	params := hangingParams()
	params.HitRadius = 0.05
	s := NewSolver(armRig(t, params, "", ColliderDesc{
		Name:   "belly",
		Bone:   "hips",
		Shape:  SHAPE_SPHERE,
		Offset: mgl32.Vec3{0.3, -1, 0},
		Radius: 0.4,
		Groups: []string{"body"},
	}), DefaultSettings())

	center := mgl32.Vec3{0.3, -1, 0}
	path := simulate(s, 300, nil)
	for _, pos := range path {
		assert.GreaterOrEqual(t, pos.Sub(center).Len(), float32(0.45-5e-3))
	}
	// resting on the collider instead of hanging straight down
	assert.Greater(t, path[len(path)-1].X(), float32(0.5))
}

func TestSolverHitRadiusLimitedByBoneLength(t *testing.T) {
	params := hangingParams()
	params.HitRadius = 5
	s := NewSolver(armRig(t, params, "", ColliderDesc{
		Name:   "floor_ball",
		Bone:   "hips",
		Shape:  SHAPE_SPHERE,
		Offset: mgl32.Vec3{0, -3, 0},
		Radius: 0.4,
		Groups: []string{"body"},
	}), DefaultSettings())

	// with radius clamped to half of bone length tail never reaches the ball
	path := simulate(s, 300, nil)
	last := path[len(path)-1]
	assert.InDelta(t, 0.1015, last.X(), 2e-3)
	assert.InDelta(t, -0.9948, last.Y(), 2e-3)
}

func TestSolverRotationDeadZone(t *testing.T) {
	for _, tc := range []struct {
		name     string
		deadZone float32
		animated bool
	}{
		{"wide", 179, true},
		{"narrow", 0.5, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			settings := DefaultSettings()
			settings.RotationDeadZone = tc.deadZone
			s := NewSolver(armRig(t, hangingParams(), ""), settings)

			var rot mgl32.Quat
			simulate(s, 300, func(pose *skel.Pose) {
				rot = pose.Local(1).Rotation
			})
			assert.Equal(t, tc.animated, rot.ApproxEqualThreshold(mgl32.QuatIdent(), 1e-6))
			assert.Less(t, s.NodeState(0, 0).Current.Y(), float32(-0.5))
		})
	}
}

func TestSolverSegmentsHangFromSimulatedTail(t *testing.T) {
	r, errs := NewRig(testSkeleton(t), RigDesc{Chains: []ChainDesc{{
		Name:   "arm",
		Params: hangingParams(),
		Links: []LinkDesc{
			{Parent: "child", Child: "tip"},
			{Parent: "root", Child: "child"},
		},
	}}})
	require.Empty(t, errs)
	s := NewSolver(r, DefaultSettings())

	pose := r.Skeleton.RestPose()
	for i := 0; i < 120; i++ {
		pose.ResetToRest()
		// animation stretches the arm, simulated segments keep rest length
		child := pose.Local(2)
		child.Translation = mgl32.Vec3{1.5, 0, 0}
		pose.SetLocal(2, child)
		s.Update(pose, testDt, 1)

		first, second := s.NodeState(0, 0).Current, s.NodeState(0, 1).Current
		assert.InDelta(t, 1, first.Len(), 1e-5)
		assert.InDelta(t, 1, second.Sub(first).Len(), 1e-4)
	}
}

func TestSolverResetIsDeterministic(t *testing.T) {
	s := NewSolver(armRig(t, hangingParams(), ""), DefaultSettings())
	first := simulate(s, 50, nil)

	s.Reset(s.Rig().Skeleton.RestPose())
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, s.NodeState(0, 0).Current)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, s.NodeState(0, 0).Previous)

	second := simulate(s, 50, nil)
	assert.Equal(t, first, second)
}

func TestSolverZeroWeightKeepsAnimation(t *testing.T) {
	settings := DefaultSettings()
	settings.Weight = 0
	s := NewSolver(armRig(t, hangingParams(), ""), settings)

	simulate(s, 30, func(pose *skel.Pose) {
		assert.True(t, pose.Local(1).Rotation.ApproxEqualThreshold(mgl32.QuatIdent(), 1e-6))
	})
	assert.Less(t, s.NodeState(0, 0).Current.Y(), float32(-0.1))
}

func TestSolverZeroStepsHoldsState(t *testing.T) {
	s := NewSolver(armRig(t, hangingParams(), ""), DefaultSettings())
	path := simulate(s, 20, nil)

	pose := s.Rig().Skeleton.RestPose()
	s.Update(pose, testDt, 0)
	assert.Equal(t, uint64(20), s.Tick())
	assert.Equal(t, path[len(path)-1], s.NodeState(0, 0).Current)
	assert.True(t, pose.World(2).Translation.ApproxEqualThreshold(path[len(path)-1], 1e-4))
}

func TestSolverApplyAndPositions(t *testing.T) {
	s := NewSolver(armRig(t, hangingParams(), ""), DefaultSettings())
	path := simulate(s, 20, nil)

	positions := s.Positions(0)
	require.Len(t, positions, 1)
	assert.Equal(t, path[len(path)-1], positions[0])

	pose := s.Rig().Skeleton.RestPose()
	s.Apply(pose)
	assert.Equal(t, uint64(20), s.Tick())
	assert.True(t, pose.World(2).Translation.ApproxEqualThreshold(positions[0], 1e-4))
}

func TestSolverCenterSpaceIgnoresLocomotion(t *testing.T) {
	run := func(center string) mgl32.Vec3 {
		s := NewSolver(armRig(t, hangingParams(), center), DefaultSettings())
		simulate(s, 300, nil)
		settled := s.NodeState(0, 0).Current

		pose := s.Rig().Skeleton.RestPose()
		hips := pose.Local(0)
		hips.Translation = mgl32.Vec3{5, 0, 0}
		pose.SetLocal(0, hips)
		s.Update(pose, testDt, 1)

		return pose.World(2).Translation.Sub(mgl32.Vec3{5, 0, 0}).Sub(settled)
	}

	assert.Less(t, run("hips").Len(), float32(1e-3))
	assert.Greater(t, run("").Len(), float32(0.1))
}

func TestSolverRecoversFromNumericFault(t *testing.T) {
	s := NewSolver(armRig(t, hangingParams(), ""), DefaultSettings())
	path := simulate(s, 10, nil)
	before := path[len(path)-1]

	pose := s.Rig().Skeleton.RestPose()
	hips := pose.Local(0)
	hips.Translation = mgl32.Vec3{float32(math.NaN()), 0, 0}
	pose.SetLocal(0, hips)
	s.Update(pose, testDt, 1)

	assert.Equal(t, 1, s.Faults())
	st := s.NodeState(0, 0)
	assert.Equal(t, before, st.Current)
	assert.Equal(t, before, st.Previous)

	for _, pos := range simulate(s, 10, nil) {
		assert.InDelta(t, 1, pos.Len(), 1e-5)
	}
	assert.Equal(t, 1, s.Faults())
}

func TestSolverSubsteps(t *testing.T) {
	single := NewSolver(armRig(t, hangingParams(), ""), DefaultSettings())
	multi := NewSolver(armRig(t, hangingParams(), ""), DefaultSettings())

	pose := single.Rig().Skeleton.RestPose()
	for i := 0; i < 4; i++ {
		pose.ResetToRest()
		single.Update(pose, testDt, 1)
	}
	pose.ResetToRest()
	multi.Update(pose, testDt, 4)

	assert.Equal(t, uint64(4), multi.Tick())
	assert.True(t, single.NodeState(0, 0).Current.ApproxEqualThreshold(multi.NodeState(0, 0).Current, 1e-6))
}
