// Package animnode is the per frame entry point of spring bone simulation.
// A Node is created once per rig and owns one solver per instance id.
package animnode

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mogaika/vrm_spring_bones/skel"
	"github.com/mogaika/vrm_spring_bones/springbone"
	"github.com/mogaika/vrm_spring_bones/utils"
)

var ErrUnknownInstance = errors.New("unknown instance")

const (
	DefaultMaxDeltaTime  = 0.1
	DefaultFixedTimeStep = 1.0 / 60.0
	DefaultMaxSubsteps   = 8

	accumulatorEpsilon = 1e-6
)

type Settings struct {
	// MaxDeltaTime clamps frame time before it reaches the solver
	MaxDeltaTime float32
	// FixedTimeStep enables accumulator based stepping when > 0
	FixedTimeStep float32
	MaxSubsteps   int
	TimeScale     float32
	// HitchResetTime resets instance instead of stepping when frame time
	// reaches it. 0 disables.
	HitchResetTime float32
	// Paused writes current simulated state into pose without advancing it
	Paused bool
	Solver springbone.Settings
}

func DefaultSettings() Settings {
	return Settings{
		MaxDeltaTime: DefaultMaxDeltaTime,
		MaxSubsteps:  DefaultMaxSubsteps,
		TimeScale:    1,
		Solver:       springbone.DefaultSettings(),
	}
}

type Input struct {
	Pose      *skel.Pose
	DeltaTime float32
	Reset     bool
}

type instance struct {
	solver      *springbone.Solver
	enabled     bool
	accumulator float32
}

func (inst *instance) reset() {
	inst.solver.ResetToRest()
	inst.accumulator = 0
}

// Node evaluates spring bones of one rig for any number of instances.
// Instances may be evaluated from different goroutines, but one instance
// must not be evaluated concurrently with itself.
type Node struct {
	rig      *springbone.Rig
	settings Settings

	lock      sync.RWMutex
	instances map[uuid.UUID]*instance
}

func New(rig *springbone.Rig, settings Settings) *Node {
	if settings.MaxDeltaTime <= 0 {
		settings.MaxDeltaTime = DefaultMaxDeltaTime
	}
	if settings.MaxSubsteps <= 0 {
		settings.MaxSubsteps = DefaultMaxSubsteps
	}
	if settings.TimeScale < 0 || !utils.IsFinite(settings.TimeScale) {
		settings.TimeScale = 1
	}
	return &Node{
		rig:       rig,
		settings:  settings,
		instances: make(map[uuid.UUID]*instance),
	}
}

func (n *Node) Rig() *springbone.Rig { return n.rig }

func (n *Node) Settings() Settings { return n.settings }

// Create allocates new enabled instance with random id
func (n *Node) Create() (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return id, errors.Wrapf(err, "Failed to generate instance id")
	}
	n.getOrCreate(id)
	return id, nil
}

func (n *Node) getOrCreate(id uuid.UUID) *instance {
	n.lock.RLock()
	inst, ok := n.instances[id]
	n.lock.RUnlock()
	if ok {
		return inst
	}

	n.lock.Lock()
	defer n.lock.Unlock()
	if inst, ok = n.instances[id]; !ok {
		inst = &instance{
			solver:  springbone.NewSolver(n.rig, n.settings.Solver),
			enabled: true,
		}
		n.instances[id] = inst
	}
	return inst
}

func (n *Node) get(id uuid.UUID) (*instance, error) {
	n.lock.RLock()
	defer n.lock.RUnlock()
	inst, ok := n.instances[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownInstance, "%v", id)
	}
	return inst, nil
}

// Destroy drops instance state. Returns false for unknown id.
func (n *Node) Destroy(id uuid.UUID) bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	_, ok := n.instances[id]
	delete(n.instances, id)
	return ok
}

// Reset clears instance state back to rest pose. Next evaluation reseeds it
// from the pose it gets, so the chain starts from the animated pose.
func (n *Node) Reset(id uuid.UUID) error {
	inst, err := n.get(id)
	if err != nil {
		return err
	}
	inst.reset()
	return nil
}

// SetEnabled toggles simulation without touching its state
func (n *Node) SetEnabled(id uuid.UUID, enabled bool) error {
	inst, err := n.get(id)
	if err != nil {
		return err
	}
	inst.enabled = enabled
	return nil
}

func (n *Node) Enabled(id uuid.UUID) bool {
	inst, err := n.get(id)
	return err == nil && inst.enabled
}

func (n *Node) Solver(id uuid.UUID) (*springbone.Solver, bool) {
	inst, err := n.get(id)
	if err != nil {
		return nil, false
	}
	return inst.solver, true
}

func (n *Node) Instances() []uuid.UUID {
	n.lock.RLock()
	ids := make([]uuid.UUID, 0, len(n.instances))
	for id := range n.instances {
		ids = append(ids, id)
	}
	n.lock.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Evaluate advances instance id by in.DeltaTime and writes simulated
// rotations into in.Pose. Unknown ids are created on the fly. Returns false
// when pose was left untouched: instance disabled or pose not of the rig
// skeleton.
func (n *Node) Evaluate(id uuid.UUID, in Input) bool {
	if in.Pose == nil || in.Pose.Skeleton() != n.rig.Skeleton {
		log.Debugf("[animnode] %v: pose does not match rig skeleton", id)
		return false
	}
	inst := n.getOrCreate(id)
	// reset is honored while disabled, pose stays untouched
	if in.Reset {
		inst.reset()
	}
	if !inst.enabled {
		return false
	}

	if n.settings.Paused {
		inst.solver.Apply(in.Pose)
		return true
	}

	dt := in.DeltaTime
	if !utils.IsFinite(dt) || dt < 0 {
		dt = 0
	}
	if n.settings.HitchResetTime > 0 && dt >= n.settings.HitchResetTime {
		log.Debugf("[animnode] %v: frame time %.3fs, resetting", id, dt)
		inst.reset()
		dt = 0
	}
	if dt > n.settings.MaxDeltaTime {
		dt = n.settings.MaxDeltaTime
	}
	dt *= n.settings.TimeScale

	step, steps := dt, 1
	if fixed := n.settings.FixedTimeStep; fixed > 0 {
		inst.accumulator += dt
		steps = int((inst.accumulator + accumulatorEpsilon) / fixed)
		if steps > n.settings.MaxSubsteps {
			steps = n.settings.MaxSubsteps
			inst.accumulator = 0
		} else {
			inst.accumulator -= float32(steps) * fixed
			if inst.accumulator < 0 {
				inst.accumulator = 0
			}
		}
		step = fixed
	}

	inst.solver.Update(in.Pose, step, steps)
	return true
}
