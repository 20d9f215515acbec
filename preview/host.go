package preview

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mogaika/vrm_spring_bones/animnode"
	"github.com/mogaika/vrm_spring_bones/config"
	"github.com/mogaika/vrm_spring_bones/skel"
	"github.com/mogaika/vrm_spring_bones/springbone"
	"github.com/mogaika/vrm_spring_bones/status"
	"github.com/mogaika/vrm_spring_bones/utils"
	"github.com/mogaika/vrm_spring_bones/utils/gltfutils"
	"github.com/mogaika/vrm_spring_bones/vrm"
)

var ErrNoChains = errors.New("model has no usable spring chains")

type ChainFrame struct {
	Name string `json:"name"`
	// Points are world positions of chain root head followed by every tail
	Points [][3]float32 `json:"points"`
}

type Frame struct {
	Tick      uint64       `json:"tick"`
	Time      float32      `json:"time"`
	Enabled   bool         `json:"enabled"`
	Evaluated bool         `json:"evaluated"`
	Faults    int          `json:"faults"`
	Chains    []ChainFrame `json:"chains"`
}

// Host drives one evaluation node instance the way an animation graph
// would: rest pose, procedural sway on one bone, then spring evaluation.
type Host struct {
	lock sync.Mutex

	model *vrm.Model
	cfg   config.Config
	hub   *status.Hub

	rig     *springbone.Rig
	node    *animnode.Node
	id      uuid.UUID
	enabled bool

	pose     *skel.Pose
	sway     int
	swayRest mgl32.Quat
	elapsed  float32
	frame    *Frame
}

// New builds host for model. hub may be nil.
func New(model *vrm.Model, cfg config.Config, hub *status.Hub) (*Host, error) {
	h := &Host{
		model:   model,
		hub:     hub,
		enabled: true,
	}
	if err := h.rebuild(cfg); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Host) rebuild(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	desc := vrm.RigDesc(h.model.Skeleton, h.model.Spring, cfg.Import.Options())
	rig, errs := springbone.NewRig(h.model.Skeleton, desc)
	for _, err := range errs {
		log.Printf("[preview] Rig item skipped: %v", err)
	}
	if len(rig.Chains) == 0 {
		return ErrNoChains
	}

	node := animnode.New(rig, cfg.Node())
	id, err := node.Create()
	if err != nil {
		return errors.Wrapf(err, "Can't create instance")
	}
	if !h.enabled {
		node.SetEnabled(id, false)
	}

	h.cfg = cfg
	h.model.Desc = desc
	h.rig = rig
	h.node = node
	h.id = id
	h.pose = skel.NewPose(h.model.Skeleton)
	h.sway = h.swayBone()
	if h.sway != skel.BONE_PARENT_NONE {
		h.swayRest = h.model.Skeleton.Bone(h.sway).Rest.Rotation
	}
	log.Printf("[preview] Rig ready: %d chains, %d nodes, %d colliders, sway bone %d",
		len(rig.Chains), rig.NodeCount(), len(rig.Colliders), h.sway)
	return nil
}

// swayBone resolves configured bone, defaulting to parent of first chain
func (h *Host) swayBone() int {
	s := h.model.Skeleton
	if name := h.cfg.Preview.SwayBone; name != "" {
		if i, ok := s.Index(name); ok {
			return i
		}
		log.Printf("[preview] Sway bone %q not found", name)
		return skel.BONE_PARENT_NONE
	}
	root := h.rig.Chains[0].Root()
	if p := s.Parent(root); p != skel.BONE_PARENT_NONE {
		return p
	}
	return root
}

// Apply swaps in new configuration. Solver state is rebuilt from scratch.
func (h *Host) Apply(cfg config.Config) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if err := h.rebuild(cfg); err != nil {
		return errors.Wrapf(err, "Can't apply config")
	}
	config.SetCurrent(cfg)
	return nil
}

func (h *Host) Config() config.Config {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.cfg
}

func (h *Host) Rig() *springbone.Rig {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.rig
}

func (h *Host) Report() *vrm.Report {
	return vrm.Validate(h.model.Spring, h.model.Skeleton.Len())
}

func (h *Host) Reset() error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.node.Reset(h.id)
}

func (h *Host) SetEnabled(enabled bool) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.enabled = enabled
	return h.node.SetEnabled(h.id, enabled)
}

// Frame returns last computed frame or nil before first step
func (h *Host) Frame() *Frame {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.frame
}

func (h *Host) Step(dt float32) *Frame {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.elapsed += dt
	h.pose.ResetToRest()
	if h.sway != skel.BONE_PARENT_NONE {
		p := h.cfg.Preview
		angle := mgl32.DegToRad(p.SwayAmplitude) * math32.Sin(2*math32.Pi*p.SwayFrequency*h.elapsed)
		h.pose.SetLocalRotation(h.sway, h.swayRest.Mul(mgl32.QuatRotate(angle, mgl32.Vec3{0, 0, 1})))
	}

	evaluated := h.node.Evaluate(h.id, animnode.Input{Pose: h.pose, DeltaTime: dt})
	h.frame = h.buildFrame(evaluated)

	if h.hub != nil {
		if err := h.hub.Publish(status.KIND_FRAME, h.frame); err != nil {
			log.Printf("[preview] Frame publish: %v", err)
		}
	}
	return h.frame
}

func (h *Host) buildFrame(evaluated bool) *Frame {
	f := &Frame{
		Time:      h.elapsed,
		Enabled:   h.enabled,
		Evaluated: evaluated,
		Chains:    make([]ChainFrame, len(h.rig.Chains)),
	}
	if solver, ok := h.node.Solver(h.id); ok {
		f.Tick = solver.Tick()
		f.Faults = solver.Faults()
	}
	for i, c := range h.rig.Chains {
		cf := &f.Chains[i]
		cf.Name = c.Name
		cf.Points = make([][3]float32, 0, len(c.Nodes)+1)
		cf.Points = append(cf.Points, h.pose.World(c.Root()).Translation)
		for _, n := range c.Nodes {
			cf.Points = append(cf.Points, h.pose.World(n.Bone).TransformPoint(n.Offset))
		}
	}
	return f
}

// Run steps host at configured tick rate until ctx is done
func (h *Host) Run(ctx context.Context) error {
	rate := h.Config().Preview.TickRate
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			h.Step(float32(now.Sub(last).Seconds()))
			last = now
		}
	}
}

// Watch applies configs coming from w until ctx is done or w is closed
func (h *Host) Watch(ctx context.Context, w *config.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-w.Configs:
			if !ok {
				return
			}
			if err := h.Apply(cfg); err != nil {
				log.Printf("[preview] %v", err)
				if h.hub != nil {
					h.hub.Status(err.Error(), status.ERROR, 0)
				}
			} else if h.hub != nil {
				h.hub.Status("config reloaded", status.INFO, 0)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("[preview] Config watch error: %v", err)
		}
	}
}

type chainState struct {
	Chain  string
	Bones  []string
	States []springbone.NodeState
}

// DumpState writes human readable solver state
func (h *Host) DumpState(w io.Writer) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	solver, ok := h.node.Solver(h.id)
	if !ok {
		return errors.Wrapf(animnode.ErrUnknownInstance, "%v", h.id)
	}
	dump := make([]chainState, len(h.rig.Chains))
	for i, c := range h.rig.Chains {
		dump[i].Chain = c.Name
		for j, n := range c.Nodes {
			dump[i].Bones = append(dump[i].Bones, n.Name)
			dump[i].States = append(dump[i].States, solver.NodeState(i, j))
		}
	}
	_, err := io.WriteString(w, utils.SDump(solver.Tick(), dump))
	return err
}

// ExportPose writes current pose as glTF, simulated bones carry their chain
// name in node extras
func (h *Host) ExportPose(w io.Writer, binary bool) error {
	h.lock.Lock()
	extras := make(map[int]interface{})
	for _, c := range h.rig.Chains {
		for _, n := range c.Nodes {
			extras[n.Bone] = map[string]string{"spring_chain": c.Name}
		}
	}
	doc := gltfutils.PoseDocument(h.pose, extras)
	h.lock.Unlock()

	if binary {
		return gltfutils.ExportBinary(w, doc)
	}
	return gltfutils.ExportJSON(w, doc)
}
