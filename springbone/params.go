package springbone

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/vrm_spring_bones/utils"
)

// Params are physical parameters of a bone node
type Params struct {
	// Stiffness pulls the tail toward its animated rest target, >= 0
	Stiffness float32 `json:"stiffness"`
	// Drag is fraction of velocity lost per tick, 0..1
	Drag         float32    `json:"drag"`
	GravityDir   mgl32.Vec3 `json:"gravity_dir"`
	GravityPower float32    `json:"gravity_power"`
	HitRadius    float32    `json:"hit_radius"`
}

func DefaultParams() Params {
	return Params{
		Stiffness:  1,
		Drag:       0.4,
		GravityDir: mgl32.Vec3{0, -1, 0},
	}
}

// Gravity returns gravity acceleration vector
func (p Params) Gravity() mgl32.Vec3 {
	dir, ok := utils.SafeNormalize(p.GravityDir)
	if !ok {
		return mgl32.Vec3{}
	}
	return dir.Mul(p.GravityPower)
}

// Validate rejects negative or non finite values and clamps drag to 1
func (p Params) Validate() (Params, error) {
	check := func(name string, v float32) error {
		if !utils.IsFinite(v) {
			return errors.Wrapf(ErrInvalidParameter, "%s is not finite", name)
		}
		if v < 0 {
			return errors.Wrapf(ErrInvalidParameter, "%s is negative (%v)", name, v)
		}
		return nil
	}
	if err := check("stiffness", p.Stiffness); err != nil {
		return p, err
	}
	if err := check("drag", p.Drag); err != nil {
		return p, err
	}
	if err := check("gravity power", p.GravityPower); err != nil {
		return p, err
	}
	if err := check("hit radius", p.HitRadius); err != nil {
		return p, err
	}
	if !utils.IsFiniteV3(p.GravityDir) {
		return p, errors.Wrapf(ErrInvalidParameter, "gravity direction %v is not finite", p.GravityDir)
	}
	if p.Drag > 1 {
		p.Drag = 1
	}
	return p, nil
}
