package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/vrm_spring_bones/animnode"
	"github.com/mogaika/vrm_spring_bones/springbone"
	"github.com/mogaika/vrm_spring_bones/vrm"
)

var ErrUnknownFormat = errors.New("unknown config format")

type Solver struct {
	Weight         float32 `yaml:"weight" toml:"weight" json:"weight"`
	FaultLogWindow int     `yaml:"fault_log_window" toml:"fault_log_window" json:"fault_log_window"`
	MaxDeltaTime   float32 `yaml:"max_delta_time" toml:"max_delta_time" json:"max_delta_time"`
	// FixedTimeStep of 0 means one step per frame
	FixedTimeStep  float32 `yaml:"fixed_time_step" toml:"fixed_time_step" json:"fixed_time_step"`
	MaxSubsteps    int     `yaml:"max_substeps" toml:"max_substeps" json:"max_substeps"`
	TimeScale      float32 `yaml:"time_scale" toml:"time_scale" json:"time_scale"`
	HitchResetTime float32 `yaml:"hitch_reset_time" toml:"hitch_reset_time" json:"hitch_reset_time"`
	// RotationDeadZone in degrees
	RotationDeadZone float32 `yaml:"rotation_dead_zone" toml:"rotation_dead_zone" json:"rotation_dead_zone"`
	Paused           bool    `yaml:"paused" toml:"paused" json:"paused"`
}

type Import struct {
	ReferenceRate     float32 `yaml:"reference_rate" toml:"reference_rate" json:"reference_rate"`
	VirtualTailLength float32 `yaml:"virtual_tail_length" toml:"virtual_tail_length" json:"virtual_tail_length"`
}

type Preview struct {
	Addr     string `yaml:"addr" toml:"addr" json:"addr"`
	TickRate int    `yaml:"tick_rate" toml:"tick_rate" json:"tick_rate"`
	// SwayBone is rotated around its local Z axis to shake the rig.
	// Empty value picks the root of the first chain.
	SwayBone      string  `yaml:"sway_bone" toml:"sway_bone" json:"sway_bone"`
	SwayAmplitude float32 `yaml:"sway_amplitude" toml:"sway_amplitude" json:"sway_amplitude"` // degrees
	SwayFrequency float32 `yaml:"sway_frequency" toml:"sway_frequency" json:"sway_frequency"` // hz
	LogLevel      string  `yaml:"log_level" toml:"log_level" json:"log_level"`
}

type Config struct {
	Solver  Solver  `yaml:"solver" toml:"solver" json:"solver"`
	Import  Import  `yaml:"import" toml:"import" json:"import"`
	Preview Preview `yaml:"preview" toml:"preview" json:"preview"`
}

func Default() Config {
	node := animnode.DefaultSettings()
	opts := vrm.DefaultOptions()
	return Config{
		Solver: Solver{
			Weight:           node.Solver.Weight,
			FaultLogWindow:   node.Solver.FaultLogWindow,
			MaxDeltaTime:     node.MaxDeltaTime,
			FixedTimeStep:    node.FixedTimeStep,
			MaxSubsteps:      node.MaxSubsteps,
			TimeScale:        node.TimeScale,
			HitchResetTime:   node.HitchResetTime,
			RotationDeadZone: node.Solver.RotationDeadZone,
			Paused:           node.Paused,
		},
		Import: Import{
			ReferenceRate:     opts.ReferenceRate,
			VirtualTailLength: opts.VirtualTailLength,
		},
		Preview: Preview{
			Addr:          ":8000",
			TickRate:      60,
			SwayAmplitude: 25,
			SwayFrequency: 0.5,
			LogLevel:      "info",
		},
	}
}

func (s Solver) Settings() springbone.Settings {
	return springbone.Settings{
		Weight:           s.Weight,
		FaultLogWindow:   s.FaultLogWindow,
		RotationDeadZone: s.RotationDeadZone,
	}
}

func (c *Config) Node() animnode.Settings {
	return animnode.Settings{
		MaxDeltaTime:   c.Solver.MaxDeltaTime,
		FixedTimeStep:  c.Solver.FixedTimeStep,
		MaxSubsteps:    c.Solver.MaxSubsteps,
		TimeScale:      c.Solver.TimeScale,
		HitchResetTime: c.Solver.HitchResetTime,
		Paused:         c.Solver.Paused,
		Solver:         c.Solver.Settings(),
	}
}

func (i Import) Options() vrm.Options {
	return vrm.Options{
		ReferenceRate:     i.ReferenceRate,
		VirtualTailLength: i.VirtualTailLength,
	}
}

func (c *Config) Validate() error {
	s := &c.Solver
	switch {
	case s.Weight < 0 || s.Weight > 1:
		return errors.Errorf("solver.weight %v out of [0,1]", s.Weight)
	case s.MaxDeltaTime <= 0:
		return errors.Errorf("solver.max_delta_time must be positive, got %v", s.MaxDeltaTime)
	case s.FixedTimeStep < 0:
		return errors.Errorf("solver.fixed_time_step is negative: %v", s.FixedTimeStep)
	case s.FixedTimeStep > 0 && s.MaxSubsteps < 1:
		return errors.Errorf("solver.max_substeps must be at least 1 with fixed step")
	case s.TimeScale < 0:
		return errors.Errorf("solver.time_scale is negative: %v", s.TimeScale)
	case s.RotationDeadZone < 0 || s.RotationDeadZone > 180:
		return errors.Errorf("solver.rotation_dead_zone %v out of [0,180]", s.RotationDeadZone)
	case s.HitchResetTime < 0:
		return errors.Errorf("solver.hitch_reset_time is negative: %v", s.HitchResetTime)
	case c.Import.ReferenceRate <= 0:
		return errors.Errorf("import.reference_rate must be positive, got %v", c.Import.ReferenceRate)
	case c.Import.VirtualTailLength <= 0:
		return errors.Errorf("import.virtual_tail_length must be positive, got %v", c.Import.VirtualTailLength)
	case c.Preview.TickRate <= 0:
		return errors.Errorf("preview.tick_rate must be positive, got %v", c.Preview.TickRate)
	}
	return nil
}

// Decode reads config of given format ("yaml", "yml" or "toml") on top of defaults
func Decode(data []byte, format string) (Config, error) {
	c := Default()
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil && len(bytes.TrimSpace(data)) != 0 {
			return c, errors.Wrapf(err, "yaml")
		}
	case "toml":
		if err := toml.Unmarshal(data, &c); err != nil {
			return c, errors.Wrapf(err, "toml")
		}
	default:
		return c, errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
	return c, c.Validate()
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), errors.Wrapf(err, "Can't read config")
	}
	c, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return Default(), errors.Wrapf(err, "Can't load config %q", path)
	}
	return c, nil
}

var (
	currentLock sync.RWMutex
	current     = Default()
)

func Current() Config {
	currentLock.RLock()
	defer currentLock.RUnlock()
	return current
}

func SetCurrent(c Config) {
	currentLock.Lock()
	current = c
	currentLock.Unlock()
}
