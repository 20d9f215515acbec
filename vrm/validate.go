package vrm

import (
	"fmt"
	"strings"

	"github.com/mogaika/vrm_spring_bones/springbone"
)

type Report struct {
	Version Version  `json:"version"`
	Errors  []string `json:"errors"`
	Warns   []string `json:"warnings"`
	Infos   []string `json:"info"`

	springs, colliders, groups, joints int
}

func (r *Report) Valid() bool { return len(r.Errors) == 0 }

func (r *Report) errorf(format string, a ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, a...))
}

func (r *Report) warnf(format string, a ...interface{}) {
	r.Warns = append(r.Warns, fmt.Sprintf(format, a...))
}

func (r *Report) infof(format string, a ...interface{}) {
	r.Infos = append(r.Infos, fmt.Sprintf(format, a...))
}

// Validate checks references and parameter ranges of spring data against
// document with nodeCount nodes
func Validate(s *Spring, nodeCount int) *Report {
	r := &Report{}
	if s == nil || s.Version == VERSION_NONE {
		r.errorf("No spring bone data")
		return r
	}
	r.Version = s.Version
	r.springs, r.colliders, r.groups, r.joints = len(s.Springs), len(s.Colliders), len(s.ColliderGroups), s.JointCount()
	r.infof("VRM Specification: %v", s.Version)

	validNode := func(n int) bool { return n >= 0 && n < nodeCount }

	for i, sp := range s.Springs {
		name := sp.Name
		if name == "" {
			r.warnf("Spring %d has no name", i)
			name = fmt.Sprintf("#%d", i)
		}
		if len(sp.Joints) == 0 {
			r.warnf("Spring '%s' has no joints", name)
		}
		for _, j := range sp.Joints {
			if !validNode(j.Node) {
				r.errorf("Spring '%s' references invalid joint node %d (max: %d)", name, j.Node, nodeCount-1)
			}
			if j.Stiffness < 0 || j.Stiffness > 1 {
				r.warnf("Spring '%s' stiffness (%.3f) outside normal range [0,1]", name, j.Stiffness)
			}
			if j.DragForce < 0 || j.DragForce > 1 {
				r.warnf("Spring '%s' drag (%.3f) outside normal range [0,1]", name, j.DragForce)
			}
			if j.GravityPower < 0 {
				r.errorf("Spring '%s' has negative gravity power %.3f", name, j.GravityPower)
			}
			if j.HitRadius < 0 {
				r.errorf("Spring '%s' has negative hit radius %.3f", name, j.HitRadius)
			}
		}
		for _, g := range sp.ColliderGroups {
			if g < 0 || g >= len(s.ColliderGroups) {
				r.errorf("Spring '%s' references invalid collider group %d (max: %d)", name, g, len(s.ColliderGroups)-1)
			}
		}
		if sp.Center != NODE_NONE && !validNode(sp.Center) {
			r.errorf("Spring '%s' references invalid center node %d", name, sp.Center)
		}
	}

	for i, g := range s.ColliderGroups {
		name := g.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if len(g.Colliders) == 0 {
			r.warnf("Collider group '%s' is empty", name)
		}
		for _, c := range g.Colliders {
			if c < 0 || c >= len(s.Colliders) {
				r.errorf("Collider group '%s' references invalid collider %d (max: %d)", name, c, len(s.Colliders)-1)
			}
		}
	}

	for i, c := range s.Colliders {
		if !validNode(c.Node) {
			r.errorf("Collider %d references invalid node %d", i, c.Node)
		}
		if len(c.Shapes) == 0 {
			r.warnf("Collider %d has no shapes", i)
		}
		for _, sh := range c.Shapes {
			if sh.Shape != springbone.SHAPE_PLANE && sh.Radius <= 0 {
				r.warnf("Collider %d has %v with invalid radius %.3f", i, sh.Shape, sh.Radius)
			}
		}
	}

	if r.Valid() {
		r.infof("Configuration valid: %d springs, %d colliders, %d joints", r.springs, r.colliders, r.joints)
	}
	return r
}

func (r *Report) String() string {
	var b strings.Builder
	b.WriteString("=== VRM Spring Bone Diagnostic Report ===\n")
	status := "VALID"
	if !r.Valid() {
		status = "INVALID"
	}
	fmt.Fprintf(&b, "Status: %s\n\n", status)

	b.WriteString("Configuration Summary:\n")
	fmt.Fprintf(&b, "  Specification: %v\n", r.Version)
	fmt.Fprintf(&b, "  Springs: %d\n", r.springs)
	fmt.Fprintf(&b, "  Colliders: %d\n", r.colliders)
	fmt.Fprintf(&b, "  Collider Groups: %d\n", r.groups)
	fmt.Fprintf(&b, "  Joints: %d\n\n", r.joints)

	section := func(title, prefix string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s (%d):\n", title, len(lines))
		for _, l := range lines {
			fmt.Fprintf(&b, "  %s: %s\n", prefix, l)
		}
		b.WriteString("\n")
	}
	section("Errors", "ERROR", r.Errors)
	section("Warnings", "WARN", r.Warns)
	if len(r.Infos) != 0 {
		b.WriteString("Details:\n")
		for _, l := range r.Infos {
			fmt.Fprintf(&b, "  INFO: %s\n", l)
		}
	}
	return b.String()
}
