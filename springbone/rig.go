package springbone

import (
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mogaika/vrm_spring_bones/skel"
)

type RigDesc struct {
	Chains    []ChainDesc
	Colliders []ColliderDesc
}

// Rig is resolved, immutable set of chains and colliders of one skeleton.
// It is shared read only by all solvers created from it.
type Rig struct {
	Skeleton  *skel.Skeleton   `json:"-"`
	Chains    []*Chain         `json:"chains"`
	Colliders []*Collider      `json:"colliders"`
	Groups    map[string][]int `json:"groups"`
}

// NewRig builds every collider and chain of desc. Invalid items are skipped
// and returned as errors, rest of the rig stays usable.
func NewRig(s *skel.Skeleton, desc RigDesc) (*Rig, []error) {
	r := &Rig{
		Skeleton: s,
		Groups:   make(map[string][]int),
	}
	var errs []error

	for i, cd := range desc.Colliders {
		c, err := NewCollider(s, cd)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "collider %d", i))
			continue
		}
		idx := len(r.Colliders)
		r.Colliders = append(r.Colliders, c)
		for _, g := range cd.Groups {
			r.Groups[g] = append(r.Groups[g], idx)
		}
	}
	for _, cd := range desc.Colliders {
		for _, g := range cd.Groups {
			if _, ok := r.Groups[g]; !ok {
				// group with only invalid colliders still resolves, just empty
				r.Groups[g] = nil
			}
		}
	}

	driven := make(map[int]string)
	for _, cd := range desc.Chains {
		c, err := NewChain(s, cd, r.Groups)
		if err == nil {
			for _, n := range c.Nodes {
				if owner, ok := driven[n.Bone]; ok {
					err = errors.Wrapf(ErrInvalidTopology, "chain %q: bone %q already driven by chain %q", cd.Name, n.Name, owner)
					break
				}
			}
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, n := range c.Nodes {
			driven[n.Bone] = c.Name
		}
		r.Chains = append(r.Chains, c)
	}

	// parents are solved before chains hanging from them
	sort.SliceStable(r.Chains, func(i, j int) bool {
		return s.Depth(r.Chains[i].Root()) < s.Depth(r.Chains[j].Root())
	})

	for _, err := range errs {
		log.Printf("[springbone] rejected: %v", err)
	}
	log.Printf("[springbone] rig ready: %d chains, %d colliders, %d rejected", len(r.Chains), len(r.Colliders), len(errs))

	return r, errs
}

// NodeCount returns total number of simulated nodes
func (r *Rig) NodeCount() int {
	n := 0
	for _, c := range r.Chains {
		n += len(c.Nodes)
	}
	return n
}
