package utils

import (
	"math/rand"
	"sync"

	"github.com/Pallinder/go-randomdata"
)

// randomdata draws from one package-wide source
var randomdataMutex sync.Mutex

// RandomNameGenerator hands out unique silly names. Every generator owns
// its source seeded with a constant, so the same asset always gets the
// same names no matter how many generators run at once.
type RandomNameGenerator struct {
	names map[string]struct{}
	r     *rand.Rand
}

// Reserve marks name as taken. Returns false if it was taken already.
func (rng *RandomNameGenerator) Reserve(name string) bool {
	rng.init()
	if _, exists := rng.names[name]; exists {
		return false
	}
	rng.names[name] = struct{}{}
	return true
}

func (rng *RandomNameGenerator) RandomName() string {
	rng.init()
	for {
		name := rng.sillyName()
		// avoid duplicate names
		if _, exists := rng.names[name]; !exists {
			rng.names[name] = struct{}{}
			return name
		}
	}
}

func (rng *RandomNameGenerator) sillyName() string {
	randomdataMutex.Lock()
	defer randomdataMutex.Unlock()
	randomdata.CustomRand(rng.r)
	return randomdata.SillyName()
}

func (rng *RandomNameGenerator) init() {
	if rng.names == nil {
		rng.names = make(map[string]struct{})
		rng.r = rand.New(rand.NewSource(0))
	}
}
