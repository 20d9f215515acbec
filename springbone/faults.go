package springbone

import (
	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/mogaika/vrm_spring_bones/utils"
)

// faultLog rate limits numeric fault reports to one line per window of ticks
type faultLog struct {
	window     uint64
	lastTick   uint64
	logged     bool
	suppressed int
	total      int
}

func (f *faultLog) report(tick uint64, chain, bone string, state NodeState, head mgl32.Vec3) {
	f.total++
	if f.logged && tick-f.lastTick < f.window {
		f.suppressed++
		return
	}
	if f.suppressed != 0 {
		log.Warnf("[springbone] %v: chain %q bone %q held last valid state (%d more since last report)",
			ErrTransientNumericFault, chain, bone, f.suppressed)
	} else {
		log.Warnf("[springbone] %v: chain %q bone %q held last valid state", ErrTransientNumericFault, chain, bone)
	}
	utils.LogDump(state, head)
	f.logged = true
	f.lastTick = tick
	f.suppressed = 0
}
