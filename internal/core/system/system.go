package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseDispatch Phase = iota // 0: drain host notifications
	PhaseUpdate                // 1: periodic upkeep
	PhasePersist               // 2: journal stats, flush hand-off
	PhaseCleanup               // 3: end-of-tick housekeeping
)

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
