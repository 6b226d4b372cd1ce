package system

import (
	"fmt"
	"time"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: external input (touch, key binds)
	PhasePreUpdate               // 1: deliver last tick's notifications
	PhaseSchedule                // 2: fire due scheduled callbacks
	PhaseUpdate                  // 3: per-frame behavior updates
	PhaseCollision               // 4: dispatch collision pairs to owners
	PhasePersist                 // 5: snapshot saves
	PhaseCleanup                 // 6: destroy queued objects
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "Input"
	case PhasePreUpdate:
		return "PreUpdate"
	case PhaseSchedule:
		return "Schedule"
	case PhaseUpdate:
		return "Update"
	case PhaseCollision:
		return "Collision"
	case PhasePersist:
		return "Persist"
	case PhaseCleanup:
		return "Cleanup"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
