// Package ocean evolves the simulated environmental state tick by tick.
//
// Two processes share the [Process] interface: [Drift], a cheap sinusoidal
// generator with bounded jitter, and [Stochastic], a per-station
// Ornstein-Uhlenbeck walk toward seasonal baselines with injected cyclone
// events. Both clamp every variable to [domain.DefaultBounds].
package ocean

import (
	"fmt"
	"time"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

// Mode selects the process implementation.
type Mode string

const (
	ModeDrift      Mode = "drift"
	ModeStochastic Mode = "stochastic"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDrift, ModeStochastic:
		return m, nil
	default:
		return "", fmt.Errorf("unknown ocean mode %q", s)
	}
}

// Process advances the ocean state once per tick. Implementations are not
// safe for concurrent use; the tick loop is the only caller.
type Process interface {
	Step(now time.Time) domain.OceanState
	Mode() Mode
}

// Rand is the random source a process draws from. *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	domain.Rand
	IntN(n int) int
}

// New builds the process for mode.
func New(mode Mode, r Rand, start time.Time, cfg StochasticConfig) (Process, error) {
	switch mode {
	case ModeDrift:
		return NewDrift(r, start), nil
	case ModeStochastic:
		return NewStochastic(r, cfg), nil
	default:
		return nil, fmt.Errorf("unknown ocean mode %q", mode)
	}
}
