// Package correction implements the sensor-correction pipeline: a fixed
// per-sensor chain of static corrections plus a scheduler of
// time-varying (dynamic) corrections that recalculate in the background.
package correction

import (
	"time"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
)

// Corrector is a single correction entry: a pure, in-place rewrite of a
// raw sample.
type Corrector interface {
	Apply(v *algebra.Vec3)
}

// Dynamic is a Corrector whose parameters change over time and must be
// periodically recalculated by the scheduler rather than on every Apply.
type Dynamic interface {
	Corrector
	// Recalc recomputes the corrector's cached parameters. It is called
	// from the scheduler goroutine only, serialized with every other
	// dynamic entry: at most one Recalc runs at a time.
	Recalc() error
	// Delay is the period between Recalc calls. Zero is not a valid
	// Dynamic delay; static corrections implement Corrector only.
	Delay() time.Duration
}
