package correction

import (
	"sync"
	"time"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/calib"
)

// MagIronCorrector applies the static soft/hard-iron correction to a
// magnetometer reading. Its parameters are loaded once at startup and
// never recalculated, so Apply needs no lock.
type MagIronCorrector struct {
	cal calib.MagIron
}

// NewMagIronCorrector wraps a loaded MagIron calibration.
func NewMagIronCorrector(cal calib.MagIron) *MagIronCorrector {
	return &MagIronCorrector{cal: cal}
}

// Apply rewrites v in place to the corrected reading.
func (c *MagIronCorrector) Apply(v *algebra.Vec3) {
	*v = c.cal.Apply(*v)
}

// ThrottleSource reports the current per-motor throttle values, used by
// MagMotCorrector.Recalc to resample the throttle-dependent interference.
type ThrottleSource func() [calib.NumMotors]float32

// MagMotCorrector subtracts the throttle-dependent magnetic interference
// from a magnetometer reading. The interference vector is cached and
// refreshed by Recalc on the scheduler's cadence; Apply only reads the
// cache, under the same mutex Recalc writes it with, keeping the
// per-sample critical section short and allocation-free.
type MagMotCorrector struct {
	cal    calib.MagMot
	source ThrottleSource
	period time.Duration

	mu     sync.Mutex
	cached algebra.Vec3
}

// NewMagMotCorrector wraps a loaded MagMot calibration, sourcing current
// throttle values from source and recalculating at the given period.
func NewMagMotCorrector(cal calib.MagMot, source ThrottleSource, period time.Duration) *MagMotCorrector {
	return &MagMotCorrector{cal: cal, source: source, period: period}
}

// Recalc resamples the current throttle values and refreshes the cached
// interference vector.
func (c *MagMotCorrector) Recalc() error {
	throttles := c.source()
	interference := c.cal.Interference(throttles)

	c.mu.Lock()
	c.cached = interference
	c.mu.Unlock()
	return nil
}

// Delay returns the recalculation period.
func (c *MagMotCorrector) Delay() time.Duration {
	return c.period
}

// Apply subtracts the cached interference vector from v.
func (c *MagMotCorrector) Apply(v *algebra.Vec3) {
	c.mu.Lock()
	interference := c.cached
	c.mu.Unlock()

	algebra.Sub(v, interference)
}
