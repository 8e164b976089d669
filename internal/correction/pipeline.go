package correction

import (
	"context"
	"time"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/sirupsen/logrus"
)

// Chain is a per-sensor ordered list of correctors applied in a fixed
// order each time a sample arrives. For the magnetometer this is
// magiron first, then magmot.
type Chain []Corrector

// ApplyAll runs every corrector in the chain over v, in order.
func (c Chain) ApplyAll(v *algebra.Vec3) {
	for _, corrector := range c {
		corrector.Apply(v)
	}
}

// Pipeline owns the static correction chains and the dynamic-correction
// scheduler. The scheduler tolerates zero dynamic entries: Run returns
// immediately when none is registered.
type Pipeline struct {
	Mag   Chain
	Accel Chain

	dynamic []Dynamic
	log     *logrus.Logger
}

// New builds a pipeline over the given static chains.
func New(mag, accel Chain, log *logrus.Logger) *Pipeline {
	return &Pipeline{Mag: mag, Accel: accel, log: log}
}

// Register adds a dynamic corrector to the scheduler. Register must be
// called before Run.
func (p *Pipeline) Register(d Dynamic) {
	p.dynamic = append(p.dynamic, d)
}

// ApplyMag applies the static magnetometer chain, then every registered
// dynamic magnetometer corrector, to v in place.
func (p *Pipeline) ApplyMag(v *algebra.Vec3) {
	p.Mag.ApplyAll(v)
	for _, d := range p.dynamic {
		d.Apply(v)
	}
}

// ApplyAccel applies the static accelerometer chain to v in place.
func (p *Pipeline) ApplyAccel(v *algebra.Vec3) {
	p.Accel.ApplyAll(v)
}

type scheduled struct {
	entry Dynamic
	due   time.Time
}

// Run starts the background scheduler: it sleeps until the earliest due
// time across all registered dynamic entries, recalculates that entry,
// reschedules it, and repeats until ctx is done. With zero dynamic
// entries, Run returns immediately without starting any timer.
func (p *Pipeline) Run(ctx context.Context) {
	if len(p.dynamic) == 0 {
		return
	}

	now := monotonicNow()
	queue := make([]scheduled, len(p.dynamic))
	for i, d := range p.dynamic {
		queue[i] = scheduled{entry: d, due: now.Add(d.Delay())}
	}

	for {
		earliest := 0
		for i := 1; i < len(queue); i++ {
			if queue[i].due.Before(queue[earliest].due) {
				earliest = i
			}
		}

		wait := time.Until(queue[earliest].due)
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := queue[earliest].entry.Recalc(); err != nil {
				p.log.WithError(err).Warn("correction: dynamic recalc failed")
			}
			queue[earliest].due = monotonicNow().Add(queue[earliest].entry.Delay())
		}
	}
}

// monotonicNow is split out so tests can stub scheduling in terms of a
// fixed origin without depending on wall-clock time.
var monotonicNow = time.Now
