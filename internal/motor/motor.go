// Package motor implements the PWM motor writer: one file per motor,
// writing "<int>\n" PWM counts, with a bounded-retry disarm sequence.
package motor

import (
	"fmt"
	"io"

	"github.com/phoenix-pilot/ekfd/internal/calib"
	"github.com/sirupsen/logrus"
)

// throttleScaler is the base throttle-to-PWM-count scaling factor:
// counts = (throttle + 1.0) * throttleScaler.
const throttleScaler = 100000

// maxDisarmRetries bounds how many times a failed disarm write is
// retried before giving up.
const maxDisarmRetries = 10

// Writer is a single motor's PWM output file.
type Writer interface {
	io.Writer
	io.Closer
}

// Controller owns the PWM writers for every motor, applies the motlin
// linearization, clamps throttle to [0,1], and implements the disarm
// sequence.
type Controller struct {
	files   []Writer
	lin     calib.MotLin
	current [calib.NumMotors]float32
	armed   bool
	log     *logrus.Logger
}

// NewController builds a controller over already-open per-motor writers.
func NewController(files []Writer, lin calib.MotLin, log *logrus.Logger) *Controller {
	return &Controller{files: files, lin: lin, log: log}
}

// Arm marks the controller armed; writes are rejected until Arm is called.
func (c *Controller) Arm() {
	c.armed = true
}

// Throttles returns the last-commanded throttle for every motor, for use
// as a correction.ThrottleSource.
func (c *Controller) Throttles() [calib.NumMotors]float32 {
	return c.current
}

func clamp01(t float32) float32 {
	switch {
	case t > 1:
		return 1
	case t < 0:
		return 0
	default:
		return t
	}
}

func (c *Controller) writeRaw(idx int, t float32) error {
	t = clamp01(t)
	counts := uint32((t + 1.0) * throttleScaler)
	if _, err := fmt.Fprintf(c.files[idx], "%d\n", counts); err != nil {
		return fmt.Errorf("motor: write pwm for motor %d: %w", idx, err)
	}
	c.current[idx] = t
	return nil
}

// Set commands throttle t in [0,1] for motorIdx, after running it
// through the motlin linearization. Fails if the controller is not
// armed.
func (c *Controller) Set(motorIdx int, t float32) error {
	if !c.armed {
		return fmt.Errorf("motor: motor %d not armed", motorIdx)
	}
	if motorIdx < 0 || motorIdx >= len(c.files) {
		return fmt.Errorf("motor: index %d out of range", motorIdx)
	}
	return c.writeRaw(motorIdx, c.lin.Linearize(motorIdx, t))
}

// Disarm sends zero throttle to every motor, retrying each write up to
// maxDisarmRetries times before giving up on that motor, then marks the
// controller disarmed.
func (c *Controller) Disarm() error {
	var firstErr error
	for i := range c.files {
		var err error
		for attempt := 0; attempt < maxDisarmRetries; attempt++ {
			if err = c.writeRaw(i, 0); err == nil {
				break
			}
		}
		if err != nil {
			c.log.WithError(err).WithField("motor", i).Error("motor: disarm failed after retries")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.armed = false
	return firstErr
}

// Close closes every motor's PWM file.
func (c *Controller) Close() error {
	var firstErr error
	for _, f := range c.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
