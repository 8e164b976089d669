package correction

import (
	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/calib"
)

// AccOrthCorrector applies the static orthogonality/offset/rotation
// correction to an accelerometer reading. Loaded once at startup;
// Apply needs no lock.
type AccOrthCorrector struct {
	cal calib.AccOrth
}

// NewAccOrthCorrector wraps a loaded AccOrth calibration.
func NewAccOrthCorrector(cal calib.AccOrth) *AccOrthCorrector {
	return &AccOrthCorrector{cal: cal}
}

// Apply rewrites v in place to the corrected reading.
func (c *AccOrthCorrector) Apply(v *algebra.Vec3) {
	*v = c.cal.Apply(*v)
}
