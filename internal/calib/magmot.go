package calib

import (
	"fmt"
	"io"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
)

// NumMotors is the number of motors the magmot and motlin calibration
// kinds carry coefficients for.
const NumMotors = 4

// quadCoeffs are the (a, b, c) coefficients of interference = a*t^2 + b*t + c.
type quadCoeffs struct {
	A, B, C float32
}

func (q quadCoeffs) eval(t float32) float32 {
	return q.A*t*t + q.B*t + q.C
}

// MagMot holds, per motor and per axis, the quadratic throttle-dependent
// magnetic interference coefficients.
type MagMot struct {
	Motors [NumMotors][3]quadCoeffs // [motor][axis: 0=x,1=y,2=z]
}

// DefaultMagMot returns all-zero coefficients, i.e. no interference.
func DefaultMagMot() MagMot {
	return MagMot{}
}

// Interference returns, for the given per-motor throttle values, the
// total magnetic interference vector summed across motors:
// sum_m (a_m*t^2 + b_m*t + c_m) per axis.
func (mm MagMot) Interference(throttles [NumMotors]float32) algebra.Vec3 {
	var out algebra.Vec3
	for m := 0; m < NumMotors; m++ {
		t := throttles[m]
		out.X += mm.Motors[m][0].eval(t)
		out.Y += mm.Motors[m][1].eval(t)
		out.Z += mm.Motors[m][2].eval(t)
	}
	return out
}

func axisIndex(b byte) (int, bool) {
	switch b {
	case 'x':
		return 0, true
	case 'y':
		return 1, true
	case 'z':
		return 2, true
	default:
		return 0, false
	}
}

func paramIndex(b byte) (func(*quadCoeffs, float32), bool) {
	switch b {
	case 'a':
		return func(q *quadCoeffs, v float32) { q.A = v }, true
	case 'b':
		return func(q *quadCoeffs, v float32) { q.B = v }, true
	case 'c':
		return func(q *quadCoeffs, v float32) { q.C = v }, true
	default:
		return nil, false
	}
}

// parseMagMot decodes entries named "mMAP" (motor M, axis A, param P) --
// for example "m2ya" is motor 2, y-axis, param a.
func parseMagMot(entries []entry) (MagMot, error) {
	mm := DefaultMagMot()

	for _, e := range entries {
		if len(e.name) != 4 || e.name[0] != 'm' {
			return MagMot{}, fmt.Errorf("calib: unrecognized magmot param %q", e.name)
		}
		motorIdx, ok := digit(e.name[1])
		if !ok || motorIdx >= NumMotors {
			return MagMot{}, fmt.Errorf("calib: bad magmot motor index in %q", e.name)
		}
		axis, ok := axisIndex(e.name[2])
		if !ok {
			return MagMot{}, fmt.Errorf("calib: bad magmot axis in %q", e.name)
		}
		set, ok := paramIndex(e.name[3])
		if !ok {
			return MagMot{}, fmt.Errorf("calib: bad magmot param in %q", e.name)
		}
		set(&mm.Motors[motorIdx][axis], e.value)
	}

	return mm, nil
}

// WriteTo emits the magmot section in the same grammar parseMagMot
// accepts.
func (mm MagMot) WriteTo(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "@%s\n", TagMagMot); err != nil {
		return err
	}
	axes := []byte{'x', 'y', 'z'}
	params := []byte{'a', 'b', 'c'}
	for m := 0; m < NumMotors; m++ {
		for a, axis := range axes {
			q := mm.Motors[m][a]
			vals := []float32{q.A, q.B, q.C}
			for i, p := range params {
				if _, err := fmt.Fprintf(w, "m%d%c%c %g\n", m, axis, p, vals[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
