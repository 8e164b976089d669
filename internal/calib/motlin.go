package calib

import (
	"fmt"
	"io"
)

// MotLin holds, per motor, the affine throttle-command -> linearized
// throttle mapping t' = A*t + B.
type MotLin struct {
	Motors [NumMotors]struct{ A, B float32 }
}

// DefaultMotLin returns the identity mapping (A=1, B=0) for every motor.
func DefaultMotLin() MotLin {
	var ml MotLin
	for i := range ml.Motors {
		ml.Motors[i].A = 1
	}
	return ml
}

// Linearize maps a commanded throttle in [0,1] to its linearized value
// for the given motor.
func (ml MotLin) Linearize(motorIdx int, t float32) float32 {
	return ml.Motors[motorIdx].A*t + ml.Motors[motorIdx].B
}

// parseMotLin decodes entries named "mMP" (motor M, param P in {a,b}).
func parseMotLin(entries []entry) (MotLin, error) {
	ml := DefaultMotLin()

	for _, e := range entries {
		if len(e.name) != 3 || e.name[0] != 'm' {
			return MotLin{}, fmt.Errorf("calib: unrecognized motlin param %q", e.name)
		}
		motorIdx, ok := digit(e.name[1])
		if !ok || motorIdx >= NumMotors {
			return MotLin{}, fmt.Errorf("calib: bad motlin motor index in %q", e.name)
		}
		switch e.name[2] {
		case 'a':
			ml.Motors[motorIdx].A = e.value
		case 'b':
			ml.Motors[motorIdx].B = e.value
		default:
			return MotLin{}, fmt.Errorf("calib: bad motlin param in %q", e.name)
		}
	}

	return ml, nil
}

// WriteTo emits the motlin section in the same grammar parseMotLin
// accepts.
func (ml MotLin) WriteTo(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "@%s\n", TagMotLin); err != nil {
		return err
	}
	for m := 0; m < NumMotors; m++ {
		if _, err := fmt.Fprintf(w, "m%da %g\n", m, ml.Motors[m].A); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "m%db %g\n", m, ml.Motors[m].B); err != nil {
			return err
		}
	}
	return nil
}
