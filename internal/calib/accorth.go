package calib

import (
	"fmt"
	"io"

	"github.com/chewxy/math32"
	"github.com/phoenix-pilot/ekfd/internal/algebra"
)

// accPostEps bounds the accorth post-condition checks: ||q|| must be
// within this of 1, and every diagonal entry of S must be non-negative.
const accPostEps = 1e-3

// AccOrth holds the accelerometer orthogonality/offset/rotation
// correction: shape/nonorthogonality matrix S, offset h, body-frame
// rotation quaternion q, an axis-swap permutation, and a per-axis sign
// inversion.
type AccOrth struct {
	Shape  [3][3]float32
	Offset [3]float32
	Rot    algebra.Quat
	Swap   [3]int
	Sign   [3]float32
}

// DefaultAccOrth returns the identity correction: S = I, h = 0, q =
// identity, no axis swap, no sign inversion.
func DefaultAccOrth() AccOrth {
	var ao AccOrth
	ao.Shape[0][0], ao.Shape[1][1], ao.Shape[2][2] = 1, 1, 1
	ao.Rot = algebra.Identity()
	ao.Swap = [3]int{0, 1, 2}
	ao.Sign = [3]float32{1, 1, 1}
	return ao
}

// Apply corrects a raw accelerometer reading: subtract the offset, apply
// the shape matrix, swap axes per the permutation, invert sign per axis,
// then rotate into the reference body frame by q.
func (ao AccOrth) Apply(a algebra.Vec3) algebra.Vec3 {
	d := [3]float32{a.X - ao.Offset[0], a.Y - ao.Offset[1], a.Z - ao.Offset[2]}
	s := [3]float32{
		ao.Shape[0][0]*d[0] + ao.Shape[0][1]*d[1] + ao.Shape[0][2]*d[2],
		ao.Shape[1][0]*d[0] + ao.Shape[1][1]*d[1] + ao.Shape[1][2]*d[2],
		ao.Shape[2][0]*d[0] + ao.Shape[2][1]*d[1] + ao.Shape[2][2]*d[2],
	}
	swapped := [3]float32{s[ao.Swap[0]], s[ao.Swap[1]], s[ao.Swap[2]]}
	signed := algebra.Vec3{
		X: swapped[0] * ao.Sign[0],
		Y: swapped[1] * ao.Sign[1],
		Z: swapped[2] * ao.Sign[2],
	}
	return algebra.VecRot(signed, ao.Rot)
}

func validateAccOrth(ao AccOrth) error {
	n := math32.Sqrt(ao.Rot.A*ao.Rot.A + ao.Rot.I*ao.Rot.I + ao.Rot.J*ao.Rot.J + ao.Rot.K*ao.Rot.K)
	if math32.Abs(n-1) > accPostEps {
		return fmt.Errorf("calib: accorth rotation quaternion not unit norm (|q|=%g)", n)
	}
	for i := 0; i < 3; i++ {
		if ao.Shape[i][i] < 0 {
			return fmt.Errorf("calib: accorth shape diagonal[%d] negative (%g)", i, ao.Shape[i][i])
		}
	}
	return nil
}

// parseAccOrth decodes entries named:
//
//	oRC  - shape element row R col C
//	hI   - offset element I
//	qI   - rotation quaternion component I (0=a,1=i,2=j,3=k)
//	ssI  - sign inversion for axis I (stored as +1/-1)
//	soXYZ - axis swap permutation, three digits giving perm[0..2]
//
// then validates the two accorth post-conditions, rejecting the whole
// block if either fails.
func parseAccOrth(entries []entry) (AccOrth, error) {
	ao := DefaultAccOrth()

	for _, e := range entries {
		switch {
		case len(e.name) == 3 && e.name[0] == 'o':
			r, ok1 := digit(e.name[1])
			c, ok2 := digit(e.name[2])
			if !ok1 || !ok2 || r > 2 || c > 2 {
				return AccOrth{}, fmt.Errorf("calib: bad accorth shape param %q", e.name)
			}
			ao.Shape[r][c] = e.value

		case len(e.name) == 2 && e.name[0] == 'h':
			i, ok := digit(e.name[1])
			if !ok || i > 2 {
				return AccOrth{}, fmt.Errorf("calib: bad accorth offset param %q", e.name)
			}
			ao.Offset[i] = e.value

		case len(e.name) == 2 && e.name[0] == 'q':
			i, ok := digit(e.name[1])
			if !ok || i > 3 {
				return AccOrth{}, fmt.Errorf("calib: bad accorth quat param %q", e.name)
			}
			switch i {
			case 0:
				ao.Rot.A = e.value
			case 1:
				ao.Rot.I = e.value
			case 2:
				ao.Rot.J = e.value
			case 3:
				ao.Rot.K = e.value
			}

		case len(e.name) == 3 && e.name[0] == 's' && e.name[1] == 's':
			i, ok := digit(e.name[2])
			if !ok || i > 2 {
				return AccOrth{}, fmt.Errorf("calib: bad accorth sign param %q", e.name)
			}
			if e.value < 0 {
				ao.Sign[i] = -1
			} else {
				ao.Sign[i] = 1
			}

		case len(e.name) == 5 && e.name[0] == 's' && e.name[1] == 'o':
			p0, ok0 := digit(e.name[2])
			p1, ok1 := digit(e.name[3])
			p2, ok2 := digit(e.name[4])
			if !ok0 || !ok1 || !ok2 {
				return AccOrth{}, fmt.Errorf("calib: bad accorth swap param %q", e.name)
			}
			ao.Swap = [3]int{p0, p1, p2}

		default:
			return AccOrth{}, fmt.Errorf("calib: unrecognized accorth param %q", e.name)
		}
	}

	if err := validateAccOrth(ao); err != nil {
		return AccOrth{}, err
	}

	return ao, nil
}

// WriteTo emits the accorth section in the same grammar parseAccOrth
// accepts.
func (ao AccOrth) WriteTo(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "@%s\n", TagAccOrth); err != nil {
		return err
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if _, err := fmt.Fprintf(w, "o%d%d %g\n", r, c, ao.Shape[r][c]); err != nil {
				return err
			}
		}
	}
	for i := 0; i < 3; i++ {
		if _, err := fmt.Fprintf(w, "h%d %g\n", i, ao.Offset[i]); err != nil {
			return err
		}
	}
	quatVals := []float32{ao.Rot.A, ao.Rot.I, ao.Rot.J, ao.Rot.K}
	for i, v := range quatVals {
		if _, err := fmt.Fprintf(w, "q%d %g\n", i, v); err != nil {
			return err
		}
	}
	for i := 0; i < 3; i++ {
		if _, err := fmt.Fprintf(w, "ss%d %g\n", i, ao.Sign[i]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "so%d%d%d 0\n", ao.Swap[0], ao.Swap[1], ao.Swap[2]); err != nil {
		return err
	}
	return nil
}
