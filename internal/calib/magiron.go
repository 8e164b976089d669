package calib

import (
	"fmt"
	"io"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
)

// MagIron holds the soft-iron matrix S and hard-iron offset h used to
// correct a raw magnetometer reading: m' = S*(m - h).
type MagIron struct {
	Soft [3][3]float32
	Hard [3]float32
}

// DefaultMagIron returns the identity soft-iron matrix and zero offset,
// i.e. no correction.
func DefaultMagIron() MagIron {
	var mi MagIron
	mi.Soft[0][0], mi.Soft[1][1], mi.Soft[2][2] = 1, 1, 1
	return mi
}

// Apply returns the corrected reading S*(m - h).
func (mi MagIron) Apply(m algebra.Vec3) algebra.Vec3 {
	d := [3]float32{m.X - mi.Hard[0], m.Y - mi.Hard[1], m.Z - mi.Hard[2]}
	return algebra.Vec3{
		X: mi.Soft[0][0]*d[0] + mi.Soft[0][1]*d[1] + mi.Soft[0][2]*d[2],
		Y: mi.Soft[1][0]*d[0] + mi.Soft[1][1]*d[1] + mi.Soft[1][2]*d[2],
		Z: mi.Soft[2][0]*d[0] + mi.Soft[2][1]*d[1] + mi.Soft[2][2]*d[2],
	}
}

// digit converts a single ASCII digit rune to its integer value.
func digit(b byte) (int, bool) {
	if b < '0' || b > '9' {
		return 0, false
	}
	return int(b - '0'), true
}

// parseMagIron decodes entries named "sRC" (soft-iron element row R, col
// C) and "hI" (hard-iron element I) into a MagIron, starting from
// defaults so a partially specified section still yields sane values.
func parseMagIron(entries []entry) (MagIron, error) {
	mi := DefaultMagIron()

	for _, e := range entries {
		switch {
		case len(e.name) == 3 && e.name[0] == 's':
			r, ok1 := digit(e.name[1])
			c, ok2 := digit(e.name[2])
			if !ok1 || !ok2 || r > 2 || c > 2 {
				return MagIron{}, fmt.Errorf("calib: bad magiron soft param %q", e.name)
			}
			mi.Soft[r][c] = e.value

		case len(e.name) == 2 && e.name[0] == 'h':
			i, ok := digit(e.name[1])
			if !ok || i > 2 {
				return MagIron{}, fmt.Errorf("calib: bad magiron hard param %q", e.name)
			}
			mi.Hard[i] = e.value

		default:
			return MagIron{}, fmt.Errorf("calib: unrecognized magiron param %q", e.name)
		}
	}

	return mi, nil
}

// WriteTo emits the magiron section in the same grammar parseMagIron
// accepts.
func (mi MagIron) WriteTo(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "@%s\n", TagMagIron); err != nil {
		return err
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if _, err := fmt.Fprintf(w, "s%d%d %g\n", r, c, mi.Soft[r][c]); err != nil {
				return err
			}
		}
	}
	for i := 0; i < 3; i++ {
		if _, err := fmt.Fprintf(w, "h%d %g\n", i, mi.Hard[i]); err != nil {
			return err
		}
	}
	return nil
}
