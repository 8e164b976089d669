// Package algebra implements the 3-vector and quaternion kernel used
// throughout the estimator: rotations, frame alignment, and the small
// amount of linear algebra that does not need the full matrix kernel.
package algebra

import "github.com/chewxy/math32"

// Eps is the default tolerance used across the package for unit-length
// and parallelism checks.
const Eps = 1e-6

// Vec3 is a 3-component vector in f32. A fourth scalar slot is not stored
// here; Quat is used directly when a vector needs to be aliased with a
// quaternion's imaginary part.
type Vec3 struct {
	X, Y, Z float32
}

// Sum returns a + b.
func Sum(a, b Vec3) Vec3 {
	return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

// Add sets a to a + b.
func Add(a *Vec3, b Vec3) {
	a.X += b.X
	a.Y += b.Y
	a.Z += b.Z
}

// Diff returns a - b.
func Diff(a, b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

// Sub sets a to a - b.
func Sub(a *Vec3, b Vec3) {
	a.X -= b.X
	a.Y -= b.Y
	a.Z -= b.Z
}

// Cross returns a x b.
func Cross(a, b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// Dot returns a . b.
func Dot(a, b Vec3) float32 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Scale returns v scaled by s.
func Scale(v Vec3, s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Len returns the Euclidean length of v.
func Len(v Vec3) float32 {
	return math32.Sqrt(Dot(v, v))
}

// Normal returns a unit vector perpendicular to both a and b. When a x b
// is (numerically) zero, it falls back to crossing a with (1,0,0), then
// with (0,0,1), and finally returns the zero vector if both also
// degenerate.
func Normal(a, b Vec3) Vec3 {
	n := Cross(a, b)
	if Len(n) > Eps {
		Normalize(&n)
		return n
	}

	n = Cross(a, Vec3{1, 0, 0})
	if Len(n) > Eps {
		Normalize(&n)
		return n
	}

	n = Cross(a, Vec3{0, 0, 1})
	if Len(n) > Eps {
		Normalize(&n)
		return n
	}

	return Vec3{}
}

// Normalize scales v in place to unit length. A zero vector is left
// unchanged.
func Normalize(v *Vec3) {
	l := Len(*v)
	if l < Eps {
		return
	}
	v.X /= l
	v.Y /= l
	v.Z /= l
}
