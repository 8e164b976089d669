package algebra

import "github.com/chewxy/math32"

// Quat is a unit quaternion (a, i, j, k) with a the real part. Identity is
// (1,0,0,0). "Unit" means a*a+i*i+j*j+k*k == 1 within Eps.
type Quat struct {
	A, I, J, K float32
}

// Identity returns the identity rotation quaternion.
func Identity() Quat {
	return Quat{A: 1}
}

// Mult returns the Hamilton product q1 (x) q2.
func Mult(q1, q2 Quat) Quat {
	return Quat{
		A: q1.A*q2.A - q1.I*q2.I - q1.J*q2.J - q1.K*q2.K,
		I: q1.A*q2.I + q1.I*q2.A + q1.J*q2.K - q1.K*q2.J,
		J: q1.A*q2.J - q1.I*q2.K + q1.J*q2.A + q1.K*q2.I,
		K: q1.A*q2.K + q1.I*q2.J - q1.J*q2.I + q1.K*q2.A,
	}
}

// QDot returns the inner product of q1 and q2.
func QDot(q1, q2 Quat) float32 {
	return q1.A*q2.A + q1.I*q2.I + q1.J*q2.J + q1.K*q2.K
}

// Conjugate returns the conjugate of q.
func Conjugate(q Quat) Quat {
	return Quat{A: q.A, I: -q.I, J: -q.J, K: -q.K}
}

// QSum returns q1 + q2.
func QSum(q1, q2 Quat) Quat {
	return Quat{q1.A + q2.A, q1.I + q2.I, q1.J + q2.J, q1.K + q2.K}
}

// QAdd sets q to q + o.
func QAdd(q *Quat, o Quat) {
	q.A += o.A
	q.I += o.I
	q.J += o.J
	q.K += o.K
}

// QDiff returns q1 - q2.
func QDiff(q1, q2 Quat) Quat {
	return Quat{q1.A - q2.A, q1.I - q2.I, q1.J - q2.J, q1.K - q2.K}
}

// QSub sets q to q - o.
func QSub(q *Quat, o Quat) {
	q.A -= o.A
	q.I -= o.I
	q.J -= o.J
	q.K -= o.K
}

// QScale returns q scaled by s.
func QScale(q Quat, s float32) Quat {
	return Quat{q.A * s, q.I * s, q.J * s, q.K * s}
}

// QLen returns the norm of q.
func QLen(q Quat) float32 {
	return math32.Sqrt(QDot(q, q))
}

// QNormalize scales q in place to unit norm. A zero quaternion is left
// unchanged.
func QNormalize(q *Quat) {
	l := QLen(*q)
	if l < Eps {
		return
	}
	q.A /= l
	q.I /= l
	q.J /= l
	q.K /= l
}

// Sandwich computes q (x) v (x) q*, treating v as a pure quaternion. It is
// safe to call with an output that aliases an input: the product is formed
// through intermediate values, never writing into q or v before they are
// fully consumed.
func Sandwich(q Quat, v Vec3) Vec3 {
	p := Quat{A: 0, I: v.X, J: v.Y, K: v.Z}
	r := Mult(Mult(q, p), Conjugate(q))
	return Vec3{r.I, r.J, r.K}
}

// SandwichFast is Sandwich using the expanded rotation formula, avoiding
// the two full quaternion products. It must not be used when q is not
// unit-norm.
func SandwichFast(q Quat, v Vec3) Vec3 {
	u := Vec3{q.I, q.J, q.K}
	s := q.A

	uv := Cross(u, v)
	uuv := Cross(u, uv)

	out := v
	Add(&out, Scale(uv, 2*s))
	Add(&out, Scale(uuv, 2))
	return out
}

// VecRot rotates v by the unit quaternion q.
func VecRot(v Vec3, q Quat) Vec3 {
	return Sandwich(q, v)
}

// RotQuat builds the rotation quaternion for rotating by angle radians
// about axis. A zero-length axis yields the identity quaternion.
func RotQuat(axis Vec3, angle float32) Quat {
	l := Len(axis)
	if l < Eps {
		return Identity()
	}

	a := Scale(axis, 1/l)
	half := angle / 2
	s := math32.Sin(half)

	return Quat{
		A: math32.Cos(half),
		I: a.X * s,
		J: a.Y * s,
		K: a.Z * s,
	}
}

// Uvec2uvec returns the shortest-arc rotation taking unit vector v1 onto
// unit vector v2. When the vectors are (numerically) parallel, it returns
// identity; when they are antiparallel, it returns a 180 degree rotation
// about an arbitrary vector perpendicular to v1.
func Uvec2uvec(v1, v2 Vec3) Quat {
	d := Dot(v1, v2)

	if d > 1-Eps {
		return Identity()
	}

	if d < -1+Eps {
		perp := Normal(v1, Vec3{1, 0, 0})
		if Len(perp) < Eps {
			perp = Normal(v1, Vec3{0, 0, 1})
		}
		return RotQuat(perp, math32.Pi)
	}

	axis := Cross(v1, v2)
	s := math32.Sqrt((1 + d) * 2)
	inv := 1 / s

	q := Quat{
		A: s * 0.5,
		I: axis.X * inv,
		J: axis.Y * inv,
		K: axis.Z * inv,
	}
	QNormalize(&q)
	return q
}

// FrameRot returns the quaternion rotating the orthonormal frame pair
// (v1, v2) onto (w1, w2). When helpQ is non-nil and the resulting
// quaternion's dot product with *helpQ is negative, the result is negated
// so the rotation stays on the hemisphere nearest the hint; this keeps
// consecutive estimates continuous instead of flipping sign frame to frame.
func FrameRot(v1, v2, w1, w2 Vec3, helpQ *Quat) Quat {
	q1 := Uvec2uvec(v1, w1)
	v2r := VecRot(v2, q1)
	q2 := Uvec2uvec(v2r, w2)

	q := Mult(q2, q1)
	QNormalize(&q)

	if helpQ != nil && QDot(q, *helpQ) < 0 {
		q = QScale(q, -1)
	}

	return q
}

// Quat2Euler converts q to Tait-Bryan ZYX angles (roll about X, pitch
// about Y, yaw about Z), in radians.
func Quat2Euler(q Quat) (roll, pitch, yaw float32) {
	sinrCosp := 2 * (q.A*q.I + q.J*q.K)
	cosrCosp := 1 - 2*(q.I*q.I+q.J*q.J)
	roll = math32.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (q.A*q.J - q.K*q.I)
	switch {
	case sinp >= 1:
		pitch = math32.Pi / 2
	case sinp <= -1:
		pitch = -math32.Pi / 2
	default:
		pitch = math32.Asin(sinp)
	}

	sinyCosp := 2 * (q.A*q.K + q.I*q.J)
	cosyCosp := 1 - 2*(q.J*q.J+q.K*q.K)
	yaw = math32.Atan2(sinyCosp, cosyCosp)

	return roll, pitch, yaw
}
