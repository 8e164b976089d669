// Package ekf implements the inertial state estimator: the 19-lane state
// vector and covariance, nonlinear prediction with its Jacobian, the
// per-sensor update engines, and the façade that orchestrates them.
package ekf

import "github.com/phoenix-pilot/ekfd/internal/algebra"

// State vector layout. All reads and writes to the underlying float32
// slice go through these named indices; no raw numeric index appears
// outside this package and internal/matrix.
const (
	IdxPosX = iota
	IdxPosY
	IdxPosZ
	IdxVelX
	IdxVelY
	IdxVelZ
	IdxQuatA
	IdxQuatI
	IdxQuatJ
	IdxQuatK
	IdxAccX
	IdxAccY
	IdxAccZ
	IdxGyroX
	IdxGyroY
	IdxGyroZ
	IdxMagX
	IdxMagY
	IdxMagZ

	StateDim
)

// Measurement vector layout for the IMU update engine: accel(3), gyro(3),
// mag(3), attitude quaternion(4).
const (
	IdxMeasAccX = iota
	IdxMeasAccY
	IdxMeasAccZ
	IdxMeasGyroX
	IdxMeasGyroY
	IdxMeasGyroZ
	IdxMeasMagX
	IdxMeasMagY
	IdxMeasMagZ
	IdxMeasQuatA
	IdxMeasQuatB
	IdxMeasQuatC
	IdxMeasQuatD

	ImuMeasDim
)

// EarthG is standard gravity in m/s^2, used to scale accelerometer
// readings expressed in g units and as the reference gravity vector.
const EarthG = 9.80665

// State is the 19-lane estimator state.
type State [StateDim]float32

// Position returns the position slice as a Vec3.
func (s *State) Position() algebra.Vec3 {
	return algebra.Vec3{X: s[IdxPosX], Y: s[IdxPosY], Z: s[IdxPosZ]}
}

// Velocity returns the velocity slice as a Vec3.
func (s *State) Velocity() algebra.Vec3 {
	return algebra.Vec3{X: s[IdxVelX], Y: s[IdxVelY], Z: s[IdxVelZ]}
}

// Attitude returns the attitude quaternion slice.
func (s *State) Attitude() algebra.Quat {
	return algebra.Quat{A: s[IdxQuatA], I: s[IdxQuatI], J: s[IdxQuatJ], K: s[IdxQuatK]}
}

// SetAttitude writes q into the attitude quaternion slice.
func (s *State) SetAttitude(q algebra.Quat) {
	s[IdxQuatA], s[IdxQuatI], s[IdxQuatJ], s[IdxQuatK] = q.A, q.I, q.J, q.K
}

// Acceleration returns the linear acceleration slice as a Vec3.
func (s *State) Acceleration() algebra.Vec3 {
	return algebra.Vec3{X: s[IdxAccX], Y: s[IdxAccY], Z: s[IdxAccZ]}
}

// AngularRate returns the angular rate slice as a Vec3.
func (s *State) AngularRate() algebra.Vec3 {
	return algebra.Vec3{X: s[IdxGyroX], Y: s[IdxGyroY], Z: s[IdxGyroZ]}
}

// MagField returns the magnetic field slice as a Vec3.
func (s *State) MagField() algebra.Vec3 {
	return algebra.Vec3{X: s[IdxMagX], Y: s[IdxMagY], Z: s[IdxMagZ]}
}

// RenormalizeQuat renormalizes the attitude quaternion slice in place,
// required after every prediction and every update per the quaternion
// unit-norm invariant.
func (s *State) RenormalizeQuat() {
	q := s.Attitude()
	algebra.QNormalize(&q)
	s.SetAttitude(q)
}
