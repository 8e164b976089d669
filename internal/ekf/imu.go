package ekf

import (
	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/matrix"
)

// trueG and xVersor are the reference gravity and x-axis unit vectors
// used to anchor the stationary-attitude estimate.
var (
	trueG   = algebra.Vec3{X: 0, Y: 0, Z: 1}
	xVersor = algebra.Vec3{X: 1, Y: 0, Z: 0}
)

// IMUEngine is the 13-row update engine for accel+gyro+mag+attitude.
type IMUEngine struct {
	*Engine
	cfg Config
}

// NewIMUEngine builds the IMU update engine and its fixed, sparse H:
// identity blocks connecting each measurement row to its corresponding
// state element.
func NewIMUEngine(cfg Config) *IMUEngine {
	e := &IMUEngine{Engine: NewEngine(ImuMeasDim), cfg: cfg}

	h := e.H()
	matrix.Zero(h)
	h.Set(IdxMeasAccX, IdxAccX, 1)
	h.Set(IdxMeasAccY, IdxAccY, 1)
	h.Set(IdxMeasAccZ, IdxAccZ, 1)
	h.Set(IdxMeasGyroX, IdxGyroX, 1)
	h.Set(IdxMeasGyroY, IdxGyroY, 1)
	h.Set(IdxMeasGyroZ, IdxGyroZ, 1)
	h.Set(IdxMeasMagX, IdxMagX, 1)
	h.Set(IdxMeasMagY, IdxMagY, 1)
	h.Set(IdxMeasMagZ, IdxMagZ, 1)
	h.Set(IdxMeasQuatA, IdxQuatA, 1)
	h.Set(IdxMeasQuatB, IdxQuatI, 1)
	h.Set(IdxMeasQuatC, IdxQuatJ, 1)
	h.Set(IdxMeasQuatD, IdxQuatK, 1)

	r := e.R()
	matrix.Zero(r)
	r.Set(IdxMeasAccX, IdxMeasAccX, cfg.RAcc)
	r.Set(IdxMeasAccY, IdxMeasAccY, cfg.RAcc)
	r.Set(IdxMeasAccZ, IdxMeasAccZ, cfg.RAcc)
	r.Set(IdxMeasGyroX, IdxMeasGyroX, cfg.RGyro)
	r.Set(IdxMeasGyroY, IdxMeasGyroY, cfg.RGyro)
	r.Set(IdxMeasGyroZ, IdxMeasGyroZ, cfg.RGyro)
	r.Set(IdxMeasMagX, IdxMeasMagX, cfg.RMag)
	r.Set(IdxMeasMagY, IdxMeasMagY, cfg.RMag)
	r.Set(IdxMeasMagZ, IdxMeasMagZ, cfg.RMag)
	r.Set(IdxMeasQuatA, IdxMeasQuatA, cfg.RQuat)
	r.Set(IdxMeasQuatB, IdxMeasQuatB, cfg.RQuat)
	r.Set(IdxMeasQuatC, IdxMeasQuatC, cfg.RQuat)
	r.Set(IdxMeasQuatD, IdxMeasQuatD, cfg.RQuat)

	return e
}

// softCore suppresses small residuals per axis: x * x^2/(x^2+0.01).
func softCore(x float32) float32 {
	return x * x * x / (x*x + 0.01)
}

// FormMeasurement builds the 13-element IMU measurement vector from raw
// accel (g units), gyro (rad/s), and mag samples, and the current
// attitude estimate (hemisphere-continuity hint for the
// stationary-attitude quaternion and the body-to-world rotation for the
// inertial rows). It also refreshes R's four quaternion diagonal entries
// with the current trust scalar.
//
// Steps, per the stationary-attitude measurement model:
//  1. estimate q_est by aligning (normalize(accel), horizontal mag
//     projection) onto the reference frame (trueG, xVersor),
//     continuity-hinted by the current attitude;
//  2. rotate accel and gyro from body into world frame using the current
//     attitude;
//  3. err_q = 8 + 50*||trueG - accel_world|| + 10*||gyro||, written into
//     R's quaternion diagonal -- this inflates attitude-measurement noise
//     during maneuvers;
//  4. scale accel by EarthG, apply the soft-core filter per axis, then
//     subtract EarthG from the z component.
func (e *IMUEngine) FormMeasurement(accel, gyro, mag algebra.Vec3, currentAttitude algebra.Quat) {
	accelUnit := accel
	algebra.Normalize(&accelUnit)
	magUnit := mag
	algebra.Normalize(&magUnit)

	// Horizontal (gravity-orthogonal) component of the mag reading: the
	// body-frame direction that points at magnetic x when stationary.
	xp := algebra.Cross(accelUnit, algebra.Cross(magUnit, accelUnit))
	algebra.Normalize(&xp)

	qEst := algebra.FrameRot(accelUnit, xp, trueG, xVersor, &currentAttitude)

	accelWorld := algebra.VecRot(accel, currentAttitude)
	gyroWorld := algebra.VecRot(gyro, currentAttitude)

	diff := algebra.Diff(trueG, accelWorld)
	errQ := 8 + 50*algebra.Len(diff) + 10*algebra.Len(gyro)

	r := e.R()
	r.Set(IdxMeasQuatA, IdxMeasQuatA, errQ)
	r.Set(IdxMeasQuatB, IdxMeasQuatB, errQ)
	r.Set(IdxMeasQuatC, IdxMeasQuatC, errQ)
	r.Set(IdxMeasQuatD, IdxMeasQuatD, errQ)

	scaled := algebra.Scale(accelWorld, EarthG)
	scaled.X = softCore(scaled.X)
	scaled.Y = softCore(scaled.Y)
	scaled.Z = softCore(scaled.Z)
	scaled.Z -= EarthG

	z := e.Z()
	z.Set(IdxMeasAccX, 0, scaled.X)
	z.Set(IdxMeasAccY, 0, scaled.Y)
	z.Set(IdxMeasAccZ, 0, scaled.Z)
	z.Set(IdxMeasGyroX, 0, gyroWorld.X)
	z.Set(IdxMeasGyroY, 0, gyroWorld.Y)
	z.Set(IdxMeasGyroZ, 0, gyroWorld.Z)
	z.Set(IdxMeasMagX, 0, mag.X)
	z.Set(IdxMeasMagY, 0, mag.Y)
	z.Set(IdxMeasMagZ, 0, mag.Z)
	z.Set(IdxMeasQuatA, 0, qEst.A)
	z.Set(IdxMeasQuatB, 0, qEst.I)
	z.Set(IdxMeasQuatC, 0, qEst.J)
	z.Set(IdxMeasQuatD, 0, qEst.K)
}

// hx reads the 13 IMU-measured state elements straight back: h(x) is a
// pure selector.
func imuHx(x *State, hx *matrix.Matrix) {
	hx.Set(IdxMeasAccX, 0, x[IdxAccX])
	hx.Set(IdxMeasAccY, 0, x[IdxAccY])
	hx.Set(IdxMeasAccZ, 0, x[IdxAccZ])
	hx.Set(IdxMeasGyroX, 0, x[IdxGyroX])
	hx.Set(IdxMeasGyroY, 0, x[IdxGyroY])
	hx.Set(IdxMeasGyroZ, 0, x[IdxGyroZ])
	hx.Set(IdxMeasMagX, 0, x[IdxMagX])
	hx.Set(IdxMeasMagY, 0, x[IdxMagY])
	hx.Set(IdxMeasMagZ, 0, x[IdxMagZ])
	hx.Set(IdxMeasQuatA, 0, x[IdxQuatA])
	hx.Set(IdxMeasQuatB, 0, x[IdxQuatI])
	hx.Set(IdxMeasQuatC, 0, x[IdxQuatJ])
	hx.Set(IdxMeasQuatD, 0, x[IdxQuatK])
}

// Update runs the IMU measurement formation and Kalman update against
// x/p given raw accel/gyro/mag samples.
func (e *IMUEngine) Update(x *State, p *matrix.Matrix, accel, gyro, mag algebra.Vec3) error {
	e.FormMeasurement(accel, gyro, mag, x.Attitude())
	return e.Apply(x, p, imuHx)
}
