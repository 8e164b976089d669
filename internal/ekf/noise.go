package ekf

import "github.com/phoenix-pilot/ekfd/internal/matrix"

// Config holds the tunable noise parameters the façade uses to seed the
// initial covariance and the process-noise matrix at startup.
type Config struct {
	// Initial covariance diagonal, one variance per state group.
	P0Pos, P0Vel, P0QuatA, P0QuatIJK, P0Acc, P0Gyro, P0Mag float32

	// Process-noise diagonal (Q_meas), before the F*Q_meas*F^T sandwich.
	QAcc, QGyro, QMag, QQuat float32

	// IMU measurement-noise diagonal baseline; the four quaternion
	// entries are overwritten every update with the stationary-attitude
	// trust scalar described in the IMU update engine.
	RAcc, RGyro, RMag, RQuat float32

	// Barometric and GPS measurement-noise scalars.
	RBaroAlt         float32
	RGpsPos, RGpsVel float32
}

// DefaultConfig returns noise parameters in the same rough magnitude as
// the source's tuned defaults: generous initial uncertainty, small
// process noise on the directly-integrated states, larger process noise
// on the random-walk states (acceleration, angular rate, magnetic
// field), and measurement noise matched to typical MEMS IMU/GPS/baro
// quality.
func DefaultConfig() Config {
	return Config{
		P0Pos: 10, P0Vel: 5, P0QuatA: 1, P0QuatIJK: 1, P0Acc: 2, P0Gyro: 1, P0Mag: 1,

		QAcc: 0.5, QGyro: 0.1, QMag: 0.01, QQuat: 1e-4,

		RAcc: 0.3, RGyro: 0.05, RMag: 0.1, RQuat: 0.05,

		RBaroAlt: 1.0,
		RGpsPos:  4.0, RGpsVel: 0.5,
	}
}

// BuildP0 returns the initial 19x19 covariance diagonal from cfg.
func BuildP0(cfg Config) *matrix.Matrix {
	p := matrix.New(StateDim, StateDim)
	diag := [StateDim]float32{}
	for i := IdxPosX; i <= IdxPosZ; i++ {
		diag[i] = cfg.P0Pos
	}
	for i := IdxVelX; i <= IdxVelZ; i++ {
		diag[i] = cfg.P0Vel
	}
	diag[IdxQuatA] = cfg.P0QuatA
	for i := IdxQuatI; i <= IdxQuatK; i++ {
		diag[i] = cfg.P0QuatIJK
	}
	for i := IdxAccX; i <= IdxAccZ; i++ {
		diag[i] = cfg.P0Acc
	}
	for i := IdxGyroX; i <= IdxGyroZ; i++ {
		diag[i] = cfg.P0Gyro
	}
	for i := IdxMagX; i <= IdxMagZ; i++ {
		diag[i] = cfg.P0Mag
	}
	for i, v := range diag {
		p.Set(i, i, v)
	}
	return p
}

// BuildQMeas returns the pre-sandwich process-noise diagonal Q_meas from
// cfg. Position and velocity carry no direct process noise: their
// uncertainty grows only through the F*Q_meas*F^T sandwich driven by the
// acceleration process noise.
func BuildQMeas(cfg Config) *matrix.Matrix {
	q := matrix.New(StateDim, StateDim)
	diag := [StateDim]float32{}
	for i := IdxQuatA; i <= IdxQuatK; i++ {
		diag[i] = cfg.QQuat
	}
	for i := IdxAccX; i <= IdxAccZ; i++ {
		diag[i] = cfg.QAcc
	}
	for i := IdxGyroX; i <= IdxGyroZ; i++ {
		diag[i] = cfg.QGyro
	}
	for i := IdxMagX; i <= IdxMagZ; i++ {
		diag[i] = cfg.QMag
	}
	for i, v := range diag {
		q.Set(i, i, v)
	}
	return q
}
