package ekf

import (
	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/matrix"
)

// Predict advances state x by dt using the nonlinear propagation
// equations, then renormalizes the attitude quaternion:
//
//	pos_k+1 = pos_k + v_k*dt + 1/2*a_k*dt^2
//	v_k+1   = v_k + a_k*dt
//	q_k+1   = normalize(q_k + 1/2*(w_quat (x) q_k)*dt)
//	a_k+1, w_k+1, m_k+1 unchanged (random walk)
func Predict(x *State, dt float32) {
	pos := x.Position()
	vel := x.Velocity()
	acc := x.Acceleration()
	gyro := x.AngularRate()
	q := x.Attitude()

	halfDtSq := 0.5 * dt * dt

	x[IdxPosX] = pos.X + vel.X*dt + acc.X*halfDtSq
	x[IdxPosY] = pos.Y + vel.Y*dt + acc.Y*halfDtSq
	x[IdxPosZ] = pos.Z + vel.Z*dt + acc.Z*halfDtSq

	x[IdxVelX] = vel.X + acc.X*dt
	x[IdxVelY] = vel.Y + acc.Y*dt
	x[IdxVelZ] = vel.Z + acc.Z*dt

	omega := algebra.Quat{A: 0, I: gyro.X, J: gyro.Y, K: gyro.Z}
	dq := algebra.Mult(omega, q)
	dq = algebra.QScale(dq, dt/2)
	algebra.QAdd(&q, dq)

	x.SetAttitude(q)
	x.RenormalizeQuat()

	// acceleration, angular rate, and magnetic field are random walks:
	// x[IdxAcc*], x[IdxGyro*], x[IdxMag*] are left unchanged.
}

// PredictionJacobian builds the 19x19 prediction Jacobian F for the
// given state and dt: identity, plus d(pos)/d(vel) = I*dt, d(pos)/d(acc)
// = 1/2*I*dt^2, d(vel)/d(acc) = I*dt, d(q)/d(q) from the half-angle
// approximation using w*dt/2, and d(q)/d(w) from q*dt/2.
func PredictionJacobian(x *State, dt float32) *matrix.Matrix {
	f := matrix.New(StateDim, StateDim)
	matrix.Diag(f)

	i3dt := matrix.New(3, 3)
	matrix.Diag(i3dt)
	matrix.Scale(i3dt, dt)
	_ = matrix.WriteSubmatrix(f, IdxPosX, IdxVelX, i3dt)
	_ = matrix.WriteSubmatrix(f, IdxVelX, IdxAccX, i3dt)

	i3halfDtSq := matrix.New(3, 3)
	matrix.Diag(i3halfDtSq)
	matrix.Scale(i3halfDtSq, 0.5*dt*dt)
	_ = matrix.WriteSubmatrix(f, IdxPosX, IdxAccX, i3halfDtSq)

	gyro := x.AngularRate()
	wxdt2 := gyro.X * dt / 2
	wydt2 := gyro.Y * dt / 2
	wzdt2 := gyro.Z * dt / 2

	dfqdq := matrix.New(4, 4)
	dfqdq.Data = []float32{
		1, -wxdt2, -wydt2, -wzdt2,
		wxdt2, 1, -wzdt2, wydt2,
		wydt2, wzdt2, 1, -wxdt2,
		wzdt2, -wydt2, wxdt2, 1,
	}
	_ = matrix.WriteSubmatrix(f, IdxQuatA, IdxQuatA, dfqdq)

	q := x.Attitude()
	qadt2 := q.A * dt / 2
	qidt2 := q.I * dt / 2
	qjdt2 := q.J * dt / 2
	qkdt2 := q.K * dt / 2

	dfqdw := matrix.New(4, 3)
	dfqdw.Data = []float32{
		-qidt2, -qjdt2, -qkdt2,
		qadt2, qkdt2, -qjdt2,
		-qkdt2, qadt2, qidt2,
		qjdt2, -qidt2, qadt2,
	}
	_ = matrix.WriteSubmatrix(f, IdxQuatA, IdxGyroX, dfqdw)

	return f
}

// PredictCovariance computes P_pred = F*P*F^T + Q using the sparse
// sandwich product, since F is mostly identity/small blocks.
func PredictCovariance(f, p, q, tmp *matrix.Matrix) (*matrix.Matrix, error) {
	pPred := matrix.New(StateDim, StateDim)
	if err := matrix.SparseSandwich(f, p, pPred, tmp); err != nil {
		return nil, err
	}
	if err := matrix.Add(pPred, q, nil); err != nil {
		return nil, err
	}
	return pPred, nil
}
