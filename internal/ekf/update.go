package ekf

import (
	"fmt"

	"github.com/phoenix-pilot/ekfd/internal/matrix"
)

// Engine is one per-sensor update bundle: H, R, Z, Y, S, K, predicted
// measurement, calculation scratch, and an inverse workspace, all sized
// for a measurement of the given row count.
type Engine struct {
	rows int

	h  *matrix.Matrix // rows x StateDim
	r  *matrix.Matrix // rows x rows
	z  *matrix.Matrix // rows x 1
	hx *matrix.Matrix // rows x 1
	y  *matrix.Matrix // rows x 1
	s  *matrix.Matrix // rows x rows
	k  *matrix.Matrix // StateDim x rows

	tmp1  *matrix.Matrix // rows x StateDim, scratch for H*P
	tmp2  *matrix.Matrix // StateDim x rows, scratch for P*H^T
	tmp3  *matrix.Matrix // rows x rows, sandwich scratch
	tmp4  *matrix.Matrix // StateDim x StateDim, K*H
	ident *matrix.Matrix // StateDim x StateDim
	dx    *matrix.Matrix // StateDim x 1, K*Y
	pNew  *matrix.Matrix // StateDim x StateDim, (I-KH)*P

	sInv    *matrix.Matrix
	sInvBuf []float32
}

// NewEngine allocates an update engine for a measurement of the given
// row count.
func NewEngine(rows int) *Engine {
	return &Engine{
		rows: rows,

		h:  matrix.New(rows, StateDim),
		r:  matrix.New(rows, rows),
		z:  matrix.New(rows, 1),
		hx: matrix.New(rows, 1),
		y:  matrix.New(rows, 1),
		s:  matrix.New(rows, rows),
		k:  matrix.New(StateDim, rows),

		tmp1:  matrix.New(rows, StateDim),
		tmp2:  matrix.New(StateDim, rows),
		tmp3:  matrix.New(rows, rows),
		tmp4:  matrix.New(StateDim, StateDim),
		ident: matrix.New(StateDim, StateDim),
		dx:    matrix.New(StateDim, 1),
		pNew:  matrix.New(StateDim, StateDim),

		sInv:    matrix.New(rows, rows),
		sInvBuf: make([]float32, 2*rows*rows),
	}
}

// H returns the engine's measurement Jacobian, for callers to fill.
func (e *Engine) H() *matrix.Matrix { return e.h }

// R returns the engine's measurement noise matrix, for callers to fill.
func (e *Engine) R() *matrix.Matrix { return e.r }

// Z returns the engine's measurement vector, for callers to fill.
func (e *Engine) Z() *matrix.Matrix { return e.z }

// ErrSingularInnovation is returned when the innovation covariance S is
// singular; the caller must skip this update cycle without mutating
// state or covariance.
var ErrSingularInnovation = fmt.Errorf("ekf: singular innovation covariance")

// Apply runs the Kalman update sequence against x/p using the engine's
// H, R, Z (already filled by the caller) and hxFill, which computes h(x)
// into e.hx from the current state:
//
//	Y = Z - h(x)
//	S = H*P*H^T + R
//	K = P*H^T*S^-1
//	x = x + K*Y
//	P = (I - K*H)*P
//
// On a singular S, Apply returns ErrSingularInnovation and leaves x/p
// untouched.
func (e *Engine) Apply(x *State, p *matrix.Matrix, hxFill func(x *State, hx *matrix.Matrix)) error {
	hxFill(x, e.hx)
	if err := matrix.Sub(e.z, e.hx, e.y); err != nil {
		return fmt.Errorf("ekf: update innovation: %w", err)
	}

	if err := matrix.Prod(e.h, p, e.tmp1); err != nil {
		return fmt.Errorf("ekf: update H*P: %w", err)
	}
	hT := transposeView(e.h)
	if err := matrix.Prod(e.tmp1, hT, e.tmp3); err != nil {
		return fmt.Errorf("ekf: update H*P*H^T: %w", err)
	}
	if err := matrix.Add(e.tmp3, e.r, e.s); err != nil {
		return fmt.Errorf("ekf: update S: %w", err)
	}

	if err := matrix.Inverse(e.s, e.sInv, e.sInvBuf); err != nil {
		return ErrSingularInnovation
	}

	if err := matrix.Prod(p, hT, e.tmp2); err != nil {
		return fmt.Errorf("ekf: update P*H^T: %w", err)
	}
	if err := matrix.Prod(e.tmp2, e.sInv, e.k); err != nil {
		return fmt.Errorf("ekf: update K: %w", err)
	}

	if err := matrix.Prod(e.k, e.y, e.dx); err != nil {
		return fmt.Errorf("ekf: update K*Y: %w", err)
	}
	for i := 0; i < StateDim; i++ {
		x[i] += e.dx.At(i, 0)
	}

	matrix.Diag(e.ident)
	if err := matrix.Prod(e.k, e.h, e.tmp4); err != nil {
		return fmt.Errorf("ekf: update K*H: %w", err)
	}
	if err := matrix.Sub(e.ident, e.tmp4, nil); err != nil {
		return fmt.Errorf("ekf: update (I-KH): %w", err)
	}
	if err := matrix.Prod(e.ident, p, e.pNew); err != nil {
		return fmt.Errorf("ekf: update (I-KH)*P: %w", err)
	}
	copy(p.Data, e.pNew.Data)
	p.Transposed = false

	x.RenormalizeQuat()
	symmetrize(p)

	return nil
}

// transposeView returns a shallow view of m with Transposed flipped,
// sharing the same backing Data.
func transposeView(m *matrix.Matrix) *matrix.Matrix {
	return &matrix.Matrix{Data: m.Data, Rows: m.Rows, Cols: m.Cols, Transposed: !m.Transposed}
}

// symmetrize restores exact symmetry on p by averaging it with its
// transpose, guarding against the drift the covariance-symmetry
// invariant bounds.
func symmetrize(p *matrix.Matrix) {
	n := p.Rows
	for r := 0; r < n; r++ {
		for c := r + 1; c < n; c++ {
			avg := (p.At(r, c) + p.At(c, r)) / 2
			p.Set(r, c, avg)
			p.Set(c, r, avg)
		}
	}
}
