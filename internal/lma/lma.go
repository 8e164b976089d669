// Package lma implements a generic Levenberg-Marquardt nonlinear
// least-squares solver driven by caller-supplied residual, Jacobian, and
// initial-guess callbacks.
package lma

import (
	"fmt"

	"github.com/phoenix-pilot/ekfd/internal/matrix"
)

const (
	lambdaStart   = 1.0
	lambdaReward  = 0.1
	lambdaPenalty = 10.0
)

// Callbacks bundles the three user-supplied functions the solver needs.
// Residual and Jacobian operate one sample row at a time; Jacobian may be
// numeric, e.g. built by central-differencing Residual.
type Callbacks struct {
	// Residual computes the scalar residual for sample row v given the
	// current parameter vector p.
	Residual func(p []float32, v []float32) (float32, error)
	// Jacobian fills jrow (length nparams) with the Jacobian row for
	// sample v at the current parameter vector p.
	Jacobian func(p []float32, v []float32, jrow []float32) error
	// Guess fills p (length nparams) with the initial parameter guess.
	Guess func(p []float32)
}

// Solver owns the pre-allocated scratch storage for one fit. Build one
// with New and reuse it across fits of the same shape; storage is
// allocated once, matching the source's init-then-fit contract.
type Solver struct {
	nsamples, nvars, nparams int

	cb Callbacks

	samples [][]float32 // nsamples x nvars, caller-owned rows

	jacobian    *matrix.Matrix // nsamples x nparams
	residua     *matrix.Matrix // nsamples x 1
	residuaCand *matrix.Matrix

	params     []float32
	paramsCand []float32

	delta *matrix.Matrix // nparams x 1

	jtj    *matrix.Matrix // nparams x nparams, scratch
	jtjTmp *matrix.Matrix
	jtr    *matrix.Matrix // nparams x 1
	inv    *matrix.Matrix
	invBuf []float32

	lambda float32
}

// New allocates a solver for nsamples rows of nvars columns each, fitting
// nparams parameters.
func New(nsamples, nvars, nparams int, cb Callbacks) *Solver {
	return &Solver{
		nsamples: nsamples,
		nvars:    nvars,
		nparams:  nparams,
		cb:       cb,

		jacobian:    matrix.New(nsamples, nparams),
		residua:     matrix.New(nsamples, 1),
		residuaCand: matrix.New(nsamples, 1),

		params:     make([]float32, nparams),
		paramsCand: make([]float32, nparams),

		delta: matrix.New(nparams, 1),

		jtj:    matrix.New(nparams, nparams),
		jtjTmp: matrix.New(nparams, nparams),
		jtr:    matrix.New(nparams, 1),
		inv:    matrix.New(nparams, nparams),
		invBuf: make([]float32, 2*nparams*nparams),

		lambda: lambdaStart,
	}
}

// Params returns the current best-fit parameter vector. Valid after Fit
// returns, whether converged or not.
func (s *Solver) Params() []float32 {
	return s.params
}

func (s *Solver) sumSquares(m *matrix.Matrix) float32 {
	var sum float32
	for i := 0; i < m.Rows; i++ {
		v := m.At(i, 0)
		sum += v * v
	}
	return sum
}

func (s *Solver) computeResidua(samples [][]float32, params []float32, dst *matrix.Matrix) error {
	for i, row := range samples {
		r, err := s.cb.Residual(params, row)
		if err != nil {
			return err
		}
		// Stored negated so the normal-equations solve below yields a
		// descent step directly.
		dst.Set(i, 0, -r)
	}
	return nil
}

func (s *Solver) computeJacobian(samples [][]float32, params []float32) error {
	jrow := make([]float32, s.nparams)
	for i, row := range samples {
		for k := range jrow {
			jrow[k] = 0
		}
		if err := s.cb.Jacobian(params, row, jrow); err != nil {
			return err
		}
		for k := 0; k < s.nparams; k++ {
			s.jacobian.Set(i, k, jrow[k])
		}
	}
	return nil
}

// Fit runs up to maxSteps iterations of damped Gauss-Newton, starting
// from the guess callback's initial parameters. It returns an error if
// any user callback fails; the caller should treat that as a terminated
// fit, matching the source's "any callback failure aborts" policy.
func (s *Solver) Fit(samples [][]float32, maxSteps int) error {
	if len(samples) != s.nsamples {
		return fmt.Errorf("lma: expected %d samples, got %d", s.nsamples, len(samples))
	}

	s.cb.Guess(s.params)
	s.lambda = lambdaStart

	if err := s.computeResidua(samples, s.params, s.residua); err != nil {
		return err
	}
	currentSS := s.sumSquares(s.residua)

	jT := &matrix.Matrix{Data: s.jacobian.Data, Rows: s.jacobian.Rows, Cols: s.jacobian.Cols, Transposed: true}

	for step := 0; step < maxSteps; step++ {
		if err := s.computeJacobian(samples, s.params); err != nil {
			return err
		}

		if err := matrix.Prod(jT, s.jacobian, s.jtj); err != nil {
			return err
		}
		for i := 0; i < s.nparams; i++ {
			s.jtj.Set(i, i, s.jtj.At(i, i)+s.lambda)
		}

		if err := matrix.Prod(jT, s.residua, s.jtr); err != nil {
			return err
		}

		if err := matrix.Inverse(s.jtj, s.inv, s.invBuf); err != nil {
			// A singular normal-equations matrix at this lambda is
			// treated like a rejected step: penalize and retry.
			s.lambda *= lambdaPenalty
			continue
		}
		if err := matrix.Prod(s.inv, s.jtr, s.delta); err != nil {
			return err
		}

		for i := 0; i < s.nparams; i++ {
			s.paramsCand[i] = s.params[i] + s.delta.At(i, 0)
		}

		if err := s.computeResidua(samples, s.paramsCand, s.residuaCand); err != nil {
			return err
		}
		candSS := s.sumSquares(s.residuaCand)

		if candSS < currentSS {
			s.lambda *= lambdaReward
			currentSS = candSS
			s.params, s.paramsCand = s.paramsCand, s.params
			s.residua, s.residuaCand = s.residuaCand, s.residua
		} else {
			s.lambda *= lambdaPenalty
		}
	}

	return nil
}
