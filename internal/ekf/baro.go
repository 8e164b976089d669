package ekf

import "github.com/phoenix-pilot/ekfd/internal/matrix"

// BaroEngine is the 1-row barometric altitude update engine. h(x) is the
// altitude state alone; H is a single-row selector onto it.
type BaroEngine struct {
	*Engine
}

// NewBaroEngine builds the barometric update engine.
func NewBaroEngine(cfg Config) *BaroEngine {
	e := &BaroEngine{Engine: NewEngine(1)}

	h := e.H()
	matrix.Zero(h)
	h.Set(0, IdxPosZ, 1)

	r := e.R()
	r.Set(0, 0, cfg.RBaroAlt)

	return e
}

func baroHx(x *State, hx *matrix.Matrix) {
	hx.Set(0, 0, x[IdxPosZ])
}

// Update runs the barometric Kalman update against x/p given a measured
// altitude.
func (e *BaroEngine) Update(x *State, p *matrix.Matrix, altitude float32) error {
	e.Z().Set(0, 0, altitude)
	return e.Apply(x, p, baroHx)
}
