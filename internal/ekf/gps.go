package ekf

import (
	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/matrix"
)

// GPSEngine is the GPS update engine: a selector matrix onto position,
// and optionally velocity, states. Rows is 3 when fusing position only,
// 6 when also fusing velocity.
type GPSEngine struct {
	*Engine
	fuseVelocity bool
}

// NewGPSEngine builds a GPS update engine. fuseVelocity selects between
// the 3-row (position only) and 6-row (position+velocity) variants.
func NewGPSEngine(cfg Config, fuseVelocity bool) *GPSEngine {
	rows := 3
	if fuseVelocity {
		rows = 6
	}
	e := &GPSEngine{Engine: NewEngine(rows), fuseVelocity: fuseVelocity}

	h := e.H()
	matrix.Zero(h)
	h.Set(0, IdxPosX, 1)
	h.Set(1, IdxPosY, 1)
	h.Set(2, IdxPosZ, 1)

	r := e.R()
	r.Set(0, 0, cfg.RGpsPos)
	r.Set(1, 1, cfg.RGpsPos)
	r.Set(2, 2, cfg.RGpsPos)

	if fuseVelocity {
		h.Set(3, IdxVelX, 1)
		h.Set(4, IdxVelY, 1)
		h.Set(5, IdxVelZ, 1)
		r.Set(3, 3, cfg.RGpsVel)
		r.Set(4, 4, cfg.RGpsVel)
		r.Set(5, 5, cfg.RGpsVel)
	}

	return e
}

func (e *GPSEngine) hx(x *State, hx *matrix.Matrix) {
	hx.Set(0, 0, x[IdxPosX])
	hx.Set(1, 0, x[IdxPosY])
	hx.Set(2, 0, x[IdxPosZ])
	if e.fuseVelocity {
		hx.Set(3, 0, x[IdxVelX])
		hx.Set(4, 0, x[IdxVelY])
		hx.Set(5, 0, x[IdxVelZ])
	}
}

// Update runs the GPS Kalman update against x/p given a measured
// position and, when this engine fuses velocity, a measured velocity.
func (e *GPSEngine) Update(x *State, p *matrix.Matrix, pos, vel algebra.Vec3) error {
	z := e.Z()
	z.Set(0, 0, pos.X)
	z.Set(1, 0, pos.Y)
	z.Set(2, 0, pos.Z)
	if e.fuseVelocity {
		z.Set(3, 0, vel.X)
		z.Set(4, 0, vel.Y)
		z.Set(5, 0, vel.Z)
	}
	return e.Apply(x, p, e.hx)
}
