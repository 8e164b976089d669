package ekf

import (
	"context"
	"sync"
	"time"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/matrix"
	"github.com/phoenix-pilot/ekfd/internal/sensors"
	"github.com/sirupsen/logrus"
)

// Snapshot is a read-consistent copy of the public state: the estimator
// never hands out a live reference to its internal state or covariance.
type Snapshot struct {
	Position         algebra.Vec3
	Velocity         algebra.Vec3
	Attitude         algebra.Quat
	Roll, Pitch, Yaw float32
	AngularRate      algebra.Vec3
	Acceleration     algebra.Vec3
	Timestamp        time.Time
}

// Facade orchestrates prediction and updates in a loop and exposes a
// read-only snapshot of the current state. It is the sole writer of its
// state and covariance; a mutex guards only the final copy-out to the
// public snapshot, per the single-writer/multi-reader concurrency model.
type Facade struct {
	mu sync.RWMutex

	x State
	p *matrix.Matrix
	q *matrix.Matrix // process noise, computed once at startup

	imu  *IMUEngine
	baro *BaroEngine
	gps  *GPSEngine

	cfg Config

	snapshot Snapshot
	lastTime time.Time
	updateN  uint64
	dtStats  algebra.Stats

	client *sensors.Client
	log    *logrus.Logger

	tmpSandwich *matrix.Matrix
}

// New builds a façade seeded with (pos=0, v=0, q=identity, a=0, w=0,
// m=initialMag), computing Q once from cfg and the prediction Jacobian
// at a nominal dt.
func New(cfg Config, initialMag algebra.Vec3, nominalDt float32, client *sensors.Client, log *logrus.Logger, fuseGpsVelocity bool) *Facade {
	f := &Facade{
		x:   State{},
		p:   BuildP0(cfg),
		cfg: cfg,

		imu:  NewIMUEngine(cfg),
		baro: NewBaroEngine(cfg),
		gps:  NewGPSEngine(cfg, fuseGpsVelocity),

		client: client,
		log:    log,

		tmpSandwich: matrix.New(StateDim, StateDim),
	}

	f.x.SetAttitude(algebra.Identity())
	f.x[IdxMagX] = initialMag.X
	f.x[IdxMagY] = initialMag.Y
	f.x[IdxMagZ] = initialMag.Z

	qMeas := BuildQMeas(cfg)
	fInit := PredictionJacobian(&f.x, nominalDt)
	q := matrix.New(StateDim, StateDim)
	tmp := matrix.New(StateDim, StateDim)
	if err := matrix.Sandwich(fInit, qMeas, q, tmp); err != nil {
		log.WithError(err).Error("ekf: failed to build initial process noise, using Q_meas directly")
		q = qMeas
	}
	f.q = q

	return f
}

// Snapshot returns a read-consistent copy of the current public state.
func (f *Facade) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot
}

// UpdateCount returns the number of completed loop iterations.
func (f *Facade) UpdateCount() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updateN
}

// LoopStats reports the running loop-period statistics (seconds): mean,
// variance, and the longest iteration seen. Useful for spotting a
// stalled sensor read, which shows up as a large max dt.
func (f *Facade) LoopStats() (mean, variance, max float64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dtStats.Mean(), f.dtStats.Variance(), f.dtStats.Max()
}

func (f *Facade) refreshSnapshot(now time.Time, dt float32) {
	roll, pitch, yaw := algebra.Quat2Euler(f.x.Attitude())

	f.mu.Lock()
	f.snapshot = Snapshot{
		Position:     f.x.Position(),
		Velocity:     f.x.Velocity(),
		Attitude:     f.x.Attitude(),
		Roll:         roll,
		Pitch:        pitch,
		Yaw:          yaw,
		AngularRate:  f.x.AngularRate(),
		Acceleration: f.x.Acceleration(),
		Timestamp:    now,
	}
	f.updateN++
	f.dtStats.Update(float64(dt))
	f.mu.Unlock()
}

// Run executes the predict/update loop until ctx is canceled. Each
// iteration: compute dt from the wall clock, predict, then run whichever
// update engines have a fresh sample. A singular innovation covariance
// or a missing sensor reading skips that update only; prediction keeps
// the snapshot fresh and monotonic in time regardless.
func (f *Facade) Run(ctx context.Context) {
	f.lastTime = time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(f.lastTime).Seconds())
		f.lastTime = now

		f.step(now, dt)
	}
}

// StepOnce runs a single predict/update iteration with an explicit dt,
// advancing an internal simulated clock instead of reading the wall
// clock. The scenario harness and tests drive the estimator with it.
func (f *Facade) StepOnce(dt time.Duration) {
	if f.lastTime.IsZero() {
		f.lastTime = time.Unix(0, 0)
	}
	f.lastTime = f.lastTime.Add(dt)
	f.step(f.lastTime, float32(dt.Seconds()))
}

func (f *Facade) step(now time.Time, dt float32) {
	fJac := PredictionJacobian(&f.x, dt)
	Predict(&f.x, dt)

	pPred, err := PredictCovariance(fJac, f.p, f.q, f.tmpSandwich)
	if err != nil {
		f.log.WithError(err).Warn("ekf: prediction covariance propagation failed, keeping prior covariance")
	} else {
		f.p = pPred
	}

	f.runIMU()
	f.runBaro()
	f.runGPS()

	f.refreshSnapshot(now, dt)
}

func (f *Facade) runIMU() {
	evt, err := f.client.ReadIMU()
	if err != nil {
		return
	}
	if err := f.imu.Update(&f.x, f.p, evt.Accel, evt.Gyro, evt.Mag); err != nil {
		f.log.WithError(err).Warn("ekf: imu update skipped")
	}
}

func (f *Facade) runBaro() {
	evt, err := f.client.ReadBaro()
	if err != nil {
		return
	}
	if err := f.baro.Update(&f.x, f.p, evt.Altitude); err != nil {
		f.log.WithError(err).Warn("ekf: baro update skipped")
	}
}

func (f *Facade) runGPS() {
	evt, err := f.client.ReadGPS()
	if err != nil {
		return
	}
	if err := f.gps.Update(&f.x, f.p, evt.Position, evt.Velocity); err != nil {
		f.log.WithError(err).Warn("ekf: gps update skipped")
	}
}
