package ekf

import (
	"io"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/sensors"
	"github.com/sirupsen/logrus"
)

type stationaryDevice struct{}

func (stationaryDevice) Open(path string, types sensors.Type) error { return nil }
func (stationaryDevice) Close() error                               { return nil }

func (stationaryDevice) ReadBatch() (sensors.Batch, error) {
	return sensors.Batch{Events: []sensors.Event{{
		Type:  sensors.TypeIMU,
		Accel: algebra.Vec3{Z: 1},
		Mag:   algebra.Vec3{X: 1},
	}}}, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func stationaryFacade() *Facade {
	client := sensors.New(stationaryDevice{}, nil, nil, nil)
	return New(DefaultConfig(), algebra.Vec3{X: 1}, 0.001, client, quietLogger(), false)
}

// Long synthetic stationary run: every covariance diagonal entry stays
// non-negative and the attitude stays unit norm.
func TestFacadeLongRunCovariancePositivity(t *testing.T) {
	iterations := 100000
	if testing.Short() {
		iterations = 5000
	}

	f := stationaryFacade()
	for i := 0; i < iterations; i++ {
		f.StepOnce(time.Millisecond)

		if i%1000 != 0 {
			continue
		}
		for d := 0; d < StateDim; d++ {
			if f.p.At(d, d) < 0 {
				t.Fatalf("iteration %d: covariance diagonal %d negative: %g", i, d, f.p.At(d, d))
			}
		}
		if n := algebra.QLen(f.x.Attitude()); math32.Abs(n-1) > 1e-4 {
			t.Fatalf("iteration %d: |q| = %g", i, n)
		}
	}
}

func TestFacadeSnapshotTracksState(t *testing.T) {
	f := stationaryFacade()
	for i := 0; i < 100; i++ {
		f.StepOnce(time.Millisecond)
	}

	snap := f.Snapshot()
	if snap.Attitude != f.x.Attitude() {
		t.Error("snapshot attitude differs from state")
	}
	if snap.Position != f.x.Position() || snap.Velocity != f.x.Velocity() {
		t.Error("snapshot position/velocity differs from state")
	}
	if snap.Timestamp.IsZero() {
		t.Error("snapshot timestamp never set")
	}
	if f.UpdateCount() != 100 {
		t.Errorf("update count = %d, want 100", f.UpdateCount())
	}

	mean, variance, max := f.LoopStats()
	if mean < 0.0009 || mean > 0.0011 {
		t.Errorf("loop mean dt = %g, want ~0.001", mean)
	}
	if variance > 1e-9 {
		t.Errorf("fixed-rate loop variance = %g, want ~0", variance)
	}
	if max < 0.0009 || max > 0.0011 {
		t.Errorf("loop max dt = %g, want ~0.001", max)
	}
}

// Each step advances the snapshot timestamp monotonically even when a
// sensor update is skipped.
func TestFacadeSnapshotMonotonicTime(t *testing.T) {
	f := stationaryFacade()

	var last time.Time
	for i := 0; i < 10; i++ {
		f.StepOnce(time.Millisecond)
		snap := f.Snapshot()
		if !snap.Timestamp.After(last) {
			t.Fatalf("iteration %d: timestamp did not advance", i)
		}
		last = snap.Timestamp
	}
}

// The initial mag state seeds from the constructor argument.
func TestFacadeInitialSeed(t *testing.T) {
	client := sensors.New(stationaryDevice{}, nil, nil, nil)
	f := New(DefaultConfig(), algebra.Vec3{X: 0.3, Y: -0.1, Z: 0.5}, 0.001, client, quietLogger(), false)

	if f.x.MagField() != (algebra.Vec3{X: 0.3, Y: -0.1, Z: 0.5}) {
		t.Errorf("mag seed = %+v", f.x.MagField())
	}
	if f.x.Attitude() != algebra.Identity() {
		t.Errorf("attitude seed = %+v", f.x.Attitude())
	}
	if f.x.Position() != (algebra.Vec3{}) || f.x.Velocity() != (algebra.Vec3{}) {
		t.Error("position/velocity not seeded to zero")
	}
}
