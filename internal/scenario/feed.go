package scenario

import (
	"io"
	"time"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/ekf"
	"github.com/phoenix-pilot/ekfd/internal/sensors"
	"github.com/sirupsen/logrus"
)

// FakeFeed drives the estimator with synthetic sensor data: a per-sensor
// sample function of elapsed simulated time, exposed to the estimator
// through fake sensor-manager devices.
type FakeFeed struct {
	elapsed time.Duration

	// IMU returns the accel (g), gyro (rad/s), and mag samples for the
	// given elapsed time, or is nil when the scenario has no IMU.
	IMU func(t time.Duration) (accel, gyro, mag algebra.Vec3)
	// Baro returns the altitude sample for the given elapsed time, or
	// false when the scenario has no barometer.
	Baro func(t time.Duration) (float32, bool)
	// GPS returns the position/velocity sample for the given elapsed
	// time, or false when the scenario has no GPS.
	GPS func(t time.Duration) (pos, vel algebra.Vec3, ok bool)
}

// Advance moves the feed's simulated clock forward by dt.
func (f *FakeFeed) Advance(dt time.Duration) {
	f.elapsed += dt
}

// Client wraps the feed in a sensor client the estimator can read from.
// A baro or GPS the feed does not model is left out entirely; the IMU
// device is always present and reports ErrMissingType when the feed has
// no IMU. Either way the estimator skips those updates.
func (f *FakeFeed) Client() *sensors.Client {
	var baro, gps sensors.Device
	if f.Baro != nil {
		baro = &fakeDevice{feed: f, kind: sensors.TypeBaro}
	}
	if f.GPS != nil {
		gps = &fakeDevice{feed: f, kind: sensors.TypeGPS}
	}
	return sensors.New(&fakeDevice{feed: f, kind: sensors.TypeIMU}, baro, gps, nil)
}

// fakeDevice adapts one of the feed's sample functions to the
// sensor-manager device contract. Open and Close are no-ops; ReadBatch
// returns the sample for the feed's current simulated time.
type fakeDevice struct {
	feed *FakeFeed
	kind sensors.Type
}

func (d *fakeDevice) Open(path string, types sensors.Type) error { return nil }
func (d *fakeDevice) Close() error                               { return nil }

func (d *fakeDevice) ReadBatch() (sensors.Batch, error) {
	t := d.feed.elapsed
	e := sensors.Event{Type: d.kind, TimestampUs: t.Microseconds()}

	switch d.kind {
	case sensors.TypeIMU:
		if d.feed.IMU == nil {
			return sensors.Batch{}, sensors.ErrMissingType
		}
		e.Accel, e.Gyro, e.Mag = d.feed.IMU(t)
	case sensors.TypeBaro:
		alt, ok := d.feed.Baro(t)
		if !ok {
			return sensors.Batch{}, sensors.ErrMissingType
		}
		e.Altitude = alt
	case sensors.TypeGPS:
		pos, vel, ok := d.feed.GPS(t)
		if !ok {
			return sensors.Batch{}, sensors.ErrMissingType
		}
		e.Position, e.Velocity = pos, vel
	}

	return sensors.Batch{Events: []sensors.Event{e}}, nil
}

// Replay drives a fresh estimator against the feed for the given
// duration at the given loop rate, recording one snapshot per step.
func Replay(feed *FakeFeed, duration, rate time.Duration) []ekf.Snapshot {
	client := feed.Client()
	f := ekf.New(ekf.DefaultConfig(), algebra.Vec3{X: 1, Y: 0, Z: 0}, float32(rate.Seconds()), client, noopLogger(), false)

	steps := int(duration / rate)
	history := make([]ekf.Snapshot, 0, steps)

	for i := 0; i < steps; i++ {
		feed.Advance(rate)
		f.StepOnce(rate)
		history = append(history, f.Snapshot())
	}

	return history
}

func noopLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
