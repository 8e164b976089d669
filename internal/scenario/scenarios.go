package scenario

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"gonum.org/v1/gonum/floats"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/calib"
	"github.com/phoenix-pilot/ekfd/internal/correction"
	"github.com/phoenix-pilot/ekfd/internal/ekf"
	"github.com/phoenix-pilot/ekfd/internal/matrix"
)

const loopRate = time.Millisecond

// Standard returns the six validation scenarios: stationary IMU, pure
// rotation, free fall, singular innovation covariance, calibration load
// fallback, and the magmot correction.
func Standard() []Scenario {
	return []Scenario{
		{Name: "stationary-imu", Run: runStationary},
		{Name: "pure-rotation", Run: runRotation},
		{Name: "free-fall", Run: runFreeFall},
		{Name: "singular-innovation", Run: runSingularInnovation},
		{Name: "calibration-fallback", Run: runCalibFallback},
		{Name: "magmot-correction", Run: runMagmotCorrection},
	}
}

// margin folds a list of (bound, actual) pairs into the tightest
// normalized headroom: positive when every actual stays under its bound.
func margin(pairs ...[2]float64) float64 {
	m := math.Inf(1)
	for _, p := range pairs {
		m = math.Min(m, (p[0]-p[1])/p[0])
	}
	return m
}

func attitudeAngleDeg(q algebra.Quat) float64 {
	a := math.Abs(float64(q.A))
	if a > 1 {
		a = 1
	}
	return 2 * math.Acos(a) * 180 / math.Pi
}

// runStationary replays a motionless vehicle for 5 s at 1 kHz: accel
// (0,0,1) g, zero rates, mag along x. Position drift must stay under
// 0.5 m per axis, velocity under 0.1 m/s per axis, and attitude within
// one degree of identity.
func runStationary() (float64, error) {
	feed := &FakeFeed{
		IMU: func(t time.Duration) (accel, gyro, mag algebra.Vec3) {
			return algebra.Vec3{Z: 1}, algebra.Vec3{}, algebra.Vec3{X: 1}
		},
	}
	history := Replay(feed, 5*time.Second, loopRate)

	n := len(history)
	pos := make([]float64, 0, 3*n)
	vel := make([]float64, 0, 3*n)
	ang := make([]float64, 0, n)
	for _, s := range history {
		pos = append(pos, math.Abs(float64(s.Position.X)), math.Abs(float64(s.Position.Y)), math.Abs(float64(s.Position.Z)))
		vel = append(vel, math.Abs(float64(s.Velocity.X)), math.Abs(float64(s.Velocity.Y)), math.Abs(float64(s.Velocity.Z)))
		ang = append(ang, attitudeAngleDeg(s.Attitude))
	}

	return margin(
		[2]float64{0.5, floats.Max(pos)},
		[2]float64{0.1, floats.Max(vel)},
		[2]float64{1.0, floats.Max(ang)},
	), nil
}

// runRotation replays a pure rotation about z at 1 rad/s for 1 s with
// gravity on accel and a perfect gyro. Yaw must advance monotonically to
// 57.30 +/- 0.5 degrees while position stays within 0.1 m.
func runRotation() (float64, error) {
	feed := &FakeFeed{
		IMU: func(t time.Duration) (accel, gyro, mag algebra.Vec3) {
			yaw := float32(t.Seconds())
			// Body-frame mag for a vehicle yawed by t radians.
			magBody := algebra.VecRot(algebra.Vec3{X: 1}, algebra.Conjugate(algebra.RotQuat(algebra.Vec3{Z: 1}, yaw)))
			return algebra.Vec3{Z: 1}, algebra.Vec3{Z: 1}, magBody
		},
	}
	history := Replay(feed, time.Second, loopRate)

	pos := make([]float64, 0, 3*len(history))
	prevYaw := float64(math.Inf(-1))
	for _, s := range history {
		yaw := float64(s.Yaw)
		if yaw < prevYaw-1e-3 {
			return -1, nil
		}
		prevYaw = yaw
		pos = append(pos, math.Abs(float64(s.Position.X)), math.Abs(float64(s.Position.Y)), math.Abs(float64(s.Position.Z)))
	}

	finalYawDeg := float64(history[len(history)-1].Yaw) * 180 / math.Pi
	return margin(
		[2]float64{0.5, math.Abs(finalYawDeg - 57.30)},
		[2]float64{0.1, floats.Max(pos)},
	), nil
}

// runFreeFall replays half a second of free fall: zero accel and rates.
// Velocity z must reach -4.9 +/- 0.1 m/s and position z -1.225 +/- 0.05 m.
func runFreeFall() (float64, error) {
	feed := &FakeFeed{
		IMU: func(t time.Duration) (accel, gyro, mag algebra.Vec3) {
			return algebra.Vec3{}, algebra.Vec3{}, algebra.Vec3{X: 1}
		},
	}
	history := Replay(feed, 500*time.Millisecond, loopRate)

	final := history[len(history)-1]
	return margin(
		[2]float64{0.1, math.Abs(float64(final.Velocity.Z) + 4.9)},
		[2]float64{0.05, math.Abs(float64(final.Position.Z) + 1.225)},
	), nil
}

// runSingularInnovation injects a measurement whose innovation covariance
// is singular (H and R both zero) and asserts the state and covariance
// are bit-identical before and after the rejected update, and that the
// estimator loop logs the skip as a warning.
func runSingularInnovation() (float64, error) {
	var x ekf.State
	x.SetAttitude(algebra.Identity())
	p := ekf.BuildP0(ekf.DefaultConfig())

	before := x
	pBefore := matrix.New(ekf.StateDim, ekf.StateDim)
	copy(pBefore.Data, p.Data)

	e := ekf.NewEngine(2)
	err := e.Apply(&x, p, func(x *ekf.State, hx *matrix.Matrix) {
		hx.Set(0, 0, 0)
		hx.Set(1, 0, 0)
	})
	if !errors.Is(err, ekf.ErrSingularInnovation) {
		return -1, fmt.Errorf("expected singular innovation, got %v", err)
	}

	if x != before || !matrix.Cmp(p, pBefore) {
		return -1, nil
	}

	// The same rejection through the estimator loop: an all-zero noise
	// config makes the barometer's S singular, the update must be skipped
	// with a logged warning, and the public state must stay at its seed.
	logger, hook := logrustest.NewNullLogger()
	feed := &FakeFeed{
		Baro: func(t time.Duration) (float32, bool) { return 5, true },
	}
	f := ekf.New(ekf.Config{}, algebra.Vec3{}, float32(loopRate.Seconds()), feed.Client(), logger, false)

	feed.Advance(loopRate)
	f.StepOnce(loopRate)

	snap := f.Snapshot()
	if snap.Position != (algebra.Vec3{}) || snap.Velocity != (algebra.Vec3{}) || snap.Attitude != algebra.Identity() {
		return -1, nil
	}

	for _, entry := range hook.AllEntries() {
		if entry.Level != logrus.WarnLevel {
			continue
		}
		if err, ok := entry.Data[logrus.ErrorKey].(error); ok && errors.Is(err, ekf.ErrSingularInnovation) {
			return 1, nil
		}
	}
	return -1, fmt.Errorf("singular innovation was not logged as a warning")
}

// runCalibFallback loads a calibration file whose magiron section is
// truncated mid-line, and asserts magiron reverts to defaults while the
// magmot section that follows is still read.
func runCalibFallback() (float64, error) {
	const file = `@magiron
s00 1.1
s01 0.2
h00
@magmot
m0xa 0.0
m0xb 0.2
m0xc 0.0
`
	store := calib.Load(strings.NewReader(file), noopLogger())

	if store.MagIron != calib.DefaultMagIron() {
		return -1, nil
	}
	if store.MagMot.Motors[0][0].B != 0.2 {
		return -1, nil
	}
	return 1, nil
}

// runMagmotCorrection feeds motor 0 at throttle 0.5 with x-axis
// coefficients (0, 0.2, 0) through the correction pipeline and asserts
// 0.1 is subtracted from mag.x before the estimator would see it.
func runMagmotCorrection() (float64, error) {
	var mm calib.MagMot
	mm.Motors[0][0].B = 0.2

	source := func() [calib.NumMotors]float32 {
		return [calib.NumMotors]float32{0.5, 0, 0, 0}
	}
	corr := correction.NewMagMotCorrector(mm, source, 100*time.Millisecond)
	if err := corr.Recalc(); err != nil {
		return -1, err
	}

	pipe := correction.New(nil, nil, noopLogger())
	pipe.Register(corr)

	mag := algebra.Vec3{X: 1}
	pipe.ApplyMag(&mag)

	if math.Abs(float64(mag.X)-0.9) > 1e-6 {
		return -1, nil
	}
	return 1, nil
}
