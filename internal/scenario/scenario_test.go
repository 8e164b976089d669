package scenario

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
)

// Every standard validation scenario must pass with positive margin.
func TestStandardScenarios(t *testing.T) {
	if testing.Short() {
		t.Skip("full scenario replay skipped in short mode")
	}

	runner := NewRunner(Config{Repeats: 1})
	for _, s := range Standard() {
		runner.AddScenario(s)
	}

	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(results) != len(Standard()) {
		t.Fatalf("got %d results, want %d", len(results), len(Standard()))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("scenario %s failed: mean margin %g", r.Name, r.MeanMargin)
		}
	}
}

func TestRunnerRepeatsAndSummarizes(t *testing.T) {
	calls := 0
	runner := NewRunner(Config{Repeats: 5})
	runner.AddScenario(Scenario{
		Name: "counted",
		Run: func() (float64, error) {
			calls++
			return float64(calls), nil
		},
	})

	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 5 {
		t.Errorf("scenario ran %d times, want 5", calls)
	}
	r := results[0]
	if r.MeanMargin != 3 {
		t.Errorf("mean margin = %g, want 3", r.MeanMargin)
	}
	if !r.Passed {
		t.Error("all-positive margins did not pass")
	}
}

func TestRunnerPropagatesErrors(t *testing.T) {
	runner := NewRunner(Config{Repeats: 1})
	runner.AddScenario(Scenario{
		Name: "broken",
		Run:  func() (float64, error) { return 0, fmt.Errorf("no feed") },
	})

	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("Run swallowed a scenario error")
	}
}

func TestRunnerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(Config{Repeats: 1})
	runner.AddScenario(Scenario{
		Name: "never",
		Run:  func() (float64, error) { return 1, nil },
	})

	if _, err := runner.Run(ctx); err == nil {
		t.Fatal("Run ignored a canceled context")
	}
}

func TestRunnerNegativeMarginFails(t *testing.T) {
	runner := NewRunner(Config{Repeats: 2})
	margins := []float64{1, -0.5}
	i := 0
	runner.AddScenario(Scenario{
		Name: "flaky",
		Run: func() (float64, error) {
			m := margins[i]
			i++
			return m, nil
		},
	})

	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Passed {
		t.Error("scenario with a failing run reported as passed")
	}
}

// The fake feed advances its clock and hands type-correct events to the
// estimator-facing client.
func TestFakeFeedClient(t *testing.T) {
	var sawT time.Duration
	feed := &FakeFeed{
		IMU: func(elapsed time.Duration) (accel, gyro, mag algebra.Vec3) {
			sawT = elapsed
			return algebra.Vec3{Z: 1}, algebra.Vec3{}, algebra.Vec3{X: 1}
		},
		Baro: func(elapsed time.Duration) (float32, bool) {
			return 42, true
		},
	}
	client := feed.Client()

	feed.Advance(3 * time.Millisecond)

	imu, err := client.ReadIMU()
	if err != nil {
		t.Fatalf("ReadIMU: %v", err)
	}
	if sawT != 3*time.Millisecond {
		t.Errorf("IMU sampled at %v, want 3ms", sawT)
	}
	if imu.Accel != (algebra.Vec3{Z: 1}) {
		t.Errorf("accel = %+v", imu.Accel)
	}

	baro, err := client.ReadBaro()
	if err != nil {
		t.Fatalf("ReadBaro: %v", err)
	}
	if baro.Altitude != 42 {
		t.Errorf("altitude = %g", baro.Altitude)
	}

	if _, err := client.ReadGPS(); err == nil {
		t.Error("GPS read succeeded with no GPS in the feed")
	}
}
