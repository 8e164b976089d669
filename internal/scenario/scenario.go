// Package scenario implements the synthetic end-to-end validation
// harness: repeated runs of the estimator against the fixed scenarios
// A-F, with a statistical summary of each scenario's pass/fail margins
// across runs.
package scenario

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Scenario is one synthetic validation run. Run executes the scenario
// once and returns a pass/fail margin: positive means pass, by how much
// relative to the scenario's tightest bound; negative means fail, by how
// much. Margins let repeated runs be summarized statistically instead of
// as a bare boolean.
type Scenario struct {
	Name string
	Run  func() (float64, error)
}

// Result is one scenario's outcome across Repeats runs.
type Result struct {
	Name       string
	Margins    []float64
	MeanMargin float64
	StdDev     float64
	Passed     bool
}

// Config controls how many times each scenario is repeated.
type Config struct {
	Repeats int
}

// Runner drives a fixed list of scenarios, repeating each Config.Repeats
// times and summarizing the margin distribution.
type Runner struct {
	cfg       Config
	scenarios []Scenario
}

// NewRunner builds a runner with the given config.
func NewRunner(cfg Config) *Runner {
	if cfg.Repeats <= 0 {
		cfg.Repeats = 1
	}
	return &Runner{cfg: cfg}
}

// AddScenario registers a scenario to run.
func (r *Runner) AddScenario(s Scenario) {
	r.scenarios = append(r.scenarios, s)
}

// Run executes every registered scenario Config.Repeats times and
// returns one Result per scenario. A scenario passes when every run's
// margin is positive.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(r.scenarios))

	for _, s := range r.scenarios {
		margins := make([]float64, 0, r.cfg.Repeats)
		passed := true

		for i := 0; i < r.cfg.Repeats; i++ {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			default:
			}

			margin, err := s.Run()
			if err != nil {
				return results, fmt.Errorf("scenario %s run %d: %w", s.Name, i, err)
			}
			margins = append(margins, margin)
			if margin <= 0 {
				passed = false
			}
		}

		results = append(results, Result{
			Name:       s.Name,
			Margins:    margins,
			MeanMargin: stat.Mean(margins, nil),
			StdDev:     stat.StdDev(margins, nil),
			Passed:     passed,
		})
	}

	return results, nil
}
