package layout

import (
	"context"
	"math/rand"

	"github.com/copyleftdev/windlayout/internal/optimization"
)

// DefaultMaxAttempts caps the redraws spent on a single coordinate.
const DefaultMaxAttempts = 10000

// RepairOptions tunes Repair.
type RepairOptions struct {
	// MaxAttempts is the number of redraws allowed per coordinate before it
	// is left unresolved. Zero means DefaultMaxAttempts.
	MaxAttempts int
}

func (o RepairOptions) attempts() int {
	if o.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return o.MaxAttempts
}

// RepairReport summarizes a Repair pass.
type RepairReport struct {
	// Redraws is the number of coordinates replaced by a random point.
	Redraws int
	// Unresolved is the number of coordinates still violating a constraint
	// when their attempt budget ran out.
	Unresolved int
	// Individuals is the number of individuals with unresolved coordinates.
	Individuals int
}

// Add accumulates another report into r.
func (r *RepairReport) Add(o RepairReport) {
	r.Redraws += o.Redraws
	r.Unresolved += o.Unresolved
	r.Individuals += o.Individuals
}

// Collides reports whether a turbine at (x, y) would stand on an obstacle
// or too close to a turbine already in coords.
func Collides(x, y float64, coords []Coordinate, s *Scenario) bool {
	if s.OnObstacle(x, y) {
		return true
	}
	p := Coordinate{X: x, Y: y}
	safe := s.SafeDistance()
	for _, c := range coords {
		if p.Distance(c) <= safe {
			return true
		}
	}
	return false
}

// Repair moves violating coordinates of every individual to new random
// positions until each layout is feasible.
//
// Each coordinate j is checked against the site bounds and obstacles and
// compared against every other coordinate of its layout; on a violation j
// is redrawn and the comparison restarts from the
// first coordinate. A coordinate whose budget of redraws is spent is left
// where it is and counted as unresolved, in which case the returned error
// is an *optimization.InfeasibleScenarioWarning and the report is still
// valid. Cancellation of ctx stops the pass and returns ctx.Err().
func Repair(ctx context.Context, pop Population, s *Scenario, rng *rand.Rand, opts RepairOptions) (RepairReport, error) {
	var report RepairReport
	maxAttempts := opts.attempts()

	for _, ind := range pop {
		r, err := repairIndividual(ctx, ind, s, rng, maxAttempts)
		report.Add(r)
		if err != nil {
			return report, err
		}
	}

	if report.Unresolved > 0 {
		return report, &optimization.InfeasibleScenarioWarning{
			Op:          "repair",
			Individuals: report.Individuals,
			Coordinates: report.Unresolved,
			Attempts:    maxAttempts,
		}
	}
	return report, nil
}

func repairIndividual(ctx context.Context, ind *Individual, s *Scenario, rng *rand.Rand, maxAttempts int) (RepairReport, error) {
	var report RepairReport
	coords := ind.layout
	safe := s.SafeDistance()
	n := len(coords)

	for j := 0; j < n; j++ {
		attempts := 0
		for k := 0; k < n; {
			violated := (k == 0 && (!s.InBounds(coords[j]) || s.OnObstacle(coords[j].X, coords[j].Y))) ||
				(k != j && coords[j].Distance(coords[k]) <= safe)
			if !violated {
				k++
				continue
			}
			if attempts >= maxAttempts {
				report.Unresolved++
				break
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}
			coords[j] = s.RandomCoordinate(rng)
			ind.scored = false
			attempts++
			report.Redraws++
			k = 0
		}
	}

	if report.Unresolved > 0 {
		report.Individuals = 1
	}
	return report, nil
}

// RemoveIllegalCoordinates drops coordinates standing on an obstacle.
// It never adds replacements, so the layout may shrink. It returns the
// number of coordinates removed.
func RemoveIllegalCoordinates(ind *Individual, s *Scenario) int {
	if len(s.Obstacles) == 0 {
		return 0
	}
	return ind.Retain(func(c Coordinate) bool {
		return !s.OnObstacle(c.X, c.Y)
	})
}

// Feasible reports whether ind satisfies every layout constraint: size,
// bounds, obstacles and pairwise separation.
func Feasible(ind *Individual, s *Scenario) bool {
	if ind.Len() > s.MaxTurbines {
		return false
	}
	safe := s.SafeDistance()
	for i, c := range ind.layout {
		if !s.InBounds(c) || s.OnObstacle(c.X, c.Y) {
			return false
		}
		for _, d := range ind.layout[i+1:] {
			if c.Distance(d) <= safe {
				return false
			}
		}
	}
	return true
}
