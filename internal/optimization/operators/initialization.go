package operators

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/copyleftdev/windlayout/internal/optimization"
	"github.com/copyleftdev/windlayout/internal/optimization/fitness"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

// RandomRepair fills every layout with MaxTurbines uniform coordinates,
// repairs the whole population, then scores it.
type RandomRepair struct {
	Repair layout.RepairOptions
}

// Initialize implements Initializer.
func (r *RandomRepair) Initialize(ctx context.Context, scorer fitness.Scorer, s *layout.Scenario, size int, rng *rand.Rand) (layout.Population, error) {
	pop := make(layout.Population, 0, max(size, 0))
	for i := 0; i < size; i++ {
		coords := make([]layout.Coordinate, s.MaxTurbines)
		for j := range coords {
			coords[j] = s.RandomCoordinate(rng)
		}
		pop = append(pop, layout.NewIndividual(coords))
	}

	var warning error
	if _, err := layout.Repair(ctx, pop, s, rng, r.Repair); err != nil {
		if !optimization.IsInfeasibleScenario(err) {
			return nil, err
		}
		warning = err
	}

	for i, ind := range pop {
		if err := scorer.Score(ind); err != nil {
			return nil, fmt.Errorf("scoring individual %d: %w", i, err)
		}
	}
	return pop, warning
}

// Constrained builds each layout directly by rejection sampling: a
// target turbine count is drawn from [ceil(0.75·MaxTurbines), MaxTurbines]
// and random coordinates are accepted only when they collide with nothing
// placed so far.
type Constrained struct {
	// MaxAttempts is the number of consecutive rejections after which a
	// layout is kept short. Zero means layout.DefaultMaxAttempts.
	MaxAttempts int
}

// Initialize implements Initializer.
func (c *Constrained) Initialize(ctx context.Context, scorer fitness.Scorer, s *layout.Scenario, size int, rng *rand.Rand) (layout.Population, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = layout.DefaultMaxAttempts
	}

	pop := make(layout.Population, 0, max(size, 0))
	short := &optimization.InfeasibleScenarioWarning{Op: "constrained initialization", Attempts: attempts}

	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target := TargetCount(s.MaxTurbines, rng)
		coords := Sample(s, nil, target, attempts, rng)
		if missing := target - len(coords); missing > 0 {
			short.Individuals++
			short.Coordinates += missing
		}

		ind := layout.NewIndividual(coords)
		if err := scorer.Score(ind); err != nil {
			return nil, fmt.Errorf("scoring individual %d: %w", i, err)
		}
		pop = append(pop, ind)
	}

	if short.Individuals > 0 {
		return pop, short
	}
	return pop, nil
}

// TargetCount draws a turbine count uniformly from
// [ceil(0.75·maxTurbines), maxTurbines].
func TargetCount(maxTurbines int, rng *rand.Rand) int {
	if maxTurbines <= 0 {
		return 0
	}
	lo := int(math.Ceil(0.75 * float64(maxTurbines)))
	return lo + rng.Intn(maxTurbines-lo+1)
}

// Sample extends coords with random non-colliding coordinates until it
// holds target coordinates or attempts consecutive draws were rejected.
func Sample(s *layout.Scenario, coords []layout.Coordinate, target, attempts int, rng *rand.Rand) []layout.Coordinate {
	misses := 0
	for len(coords) < target && misses < attempts {
		c := s.RandomCoordinate(rng)
		if layout.Collides(c.X, c.Y, coords, s) {
			misses++
			continue
		}
		coords = append(coords, c)
		misses = 0
	}
	return coords
}
