package operators

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/windlayout/internal/optimization"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

// Tournament repeatedly samples Size individuals and keeps the best.
type Tournament struct {
	// Size is the number of contestants per tournament (default 2).
	Size int
	// Count is the number of parents to select (default len(pop)).
	Count int
}

// Select implements Selector.
func (t *Tournament) Select(pop layout.Population, d optimization.Direction, rng *rand.Rand) ([]int, error) {
	scores, err := selectable(pop, "Tournament.Select")
	if err != nil {
		return nil, err
	}

	size := t.Size
	if size < 1 {
		size = 2
	}
	count := t.Count
	if count <= 0 {
		count = len(pop)
	}

	selected := make([]int, count)
	for i := range selected {
		winner := rng.Intn(len(pop))
		for j := 1; j < size; j++ {
			if c := rng.Intn(len(pop)); d.Better(scores[c], scores[winner]) {
				winner = c
			}
		}
		selected[i] = winner
	}
	return selected, nil
}

// Roulette selects individuals with probability proportional to how much
// better they are than the worst member of the population.
type Roulette struct {
	// Count is the number of parents to select (default len(pop)).
	Count int
}

// Select implements Selector.
func (r *Roulette) Select(pop layout.Population, d optimization.Direction, rng *rand.Rand) ([]int, error) {
	scores, err := selectable(pop, "Roulette.Select")
	if err != nil {
		return nil, err
	}

	count := r.Count
	if count <= 0 {
		count = len(pop)
	}

	lo, hi := floats.Min(scores), floats.Max(scores)
	weights := make([]float64, len(scores))
	for i, f := range scores {
		if d == optimization.Minimize {
			weights[i] = hi - f
		} else {
			weights[i] = f - lo
		}
	}
	// A flat population gets a uniform wheel; the floor also gives the
	// worst member a non-zero chance.
	floor := (hi - lo) / float64(len(scores))
	if floor == 0 {
		floor = 1
	}
	floats.AddConst(floor, weights)

	cumulative := make([]float64, len(weights))
	floats.CumSum(cumulative, weights)
	total := cumulative[len(cumulative)-1]

	selected := make([]int, count)
	for i := range selected {
		spin := rng.Float64() * total
		idx := sort.SearchFloat64s(cumulative, spin)
		selected[i] = min(idx, len(pop)-1)
	}
	return selected, nil
}

func selectable(pop layout.Population, op string) ([]float64, error) {
	if len(pop) == 0 {
		return nil, optimization.EmptyPopulationError(op)
	}
	return pop.Fitnesses()
}

// Resolve maps selected indices back to individuals.
func Resolve(pop layout.Population, indices []int) layout.Population {
	out := make(layout.Population, len(indices))
	for i, idx := range indices {
		out[i] = pop[idx]
	}
	return out
}
