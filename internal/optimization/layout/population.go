package layout

import (
	"sort"

	"github.com/copyleftdev/windlayout/internal/optimization"
)

// Population is the working set of individuals.
type Population []*Individual

// Clone deep-copies every individual.
func (p Population) Clone() Population {
	out := make(Population, len(p))
	for i, ind := range p {
		out[i] = ind.Clone()
	}
	return out
}

// Stale returns the indices of individuals whose fitness is not current.
func (p Population) Stale() []int {
	var idx []int
	for i, ind := range p {
		if !ind.Scored() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Fitnesses returns the fitness of every individual in order.
func (p Population) Fitnesses() ([]float64, error) {
	out := make([]float64, len(p))
	for i, ind := range p {
		f, ok := ind.Fitness()
		if !ok {
			return nil, optimization.WrapErrorf(optimization.ErrStaleFitness, "individual %d", i).
				WithOperation("Population.Fitnesses")
		}
		out[i] = f
	}
	return out, nil
}

// BestIndex returns the index of the best individual under d.
// Ties keep the earliest individual.
func (p Population) BestIndex(d optimization.Direction) (int, error) {
	const op = "Population.BestIndex"
	if len(p) == 0 {
		return -1, optimization.EmptyPopulationError(op)
	}
	best := -1
	var bestFitness float64
	for i, ind := range p {
		f, ok := ind.Fitness()
		if !ok {
			return -1, optimization.WrapErrorf(optimization.ErrStaleFitness, "individual %d", i).
				WithOperation(op)
		}
		if best < 0 || d.Better(f, bestFitness) {
			best, bestFitness = i, f
		}
	}
	return best, nil
}

// Best returns the best individual under d. An empty population yields an
// error wrapping optimization.ErrEmptyPopulation.
func Best(p Population, d optimization.Direction) (*Individual, error) {
	i, err := p.BestIndex(d)
	if err != nil {
		return nil, err
	}
	return p[i], nil
}

// SortByFitness orders the population best first under d. All
// individuals must be scored.
func SortByFitness(p Population, d optimization.Direction) error {
	if _, err := p.Fitnesses(); err != nil {
		return err
	}
	sort.SliceStable(p, func(a, b int) bool {
		return d.Better(p[a].fitness, p[b].fitness)
	})
	return nil
}
