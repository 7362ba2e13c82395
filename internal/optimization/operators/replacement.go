package operators

import (
	"github.com/copyleftdev/windlayout/internal/optimization"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

// Generational replaces the whole population with the children. With no
// children the old population survives.
type Generational struct{}

// Replace implements Replacer.
func (Generational) Replace(old, children layout.Population, _ optimization.Direction) (layout.Population, error) {
	if len(children) == 0 {
		return old, nil
	}
	return children, nil
}

// Elitist keeps the best Elites of the old population and fills the rest
// of len(old) with the best children, topping up from the old population
// when there are too few children.
type Elitist struct {
	Elites int
}

// Replace implements Replacer.
func (e *Elitist) Replace(old, children layout.Population, d optimization.Direction) (layout.Population, error) {
	size := len(old)
	if size == 0 {
		return children, nil
	}

	rankedOld := append(layout.Population(nil), old...)
	if err := layout.SortByFitness(rankedOld, d); err != nil {
		return nil, err
	}
	rankedChildren := append(layout.Population(nil), children...)
	if err := layout.SortByFitness(rankedChildren, d); err != nil {
		return nil, err
	}

	elites := min(max(e.Elites, 0), size)
	next := make(layout.Population, 0, size)
	next = append(next, rankedOld[:elites]...)

	fromChildren := min(size-elites, len(rankedChildren))
	next = append(next, rankedChildren[:fromChildren]...)

	if missing := size - len(next); missing > 0 {
		next = append(next, rankedOld[elites:elites+missing]...)
	}
	return next, nil
}

// Merge pools the old population and the children and keeps the best
// len(old) of them.
type Merge struct{}

// Replace implements Replacer.
func (Merge) Replace(old, children layout.Population, d optimization.Direction) (layout.Population, error) {
	size := len(old)
	if size == 0 {
		size = len(children)
	}

	pool := make(layout.Population, 0, len(old)+len(children))
	pool = append(pool, old...)
	pool = append(pool, children...)
	if err := layout.SortByFitness(pool, d); err != nil {
		return nil, err
	}
	return pool[:min(size, len(pool))], nil
}
