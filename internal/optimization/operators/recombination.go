package operators

import (
	"math/rand"
	"sort"

	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

// None copies every parent unchanged. It serves as a control operator.
type None struct{}

// Recombine implements Recombiner.
func (None) Recombine(parents layout.Population, _ *layout.Scenario, _ *rand.Rand) layout.Population {
	children := make(layout.Population, len(parents))
	for i, p := range parents {
		children[i] = layout.NewIndividual(p.Layout())
	}
	return children
}

// SingleCutpoint crosses each parent with its cyclic successor at a random
// cut. The child takes a[:cut] followed by b[cut:minLen].
type SingleCutpoint struct {
	// Grow extends the child toward the longer parent: a target size is
	// drawn from [minLen, maxLen] and the longer parent's coordinates at
	// positions minLen.. fill the gap.
	Grow bool
}

// Recombine implements Recombiner.
func (sc *SingleCutpoint) Recombine(parents layout.Population, _ *layout.Scenario, rng *rand.Rand) layout.Population {
	children := make(layout.Population, 0, len(parents))
	for i, a := range parents {
		b := parents[(i+1)%len(parents)]
		children = append(children, layout.NewIndividual(sc.cross(a.Layout(), b.Layout(), rng)))
	}
	return children
}

func (sc *SingleCutpoint) cross(a, b []layout.Coordinate, rng *rand.Rand) []layout.Coordinate {
	minLen, maxLen := len(a), len(b)
	longer := b
	if minLen > maxLen {
		minLen, maxLen = maxLen, minLen
		longer = a
	}

	cutoff := rng.Intn(minLen + 1)
	child := make([]layout.Coordinate, 0, maxLen)
	child = append(child, a[:cutoff]...)
	child = append(child, b[cutoff:minLen]...)

	if sc.Grow {
		target := minLen + rng.Intn(maxLen-minLen+1)
		child = append(child, longer[minLen:target]...)
	}
	return child
}

// GeometricSorted is a feasibility-aware crossover. Both parents are
// sorted by (y, x) so that the cut splits the site spatially. The child
// takes the shorter parent up to the cut, then those coordinates of the
// longer parent past the cut that collide with nothing already taken,
// then fresh random non-colliding coordinates until it reaches a target
// size drawn from [minLen, MaxTurbines].
type GeometricSorted struct {
	// MaxAttempts is the number of consecutive rejected random draws after
	// which the child is left short. Zero means layout.DefaultMaxAttempts.
	MaxAttempts int
}

// Recombine implements Recombiner.
func (g *GeometricSorted) Recombine(parents layout.Population, s *layout.Scenario, rng *rand.Rand) layout.Population {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = layout.DefaultMaxAttempts
	}

	children := make(layout.Population, 0, len(parents))
	for i, a := range parents {
		b := parents[(i+1)%len(parents)]
		shorter, longer := SortedLayout(a), SortedLayout(b)
		if len(longer) < len(shorter) {
			shorter, longer = longer, shorter
		}

		lo := min(len(shorter), s.MaxTurbines)
		cutoff := rng.Intn(lo + 1)
		over := lo + rng.Intn(s.MaxTurbines-lo+1)

		coords := crossSorted(shorter, longer, cutoff, over, s, attempts, rng)
		children = append(children, layout.NewIndividual(coords))
	}
	return children
}

// crossSorted assembles a child of at most over coordinates from two
// sorted layouts.
func crossSorted(shorter, longer []layout.Coordinate, cutoff, over int, s *layout.Scenario, attempts int, rng *rand.Rand) []layout.Coordinate {
	child := make([]layout.Coordinate, 0, over)
	child = append(child, shorter[:cutoff]...)

	for _, c := range longer[min(cutoff, len(longer)):] {
		if len(child) >= over {
			break
		}
		if !layout.Collides(c.X, c.Y, child, s) {
			child = append(child, c)
		}
	}

	return Sample(s, child, over, attempts, rng)
}

// SortedLayout returns a copy of the layout ordered by y, then x.
func SortedLayout(ind *layout.Individual) []layout.Coordinate {
	coords := ind.Layout()
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Y != coords[j].Y {
			return coords[i].Y < coords[j].Y
		}
		return coords[i].X < coords[j].X
	})
	return coords
}
