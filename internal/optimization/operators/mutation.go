package operators

import (
	"math/rand"

	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

// Displacement moves each turbine with probability Rate by a gaussian
// step of Sigma minimum distances, clamped to the site.
type Displacement struct {
	Rate  float64
	Sigma float64
}

// Mutate implements Mutator.
func (m *Displacement) Mutate(ind *layout.Individual, s *layout.Scenario, rng *rand.Rand) {
	step := m.Sigma * s.MinDistance()
	for i := 0; i < ind.Len(); i++ {
		if rng.Float64() >= m.Rate {
			continue
		}
		c := ind.At(i)
		c.X += rng.NormFloat64() * step
		c.Y += rng.NormFloat64() * step
		ind.Set(i, s.Clamp(c))
	}
}

// AddRemove changes the turbine count: with AddProbability it places a
// new non-colliding turbine if the layout is below MaxTurbines, otherwise
// with RemoveProbability it drops a random turbine.
type AddRemove struct {
	AddProbability    float64
	RemoveProbability float64
	// MaxAttempts bounds the draws for a non-colliding position.
	MaxAttempts int
}

// Mutate implements Mutator.
func (m *AddRemove) Mutate(ind *layout.Individual, s *layout.Scenario, rng *rand.Rand) {
	attempts := m.MaxAttempts
	if attempts <= 0 {
		attempts = layout.DefaultMaxAttempts
	}

	r := rng.Float64()
	switch {
	case r < m.AddProbability:
		if ind.Len() >= s.MaxTurbines {
			return
		}
		coords := ind.Layout()
		if grown := Sample(s, coords, len(coords)+1, attempts, rng); len(grown) > len(coords) {
			ind.Append(grown[len(grown)-1])
		}
	case r < m.AddProbability+m.RemoveProbability:
		if ind.Len() > 0 {
			ind.Remove(rng.Intn(ind.Len()))
		}
	}
}

// Chain applies mutators in order.
type Chain []Mutator

// Mutate implements Mutator.
func (c Chain) Mutate(ind *layout.Individual, s *layout.Scenario, rng *rand.Rand) {
	for _, m := range c {
		m.Mutate(ind, s, rng)
	}
}
