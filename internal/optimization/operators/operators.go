// Package operators provides the interchangeable strategies of the
// evolutionary layout search: initialization, selection, recombination,
// mutation and replacement.
//
// Every strategy draws randomness only from the *rand.Rand it is given,
// so a run seeded once replays identically.
package operators

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/copyleftdev/windlayout/internal/optimization"
	"github.com/copyleftdev/windlayout/internal/optimization/fitness"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

// Initializer creates a scored starting population.
//
// A non-nil error satisfying optimization.IsInfeasibleScenario is a
// warning: the returned population is usable but some layouts are
// infeasible or short.
type Initializer interface {
	Initialize(ctx context.Context, scorer fitness.Scorer, s *layout.Scenario, size int, rng *rand.Rand) (layout.Population, error)
}

// Selector picks parents and returns their indices into pop. Indices stay
// valid only until pop is replaced.
type Selector interface {
	Select(pop layout.Population, d optimization.Direction, rng *rand.Rand) ([]int, error)
}

// Recombiner produces children from parents. Children are unscored.
type Recombiner interface {
	Recombine(parents layout.Population, s *layout.Scenario, rng *rand.Rand) layout.Population
}

// Mutator changes an individual in place.
type Mutator interface {
	Mutate(ind *layout.Individual, s *layout.Scenario, rng *rand.Rand)
}

// Replacer builds the next population from the current one and the
// scored children. The result may differ in size from old.
type Replacer interface {
	Replace(old, children layout.Population, d optimization.Direction) (layout.Population, error)
}

// Strategy names accepted by Settings.
const (
	InitRandomRepair = "random-repair"
	InitConstrained  = "constrained"

	SelectTournament = "tournament"
	SelectRoulette   = "roulette"

	RecombineNone         = "none"
	RecombineCutpoint     = "cutpoint"
	RecombineCutpointGrow = "cutpoint-grow"
	RecombineGeometric    = "geometric"

	ReplaceGenerational = "generational"
	ReplaceElitist      = "elitist"
	ReplaceMerge        = "merge"
)

// Settings names a strategy per step plus their parameters.
type Settings struct {
	Initializer string `json:"initializer"`
	Selector    string `json:"selector"`
	Recombiner  string `json:"recombiner"`
	Replacer    string `json:"replacer"`

	TournamentSize    int     `json:"tournament_size"`
	Elites            int     `json:"elites"`
	MaxAttempts       int     `json:"max_attempts"`
	MutationRate      float64 `json:"mutation_rate"`
	MutationSigma     float64 `json:"mutation_sigma"`
	AddProbability    float64 `json:"add_probability"`
	RemoveProbability float64 `json:"remove_probability"`
}

// DefaultSettings returns the strategies used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Initializer:       InitConstrained,
		Selector:          SelectTournament,
		Recombiner:        RecombineGeometric,
		Replacer:          ReplaceElitist,
		TournamentSize:    3,
		Elites:            2,
		MaxAttempts:       layout.DefaultMaxAttempts,
		MutationRate:      0.1,
		MutationSigma:     0.5,
		AddProbability:    0.1,
		RemoveProbability: 0.05,
	}
}

// Strategies bundles one implementation per step.
type Strategies struct {
	Initializer Initializer
	Selector    Selector
	Recombiner  Recombiner
	Mutator     Mutator
	Replacer    Replacer
}

// Build resolves the named strategies.
func (s Settings) Build() (Strategies, error) {
	var out Strategies

	switch s.Initializer {
	case InitRandomRepair:
		out.Initializer = &RandomRepair{Repair: layout.RepairOptions{MaxAttempts: s.MaxAttempts}}
	case InitConstrained:
		out.Initializer = &Constrained{MaxAttempts: s.MaxAttempts}
	default:
		return out, fmt.Errorf("unknown initializer %q", s.Initializer)
	}

	switch s.Selector {
	case SelectTournament:
		out.Selector = &Tournament{Size: s.TournamentSize}
	case SelectRoulette:
		out.Selector = &Roulette{}
	default:
		return out, fmt.Errorf("unknown selector %q", s.Selector)
	}

	switch s.Recombiner {
	case RecombineNone:
		out.Recombiner = None{}
	case RecombineCutpoint:
		out.Recombiner = &SingleCutpoint{}
	case RecombineCutpointGrow:
		out.Recombiner = &SingleCutpoint{Grow: true}
	case RecombineGeometric:
		out.Recombiner = &GeometricSorted{MaxAttempts: s.MaxAttempts}
	default:
		return out, fmt.Errorf("unknown recombiner %q", s.Recombiner)
	}

	switch s.Replacer {
	case ReplaceGenerational:
		out.Replacer = Generational{}
	case ReplaceElitist:
		out.Replacer = &Elitist{Elites: s.Elites}
	case ReplaceMerge:
		out.Replacer = Merge{}
	default:
		return out, fmt.Errorf("unknown replacer %q", s.Replacer)
	}

	out.Mutator = Chain{
		&Displacement{Rate: s.MutationRate, Sigma: s.MutationSigma},
		&AddRemove{AddProbability: s.AddProbability, RemoveProbability: s.RemoveProbability, MaxAttempts: s.MaxAttempts},
	}
	return out, nil
}
