// Package fitness adapts turbine layouts to layout evaluators and provides
// a wake-model evaluator.
package fitness

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/windlayout/internal/optimization"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

// Evaluator scores a layout given as an n×2 matrix of turbine
// coordinates (rows are turbines, columns are x and y). Implementations
// must not retain the matrix after Evaluate returns.
type Evaluator interface {
	Evaluate(layout mat.Matrix) (float64, error)

	// Evaluations returns how many layouts have been evaluated.
	Evaluations() int
}

// Scorer assigns a fresh fitness to an individual.
type Scorer interface {
	Score(ind *layout.Individual) error
}

// Adapter converts individuals into evaluator input and stores the
// resulting fitness on them.
type Adapter struct {
	evaluator Evaluator
	pool      *MatrixPool
	logger    *zap.Logger
}

// NewAdapter wraps an evaluator. A nil logger disables logging.
func NewAdapter(evaluator Evaluator, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		evaluator: evaluator,
		pool:      NewMatrixPool(),
		logger:    logger.Named("fitness"),
	}
}

// ToMatrix copies a layout into a new n×2 matrix.
func ToMatrix(ind *layout.Individual) *mat.Dense {
	if ind.Len() == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(ind.Len(), 2, nil)
	fill(m, ind)
	return m
}

func fill(m *mat.Dense, ind *layout.Individual) {
	for i := 0; i < ind.Len(); i++ {
		c := ind.At(i)
		m.Set(i, 0, c.X)
		m.Set(i, 1, c.Y)
	}
}

// Score evaluates ind and records its fitness.
func (a *Adapter) Score(ind *layout.Individual) error {
	const op = "Adapter.Score"

	m := a.pool.GetLayout(ind.Len())
	defer a.pool.PutLayout(m)
	fill(m, ind)

	value, err := a.evaluator.Evaluate(m)
	if err != nil {
		return optimization.WrapError(err, "evaluating layout").WithOperation(op).WithComponent("fitness")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return optimization.NewErrorf("evaluator returned non-finite fitness %v for %d turbines", value, ind.Len()).
			WithOperation(op).WithComponent("fitness")
	}

	ind.SetFitness(value)
	a.logger.Debug("Scored layout",
		zap.Int("turbines", ind.Len()),
		zap.Float64("fitness", value),
	)
	return nil
}

// ScorePopulation scores every individual whose fitness is stale and
// returns how many were scored.
func (a *Adapter) ScorePopulation(pop layout.Population) (int, error) {
	n := 0
	for i, ind := range pop {
		if ind.Scored() {
			continue
		}
		if err := a.Score(ind); err != nil {
			return n, fmt.Errorf("individual %d: %w", i, err)
		}
		n++
	}
	return n, nil
}

// Evaluations returns the evaluator's evaluation count.
func (a *Adapter) Evaluations() int {
	return a.evaluator.Evaluations()
}
