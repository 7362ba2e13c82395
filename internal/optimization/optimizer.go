package optimization

// Optimizer is the monitoring contract of a running layout search.
// Implementations are polled from other goroutines while they run.
type Optimizer interface {
	// GetBestSolution returns the best solution found so far, or nil
	// before the initial population has been scored.
	GetBestSolution() *Solution

	// GetHistory returns per-generation statistics recorded so far.
	GetHistory() []GenerationStats

	// Stop gracefully stops the optimization process
	Stop()
}

// Direction fixes which way fitness values improve for a run.
type Direction int

const (
	// Maximize treats larger fitness values as better (e.g. farm power).
	Maximize Direction = iota
	// Minimize treats smaller fitness values as better (e.g. cost of energy).
	Minimize
)

// String returns the canonical name of the direction.
func (d Direction) String() string {
	if d == Minimize {
		return "minimize"
	}
	return "maximize"
}

// Better reports whether a is strictly better than b.
func (d Direction) Better(a, b float64) bool {
	if d == Minimize {
		return a < b
	}
	return a > b
}

// Improvement returns how much final improves on initial; positive means
// better regardless of direction.
func (d Direction) Improvement(initial, final float64) float64 {
	if d == Minimize {
		return initial - final
	}
	return final - initial
}

// Solution is a detached copy of a layout and its fitness.
type Solution struct {
	Layout [][2]float64 `json:"layout"`
	Value  float64      `json:"value"`
}

// Turbines returns the number of turbines in the solution.
func (s *Solution) Turbines() int {
	if s == nil {
		return 0
	}
	return len(s.Layout)
}

// GenerationStats summarizes one generation of a run.
type GenerationStats struct {
	Generation     int     `json:"generation"`
	PopulationSize int     `json:"population_size"`
	Best           float64 `json:"best"`
	BestEver       float64 `json:"best_ever"`
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"std_dev"`
	MeanTurbines   float64 `json:"mean_turbines"`
	Evaluations    int     `json:"evaluations"`
	Redraws        int     `json:"redraws"`
	Unresolved     int     `json:"unresolved"`
}
