package fitness

import (
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// WindState is one sector of a discrete wind rose.
type WindState struct {
	// Angle is the direction the wind blows from, in degrees clockwise
	// from north.
	Angle float64 `json:"angle" yaml:"angle"`
	// Speed is the free-stream wind speed in m/s.
	Speed float64 `json:"speed" yaml:"speed"`
	// Probability is the share of time the state occurs.
	Probability float64 `json:"probability" yaml:"probability"`
}

// WindModel holds the turbine and wind parameters of the Park evaluator.
type WindModel struct {
	WakeDecay  float64     `json:"wake_decay" yaml:"wake_decay"`
	Thrust     float64     `json:"thrust" yaml:"thrust"`
	CutIn      float64     `json:"cut_in" yaml:"cut_in"`
	Rated      float64     `json:"rated" yaml:"rated"`
	CutOut     float64     `json:"cut_out" yaml:"cut_out"`
	RatedPower float64     `json:"rated_power" yaml:"rated_power"`
	States     []WindState `json:"states" yaml:"states"`
}

// DefaultWindModel returns an onshore model with eight equally likely
// sectors at 12 m/s.
func DefaultWindModel() WindModel {
	states := make([]WindState, 8)
	for i := range states {
		states[i] = WindState{Angle: float64(i) * 45, Speed: 12, Probability: 1.0 / 8}
	}
	return WindModel{
		WakeDecay:  0.075,
		Thrust:     0.8,
		CutIn:      3.5,
		Rated:      14,
		CutOut:     25,
		RatedPower: 1500,
		States:     states,
	}
}

// Validate checks the model parameters.
func (w WindModel) Validate() error {
	switch {
	case w.WakeDecay <= 0:
		return fmt.Errorf("wake decay must be positive, got %v", w.WakeDecay)
	case w.Thrust <= 0 || w.Thrust >= 1:
		return fmt.Errorf("thrust coefficient must be in (0,1), got %v", w.Thrust)
	case !(w.CutIn < w.Rated && w.Rated <= w.CutOut):
		return fmt.Errorf("power curve needs cut_in < rated <= cut_out, got %v/%v/%v", w.CutIn, w.Rated, w.CutOut)
	case w.RatedPower <= 0:
		return fmt.Errorf("rated power must be positive, got %v", w.RatedPower)
	case len(w.States) == 0:
		return fmt.Errorf("wind rose has no states")
	}
	probs := make([]float64, len(w.States))
	for i, s := range w.States {
		if s.Probability < 0 || s.Speed < 0 {
			return fmt.Errorf("wind state %d has negative speed or probability", i)
		}
		probs[i] = s.Probability
	}
	if sum := floats.Sum(probs); math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("wind state probabilities sum to %v, want 1", sum)
	}
	return nil
}

// Park evaluates the expected power output of a layout with the Jensen
// wake model. Larger is better. It is safe for concurrent use.
type Park struct {
	radius      float64
	model       WindModel
	evaluations atomic.Int64
}

// NewPark creates a Park evaluator for turbines of rotor radius r.
func NewPark(r float64, model WindModel) (*Park, error) {
	if r <= 0 {
		return nil, fmt.Errorf("rotor radius must be positive, got %v", r)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return &Park{radius: r, model: model}, nil
}

// Evaluate returns the expected farm power in the units of RatedPower.
func (p *Park) Evaluate(m mat.Matrix) (float64, error) {
	p.evaluations.Add(1)

	n, cols := m.Dims()
	if n == 0 {
		return 0, nil
	}
	if cols != 2 {
		return 0, fmt.Errorf("layout matrix must have 2 columns, got %d", cols)
	}

	var expected float64
	for _, s := range p.model.States {
		if s.Probability == 0 {
			continue
		}
		theta := s.Angle * math.Pi / 180
		// Unit vector pointing downwind.
		dx, dy := -math.Sin(theta), -math.Cos(theta)

		var power float64
		for i := 0; i < n; i++ {
			deficit := p.deficit(m, i, n, dx, dy)
			power += p.power(s.Speed * (1 - deficit))
		}
		expected += s.Probability * power
	}
	return expected, nil
}

// deficit combines the wakes of every turbine upstream of turbine i as
// the root sum of squares of the single-wake deficits.
func (p *Park) deficit(m mat.Matrix, i, n int, dx, dy float64) float64 {
	xi, yi := m.At(i, 0), m.At(i, 1)
	k := p.model.WakeDecay
	single := 1 - math.Sqrt(1-p.model.Thrust)

	var sumSq float64
	for j := 0; j < n; j++ {
		if j == i {
			continue
		}
		rx, ry := xi-m.At(j, 0), yi-m.At(j, 1)
		along := rx*dx + ry*dy
		if along <= 0 {
			continue
		}
		across := math.Abs(rx*dy - ry*dx)
		if across > p.radius+k*along {
			continue
		}
		d := single / math.Pow(1+k*along/p.radius, 2)
		sumSq += d * d
	}
	return math.Min(math.Sqrt(sumSq), 1)
}

// power evaluates the turbine power curve at wind speed v.
func (p *Park) power(v float64) float64 {
	w := p.model
	switch {
	case v < w.CutIn || v >= w.CutOut:
		return 0
	case v >= w.Rated:
		return w.RatedPower
	default:
		cin3 := w.CutIn * w.CutIn * w.CutIn
		return w.RatedPower * (v*v*v - cin3) / (w.Rated*w.Rated*w.Rated - cin3)
	}
}

// Evaluations returns the number of layouts evaluated.
func (p *Park) Evaluations() int {
	return int(p.evaluations.Load())
}

// CostOfEnergy scores layouts by cost per unit of expected power.
// Smaller is better.
type CostOfEnergy struct {
	Park *Park
	// TurbineCost is the cost of a single turbine.
	TurbineCost float64
	// FixedCost is the cost of the site regardless of turbine count.
	FixedCost float64
}

// minEnergy keeps the ratio finite for layouts that produce nothing.
const minEnergy = 1e-6

// Evaluate returns total cost divided by expected power.
func (c *CostOfEnergy) Evaluate(m mat.Matrix) (float64, error) {
	energy, err := c.Park.Evaluate(m)
	if err != nil {
		return 0, err
	}
	n, _ := m.Dims()
	cost := c.FixedCost + c.TurbineCost*float64(n)
	return cost / math.Max(energy, minEnergy), nil
}

// Evaluations returns the number of layouts evaluated.
func (c *CostOfEnergy) Evaluations() int {
	return c.Park.Evaluations()
}
