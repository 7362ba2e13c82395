package layout

import (
	"fmt"
	"math/rand"
)

const (
	// SpacingFactor multiplies R to give the minimum turbine separation.
	SpacingFactor = 8.0
	// SpacingEpsilon pads the separation so that points exactly at 8R are
	// treated as violations.
	SpacingEpsilon = 1.0001
)

// Obstacle is an axis-aligned rectangle turbines may not stand on.
type Obstacle struct {
	XMin float64 `json:"xmin" yaml:"xmin"`
	YMin float64 `json:"ymin" yaml:"ymin"`
	XMax float64 `json:"xmax" yaml:"xmax"`
	YMax float64 `json:"ymax" yaml:"ymax"`
}

// Contains reports whether (x, y) lies on the obstacle, borders included.
func (o Obstacle) Contains(x, y float64) bool {
	return x >= o.XMin && x <= o.XMax && y >= o.YMin && y <= o.YMax
}

// Scenario describes the site. It is read-only for the whole run.
type Scenario struct {
	Width       float64    `json:"width" yaml:"width"`
	Height      float64    `json:"height" yaml:"height"`
	R           float64    `json:"r" yaml:"r"`
	MaxTurbines int        `json:"max_turbines" yaml:"max_turbines"`
	Obstacles   []Obstacle `json:"obstacles,omitempty" yaml:"obstacles"`
}

// Validate checks that the scenario describes a usable site.
func (s *Scenario) Validate() error {
	switch {
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("site dimensions must be positive, got %vx%v", s.Width, s.Height)
	case s.R <= 0:
		return fmt.Errorf("rotor radius must be positive, got %v", s.R)
	case s.MaxTurbines < 0:
		return fmt.Errorf("max turbines must not be negative, got %d", s.MaxTurbines)
	}
	for i, o := range s.Obstacles {
		if o.XMin > o.XMax || o.YMin > o.YMax {
			return fmt.Errorf("obstacle %d has inverted bounds", i)
		}
	}
	return nil
}

// MinDistance is the required separation between two turbines.
func (s *Scenario) MinDistance() float64 {
	return SpacingFactor * s.R
}

// SafeDistance is MinDistance padded by SpacingEpsilon; pairs closer than
// or exactly at this distance violate the spacing constraint.
func (s *Scenario) SafeDistance() float64 {
	return s.MinDistance() * SpacingEpsilon
}

// InBounds reports whether c lies inside the site rectangle.
func (s *Scenario) InBounds(c Coordinate) bool {
	return c.X >= 0 && c.X <= s.Width && c.Y >= 0 && c.Y <= s.Height
}

// OnObstacle reports whether (x, y) lies on any obstacle.
func (s *Scenario) OnObstacle(x, y float64) bool {
	for _, o := range s.Obstacles {
		if o.Contains(x, y) {
			return true
		}
	}
	return false
}

// RandomCoordinate draws a coordinate uniformly inside the site.
func (s *Scenario) RandomCoordinate(rng *rand.Rand) Coordinate {
	return Coordinate{
		X: s.Width * rng.Float64(),
		Y: s.Height * rng.Float64(),
	}
}

// Clamp moves c onto the nearest point inside the site.
func (s *Scenario) Clamp(c Coordinate) Coordinate {
	return Coordinate{
		X: min(max(c.X, 0), s.Width),
		Y: min(max(c.Y, 0), s.Height),
	}
}
