// Package layout holds the turbine layout genome and the geometric
// constraint engine that keeps layouts feasible.
package layout

import (
	"math"
)

// Coordinate is a turbine position inside the site.
type Coordinate struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the Euclidean distance between a and b.
func (a Coordinate) Distance(b Coordinate) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Individual is a candidate layout with its cached fitness.
//
// The layout and fitness are unexported so that every change to the
// layout goes through a method that invalidates the cached score.
// Fitness returns ok=false until the individual is scored again.
type Individual struct {
	layout  []Coordinate
	fitness float64
	scored  bool
}

// NewIndividual creates an unscored individual owning a copy of coords.
func NewIndividual(coords []Coordinate) *Individual {
	return &Individual{layout: append([]Coordinate(nil), coords...)}
}

// Len returns the number of turbines in the layout.
func (ind *Individual) Len() int {
	return len(ind.layout)
}

// At returns the i-th coordinate.
func (ind *Individual) At(i int) Coordinate {
	return ind.layout[i]
}

// Layout returns a copy of the coordinates.
func (ind *Individual) Layout() []Coordinate {
	return append([]Coordinate(nil), ind.layout...)
}

// Set replaces the i-th coordinate.
func (ind *Individual) Set(i int, c Coordinate) {
	ind.layout[i] = c
	ind.scored = false
}

// Append adds coordinates to the end of the layout.
func (ind *Individual) Append(cs ...Coordinate) {
	ind.layout = append(ind.layout, cs...)
	ind.scored = false
}

// Remove deletes the i-th coordinate, preserving order.
func (ind *Individual) Remove(i int) {
	ind.layout = append(ind.layout[:i], ind.layout[i+1:]...)
	ind.scored = false
}

// Retain keeps only the coordinates for which keep returns true.
// It reports how many coordinates were dropped.
func (ind *Individual) Retain(keep func(Coordinate) bool) int {
	kept := ind.layout[:0]
	for _, c := range ind.layout {
		if keep(c) {
			kept = append(kept, c)
		}
	}
	dropped := len(ind.layout) - len(kept)
	ind.layout = kept
	if dropped > 0 {
		ind.scored = false
	}
	return dropped
}

// Fitness returns the cached fitness and whether it is current.
func (ind *Individual) Fitness() (float64, bool) {
	return ind.fitness, ind.scored
}

// SetFitness records a freshly computed fitness for the current layout.
func (ind *Individual) SetFitness(f float64) {
	ind.fitness = f
	ind.scored = true
}

// Scored reports whether the cached fitness matches the current layout.
func (ind *Individual) Scored() bool {
	return ind.scored
}

// Clone returns a deep copy, fitness state included.
func (ind *Individual) Clone() *Individual {
	return &Individual{
		layout:  append([]Coordinate(nil), ind.layout...),
		fitness: ind.fitness,
		scored:  ind.scored,
	}
}

// Points returns the layout as [x, y] pairs.
func (ind *Individual) Points() [][2]float64 {
	pts := make([][2]float64, len(ind.layout))
	for i, c := range ind.layout {
		pts[i] = [2]float64{c.X, c.Y}
	}
	return pts
}
