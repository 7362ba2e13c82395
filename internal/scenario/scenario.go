// Package scenario loads site and wind descriptions from YAML.
package scenario

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/windlayout/internal/errors"
	"github.com/copyleftdev/windlayout/internal/optimization"
	"github.com/copyleftdev/windlayout/internal/optimization/fitness"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Objectives accepted by File.Evaluator.
const (
	// ObjectivePower maximizes expected farm power.
	ObjectivePower = "power"
	// ObjectiveCost minimizes cost per unit of expected power.
	ObjectiveCost = "cost"
)

// CostModel prices a layout for the cost objective.
type CostModel struct {
	Turbine float64 `json:"turbine" yaml:"turbine"`
	Fixed   float64 `json:"fixed" yaml:"fixed"`
}

// File is a complete scenario: where turbines may go and how the wind
// blows over them.
type File struct {
	Site layout.Scenario   `json:"site" yaml:"site"`
	Wind fitness.WindModel `json:"wind" yaml:"wind"`
	Cost CostModel         `json:"cost" yaml:"cost"`
}

// Default returns the embedded defaults.
func Default() (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(defaultsYAML, f); err != nil {
		return nil, errors.Wrap(err, "parsing embedded scenario defaults").WithComponent("scenario")
	}
	return f, nil
}

// Load reads a scenario file and merges it over the embedded defaults.
// An empty path returns the defaults.
func Load(path string) (*File, error) {
	f, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading scenario file %s", path).WithComponent("scenario")
		}
		// Only keys present in the file overwrite the defaults.
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, errors.Wrapf(err, "parsing scenario file %s", path).WithComponent("scenario")
		}
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the site, the wind model and the cost model.
func (f *File) Validate() error {
	if err := f.Site.Validate(); err != nil {
		return errors.Wrap(err, "invalid site").WithComponent("scenario")
	}
	if err := f.Wind.Validate(); err != nil {
		return errors.Wrap(err, "invalid wind model").WithComponent("scenario")
	}
	if f.Cost.Turbine < 0 || f.Cost.Fixed < 0 {
		return errors.Errorf("costs must not be negative, got turbine=%v fixed=%v", f.Cost.Turbine, f.Cost.Fixed).
			WithComponent("scenario")
	}
	return nil
}

// Evaluator builds a fresh evaluator for the objective together with the
// direction in which its fitness improves.
func (f *File) Evaluator(objective string) (fitness.Evaluator, optimization.Direction, error) {
	park, err := fitness.NewPark(f.Site.R, f.Wind)
	if err != nil {
		return nil, optimization.Maximize, err
	}

	switch strings.ToLower(objective) {
	case "", ObjectivePower:
		return park, optimization.Maximize, nil
	case ObjectiveCost:
		return &fitness.CostOfEnergy{Park: park, TurbineCost: f.Cost.Turbine, FixedCost: f.Cost.Fixed}, optimization.Minimize, nil
	default:
		return nil, optimization.Maximize, fmt.Errorf("unknown objective %q", objective)
	}
}

// WriteYAML writes the scenario to a YAML file.
func (f *File) WriteYAML(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "marshaling scenario").WithComponent("scenario")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing scenario file %s", path).WithComponent("scenario")
	}
	return nil
}
