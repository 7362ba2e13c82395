package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/windlayout/internal/logging"
	"github.com/copyleftdev/windlayout/internal/optimization/operators"
	"github.com/copyleftdev/windlayout/internal/scenario"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging   logging.Config `envPrefix:"LOG_"`
	Evolution Evolution

	// ScenarioPath is a YAML scenario merged over the embedded defaults.
	ScenarioPath string `env:"SCENARIO_PATH"`
	// StorageDir holds saved populations; empty disables persistence.
	StorageDir string `env:"STORAGE_DIR" envDefault:"data/populations"`
}

// Evolution holds the defaults of optimization runs. Requests may
// override any of them.
type Evolution struct {
	PopulationSize int    `env:"EVO_POPULATION_SIZE" envDefault:"30"`
	Generations    int    `env:"EVO_GENERATIONS" envDefault:"100"`
	Seed           int64  `env:"EVO_SEED" envDefault:"0"`
	Objective      string `env:"EVO_OBJECTIVE" envDefault:"power"`
	MaxRuns        int    `env:"EVO_MAX_RUNS" envDefault:"4"`

	Initializer       string  `env:"EVO_INITIALIZER" envDefault:"constrained"`
	Selector          string  `env:"EVO_SELECTOR" envDefault:"tournament"`
	Recombiner        string  `env:"EVO_RECOMBINER" envDefault:"geometric"`
	Replacer          string  `env:"EVO_REPLACER" envDefault:"elitist"`
	TournamentSize    int     `env:"EVO_TOURNAMENT_SIZE" envDefault:"3"`
	Elites            int     `env:"EVO_ELITES" envDefault:"2"`
	MaxAttempts       int     `env:"EVO_MAX_ATTEMPTS" envDefault:"10000"`
	MutationRate      float64 `env:"EVO_MUTATION_RATE" envDefault:"0.1"`
	MutationSigma     float64 `env:"EVO_MUTATION_SIGMA" envDefault:"0.5"`
	AddProbability    float64 `env:"EVO_ADD_PROBABILITY" envDefault:"0.1"`
	RemoveProbability float64 `env:"EVO_REMOVE_PROBABILITY" envDefault:"0.05"`
}

// Settings returns the strategy settings of the evolution defaults.
func (e Evolution) Settings() operators.Settings {
	return operators.Settings{
		Initializer:       e.Initializer,
		Selector:          e.Selector,
		Recombiner:        e.Recombiner,
		Replacer:          e.Replacer,
		TournamentSize:    e.TournamentSize,
		Elites:            e.Elites,
		MaxAttempts:       e.MaxAttempts,
		MutationRate:      e.MutationRate,
		MutationSigma:     e.MutationSigma,
		AddProbability:    e.AddProbability,
		RemoveProbability: e.RemoveProbability,
	}
}

func (e Evolution) validate() error {
	switch {
	case e.PopulationSize < 1:
		return fmt.Errorf("EVO_POPULATION_SIZE must be positive, got %d", e.PopulationSize)
	case e.Generations < 0:
		return fmt.Errorf("EVO_GENERATIONS must not be negative, got %d", e.Generations)
	case e.MaxRuns < 1:
		return fmt.Errorf("EVO_MAX_RUNS must be positive, got %d", e.MaxRuns)
	}
	switch strings.ToLower(e.Objective) {
	case scenario.ObjectivePower, scenario.ObjectiveCost:
	default:
		return fmt.Errorf("EVO_OBJECTIVE must be %q or %q, got %q", scenario.ObjectivePower, scenario.ObjectiveCost, e.Objective)
	}
	if _, err := e.Settings().Build(); err != nil {
		return fmt.Errorf("invalid evolution strategy: %w", err)
	}
	return nil
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.Evolution.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
