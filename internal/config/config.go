// Package config provides runtime configuration values for the simulator.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
)

// Config holds configuration knobs for logging, settlement workers and the station.
type Config struct {
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// InitialWorkerCount of zero means start with WorkerMin workers.
	InitialWorkerCount      int           `env:"WORKER_COUNT"`
	WorkerMin               int           `env:"WORKER_MIN" envDefault:"3"`
	WorkerMax               int           `env:"WORKER_MAX" envDefault:"8"`
	ScaleInterval           time.Duration `env:"SCALE_INTERVAL" envDefault:"500ms"`
	ScaleUpBacklogPerWorker int           `env:"SCALE_UP_BACKLOG_PER_WORKER" envDefault:"100"`
	ScaleDownIdleTicks      int           `env:"SCALE_DOWN_IDLE_TICKS" envDefault:"6"`
	QueueHighWatermark      int           `env:"QUEUE_HIGH_WATERMARK" envDefault:"5000"`

	Station Station
}

// Station holds the simulated station's stock, prices and pacing.
type Station struct {
	DieselStock  float64 `env:"DIESEL_STOCK" envDefault:"200.5"`
	RegularStock float64 `env:"REGULAR_STOCK" envDefault:"500"`
	SuperStock   float64 `env:"SUPER_STOCK" envDefault:"80.3"`

	DieselPrice    float64 `env:"DIESEL_PRICE" envDefault:"1.2"`
	RegularPrice   float64 `env:"REGULAR_PRICE" envDefault:"1.4"`
	SuperPrice     float64 `env:"SUPER_PRICE" envDefault:"1.7"`
	PriceDeviation float64 `env:"PRICE_DEVIATION" envDefault:"0.5"`

	AmountMin float64 `env:"AMOUNT_MIN" envDefault:"10"`
	AmountMax float64 `env:"AMOUNT_MAX" envDefault:"50"`

	ArrivalMin     time.Duration `env:"ARRIVAL_MIN" envDefault:"3s"`
	ArrivalMax     time.Duration `env:"ARRIVAL_MAX" envDefault:"7s"`
	PriceUpdateMin time.Duration `env:"PRICE_UPDATE_MIN" envDefault:"10s"`
	PriceUpdateMax time.Duration `env:"PRICE_UPDATE_MAX" envDefault:"20s"`
	StartupDelay   time.Duration `env:"STARTUP_DELAY" envDefault:"1s"`
}

// Stock returns the configured initial stock for g.
func (s Station) Stock(g model.FuelGrade) float64 {
	switch g {
	case model.Diesel:
		return s.DieselStock
	case model.Regular:
		return s.RegularStock
	case model.Super:
		return s.SuperStock
	}
	return 0
}

// AveragePrice returns the configured average unit price for g.
func (s Station) AveragePrice(g model.FuelGrade) float64 {
	switch g {
	case model.Diesel:
		return s.DieselPrice
	case model.Regular:
		return s.RegularPrice
	case model.Super:
		return s.SuperPrice
	}
	return 0
}

// minPrice is the lowest price the updater may generate once floored to cents.
const minPrice = 0.01

var dotenvOnce sync.Once

// Load collects configuration from the environment, and an optional .env
// file, with defaults. The result is validated.
func Load() (Config, error) {
	dotenvOnce.Do(func() {
		// a missing .env file is fine
		_ = godotenv.Load()
	})
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if c.InitialWorkerCount == 0 {
		c.InitialWorkerCount = c.WorkerMin
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every inconsistent knob at once.
func (c Config) Validate() error {
	var errs []error
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be > 0"))
	}
	if c.WorkerMin < 1 {
		errs = append(errs, errors.New("WORKER_MIN must be >= 1"))
	}
	if c.WorkerMax < c.WorkerMin {
		errs = append(errs, errors.New("WORKER_MAX must be >= WORKER_MIN"))
	}
	if c.InitialWorkerCount < c.WorkerMin || c.InitialWorkerCount > c.WorkerMax {
		errs = append(errs, errors.New("WORKER_COUNT must be within [WORKER_MIN, WORKER_MAX]"))
	}
	if c.ScaleInterval <= 0 {
		errs = append(errs, errors.New("SCALE_INTERVAL must be > 0"))
	}
	s := c.Station
	for _, g := range model.Grades() {
		if s.Stock(g) < 0 {
			errs = append(errs, fmt.Errorf("%s_STOCK must be >= 0", g))
		}
		if s.AveragePrice(g)-s.PriceDeviation < minPrice {
			errs = append(errs, fmt.Errorf("%s_PRICE must exceed PRICE_DEVIATION by at least %.2f", g, minPrice))
		}
	}
	if s.PriceDeviation < 0 {
		errs = append(errs, errors.New("PRICE_DEVIATION must be >= 0"))
	}
	if s.AmountMin <= 0 || s.AmountMax < s.AmountMin {
		errs = append(errs, errors.New("AMOUNT_MIN must be > 0 and <= AMOUNT_MAX"))
	}
	if s.ArrivalMin <= 0 || s.ArrivalMax < s.ArrivalMin {
		errs = append(errs, errors.New("ARRIVAL_MIN must be > 0 and <= ARRIVAL_MAX"))
	}
	if s.PriceUpdateMin <= 0 || s.PriceUpdateMax < s.PriceUpdateMin {
		errs = append(errs, errors.New("PRICE_UPDATE_MIN must be > 0 and <= PRICE_UPDATE_MAX"))
	}
	if s.StartupDelay < 0 {
		errs = append(errs, errors.New("STARTUP_DELAY must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
