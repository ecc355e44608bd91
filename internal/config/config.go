// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	Addr   string `env:"ADDR" envDefault:":8080"`
	DBPath string `env:"DB_PATH" envDefault:"gamehost.db"`

	PokeAfter    time.Duration `env:"POKE_AFTER" envDefault:"1m"`
	ForfeitAfter time.Duration `env:"FORFEIT_AFTER" envDefault:"5m"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	Retention     time.Duration `env:"RETENTION" envDefault:"168h"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// Load reads the environment. A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()
	return env.ParseAs[Config]()
}
