package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port int `env:"PORT" envDefault:"8080"`
	// PublicURL is what join QR codes point at; usually the frontend
	// origin, not this server.
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	Dev       bool   `env:"DEV" envDefault:"false"`
}

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
