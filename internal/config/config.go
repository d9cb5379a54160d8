package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseHost     string        `env:"DATABASE_HOST" envDefault:"localhost"`
	DatabasePort     string        `env:"DATABASE_PORT" envDefault:"5432"`
	DatabaseUser     string        `env:"DATABASE_USER" envDefault:"postgres"`
	DatabasePassword string        `env:"DATABASE_PASSWORD" envDefault:"password"`
	DatabaseName     string        `env:"DATABASE_NAME" envDefault:"shop"`
	DatabaseSSLMode  string        `env:"DATABASE_SSLMODE" envDefault:"disable"`
	ServerPort       string        `env:"SERVER_PORT" envDefault:"8080"`
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"secret"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
