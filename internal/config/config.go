// Package config reads process settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const DefaultDotenv = ".env"

// Config holds settings shared by every command. Flags override them.
type Config struct {
	// StoreKind is empty when the build default should be used.
	StoreKind   string `env:"SHADOWBUILDER_STORE"`
	DBPath      string `env:"SHADOWBUILDER_DB_PATH" envDefault:"shadowbuilder.db"`
	RunsDir     string `env:"SHADOWBUILDER_RUNS_DIR" envDefault:"runs"`
	ExportsDir  string `env:"SHADOWBUILDER_EXPORTS_DIR" envDefault:"exports"`
	CatalogPath string `env:"SHADOWBUILDER_CATALOG" envDefault:"cards.json"`
	LogLevel    string `env:"SHADOWBUILDER_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"SHADOWBUILDER_LOG_FORMAT" envDefault:"text"`
}

// Load reads dotenvPath when it exists, then parses the environment. Values
// already in the environment win over the file.
func Load(dotenvPath string) (Config, error) {
	if dotenvPath == "" {
		dotenvPath = DefaultDotenv
	}
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotenvPath, err)
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
