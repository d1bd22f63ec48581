// Package config loads harvester settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	env "github.com/netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/repoharvest/ghfetch/pkg/query"
)

// Config is the full environment of the harvester binary.
type Config struct {
	// Token authenticates against the GraphQL API.
	Token string `env:"GITHUB_TOKEN,required=true"`

	// Endpoint overrides the API URL, mainly for tests.
	Endpoint string `env:"GITHUB_GRAPHQL_URL"`

	UserAgent string `env:"USER_AGENT,default=ghfetch"`

	// PageSize is records per page, clamped to the API maximum.
	PageSize int `env:"PAGE_SIZE,default=40"`

	// FetchLimit bounds records per query string. 0 means unbounded.
	FetchLimit int `env:"FETCH_LIMIT,default=0"`

	// DBPath is the SQLite database file.
	DBPath string `env:"DB_PATH,default=ghfetch.db"`

	// RedisAddr enables the shared quota store when set.
	RedisAddr string `env:"REDIS_ADDR"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogPretty bool   `env:"LOG_PRETTY,default=false"`
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PageSize < 1 || c.PageSize > query.MaxPageSize {
		return fmt.Errorf("PAGE_SIZE must be between 1 and %d, got %d", query.MaxPageSize, c.PageSize)
	}
	if c.FetchLimit < 0 {
		return fmt.Errorf("FETCH_LIMIT must not be negative, got %d", c.FetchLimit)
	}
	return nil
}
