package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if ROOST_CONFIG is set
//  3. env (prefix ROOST_)
func Load(ctx context.Context) (*Config, error) {
	_ = ctx

	base := New()
	k := koanf.New(".")

	if path := os.Getenv("ROOST_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: ROOST_ADDR, ROOST_DATABASE_URL, ...
	// Keys keep their underscores to match the koanf struct tags.
	envProvider := env.Provider("ROOST_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "roost_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.DatabaseURL == "":
		return fmt.Errorf("%w: database_url must not be empty", ErrInvalidConfig)
	case cfg.MaxLeaderboardLimit < cfg.DefaultLeaderboardLimit:
		return fmt.Errorf("%w: max_leaderboard_limit must cover the default limit", ErrInvalidConfig)
	case cfg.ImageRetention < 1:
		return fmt.Errorf("%w: image_retention must be at least 1", ErrInvalidConfig)
	}
	return nil
}
