package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/muir/ndep/nsql"
)

type config struct {
	Listen   string        `yaml:"listen"`
	Database nsql.Settings `yaml:"database"`
	// Cleanup is the cron spec for removing expired notes
	Cleanup string `yaml:"cleanup"`
	// Retention is how long notes are kept
	Retention string `yaml:"retention"`
	Debug     bool   `yaml:"debug"`
}

func defaultConfig() config {
	return config{
		Listen:    ":8080",
		Database:  nsql.DefaultSettings(),
		Cleanup:   "@every 1m",
		Retention: "24h",
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return config{}, errors.Wrap(err, "read config")
	}
	// database settings are all or nothing: no mixing with the defaults
	cfg.Database = nsql.Settings{}
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return config{}, errors.Wrapf(err, "parse %s", path)
	}
	if cfg.Database == (nsql.Settings{}) {
		cfg.Database = nsql.DefaultSettings()
	}
	cfg.Database = cfg.Database.WithDefaults()
	if err := cfg.Database.Validate(); err != nil {
		return config{}, errors.Wrapf(err, "%s: database", path)
	}
	return cfg, nil
}
