// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads sagactl's engine tunables, remote endpoints,
// and datastore DSN via viper, merging over coded-in defaults with
// mergo the way the teacher's app.ConfigProvider loads a single
// process-wide *Config.
package config

import (
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration for the sagactl engine.
type Config struct {
	// Datastore is the DSN for the Postgres-backed datastore. Empty
	// means use the in-memory reference implementation.
	DatastoreDSN string `mapstructure:"datastore_dsn"`

	// RedisAddr, if set, backs the service-directory endpoint cache.
	RedisAddr string `mapstructure:"redis_addr"`

	// StorageAgentBaseURL, PantryBaseURL, SledAgentBaseURL are the base
	// URLs remote clients issue requests against when the service
	// directory resolver isn't wired to a real directory.
	StorageAgentBaseURL string `mapstructure:"storage_agent_base_url"`
	PantryBaseURL       string `mapstructure:"pantry_base_url"`
	SledAgentBaseURL    string `mapstructure:"sled_agent_base_url"`

	// SagaDeadline bounds how long the retry policy will keep retrying
	// a transient external-call failure before giving up on the saga.
	SagaDeadline time.Duration `mapstructure:"saga_deadline"`

	// ActionLogDir is where the file-backed Action Log persists records.
	ActionLogDir string `mapstructure:"action_log_dir"`

	// TokenSecret signs and verifies capability tokens minted for sagas.
	TokenSecret string `mapstructure:"token_secret"`

	// MetricsAddr, if non-empty, serves Prometheus metrics.
	MetricsAddr string `mapstructure:"metrics_addr"`

	LogFormat string `mapstructure:"log_format"`
	LogDebug  bool   `mapstructure:"log_debug"`
}

// Default returns the baseline configuration sagactl ships with.
func Default() Config {
	return Config{
		SagaDeadline: 30 * time.Minute,
		ActionLogDir: "./sagalog",
		TokenSecret:  "",
		LogFormat:    "text",
	}
}

// Load reads configuration from the given file path (if non-empty),
// environment variables prefixed SAGACTL_, and merges the result over
// Default() so a partial file is always safe to ship.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SAGACTL")
	v.AutomaticEnv()
	for _, key := range []string{
		"datastore_dsn", "redis_addr", "storage_agent_base_url", "pantry_base_url",
		"sled_agent_base_url", "saga_deadline", "action_log_dir", "token_secret",
		"metrics_addr", "log_format", "log_debug",
	} {
		_ = v.BindEnv(key)
	}

	cfg := Default()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := mergo.Merge(&cfg, loaded, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("merge config: %w", err)
	}

	return cfg, nil
}
