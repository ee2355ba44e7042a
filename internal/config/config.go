// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads kodikplay settings with precedence ENV > file > defaults.
package config

import (
	"time"

	"github.com/ManuGH/kodikplay/internal/extract/kodik"
	"github.com/ManuGH/kodikplay/internal/fetch"
	"github.com/ManuGH/kodikplay/internal/kv"
	"github.com/ManuGH/kodikplay/internal/telemetry"
	"golang.org/x/time/rate"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "KODIKPLAY_"

// AppConfig is the full runtime configuration.
type AppConfig struct {
	Version   string          `yaml:"-"`
	DataDir   string          `yaml:"dataDir"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Kodik     KodikConfig     `yaml:"kodik"`
	Store     StoreConfig     `yaml:"store"`
	Session   SessionConfig   `yaml:"session"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// HTTPConfig configures outbound requests to the video host.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Rate      float64       `yaml:"rate"` // requests per second per host
	Burst     int           `yaml:"burst"`
	UserAgent string        `yaml:"userAgent"`
}

// KodikConfig configures the kodik extractor.
type KodikConfig struct {
	APIPath string `yaml:"apiPath"`
}

// StoreConfig selects the kv backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig is used when Store.Backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// SessionConfig configures playback sessions.
type SessionConfig struct {
	PreferredDubbers   []string      `yaml:"preferredDubbers"`
	CheckpointInterval time.Duration `yaml:"checkpointInterval"`
	RewindOnSave       time.Duration `yaml:"rewindOnSave"`
	AutoFallback       bool          `yaml:"autoFallback"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	RateLimit  int    `yaml:"rateLimit"` // requests per minute per client IP
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: "data",
		Log:     LogConfig{Level: "info", Service: "kodikplay"},
		HTTP: HTTPConfig{
			Timeout: 10 * time.Second,
			Rate:    5,
			Burst:   10,
		},
		Kodik: KodikConfig{APIPath: kodik.DefaultAPIPath},
		Store: StoreConfig{
			Backend: kv.BackendSQLite,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "kodikplay:"},
		},
		Session: SessionConfig{
			PreferredDubbers:   []string{"Anilibria", "AniDub"},
			CheckpointInterval: 5 * time.Second,
		},
		API: APIConfig{ListenAddr: ":8088", RateLimit: 120},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1,
		},
	}
}

// FetchOptions maps HTTP settings onto fetch.Options.
func (c AppConfig) FetchOptions() fetch.Options {
	return fetch.Options{
		Timeout:   c.HTTP.Timeout,
		UserAgent: c.HTTP.UserAgent,
		RateLimit: rate.Limit(c.HTTP.Rate),
		Burst:     c.HTTP.Burst,
	}
}

// KVConfig maps store settings onto kv.Config.
func (c AppConfig) KVConfig() kv.Config {
	return kv.Config{
		Backend: c.Store.Backend,
		Dir:     c.DataDir,
		Redis: kv.RedisConfig{
			Addr:     c.Store.Redis.Addr,
			Password: c.Store.Redis.Password,
			DB:       c.Store.Redis.DB,
			Prefix:   c.Store.Redis.Prefix,
		},
	}
}

// TracingConfig maps tracing settings onto telemetry.Config.
func (c AppConfig) TracingConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.Log.Service,
		ServiceVersion: c.Version,
		ExporterType:   c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}
