// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/kodikplay/internal/kv"
	"github.com/ManuGH/kodikplay/internal/validate"
)

var (
	logLevels = []string{"trace", "debug", "info", "warn", "error"}
	backends  = []string{kv.BackendMemory, kv.BackendSQLite, kv.BackendRedis, kv.BackendBadger, kv.BackendFile}
	exporters = []string{"grpc", "http"}
)

// Validate checks a fully merged configuration.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("log.level", cfg.Log.Level, logLevels)
	v.NotEmpty("log.service", cfg.Log.Service)
	v.Directory("dataDir", cfg.DataDir)

	v.PositiveDuration("http.timeout", cfg.HTTP.Timeout)
	if cfg.HTTP.Rate <= 0 {
		v.AddError("http.rate", "value must be positive", cfg.HTTP.Rate)
	}
	v.Positive("http.burst", cfg.HTTP.Burst)

	v.URLPath("kodik.apiPath", cfg.Kodik.APIPath)

	v.OneOf("store.backend", cfg.Store.Backend, backends)
	if cfg.Store.Backend == kv.BackendRedis {
		v.HostPort("store.redis.addr", cfg.Store.Redis.Addr)
		v.Range("store.redis.db", cfg.Store.Redis.DB, 0, 15)
	}

	v.PositiveDuration("session.checkpointInterval", cfg.Session.CheckpointInterval)
	if cfg.Session.RewindOnSave < 0 {
		v.AddError("session.rewindOnSave", "duration cannot be negative", cfg.Session.RewindOnSave)
	}

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.Positive("api.rateLimit", cfg.API.RateLimit)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, exporters)
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)

	return v.Err()
}
