// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvLogLevel           = EnvPrefix + "LOG_LEVEL"
	EnvLogService         = EnvPrefix + "LOG_SERVICE"
	EnvDataDir            = EnvPrefix + "DATA_DIR"
	EnvHTTPTimeout        = EnvPrefix + "HTTP_TIMEOUT"
	EnvHTTPRate           = EnvPrefix + "HTTP_RATE"
	EnvHTTPBurst          = EnvPrefix + "HTTP_BURST"
	EnvUserAgent          = EnvPrefix + "USER_AGENT"
	EnvKodikAPIPath       = EnvPrefix + "KODIK_API_PATH"
	EnvStoreBackend       = EnvPrefix + "STORE_BACKEND"
	EnvRedisAddr          = EnvPrefix + "REDIS_ADDR"
	EnvRedisPassword      = EnvPrefix + "REDIS_PASSWORD"
	EnvRedisDB            = EnvPrefix + "REDIS_DB"
	EnvRedisPrefix        = EnvPrefix + "REDIS_PREFIX"
	EnvPreferredDubbers   = EnvPrefix + "PREFERRED_DUBBERS"
	EnvCheckpointInterval = EnvPrefix + "CHECKPOINT_INTERVAL"
	EnvRewindOnSave       = EnvPrefix + "REWIND_ON_SAVE"
	EnvAutoFallback       = EnvPrefix + "AUTO_FALLBACK"
	EnvListenAddr         = EnvPrefix + "LISTEN_ADDR"
	EnvRateLimit          = EnvPrefix + "RATE_LIMIT"
	EnvTelemetryEnabled   = EnvPrefix + "TELEMETRY_ENABLED"
	EnvTelemetryExporter  = EnvPrefix + "TELEMETRY_EXPORTER"
	EnvTelemetryEndpoint  = EnvPrefix + "TELEMETRY_ENDPOINT"
	EnvTelemetrySampling  = EnvPrefix + "TELEMETRY_SAMPLING"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path is the config file path, empty when running from ENV only.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then validates it.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg. Unknown fields are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.Log.Level = l.envString(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Service = l.envString(EnvLogService, cfg.Log.Service)
	cfg.DataDir = l.envString(EnvDataDir, cfg.DataDir)

	cfg.HTTP.Timeout = l.envDuration(EnvHTTPTimeout, cfg.HTTP.Timeout)
	cfg.HTTP.Rate = l.envFloat(EnvHTTPRate, cfg.HTTP.Rate)
	cfg.HTTP.Burst = l.envInt(EnvHTTPBurst, cfg.HTTP.Burst)
	cfg.HTTP.UserAgent = l.envString(EnvUserAgent, cfg.HTTP.UserAgent)

	cfg.Kodik.APIPath = l.envString(EnvKodikAPIPath, cfg.Kodik.APIPath)

	cfg.Store.Backend = l.envString(EnvStoreBackend, cfg.Store.Backend)
	cfg.Store.Redis.Addr = l.envString(EnvRedisAddr, cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = l.envString(EnvRedisPassword, cfg.Store.Redis.Password)
	cfg.Store.Redis.DB = l.envInt(EnvRedisDB, cfg.Store.Redis.DB)
	cfg.Store.Redis.Prefix = l.envString(EnvRedisPrefix, cfg.Store.Redis.Prefix)

	cfg.Session.PreferredDubbers = l.envList(EnvPreferredDubbers, cfg.Session.PreferredDubbers)
	cfg.Session.CheckpointInterval = l.envDuration(EnvCheckpointInterval, cfg.Session.CheckpointInterval)
	cfg.Session.RewindOnSave = l.envDuration(EnvRewindOnSave, cfg.Session.RewindOnSave)
	cfg.Session.AutoFallback = l.envBool(EnvAutoFallback, cfg.Session.AutoFallback)

	cfg.API.ListenAddr = l.envString(EnvListenAddr, cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt(EnvRateLimit, cfg.API.RateLimit)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvTelemetryExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvTelemetryEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTelemetrySampling, cfg.Telemetry.SamplingRate)
}
