// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package kv is the get/set record store behind library and session persistence.
// Values are opaque bytes; callers store JSON documents.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

var (
	// ErrNotFound is returned by Get for absent keys.
	ErrNotFound = errors.New("kv: key not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("kv: store closed")
	// ErrNotJSON is returned by stores that only accept JSON values.
	ErrNotJSON = errors.New("kv: value is not valid JSON")
)

// Store is the persistence contract. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendFile   = "file"
)

// SQLiteFile is the database file name of the sqlite backend under Config.Dir.
const SQLiteFile = "kodikplay.sqlite"

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Dir holds on-disk backends. Empty Dir with a disk backend falls back to memory.
	Dir   string
	Redis RedisConfig
}

// Open builds the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendSQLite
	}

	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		if cfg.Dir == "" {
			return NewMemoryStore(), nil
		}
		return OpenSQLiteStore(ctx, filepath.Join(cfg.Dir, SQLiteFile))
	case BackendBadger:
		if cfg.Dir == "" {
			return NewMemoryStore(), nil
		}
		return OpenBadgerStore(filepath.Join(cfg.Dir, "badger"))
	case BackendFile:
		if cfg.Dir == "" {
			return NewMemoryStore(), nil
		}
		return OpenFileStore(filepath.Join(cfg.Dir, "kodikplay.json"))
	case BackendRedis:
		return OpenRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown kv backend: %s (supported: memory, sqlite, redis, badger, file)", backend)
	}
}

// GetJSON decodes the record at key into dst. It reports false when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

const defaultOpTimeout = 3 * time.Second

// withTimeout bounds a backend call when the caller gave no deadline.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultOpTimeout)
}
