// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kv

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendCase struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backendCase {
	return []backendCase{
		{"memory", func(t *testing.T) Store { return NewMemoryStore() }},
		{"sqlite", func(t *testing.T) Store {
			s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "kv.sqlite"))
			require.NoError(t, err)
			return s
		}},
		{"redis", func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			return NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "kodikplay:")
		}},
		{"badger", func(t *testing.T) Store {
			s, err := OpenInMemoryBadgerStore()
			require.NoError(t, err)
			return s
		}},
		{"file", func(t *testing.T) Store {
			s, err := OpenFileStore(filepath.Join(t.TempDir(), "kv.json"))
			require.NoError(t, err)
			return s
		}},
	}
}

func TestStoreContract(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			ctx := context.Background()
			s := bc.open(t)
			defer func() { _ = s.Close() }()

			_, err := s.Get(ctx, "anime_progress")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "anime_progress", []byte(`{"a":1}`)))
			got, err := s.Get(ctx, "anime_progress")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":1}`, string(got))

			// last write wins
			require.NoError(t, s.Set(ctx, "anime_progress", []byte(`{"a":2}`)))
			got, err = s.Get(ctx, "anime_progress")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(got))

			require.NoError(t, s.Delete(ctx, "anime_progress"))
			_, err = s.Get(ctx, "anime_progress")
			require.ErrorIs(t, err, ErrNotFound)

			// deleting an absent key is not an error
			require.NoError(t, s.Delete(ctx, "missing"))
		})
	}
}

func TestStoreConcurrentWrites(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			ctx := context.Background()
			s := bc.open(t)
			defer func() { _ = s.Close() }()

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, s.Set(ctx, "favourites_list", []byte(`[]`)))
				}()
			}
			wg.Wait()

			got, err := s.Get(ctx, "favourites_list")
			require.NoError(t, err)
			assert.JSONEq(t, `[]`, string(got))
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var dst map[string]int
	found, err := GetJSON(ctx, s, "anime_status", &dst)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, s, "anime_status", map[string]int{"42": 1}))
	found, err = GetJSON(ctx, s, "anime_status", &dst)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]int{"42": 1}, dst)

	require.NoError(t, s.Set(ctx, "broken", []byte("{")))
	_, err = GetJSON(ctx, s, "broken", &dst)
	assert.Error(t, err)
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Set(context.Background(), "k", nil), ErrClosed)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.json")

	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "player_settings", []byte(`{"speed":1.5}`)))
	require.NoError(t, s.Close())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := reopened.Get(ctx, "player_settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"speed":1.5}`, string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreSingleHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")

	first, err := OpenFileStore(path)
	require.NoError(t, err)

	_, err = OpenFileStore(path)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close(), "close is idempotent")

	second, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestFileStoreRejectsNonJSON(t *testing.T) {
	s, err := OpenFileStore(filepath.Join(t.TempDir(), "kv.json"))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Set(context.Background(), "k", []byte("plain")), ErrNotJSON)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.sqlite")

	s, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "animeHistory", []byte(`[3,2,1]`)))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	got, err := reopened.Get(ctx, "animeHistory")
	require.NoError(t, err)
	assert.Equal(t, `[3,2,1]`, string(got))
}

func TestRedisStorePrefixesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "kodikplay:")
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Set(context.Background(), "anime_status", []byte(`{}`)))
	v, err := mr.Get("kodikplay:anime_status")
	require.NoError(t, err)
	assert.Equal(t, `{}`, v)
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Backend: BackendSQLite})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s, "sqlite without a dir falls back to memory")

	dir := t.TempDir()
	s, err = Open(ctx, Config{Backend: BackendFile, Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Config{Backend: BackendRedis, Redis: RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Backend: "etcd"})
	require.EqualError(t, err, "unknown kv backend: etcd (supported: memory, sqlite, redis, badger, file)")
}
