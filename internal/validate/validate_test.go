// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorAccumulates(t *testing.T) {
	v := New()
	v.Range("rate", 0, 1, 10)
	v.OneOf("backend", "etcd", []string{"memory", "sqlite"})
	v.PositiveDuration("interval", 0)
	v.FloatRange("sampling", 1.5, 0, 1)
	require.False(t, v.IsValid())

	err := v.Err()
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Errors(), 4)
	assert.Equal(t, "rate", verr.Errors()[0].Field)
	assert.Contains(t, err.Error(), `value must be one of [memory sqlite], got "etcd"`)
}

func TestValidatorValid(t *testing.T) {
	v := New()
	v.Range("rate", 5, 1, 10)
	v.Positive("burst", 1)
	v.NonNegative("db", 0)
	v.NotEmpty("service", "kodikplay")
	v.URLPath("api", "/ftor")
	v.ListenAddr("listen", ":8080")
	v.HostPort("redis", "localhost:6379")
	assert.True(t, v.IsValid())
	assert.NoError(t, v.Err())
}

func TestValidatorAddresses(t *testing.T) {
	tests := []struct {
		name  string
		check func(v *Validator)
	}{
		{"relative api path", func(v *Validator) { v.URLPath("api", "ftor") }},
		{"api path with query", func(v *Validator) { v.URLPath("api", "/ftor?x=1") }},
		{"listen without port", func(v *Validator) { v.ListenAddr("listen", "localhost") }},
		{"listen bad port", func(v *Validator) { v.ListenAddr("listen", ":http") }},
		{"redis without host", func(v *Validator) { v.HostPort("redis", ":6379") }},
		{"blank", func(v *Validator) { v.NotEmpty("service", "  ") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			tt.check(v)
			assert.False(t, v.IsValid())
		})
	}
}

func TestValidatorDirectory(t *testing.T) {
	root := t.TempDir()

	v := New()
	v.Directory("dataDir", filepath.Join(root, "nested", "data"))
	require.True(t, v.IsValid(), "%v", v.Err())
	info, err := os.Stat(filepath.Join(root, "nested", "data"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	v = New()
	v.Directory("dataDir", file)
	v.Directory("dataDir", "../escape")
	v.Directory("dataDir", "")
	assert.Len(t, v.Errors(), 3)
}

func TestPositiveDuration(t *testing.T) {
	v := New()
	v.PositiveDuration("timeout", time.Second)
	assert.True(t, v.IsValid())
}
