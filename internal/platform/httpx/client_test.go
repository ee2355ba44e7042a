// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(0)
	assert.Equal(t, defaultClientTimeout, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok, "transport type = %T", client.Transport)
	assert.Equal(t, defaultMaxIdleConns, transport.MaxIdleConns)
	assert.Equal(t, defaultMaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
	assert.Equal(t, defaultIdleConnTimeout, transport.IdleConnTimeout)
	assert.True(t, transport.ForceAttemptHTTP2)
}

func TestNewClientCapsDialTimeouts(t *testing.T) {
	client := NewClient(30 * time.Second)
	transport := client.Transport.(*http.Transport)
	assert.Equal(t, defaultDialTimeout, transport.TLSHandshakeTimeout)
	assert.Equal(t, defaultResponseHeaderTimeout, transport.ResponseHeaderTimeout)

	short := NewClient(time.Second).Transport.(*http.Transport)
	assert.Equal(t, time.Second, short.TLSHandshakeTimeout)
	assert.Equal(t, time.Second, short.ResponseHeaderTimeout)
}

func TestNewClientTracedWrapsTransport(t *testing.T) {
	client := NewClientWithOptions(time.Second, Options{Traced: true})
	_, plain := client.Transport.(*http.Transport)
	assert.False(t, plain)
}

func TestNewClientHTTP1Only(t *testing.T) {
	client := NewClientWithOptions(time.Second, Options{DisableHTTP2: true})
	transport := client.Transport.(*http.Transport)
	assert.False(t, transport.ForceAttemptHTTP2)
}
