// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/kodikplay/internal/config"
	"github.com/ManuGH/kodikplay/internal/fetch"
	"github.com/ManuGH/kodikplay/internal/library"
	"github.com/ManuGH/kodikplay/internal/session"
)

func writeTestConfig(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "dataDir: " + filepath.Join(dir, "data") + "\n" +
		"log:\n  level: error\n" +
		"store:\n  backend: " + backend + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionSkipsConfig(t *testing.T) {
	out, err := runCLI(t, "", "version", "--config", "/does/not/exist.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "kodikplay v")
}

func TestProgressLifecycle(t *testing.T) {
	cfg := writeTestConfig(t, "sqlite")

	out, err := runCLI(t, "", "--config", cfg, "progress", "set", "title-1", "1", "0", "4", "42.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved title-1 at 1/0/4 42.5s")

	out, err = runCLI(t, "", "--config", cfg, "progress", "get", "title-1")
	require.NoError(t, err)
	var p library.Progress
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, 1, p.Provider)
	assert.Equal(t, 4, p.Episode)
	assert.InDelta(t, 42.5, p.Time, 1e-9)

	out, err = runCLI(t, "", "--config", cfg, "store", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")

	_, err = runCLI(t, "", "--config", cfg, "progress", "clear", "title-1")
	require.NoError(t, err)

	out, err = runCLI(t, "", "--config", cfg, "progress", "get", "title-1")
	require.NoError(t, err)
	assert.Contains(t, out, "No progress saved for title-1")
}

func TestProgressSetRejectsBadArguments(t *testing.T) {
	cfg := writeTestConfig(t, "memory")

	_, err := runCLI(t, "", "--config", cfg, "progress", "set", "t", "x", "0", "0", "1")
	require.ErrorContains(t, err, "invalid provider index")

	_, err = runCLI(t, "", "--config", cfg, "progress", "set", "--", "t", "0", "0", "0", "-3")
	require.ErrorContains(t, err, `invalid time "-3"`)
}

func TestParseProgressArgs(t *testing.T) {
	sel, tm, err := parseProgressArgs([]string{"1", "2", "3", "42.5"})
	require.NoError(t, err)
	assert.Equal(t, session.Selection{Provider: 1, Dubber: 2, Episode: 3}, sel)
	assert.InDelta(t, 42.5, tm, 1e-9)

	_, _, err = parseProgressArgs([]string{"0", "-1", "0", "1"})
	require.EqualError(t, err, `invalid dubber index "-1"`)

	_, _, err = parseProgressArgs([]string{"0", "0", "0", "-3"})
	require.EqualError(t, err, `invalid time "-3"`)
}

func TestStoreVerifyNeedsSQLite(t *testing.T) {
	cfg := writeTestConfig(t, "memory")
	_, err := runCLI(t, "", "--config", cfg, "store", "verify")
	require.ErrorContains(t, err, "needs the sqlite backend")
}

func TestResolveReportsUnsupportedURL(t *testing.T) {
	cfg := writeTestConfig(t, "memory")

	out, err := runCLI(t, "", "--config", cfg, "resolve", "https://example.com/watch/1")
	require.ErrorContains(t, err, "1 of 1 urls failed")

	var results []resolveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/watch/1", results[0].URL)
	assert.Empty(t, results[0].Sources)
	assert.NotEmpty(t, results[0].Error)
}

func TestOpenRejectsUnplayableRecords(t *testing.T) {
	cfg := writeTestConfig(t, "memory")
	records := `[{"iframe_url":"//example.com/video/1","number":"1","data":{"player":"Other","dubbing":"X"}}]`

	_, err := runCLI(t, records, "--config", cfg, "open", "title-1", "-")
	require.ErrorContains(t, err, "no playable records")
}

func TestLoadConfigFailure(t *testing.T) {
	_, err := runCLI(t, "", "--config", filepath.Join(t.TempDir(), "config.toml"), "progress", "get", "x")
	require.ErrorContains(t, err, "load config")
}

func TestResolveTableOutput(t *testing.T) {
	cfg := writeTestConfig(t, "memory")

	out, err := runCLI(t, "", "--config", cfg, "resolve", "-o", "table", "https://example.com/watch/1")
	require.Error(t, err)
	assert.Contains(t, strings.ToUpper(out), "QUALITY")
	assert.Contains(t, out, "https://example.com/watch/1")
	assert.Contains(t, out, "error: ")

	_, err = runCLI(t, "", "--config", cfg, "resolve", "-o", "yaml", "https://example.com/watch/1")
	require.ErrorContains(t, err, "unknown output format")
}

func TestRenderTableAlignsAndPads(t *testing.T) {
	got := renderTable([]string{"Page", "Quality", "Source"}, [][]string{{"p", "720"}}, 1)
	assert.Contains(t, got, "720")
	assert.Contains(t, strings.ToUpper(got), "SOURCE")
	assert.Empty(t, renderTable(nil, nil))
}

func TestNewRegistryRoutesKodikPages(t *testing.T) {
	cfg := config.Defaults()
	registry := newRegistry(cfg, fetch.New(cfg.FetchOptions()))
	assert.Equal(t, []string{"kodik"}, registry.Names())
	assert.True(t, registry.Supported("https://kodik.info/seria/1/abc/720p"))
	assert.False(t, registry.Supported("https://example.com/watch/1"))
}
