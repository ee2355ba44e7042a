// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuGH/kodikplay/internal/kv"
)

// probeKey is read to test store reachability; it is normally absent.
const probeKey = "health:probe"

// StoreChecker reports the progress store unhealthy when a read fails.
type StoreChecker struct {
	store   kv.Store
	timeout time.Duration
}

// NewStoreChecker probes store with a bounded read.
func NewStoreChecker(store kv.Store) *StoreChecker {
	return &StoreChecker{store: store, timeout: 2 * time.Second}
}

func (c *StoreChecker) Name() string { return "store" }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.store.Get(ctx, probeKey)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// UpstreamChecker reports degraded while any upstream host breaker is open.
type UpstreamChecker struct {
	openHosts func() []string
}

// NewUpstreamChecker reads open hosts from fn, typically fetch.HTTPFetcher.OpenHosts.
func NewUpstreamChecker(fn func() []string) *UpstreamChecker {
	return &UpstreamChecker{openHosts: fn}
}

func (c *UpstreamChecker) Name() string { return "upstream" }

func (c *UpstreamChecker) Check(context.Context) CheckResult {
	open := c.openHosts()
	if len(open) == 0 {
		return CheckResult{Status: StatusHealthy}
	}
	return CheckResult{
		Status:  StatusDegraded,
		Message: "circuit open: " + strings.Join(open, ", "),
	}
}
