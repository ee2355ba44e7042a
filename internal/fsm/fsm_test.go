// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string
type event string

func TestMachine_FiresKnownTransitionsAndNotifies(t *testing.T) {
	var seen []string
	table := MustTable([]Transition[state, event]{
		{From: "idle", Event: "start", To: "running"},
		{From: "running", Event: "stop", To: "idle"},
	})
	m := FromTable[state, event]("idle", table, func(from, to state, ev event) {
		seen = append(seen, string(from)+">"+string(to))
	})

	to, err := m.Fire(context.Background(), "start")
	require.NoError(t, err)
	assert.Equal(t, state("running"), to)

	_, err = m.Fire(context.Background(), "stop")
	require.NoError(t, err)
	assert.Equal(t, []string{"idle>running", "running>idle"}, seen)
}

func TestMachine_RejectsUnknownTransition(t *testing.T) {
	table, err := NewTable([]Transition[state, event]{
		{From: "idle", Event: "start", To: "running"},
	})
	require.NoError(t, err)
	m := FromTable[state, event]("idle", table)

	cur, err := m.Fire(context.Background(), "stop")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, state("idle"), cur)
}

func TestMachine_GuardBlocksTransition(t *testing.T) {
	blocked := errors.New("blocked")
	m := FromTable[state, event]("idle", MustTable([]Transition[state, event]{
		{From: "idle", Event: "start", To: "running", Guard: func(context.Context, state, event) error { return blocked }},
	}))

	_, err := m.Fire(context.Background(), "start")
	require.ErrorIs(t, err, blocked)
	assert.Equal(t, state("idle"), m.State())
}

func TestNewTable_RejectsDuplicates(t *testing.T) {
	_, err := NewTable([]Transition[state, event]{
		{From: "idle", Event: "start", To: "a"},
		{From: "idle", Event: "start", To: "b"},
	})
	require.Error(t, err)
}
