// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kodik

import (
	"context"
	"errors"

	"github.com/ManuGH/kodikplay/internal/fsm"
)

// State is a resolve-run state.
type State string

const (
	StateIdle               State = "idle"
	StateFetchingPage       State = "fetching_page"
	StateCheckingPage       State = "checking_page"
	StateExtractingPayload  State = "extracting_payload"
	StateValidatingPayload  State = "validating_payload"
	StateFetchingScript     State = "fetching_script"
	StatePostingAPI         State = "posting_api"
	StateValidatingResponse State = "validating_response"
	StateMappingSources     State = "mapping_sources"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// Event drives a resolve run between states.
type Event string

const (
	EventStart            Event = "start"
	EventPageFetched      Event = "page_fetched"
	EventPageClean        Event = "page_clean"
	EventPayloadExtracted Event = "payload_extracted"
	EventEndpointMissing  Event = "endpoint_missing"
	EventEndpointCached   Event = "endpoint_cached"
	EventScriptResolved   Event = "script_resolved"
	EventAPIStale         Event = "api_stale"
	EventAPIResponded     Event = "api_responded"
	EventResponseValid    Event = "response_valid"
	EventMapped           Event = "mapped"
	EventFail             Event = "fail"
)

var errStaleRetryUsed = errors.New("stale endpoint retry already used")

type runKey struct{}

func runFromContext(ctx context.Context) *run {
	r, _ := ctx.Value(runKey{}).(*run)
	return r
}

var nonTerminal = []State{
	StateIdle, StateFetchingPage, StateCheckingPage, StateExtractingPayload, StateValidatingPayload,
	StateFetchingScript, StatePostingAPI, StateValidatingResponse, StateMappingSources,
}

func buildTable() *fsm.Table[State, Event] {
	ts := []fsm.Transition[State, Event]{
		{From: StateIdle, Event: EventStart, To: StateFetchingPage},
		{From: StateFetchingPage, Event: EventPageFetched, To: StateCheckingPage},
		{From: StateCheckingPage, Event: EventPageClean, To: StateExtractingPayload},
		{From: StateExtractingPayload, Event: EventPayloadExtracted, To: StateValidatingPayload},
		{From: StateValidatingPayload, Event: EventEndpointMissing, To: StateFetchingScript},
		{From: StateValidatingPayload, Event: EventEndpointCached, To: StatePostingAPI},
		{From: StateFetchingScript, Event: EventScriptResolved, To: StatePostingAPI},
		{
			From:  StatePostingAPI,
			Event: EventAPIStale,
			To:    StateFetchingScript,
			Guard: func(ctx context.Context, _ State, _ Event) error {
				if r := runFromContext(ctx); r != nil && r.staleRetried {
					return errStaleRetryUsed
				}
				return nil
			},
			Action: func(ctx context.Context, _, _ State, _ Event) error {
				if r := runFromContext(ctx); r != nil {
					r.staleRetried = true
				}
				return nil
			},
		},
		{From: StatePostingAPI, Event: EventAPIResponded, To: StateValidatingResponse},
		{From: StateValidatingResponse, Event: EventResponseValid, To: StateMappingSources},
		{From: StateMappingSources, Event: EventMapped, To: StateDone},
	}
	for _, s := range nonTerminal {
		ts = append(ts, fsm.Transition[State, Event]{From: s, Event: EventFail, To: StateFailed})
	}
	return fsm.MustTable(ts)
}

var pipelineTable = buildTable()
