// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"ctrl+.":            "Ctrl+Period",
		"Shift + ,":         "Shift+Comma",
		"alt+ctrl+a":        "Ctrl+Alt+KeyA",
		"cmd+shift+1":       "Shift+Meta+Digit1",
		"esc":               "Escape",
		"Control+Option+up": "Ctrl+Alt+ArrowUp",
		"KeyQ":              "KeyQ",
		"ctrl+a+b":          "Ctrl+KeyB",
		"F5":                "F5",
		"ctrl+":             "",
		"":                  "",
		"shift":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalizeEvent(t *testing.T) {
	assert.Equal(t, "Ctrl+Period", NormalizeEvent(Event{Code: "Period", Key: ".", Ctrl: true}))
	assert.Equal(t, "Shift+Alt+KeyX", NormalizeEvent(Event{Key: "x", Shift: true, Alt: true}))
	assert.Equal(t, "Comma", NormalizeEvent(Event{Key: ","}))
	assert.Empty(t, NormalizeEvent(Event{Ctrl: true}))
}

type fakeSource struct {
	attached int
	detached int
	dispatch func(Event)
}

func (f *fakeSource) Attach(d func(Event)) { f.attached++; f.dispatch = d }
func (f *fakeSource) Detach()              { f.detached++; f.dispatch = nil }

func TestStackShadowing(t *testing.T) {
	st := NewStack(nil)
	var calls []string

	st.Subscribe("Ctrl+Period", func(Event) { calls = append(calls, "A") })
	unsubB := st.Subscribe("ctrl+.", func(Event) { calls = append(calls, "B") })

	ev := Event{Code: "Period", Ctrl: true}
	require.True(t, st.Dispatch(ev))
	assert.Equal(t, []string{"B"}, calls)

	unsubB()
	require.True(t, st.Dispatch(ev))
	assert.Equal(t, []string{"B", "A"}, calls)

	unsubB()
	assert.Equal(t, 1, st.Depth("Ctrl+Period"))
}

func TestStackRemovesSpecificHandler(t *testing.T) {
	st := NewStack(nil)
	var calls []string

	unsubA := st.Subscribe("Period", func(Event) { calls = append(calls, "A") })
	st.Subscribe("Period", func(Event) { calls = append(calls, "B") })

	unsubA()
	st.Dispatch(Event{Code: "Period"})
	assert.Equal(t, []string{"B"}, calls)
}

func TestStackInvalidChordIsNoop(t *testing.T) {
	src := &fakeSource{}
	st := NewStack(src)

	unsub := st.Subscribe("ctrl+", func(Event) { t.Fatal("must not run") })
	unsub()
	assert.Zero(t, src.attached)
	assert.False(t, st.Dispatch(Event{Ctrl: true}))
}

func TestStackSourceLifecycle(t *testing.T) {
	src := &fakeSource{}
	st := NewStack(src)
	var got []string

	unsub := st.SubscribeMany([]string{"Period", "Comma"}, func(ev Event) { got = append(got, ev.Code) })
	assert.Equal(t, 1, src.attached)
	assert.True(t, st.Listening())

	src.dispatch(Event{Code: "Comma"})
	src.dispatch(Event{Code: "KeyZ"})
	assert.Equal(t, []string{"Comma"}, got)

	unsub()
	assert.Equal(t, 1, src.detached)
	assert.False(t, st.Listening())
	assert.False(t, st.Dispatch(Event{Code: "Period"}))

	st.Subscribe("Period", func(Event) {})
	assert.Equal(t, 2, src.attached)
}

func TestStackHandlerMayUnsubscribeItself(t *testing.T) {
	st := NewStack(nil)
	var unsub func()
	runs := 0
	unsub = st.Subscribe("Escape", func(Event) {
		runs++
		unsub()
	})

	assert.True(t, st.Dispatch(Event{Key: "Escape"}))
	assert.False(t, st.Dispatch(Event{Key: "Escape"}))
	assert.Equal(t, 1, runs)
}
