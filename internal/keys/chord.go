// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package keys

import (
	"sort"
	"strings"
)

// Modifier tokens in canonical order.
var modOrder = map[string]int{"Ctrl": 0, "Shift": 1, "Alt": 2, "Meta": 3}

var modAliases = map[string]string{
	"ctrl":    "Ctrl",
	"control": "Ctrl",
	"ctl":     "Ctrl",
	"shift":   "Shift",
	"alt":     "Alt",
	"option":  "Alt",
	"meta":    "Meta",
	"cmd":     "Meta",
	"command": "Meta",
	"win":     "Meta",
}

var keyAliases = map[string]string{
	"esc":       "Escape",
	"escape":    "Escape",
	"space":     "Space",
	"spacebar":  "Space",
	"enter":     "Enter",
	"return":    "Enter",
	"tab":       "Tab",
	"backspace": "Backspace",
	"del":       "Delete",
	"delete":    "Delete",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	".":         "Period",
	",":         "Comma",
	"[":         "BracketLeft",
	"]":         "BracketRight",
	"/":         "Slash",
	"\\":        "Backslash",
	"'":         "Quote",
	";":         "Semicolon",
	"`":         "Backquote",
	"-":         "Minus",
	"=":         "Equal",
}

// normalizeKey maps one key token to its physical key code name.
func normalizeKey(input string) string {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return ""
	}
	if alias, ok := keyAliases[strings.ToLower(raw)]; ok {
		return alias
	}
	if strings.HasPrefix(raw, "Key") || strings.HasPrefix(raw, "Digit") || strings.HasPrefix(raw, "Arrow") {
		return raw
	}
	if len(raw) == 1 {
		c := strings.ToUpper(raw)[0]
		switch {
		case c >= 'A' && c <= 'Z':
			return "Key" + string(c)
		case c >= '0' && c <= '9':
			return "Digit" + string(c)
		}
	}
	return raw
}

// Normalize canonicalizes a human-written chord such as "ctrl+." into "Ctrl+Period".
// It returns "" when the chord names no key.
func Normalize(combo string) string {
	mods := map[string]struct{}{}
	key := ""
	for _, part := range strings.Split(combo, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if mod, ok := modAliases[strings.ToLower(part)]; ok {
			mods[mod] = struct{}{}
			continue
		}
		key = normalizeKey(part)
	}
	if key == "" {
		return ""
	}

	ordered := make([]string, 0, len(mods))
	for m := range mods {
		ordered = append(ordered, m)
	}
	sort.Slice(ordered, func(i, j int) bool { return modOrder[ordered[i]] < modOrder[ordered[j]] })
	return join(ordered, key)
}

// Event is one physical key press.
type Event struct {
	// Code is the physical key name ("KeyA", "Period"); Key is the produced character.
	Code  string
	Key   string
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// NormalizeEvent maps a key press into chord space.
func NormalizeEvent(ev Event) string {
	var mods []string
	if ev.Ctrl {
		mods = append(mods, "Ctrl")
	}
	if ev.Shift {
		mods = append(mods, "Shift")
	}
	if ev.Alt {
		mods = append(mods, "Alt")
	}
	if ev.Meta {
		mods = append(mods, "Meta")
	}
	src := ev.Code
	if src == "" {
		src = ev.Key
	}
	key := normalizeKey(src)
	if key == "" {
		return ""
	}
	return join(mods, key)
}

func join(mods []string, key string) string {
	if len(mods) == 0 {
		return key
	}
	return strings.Join(mods, "+") + "+" + key
}
