package intent

import (
	"encoding/json"
	"slices"
	"strings"
)

// Set is an ordered, deduplicated collection of intents. The zero value is
// empty; Classify never returns an empty Set.
type Set struct {
	items []Intent
}

// NewSet builds a Set in canonical order. Unknown tags are dropped. GENERAL is
// kept only when no other tag is present.
func NewSet(intents ...Intent) Set {
	var items []Intent
	for _, candidate := range order {
		if candidate == General {
			continue
		}
		if slices.Contains(intents, candidate) {
			items = append(items, candidate)
		}
	}
	if len(items) == 0 && slices.Contains(intents, General) {
		items = []Intent{General}
	}
	return Set{items: items}
}

// Has reports whether i is in the set.
func (s Set) Has(i Intent) bool {
	return slices.Contains(s.items, i)
}

// Any reports whether any of the given intents is in the set.
func (s Set) Any(intents ...Intent) bool {
	for _, i := range intents {
		if s.Has(i) {
			return true
		}
	}
	return false
}

func (s Set) Len() int { return len(s.items) }

// Items returns a copy of the intents in canonical order.
func (s Set) Items() []Intent {
	return slices.Clone(s.items)
}

// Strings returns the tag names in canonical order.
func (s Set) Strings() []string {
	out := make([]string, len(s.items))
	for i, it := range s.items {
		out[i] = string(it)
	}
	return out
}

// Key is a stable identifier for cache keys, e.g. "BALANCE+CASHBACK".
func (s Set) Key() string {
	return strings.Join(s.Strings(), "+")
}

func (s Set) String() string { return s.Key() }

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *Set) UnmarshalJSON(b []byte) error {
	var raw []string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	intents := make([]Intent, len(raw))
	for i, r := range raw {
		intents[i] = Intent(r)
	}
	*s = NewSet(intents...)
	return nil
}
