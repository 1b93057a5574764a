package config

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyPath addresses one value in the YAML config, e.g. "cache.redis.addr".
type KeyPath []string

// ParseKeyPath splits a dotted key. Empty keys and empty segments are rejected.
func ParseKeyPath(raw string) (KeyPath, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config key " + raw + " has an empty segment"}
		}
	}
	return KeyPath(parts), nil
}

func (k KeyPath) String() string { return strings.Join(k, ".") }

// Get returns the value at k in a raw config map.
func (k KeyPath) Get(root map[string]any) (any, bool) {
	var cur any = root
	for _, key := range k {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores v at k, replacing any non-map value standing in the way.
func (k KeyPath) Set(root map[string]any, v any) {
	m := root
	for _, key := range k[:len(k)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	m[k[len(k)-1]] = v
}

// Unset removes the value at k and reports whether it was present. Maps
// left empty by the removal are pruned.
func (k KeyPath) Unset(root map[string]any) bool {
	if len(k) == 1 {
		if _, ok := root[k[0]]; !ok {
			return false
		}
		delete(root, k[0])
		return true
	}
	child, ok := root[k[0]].(map[string]any)
	if !ok || !k[1:].Unset(child) {
		return false
	}
	if len(child) == 0 {
		delete(root, k[0])
	}
	return true
}

// DecodeRaw converts a raw config map into a Config with defaults filled in.
// Keys that do not exist in the schema are an error, so an edit made through
// KeyPath can be checked before it is saved.
func DecodeRaw(raw map[string]any) (Config, error) {
	cfg := Defaults()
	data, err := yaml.Marshal(raw)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, &ConfigError{Message: "invalid config: " + err.Error()}
	}
	applyDefaults(&cfg)
	return cfg, nil
}
