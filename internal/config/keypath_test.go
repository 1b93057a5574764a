package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyPath(t *testing.T) {
	tests := []struct {
		input   string
		want    KeyPath
		wantErr bool
	}{
		{"server", KeyPath{"server"}, false},
		{"backends.rewards.baseUrl", KeyPath{"backends", "rewards", "baseUrl"}, false},
		{"", nil, true},
		{"server..port", nil, true},
		{".server", nil, true},
		{"server.", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKeyPath(tt.input)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestKeyPath_Get(t *testing.T) {
	root := map[string]any{
		"cache": map[string]any{
			"backend": "redis",
			"redis":   map[string]any{"addr": "localhost:6379"},
		},
		"simple": "value",
	}

	v, ok := KeyPath{"cache", "redis", "addr"}.Get(root)
	assert.True(t, ok)
	assert.Equal(t, "localhost:6379", v)

	v, ok = KeyPath{"simple"}.Get(root)
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = KeyPath{"cache", "nonexistent"}.Get(root)
	assert.False(t, ok)
	_, ok = KeyPath{"simple", "sub"}.Get(root)
	assert.False(t, ok)
}

func TestKeyPath_Set(t *testing.T) {
	root := map[string]any{"server": "not-a-map"}

	KeyPath{"server", "port"}.Set(root, 9090)
	KeyPath{"cache", "redis", "addr"}.Set(root, "redis:6379")

	v, _ := KeyPath{"server", "port"}.Get(root)
	assert.Equal(t, 9090, v)
	v, _ = KeyPath{"cache", "redis", "addr"}.Get(root)
	assert.Equal(t, "redis:6379", v)
}

func TestKeyPath_Unset(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{"port": 8080, "bind": "lan"},
		"cache":  map[string]any{"redis": map[string]any{"addr": "x"}},
		"flat":   "string",
	}

	assert.True(t, KeyPath{"server", "port"}.Unset(root))
	_, ok := KeyPath{"server", "port"}.Get(root)
	assert.False(t, ok)
	_, ok = KeyPath{"server", "bind"}.Get(root)
	assert.True(t, ok)

	// emptied parents are pruned
	assert.True(t, KeyPath{"cache", "redis", "addr"}.Unset(root))
	_, ok = root["cache"]
	assert.False(t, ok)

	assert.False(t, KeyPath{"server", "nonexistent"}.Unset(root))
	assert.False(t, KeyPath{"a", "b"}.Unset(root))
	assert.False(t, KeyPath{"flat", "port"}.Unset(root))
}

func TestDecodeRaw(t *testing.T) {
	cfg, err := DecodeRaw(map[string]any{
		"server": map[string]any{"port": 9090},
		"cache":  map[string]any{"backend": "redis", "redis": map[string]any{"addr": "r:6379"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, "r:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, Defaults().Cache.ContextTTL, cfg.Cache.ContextTTL)
}

func TestDecodeRaw_UnknownKey(t *testing.T) {
	_, err := DecodeRaw(map[string]any{"server": map[string]any{"prot": 9090}})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "prot")
}

func TestDecodeRaw_BadType(t *testing.T) {
	_, err := DecodeRaw(map[string]any{"server": map[string]any{"port": "eighty"}})
	assert.Error(t, err)
}
