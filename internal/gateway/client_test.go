package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/rewardbot/internal/config"
	"github.com/soyeahso/rewardbot/internal/logging"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testClient(id string) *Client {
	c := NewClient(nil, "10.0.0.1:5555", testLog())
	c.ConnID = id
	return c
}

func TestNewClient(t *testing.T) {
	c := NewClient(nil, "10.0.0.1:5555", testLog())
	assert.Len(t, c.ConnID, 36)
	assert.Equal(t, "10.0.0.1:5555", c.Remote)
	assert.False(t, c.ConnectedAt.IsZero())
	assert.Empty(t, c.Session())
}

func TestClientRemember(t *testing.T) {
	c := testClient("conn-1")

	c.remember("sess-1")
	assert.Equal(t, "sess-1", c.Session())

	// answers without a session keep the last one
	c.remember("")
	assert.Equal(t, "sess-1", c.Session())
	assert.Equal(t, int64(2), c.Queries())
}

func TestClientSendWithoutSocket(t *testing.T) {
	c := testClient("conn-1")
	assert.ErrorIs(t, c.SendEvent(EventHello, nil), ErrClientClosed)
	assert.ErrorIs(t, c.Respond("1", nil), ErrClientClosed)
}

func TestClientSendAfterClose(t *testing.T) {
	c := testClient("conn-1")
	require.NoError(t, c.Close(1000, ""))
	assert.ErrorIs(t, c.Send(Frame{Type: FrameTypeEvent}), ErrClientClosed)
	assert.NoError(t, c.Close(1000, ""))
}

func TestClientRegistryAddGetRemove(t *testing.T) {
	reg := NewClientRegistry(testLog())
	assert.Equal(t, 0, reg.Count())

	c1, c2 := testClient("conn-1"), testClient("conn-2")
	reg.Add(c1)
	reg.Add(c2)
	assert.Equal(t, 2, reg.Count())

	got, ok := reg.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1:5555", got.Remote)

	reg.Remove(c1)
	assert.Equal(t, 1, reg.Count())
	_, ok = reg.Get("conn-1")
	assert.False(t, ok)

	// removing twice is harmless
	reg.Remove(c1)
	assert.Equal(t, 1, reg.Count())
}

func TestClientRegistryShutdown(t *testing.T) {
	reg := NewClientRegistry(testLog())
	reg.Add(testClient("conn-1"))
	reg.Add(testClient("conn-2"))

	reg.Shutdown("bye")
	assert.Equal(t, 0, reg.Count())
}

// --- resolveBindAddr extended tests ---

func TestResolveBindAddr_Extended(t *testing.T) {
	tests := []struct {
		name string
		bind string
		port int
		host string
		want string
	}{
		{"loopback", "loopback", 8080, "", "127.0.0.1:8080"},
		{"lan", "lan", 9999, "", "0.0.0.0:9999"},
		{"auto", "auto", 8080, "", "0.0.0.0:8080"},
		{"custom_default", "custom", 3000, "", "0.0.0.0:3000"},
		{"custom_host", "custom", 3000, "10.0.0.1", "10.0.0.1:3000"},
		{"unknown_fallback", "whatever", 5000, "", "127.0.0.1:5000"},
		{"empty_fallback", "", 5000, "", "127.0.0.1:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.ServerConfig{Bind: tt.bind, Port: tt.port, CustomBindHost: tt.host}
			assert.Equal(t, tt.want, resolveBindAddr(cfg))
		})
	}
}

