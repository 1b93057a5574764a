package sink

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/hooks"
	"github.com/soyeahso/rewardbot/internal/logging"
)

type testSink struct {
	name     string
	closeErr error
	seen     atomic.Int32
	closed   atomic.Int32
	// seenAtClose records how many answers had arrived when Close ran.
	seenAtClose int32
}

func (s *testSink) Name() string { return s.name }
func (s *testSink) Hook() hooks.Handler {
	return func(context.Context, hooks.Payload) error {
		s.seen.Add(1)
		return nil
	}
}
func (s *testSink) Close() error {
	s.seenAtClose = s.seen.Load()
	s.closed.Add(1)
	return s.closeErr
}

func testRegistry() (*Registry, *hooks.Manager) {
	log := logging.New(nil, "silent")
	hm := hooks.NewManager(log)
	return NewRegistry(hm, log), hm
}

func answered() hooks.Payload {
	return hooks.Payload{
		Event:  hooks.EventQueryAnswered,
		Query:  &domain.Query{Text: "balance?", CustomerID: "C1"},
		Answer: &domain.Answer{Success: true},
	}
}

func TestRegistry_Register(t *testing.T) {
	reg, _ := testRegistry()

	require.NoError(t, reg.Register(&testSink{name: "history"}))
	assert.Equal(t, 1, reg.Count())
	assert.Equal(t, "history", reg.Get("history").Name())
	assert.Nil(t, reg.Get("nonexistent"))
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg, _ := testRegistry()
	s := &testSink{name: "events"}

	require.NoError(t, reg.Register(s))
	err := reg.Register(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_List(t *testing.T) {
	reg, _ := testRegistry()
	reg.Register(&testSink{name: "a"})
	reg.Register(&testSink{name: "b"})

	assert.Equal(t, []string{"a", "b"}, reg.List())
}

func TestRegistry_AttachAll(t *testing.T) {
	reg, hm := testRegistry()
	a := &testSink{name: "a"}
	b := &testSink{name: "b"}
	reg.Register(a)
	reg.Register(b)

	reg.AttachAll()
	assert.Equal(t, 2, hm.Count(hooks.EventQueryAnswered))

	hm.Emit(context.Background(), answered())
	assert.Equal(t, int32(1), a.seen.Load())
	assert.Equal(t, int32(1), b.seen.Load())
}

func TestRegistry_CloseAllDrainsHooks(t *testing.T) {
	reg, hm := testRegistry()
	s := &testSink{name: "history"}
	reg.Register(s)
	reg.AttachAll()

	for range 5 {
		hm.EmitAsync(context.Background(), answered())
	}
	require.NoError(t, reg.CloseAll())

	assert.Equal(t, int32(1), s.closed.Load())
	assert.Equal(t, int32(5), s.seenAtClose)
	assert.Zero(t, hm.Count(hooks.EventQueryAnswered))

	// detached sinks see nothing further
	hm.Emit(context.Background(), answered())
	assert.Equal(t, int32(5), s.seen.Load())
}

func TestRegistry_CloseAll_Error(t *testing.T) {
	reg, _ := testRegistry()
	good := &testSink{name: "good"}
	bad := &testSink{name: "bad", closeErr: assert.AnError}
	reg.Register(good)
	reg.Register(bad)

	err := reg.CloseAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, int32(1), good.closed.Load())
}
