package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
	"github.com/couchcryptid/aegis-cortex/internal/observability"
)

// --- mock sink ---

type mockSink struct {
	name   string
	mu     sync.Mutex
	err    error
	ticks  []uint64
	closed bool
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Write(_ context.Context, rec domain.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.ticks = append(m.ticks, rec.Tick)
	return nil
}

func (m *mockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSink) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockSink) written() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.ticks...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestSubmit_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(nil, 2, clockwork.NewFakeClock(), discardLogger(), observability.NewMetricsForTesting())

	assert.True(t, d.Submit(domain.AuditRecord{Tick: 1}))
	assert.True(t, d.Submit(domain.AuditRecord{Tick: 2}))
	assert.False(t, d.Submit(domain.AuditRecord{Tick: 3}))
	assert.Equal(t, 2, d.Pending())
}

func TestRun_DeliversToAllSinksAndDrainsOnShutdown(t *testing.T) {
	a := &mockSink{name: "a"}
	b := &mockSink{name: "b"}
	d := NewDispatcher([]Sink{a, b}, 16, clockwork.NewFakeClock(), discardLogger(), observability.NewMetricsForTesting())

	for i := uint64(1); i <= 5; i++ {
		require.True(t, d.Submit(domain.AuditRecord{Tick: i}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return len(a.written()) == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, a.written())
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, b.written())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestDeliver_FailingSinkIsSuspended(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bad := &mockSink{name: "bad", err: errors.New("connection refused")}
	good := &mockSink{name: "good"}
	d := NewDispatcher([]Sink{bad, good}, 16, clock, discardLogger(), observability.NewMetricsForTesting())
	ctx := context.Background()

	d.deliver(ctx, domain.AuditRecord{Tick: 1})
	bad.setErr(nil)
	d.deliver(ctx, domain.AuditRecord{Tick: 2})

	assert.Empty(t, bad.written(), "suspended sink should be skipped")
	assert.Equal(t, []uint64{1, 2}, good.written())

	clock.Advance(initialBackoff)
	d.deliver(ctx, domain.AuditRecord{Tick: 3})

	assert.Equal(t, []uint64{3}, bad.written())
	assert.Equal(t, initialBackoff, d.sinks[0].backoff)
}

func TestDeliver_BackoffGrows(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bad := &mockSink{name: "bad", err: errors.New("down")}
	d := NewDispatcher([]Sink{bad}, 1, clock, discardLogger(), observability.NewMetricsForTesting())

	for i := 0; i < 10; i++ {
		d.deliver(context.Background(), domain.AuditRecord{})
		clock.Advance(maxBackoff)
	}

	assert.Equal(t, maxBackoff, d.sinks[0].backoff)
}
