// Package audit delivers per-tick audit records to durable sinks without
// ever blocking the tick loop.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
	"github.com/couchcryptid/aegis-cortex/internal/observability"
)

// Sink appends audit records to a durable store.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec domain.AuditRecord) error
	Close() error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

type sinkState struct {
	sink         Sink
	backoff      time.Duration
	suspendUntil time.Time
}

// Dispatcher queues records and writes each one to every sink from a single
// background goroutine. A sink that fails is suspended with exponential
// backoff so a dead store does not slow delivery to the others.
type Dispatcher struct {
	sinks   []*sinkState
	queue   chan domain.AuditRecord
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDispatcher creates a dispatcher with a queue of buffer records.
func NewDispatcher(sinks []Sink, buffer int, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	states := make([]*sinkState, len(sinks))
	for i, s := range sinks {
		states[i] = &sinkState{sink: s, backoff: initialBackoff}
	}
	return &Dispatcher{
		sinks:   states,
		queue:   make(chan domain.AuditRecord, max(1, buffer)),
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Submit enqueues rec and returns false if the queue is full and rec was
// dropped. It never blocks.
func (d *Dispatcher) Submit(rec domain.AuditRecord) bool {
	select {
	case d.queue <- rec:
		return true
	default:
		d.metrics.AuditDropped.Inc()
		return false
	}
}

// Pending is the number of queued records.
func (d *Dispatcher) Pending() int { return len(d.queue) }

// Run delivers queued records until ctx is cancelled, then drains what is
// left and closes every sink.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("audit dispatcher started", "sinks", len(d.sinks))
	defer d.closeSinks()

	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return nil
		case rec := <-d.queue:
			d.deliver(ctx, rec)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case rec := <-d.queue:
			d.deliver(ctx, rec)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, rec domain.AuditRecord) {
	now := d.clock.Now()
	for _, st := range d.sinks {
		name := st.sink.Name()
		if now.Before(st.suspendUntil) {
			d.metrics.AuditRecords.WithLabelValues(name, "skipped").Inc()
			continue
		}

		if err := st.sink.Write(ctx, rec); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}
			st.suspendUntil = now.Add(st.backoff)
			d.logger.Warn("audit sink write failed",
				"sink", name,
				"tick", rec.Tick,
				"backoff", st.backoff,
				"error", err,
			)
			st.backoff = sharedretry.NextBackoff(st.backoff, maxBackoff)
			d.metrics.AuditRecords.WithLabelValues(name, "error").Inc()
			continue
		}

		st.backoff = initialBackoff
		d.metrics.AuditRecords.WithLabelValues(name, "success").Inc()
	}
}

func (d *Dispatcher) closeSinks() {
	for _, st := range d.sinks {
		if err := st.sink.Close(); err != nil {
			d.logger.Error("audit sink close error", "sink", st.sink.Name(), "error", err)
		}
	}
}
