// Package notify carries order, alert and tick events out of the core:
// webhooks, a websocket stream and a Kafka topic.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/domain"
)

// Sink delivers events to one egress. A Sink error is logged and never
// propagates back into the core.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e domain.Event) error
}

// Dispatcher decouples publishers from sinks with a bounded buffer
// drained by a single goroutine. Publish never blocks: when the buffer is
// full the event is dropped.
type Dispatcher struct {
	events      chan domain.Event
	sinks       []Sink
	logger      *zap.Logger
	sinkTimeout time.Duration
	dropped     atomic.Uint64
	startOnce   sync.Once
	done        chan struct{}
}

// NewDispatcher creates a Dispatcher with room for buffer pending events.
func NewDispatcher(buffer int, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		events:      make(chan domain.Event, buffer),
		sinks:       sinks,
		logger:      logger.With(zap.String("component", "notify")),
		sinkTimeout: 5 * time.Second,
		done:        make(chan struct{}),
	}
}

// Publish enqueues e for delivery.
func (d *Dispatcher) Publish(e domain.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case d.events <- e:
	default:
		d.dropped.Add(1)
		d.logger.Warn("event buffer full, dropping event",
			zap.String("kind", string(e.Kind)),
			zap.String("account_id", e.AccountID),
			zap.String("symbol", e.Symbol),
		)
	}
}

// Dropped returns how many events were discarded because the buffer was
// full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Start launches the drain loop. When ctx is cancelled the loop delivers
// whatever is already buffered and exits; Wait blocks until then.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

// Wait blocks until the drain loop has exited.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case e := <-d.events:
			d.deliver(ctx, e)
		case <-ctx.Done():
			for {
				select {
				case e := <-d.events:
					d.deliver(context.WithoutCancel(ctx), e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e domain.Event) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
		if err := s.Deliver(sctx, e); err != nil {
			d.logger.Warn("event delivery failed",
				zap.String("sink", s.Name()),
				zap.String("kind", string(e.Kind)),
				zap.Error(err),
			)
		}
		cancel()
	}
}
