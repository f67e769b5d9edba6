package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/JustinTDCT/CineGate/internal/metrics"
)

const (
	DefaultBuffer = 1024
	writeTimeout  = 5 * time.Second
)

// Async buffers events and drains them into a sink on one goroutine. When
// the buffer is full new events are dropped and counted.
type Async struct {
	sink   Sink
	log    logrus.FieldLogger
	events chan Event
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(sink Sink, log logrus.FieldLogger, buffer int) *Async {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	a := &Async{
		sink:   sink,
		log:    log,
		events: make(chan Event, buffer),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Record stamps e with an id, time and request client details, then queues
// it. It never blocks.
func (a *Async) Record(ctx context.Context, e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = a.now().UTC()
	}
	if c := ClientFrom(ctx); c != (Client{}) {
		if e.ClientIP == "" {
			e.ClientIP = c.IP
		}
		if e.UserAgent == "" {
			e.UserAgent = c.UserAgent
		}
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		metrics.AuditDropped.WithLabelValues("closed").Inc()
		return
	}
	select {
	case a.events <- e:
	default:
		metrics.AuditDropped.WithLabelValues("buffer").Inc()
		a.log.WithField("type", e.Type).Warn("audit buffer full, event dropped")
	}
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := a.sink.Write(ctx, e); err != nil {
			metrics.AuditDropped.WithLabelValues(a.sink.Name()).Inc()
			a.log.WithError(err).WithFields(logrus.Fields{"type": e.Type, "sink": a.sink.Name()}).
				Warn("audit write failed")
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx
// to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
