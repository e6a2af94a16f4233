package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HandlerFunc consumes a published event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a subscription.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the subscription async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered subscription block when the queue is full
// instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging around the subscription.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Bus fans published events out to all subscriptions registered for the
// event's name.
type Bus struct {
	logger Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	published metric.Int64Counter
	dropped   metric.Int64Counter

	// Track buffers for gauge callback
	mu          sync.RWMutex
	subscribers map[string][]HandlerFunc
	buffers     map[string][]chan Event

	drain sync.WaitGroup
}

// NewBus creates a Bus with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewBus(logger Logger) (*Bus, error) {
	b := &Bus{
		logger:      logger,
		subscribers: make(map[string][]HandlerFunc),
		buffers:     make(map[string][]chan Event),
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := meter()

	var err error

	b.queueSize, err = m.Int64ObservableGauge(
		"events.queue.size",
		metric.WithDescription("Current number of events queued per subscription"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			b.mu.RLock()
			defer b.mu.RUnlock()
			for name, bufs := range b.buffers {
				for _, buf := range bufs {
					o.ObserveInt64(b.queueSize, int64(len(buf)),
						metric.WithAttributes(attribute.String("event", name)))
				}
			}
			return nil
		},
		b.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	b.published, err = m.Int64Counter(
		"events.published",
		metric.WithDescription("Total events handled by subscriptions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating published counter: %w", err)
	}

	b.dropped, err = m.Int64Counter(
		"events.dropped",
		metric.WithDescription("Total events dropped due to full queues"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return b, nil
}

// Subscribe registers a handler for the given event name with optional
// configuration. Multiple handlers may subscribe to the same name.
func (b *Bus) Subscribe(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.bufferSize > 0 {
		handler = b.withBuffer(name, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = b.withLogging(name, handler)
	}

	b.mu.Lock()
	b.subscribers[name] = append(b.subscribers[name], handler)
	b.mu.Unlock()
}

// Publish delivers an event to every subscription registered for its name.
// Handler errors are logged, not returned, so one failing subscriber cannot
// stall the producer.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.subscribers[e.Name()]
	b.mu.RUnlock()

	for _, h := range subs {
		if err := h(e); err != nil {
			b.logger.Error("event handler failed", "event", e.Name(), "error", err)
		}
	}
}

// HasSubscribers returns true if at least one handler is registered for the
// event name.
func (b *Bus) HasSubscribers(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[name]) > 0
}

// Close closes all subscription buffers and waits for the queued events to
// drain. Publish must not be called after Close.
func (b *Bus) Close() {
	b.mu.Lock()
	for _, bufs := range b.buffers {
		for _, buf := range bufs {
			close(buf)
		}
	}
	b.buffers = make(map[string][]chan Event)
	b.mu.Unlock()

	b.drain.Wait()
}

func (b *Bus) withBuffer(name string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	b.mu.Lock()
	b.buffers[name] = append(b.buffers[name], buffer)
	b.mu.Unlock()

	eventAttr := attribute.String("event", name)

	b.drain.Add(1)
	go func() {
		defer b.drain.Done()
		for e := range buffer {
			if err := h(e); err != nil {
				b.logger.Error("event handler failed", "event", name, "error", err)
			}
			b.published.Add(context.Background(), 1, metric.WithAttributes(eventAttr))
		}
	}()

	if blocking {
		return func(e Event) error {
			buffer <- e
			return nil
		}
	}

	return func(e Event) error {
		select {
		case buffer <- e:
			return nil
		default:
			b.dropped.Add(context.Background(), 1, metric.WithAttributes(eventAttr))
			return fmt.Errorf("queue full: %s", name)
		}
	}
}

func (b *Bus) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		b.logger.Debug("handling event", "event", name)

		err := h(e)

		if err != nil {
			b.logger.Error("event failed", "event", name, "duration", time.Since(start), "error", err)
		} else {
			b.logger.Debug("event complete", "event", name, "duration", time.Since(start))
		}

		return err
	}
}
