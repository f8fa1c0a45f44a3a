package publishers

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
)

// DefaultDeliveryTimeout bounds one delivery to one publisher.
const DefaultDeliveryTimeout = 10 * time.Second

// Observer is told the outcome of every delivery.
type Observer interface {
	ObservePublish(publisher string, err error)
}

// DispatcherOptions tunes a Dispatcher.
type DispatcherOptions struct {
	Timeout  time.Duration
	Observer Observer
	Logger   Logger
}

// Dispatcher fans events out to publishers in the background.
// Delivery is best-effort: failures are logged and counted, never returned.
type Dispatcher struct {
	pubs    []Publisher
	timeout time.Duration
	obs     Observer
	log     Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher wraps pubs. A dispatcher with no publishers drops every event.
func NewDispatcher(pubs []Publisher, opts DispatcherOptions) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDeliveryTimeout
	}
	return &Dispatcher{
		pubs:    pubs,
		timeout: opts.Timeout,
		obs:     opts.Observer,
		log:     ensureLogger(opts.Logger),
	}
}

// Emit schedules evt for every publisher that accepts its kind and returns immediately.
// Events emitted after Close are dropped.
func (d *Dispatcher) Emit(evt Event) {
	if d == nil {
		return
	}
	targets := lo.Filter(d.pubs, func(p Publisher, _ int) bool {
		a, ok := p.(interface{ Accepts(string) bool })
		return !ok || a.Accepts(evt.Kind)
	})
	if len(targets) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.WarnObj("event dropped after shutdown", "event_dropped", map[string]any{
			"event_id": evt.ID,
			"kind":     evt.Kind,
		})
		return
	}

	for _, p := range targets {
		d.wg.Add(1)
		go d.deliver(p, evt)
	}
}

// deliver runs detached from any request context so a finished response never cancels it.
func (d *Dispatcher) deliver(p Publisher, evt Event) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := p.Publish(ctx, evt)
	if d.obs != nil {
		d.obs.ObservePublish(p.ID(), err)
	}
	if err != nil {
		d.log.WarnObj("event delivery failed", "event_delivery_failed", map[string]any{
			"publisher_id": p.ID(),
			"event_id":     evt.ID,
			"kind":         evt.Kind,
			"error":        err,
		})
		return
	}
	d.log.DebugObj("event delivered", "event_delivered", map[string]any{
		"publisher_id": p.ID(),
		"event_id":     evt.ID,
		"kind":         evt.Kind,
	})
}

// Len is the number of publishers attached.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.pubs)
}

// Close stops accepting events, waits for in-flight deliveries until ctx ends, then closes publishers.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.log.WarnObj("in-flight deliveries abandoned", "dispatcher_close_timeout", map[string]any{
			"error": ctx.Err(),
		})
	}
	return closeAll(d.pubs)
}
