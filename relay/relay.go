// Package relay delivers stored events to in-process handlers and external
// publishers. It subscribes to the event store's global feed and fans each
// event out, giving the fulfillment saga its at-least-once, per-stream
// ordered event channel.
package relay

import (
	"context"
	"fmt"

	orderflow "github.com/orderflow-io/orderflow"
	"github.com/orderflow-io/orderflow/adapters"
)

// Handler consumes deserialized domain events.
// *fulfillment.Manager satisfies this interface.
type Handler interface {
	HandleEvent(ctx context.Context, event interface{}) error
}

// Publisher delivers raw stored events to an external system.
type Publisher interface {
	// Publish sends one event. Errors are logged by the relay and the
	// event is not redelivered; downstream consumers needing stronger
	// guarantees should read from the event store directly.
	Publish(ctx context.Context, event orderflow.StoredEvent) error

	// Close releases the publisher's resources.
	Close() error
}

// Relay pumps events from the store to handlers and publishers.
type Relay struct {
	store      *orderflow.EventStore
	handlers   []Handler
	publishers []Publisher
	logger     orderflow.Logger
	category   string
	from       uint64
}

// Option configures a Relay.
type Option func(*Relay)

// WithHandler adds an in-process event handler.
func WithHandler(h Handler) Option {
	return func(r *Relay) {
		r.handlers = append(r.handlers, h)
	}
}

// WithPublisher adds an external publisher.
func WithPublisher(p Publisher) Option {
	return func(r *Relay) {
		r.publishers = append(r.publishers, p)
	}
}

// WithCategory restricts the relay to streams in one category, e.g. "Order".
func WithCategory(category string) Option {
	return func(r *Relay) {
		r.category = category
	}
}

// WithLogger sets the relay's logger.
func WithLogger(l orderflow.Logger) Option {
	return func(r *Relay) {
		r.logger = l
	}
}

// FromPosition starts delivery after the given global position.
func FromPosition(position uint64) Option {
	return func(r *Relay) {
		r.from = position
	}
}

// New creates a Relay over the given event store.
func New(store *orderflow.EventStore, opts ...Option) *Relay {
	r := &Relay{
		store:  store,
		logger: orderflow.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes events until the context is cancelled. Handler and
// publisher failures are logged per event and never stop the pump;
// handlers are expected to be idempotent against redelivery.
func (r *Relay) Run(ctx context.Context) error {
	ch, err := r.subscribe(ctx)
	if err != nil {
		return fmt.Errorf("relay: failed to subscribe: %w", err)
	}

	r.logger.Info("Relay started", "category", r.category, "fromPosition", r.from)

	for {
		select {
		case se, ok := <-ch:
			if !ok {
				return ctx.Err()
			}
			r.deliver(ctx, se)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Relay) subscribe(ctx context.Context) (<-chan orderflow.StoredEvent, error) {
	if r.category == "" {
		return r.store.SubscribeAll(ctx, r.from)
	}

	sub, ok := r.store.Adapter().(adapters.SubscriptionAdapter)
	if !ok {
		return nil, orderflow.ErrSubscriptionNotSupported
	}
	in, err := sub.SubscribeCategory(ctx, r.category, r.from)
	if err != nil {
		return nil, err
	}

	out := make(chan orderflow.StoredEvent, cap(in))
	go func() {
		defer close(out)
		for se := range in {
			event := orderflow.StoredEvent{
				ID:             se.ID,
				StreamID:       se.StreamID,
				Type:           se.Type,
				Data:           se.Data,
				Version:        se.Version,
				GlobalPosition: se.GlobalPosition,
				Timestamp:      se.Timestamp,
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *Relay) deliver(ctx context.Context, se orderflow.StoredEvent) {
	data, err := r.store.Serializer().Deserialize(se.Data, se.Type)
	if err != nil {
		r.logger.Error("Failed to deserialize event",
			"eventId", se.ID, "type", se.Type, "error", err)
		return
	}

	for _, h := range r.handlers {
		if err := h.HandleEvent(ctx, data); err != nil {
			r.logger.Error("Event handler failed",
				"eventId", se.ID, "type", se.Type, "error", err)
		}
	}

	for _, p := range r.publishers {
		if err := p.Publish(ctx, se); err != nil {
			r.logger.Warn("Publisher failed",
				"eventId", se.ID, "type", se.Type, "error", err)
		}
	}
}

// Close closes all publishers.
func (r *Relay) Close() error {
	var firstErr error
	for _, p := range r.publishers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
