package orderflow

import (
	"context"
	"sync"
	"sync/atomic"
)

// MiddlewareFunc is the signature of the innermost dispatch step and of
// every wrapped stage.
type MiddlewareFunc func(ctx context.Context, cmd Command) (CommandResult, error)

// Middleware wraps a dispatch stage with behavior around it.
type Middleware func(next MiddlewareFunc) MiddlewareFunc

// CommandBus routes commands to their registered handlers through a
// middleware pipeline. Middleware executes in the order it was added.
type CommandBus struct {
	registry   *HandlerRegistry
	middleware []Middleware
	closed     atomic.Bool
	mu         sync.RWMutex
}

// CommandBusOption configures a CommandBus.
type CommandBusOption func(*CommandBus)

// WithMiddleware adds middleware at construction time.
func WithMiddleware(middleware ...Middleware) CommandBusOption {
	return func(b *CommandBus) {
		b.middleware = append(b.middleware, middleware...)
	}
}

// NewCommandBus creates a CommandBus.
func NewCommandBus(opts ...CommandBusOption) *CommandBus {
	bus := &CommandBus{registry: NewHandlerRegistry()}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Register adds a handler, replacing any existing handler for the same
// command type.
func (b *CommandBus) Register(handler CommandHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registry.Register(handler)
}

// Use appends middleware to the pipeline.
func (b *CommandBus) Use(middleware ...Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, middleware...)
}

// Dispatch runs a command through the pipeline to its handler.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) (CommandResult, error) {
	if b.closed.Load() {
		return NewErrorResult(ErrCommandBusClosed), ErrCommandBusClosed
	}
	if cmd == nil {
		return NewErrorResult(ErrNilCommand), ErrNilCommand
	}

	b.mu.RLock()
	handler := b.registry.Get(cmd.CommandType())
	middleware := make([]Middleware, len(b.middleware))
	copy(middleware, b.middleware)
	b.mu.RUnlock()

	if handler == nil {
		err := NewHandlerNotFoundError(cmd.CommandType())
		return NewErrorResult(err), err
	}

	chain := MiddlewareFunc(handler.Handle)
	// Applied in reverse so middleware executes in registration order.
	for i := len(middleware) - 1; i >= 0; i-- {
		chain = middleware[i](chain)
	}
	return chain(ctx, cmd)
}

// DispatchAsync dispatches on a new goroutine and returns a channel that
// yields the single result.
func (b *CommandBus) DispatchAsync(ctx context.Context, cmd Command) <-chan DispatchResult {
	out := make(chan DispatchResult, 1)
	go func() {
		defer close(out)
		result, err := b.Dispatch(ctx, cmd)
		out <- DispatchResult{CommandResult: result, Error: err}
	}()
	return out
}

// HasHandler reports whether cmdType has a registered handler.
func (b *CommandBus) HasHandler(cmdType string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.registry.Has(cmdType)
}

// HandlerCount returns the number of registered handlers.
func (b *CommandBus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.registry.Count()
}

// Close stops the bus; further dispatches fail with ErrCommandBusClosed.
func (b *CommandBus) Close() error {
	b.closed.Store(true)
	return nil
}

// IsClosed reports whether the bus has been closed.
func (b *CommandBus) IsClosed() bool {
	return b.closed.Load()
}

// DispatchResult pairs an async dispatch's result with its error.
type DispatchResult struct {
	CommandResult
	Error error
}

// IsSuccess reports a successful dispatch and command.
func (r DispatchResult) IsSuccess() bool {
	return r.Error == nil && r.CommandResult.IsSuccess()
}
