package orderflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// CommandHandler processes one command type.
type CommandHandler interface {
	CommandType() string
	Handle(ctx context.Context, cmd Command) (CommandResult, error)
}

// CommandHandlerFunc adapts a plain function to CommandHandler.
type CommandHandlerFunc struct {
	cmdType string
	fn      func(ctx context.Context, cmd Command) (CommandResult, error)
}

// NewCommandHandlerFunc wraps fn as a handler for cmdType.
func NewCommandHandlerFunc(cmdType string, fn func(ctx context.Context, cmd Command) (CommandResult, error)) *CommandHandlerFunc {
	return &CommandHandlerFunc{cmdType: cmdType, fn: fn}
}

// CommandType returns the handled command type.
func (h *CommandHandlerFunc) CommandType() string {
	return h.cmdType
}

// Handle invokes the wrapped function.
func (h *CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (CommandResult, error) {
	return h.fn(ctx, cmd)
}

// GenericHandler wraps a typed handler function, deriving the command type
// from the zero value of C and rejecting commands of any other type.
type GenericHandler[C Command] struct {
	handler func(ctx context.Context, cmd C) (CommandResult, error)
	cmdType string
}

// NewGenericHandler creates a typed handler for command type C.
func NewGenericHandler[C Command](handler func(ctx context.Context, cmd C) (CommandResult, error)) *GenericHandler[C] {
	var zero C
	return &GenericHandler[C]{handler: handler, cmdType: zero.CommandType()}
}

// CommandType returns the handled command type.
func (h *GenericHandler[C]) CommandType() string {
	return h.cmdType
}

// Handle asserts the command to C and invokes the handler.
func (h *GenericHandler[C]) Handle(ctx context.Context, cmd Command) (CommandResult, error) {
	typed, ok := cmd.(C)
	if !ok {
		return NewErrorResult(fmt.Errorf("orderflow: expected command type %T, got %T", *new(C), cmd)), nil
	}
	return h.handler(ctx, typed)
}

// AggregateHandler implements the load-execute-save cycle for commands
// addressed to one aggregate type.
//
// On a concurrency conflict the handler reloads the aggregate and re-executes
// the command once before giving up, so contention between independent
// commands on the same order usually resolves without surfacing an error.
type AggregateHandler[C AggregateCommand, A Aggregate] struct {
	store     *EventStore
	factory   func(id string) A
	executor  func(ctx context.Context, agg A, cmd C) error
	newIDFunc func() string
}

// AggregateHandlerConfig configures an AggregateHandler. NewIDFunc is only
// needed for creation commands, which carry no aggregate ID.
type AggregateHandlerConfig[C AggregateCommand, A Aggregate] struct {
	Store     *EventStore
	Factory   func(id string) A
	Executor  func(ctx context.Context, agg A, cmd C) error
	NewIDFunc func() string
}

// NewAggregateHandler creates an AggregateHandler from its config.
func NewAggregateHandler[C AggregateCommand, A Aggregate](config AggregateHandlerConfig[C, A]) *AggregateHandler[C, A] {
	return &AggregateHandler[C, A]{
		store:     config.Store,
		factory:   config.Factory,
		executor:  config.Executor,
		newIDFunc: config.NewIDFunc,
	}
}

// CommandType returns the handled command type.
func (h *AggregateHandler[C, A]) CommandType() string {
	var zero C
	return zero.CommandType()
}

// Handle runs the load-execute-save cycle. Domain errors come back inside
// the result; the dispatch error stays nil so middleware can tell rejections
// apart from infrastructure failures.
func (h *AggregateHandler[C, A]) Handle(ctx context.Context, cmd Command) (CommandResult, error) {
	typed, ok := cmd.(C)
	if !ok {
		return NewErrorResult(fmt.Errorf("orderflow: expected command type %T, got %T", *new(C), cmd)), nil
	}

	aggID := typed.AggregateID()
	isNew := aggID == ""
	if isNew {
		if h.newIDFunc == nil {
			return NewErrorResult(fmt.Errorf("orderflow: command has no aggregate ID and no ID generator configured")), nil
		}
		aggID = h.newIDFunc()
	}

	agg, err := h.execute(ctx, aggID, isNew, typed)
	if errors.Is(err, ErrConcurrencyConflict) && !isNew {
		agg, err = h.execute(ctx, aggID, false, typed)
	}
	if err != nil {
		return NewErrorResult(err), nil
	}

	return NewSuccessResult(agg.AggregateID(), agg.Version()), nil
}

func (h *AggregateHandler[C, A]) execute(ctx context.Context, aggID string, isNew bool, cmd C) (A, error) {
	agg := h.factory(aggID)

	if !isNew {
		if err := h.store.LoadAggregate(ctx, agg); err != nil {
			return agg, fmt.Errorf("orderflow: failed to load aggregate: %w", err)
		}
	}

	if err := h.executor(ctx, agg, cmd); err != nil {
		return agg, err
	}

	if err := h.store.SaveAggregate(ctx, agg); err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			return agg, err
		}
		return agg, fmt.Errorf("orderflow: failed to save aggregate: %w", err)
	}

	return agg, nil
}

// HandlerRegistry is a concurrency-safe command type to handler map.
// Registering a type twice replaces the earlier handler.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]CommandHandler)}
}

// Register adds a handler under its command type.
func (r *HandlerRegistry) Register(handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handler.CommandType()] = handler
}

// Get returns the handler for cmdType, nil when unregistered.
func (r *HandlerRegistry) Get(cmdType string) CommandHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[cmdType]
}

// Has reports whether cmdType has a handler.
func (r *HandlerRegistry) Has(cmdType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[cmdType]
	return ok
}

// Count returns the number of registered handlers.
func (r *HandlerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// CommandTypes lists all registered command types.
func (r *HandlerRegistry) CommandTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
