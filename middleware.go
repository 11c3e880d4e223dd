package orderflow

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// ValidationMiddleware rejects commands whose Validate method fails before
// any handler runs.
func ValidationMiddleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			if err := cmd.Validate(); err != nil {
				return NewErrorResult(err), err
			}
			return next(ctx, cmd)
		}
	}
}

// RecoveryMiddleware converts handler panics into ErrHandlerPanicked errors
// carrying the stack trace.
func RecoveryMiddleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (result CommandResult, err error) {
			defer func() {
				if r := recover(); r != nil {
					perr := NewPanicError(cmd.CommandType(), r, string(debug.Stack()))
					result, err = NewErrorResult(perr), perr
				}
			}()
			return next(ctx, cmd)
		}
	}
}

// LoggingMiddleware logs each dispatched command with its outcome and
// duration.
type LoggingMiddleware struct {
	logger Logger
}

// NewLoggingMiddleware creates a LoggingMiddleware writing to the given logger.
func NewLoggingMiddleware(logger Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Middleware returns the middleware function.
func (m *LoggingMiddleware) Middleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			m.logger.Info("Dispatching command", "type", cmd.CommandType())

			start := time.Now()
			result, err := next(ctx, cmd)
			elapsed := time.Since(start)

			switch {
			case err != nil:
				m.logger.Error("Command failed",
					"type", cmd.CommandType(), "duration", elapsed, "error", err)
			case result.IsError():
				m.logger.Warn("Command returned error result",
					"type", cmd.CommandType(), "duration", elapsed, "error", result.Error)
			default:
				m.logger.Info("Command completed",
					"type", cmd.CommandType(), "duration", elapsed,
					"aggregateId", result.AggregateID, "version", result.Version)
			}
			return result, err
		}
	}
}

// TimeoutMiddleware bounds each command's execution time.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, cmd)
		}
	}
}

// RetryConfig configures RetryMiddleware.
type RetryConfig struct {
	// MaxAttempts caps the total number of attempts, first one included.
	MaxAttempts int

	// InitialDelay is the pause before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration

	// Multiplier scales the delay after every attempt.
	Multiplier float64

	// ShouldRetry filters which errors are retried. Nil retries everything.
	ShouldRetry func(err error) bool
}

// DefaultRetryConfig returns three attempts with 100ms initial backoff
// doubling up to 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

func (c *RetryConfig) normalize() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 1.0
	}
}

// RetryMiddleware retries commands that error or return an error result,
// with exponential backoff. An error result counts as a failure even when
// the dispatch error is nil.
func RetryMiddleware(config RetryConfig) Middleware {
	config.normalize()

	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			delay := config.InitialDelay

			var (
				result CommandResult
				err    error
			)
			for attempt := 1; ; attempt++ {
				result, err = next(ctx, cmd)
				if err == nil && result.IsSuccess() {
					return result, nil
				}
				if attempt >= config.MaxAttempts {
					return result, err
				}

				failure := err
				if failure == nil {
					failure = result.Error
				}
				if config.ShouldRetry != nil && !config.ShouldRetry(failure) {
					return result, err
				}

				select {
				case <-ctx.Done():
					return NewErrorResult(ctx.Err()), ctx.Err()
				case <-time.After(delay):
				}
				if delay = time.Duration(float64(delay) * config.Multiplier); delay > config.MaxDelay {
					delay = config.MaxDelay
				}
			}
		}
	}
}

// MetricsCollector receives one record per dispatched command.
type MetricsCollector interface {
	RecordCommand(cmdType string, duration time.Duration, success bool, err error)
}

// MetricsMiddleware reports every command to the collector. The recorded
// error is the dispatch error, or the result error when dispatch succeeded.
func MetricsMiddleware(collector MetricsCollector) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			start := time.Now()
			result, err := next(ctx, cmd)

			recorded := err
			if recorded == nil {
				recorded = result.Error
			}
			collector.RecordCommand(cmd.CommandType(), time.Since(start), err == nil && result.IsSuccess(), recorded)

			return result, err
		}
	}
}

type correlationIDKey struct{}
type causationIDKey struct{}

// CorrelationIDFromContext returns the correlation ID carried by the
// context, or an empty string.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// WithCorrelationID attaches a correlation ID to the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

// CausationIDFromContext returns the causation ID carried by the context,
// or an empty string.
func CausationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(causationIDKey{}).(string)
	return id
}

// WithCausationIDContext attaches a causation ID to the context.
func WithCausationIDContext(ctx context.Context, causationID string) context.Context {
	return context.WithValue(ctx, causationIDKey{}, causationID)
}

// CorrelationIDMiddleware makes sure every dispatch runs with a correlation
// ID in context: an existing context value wins, then the command's own
// correlation ID, then a fresh UUID.
func CorrelationIDMiddleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			if CorrelationIDFromContext(ctx) != "" {
				return next(ctx, cmd)
			}

			id := ""
			if carrier, ok := cmd.(interface{ GetCorrelationID() string }); ok {
				id = carrier.GetCorrelationID()
			}
			if id == "" {
				id = uuid.NewString()
			}
			return next(WithCorrelationID(ctx, id), cmd)
		}
	}
}

// CausationIDMiddleware propagates the command's causation ID into the
// context so emitted events can reference the command that caused them.
// Unlike correlation IDs, a missing causation ID is not generated.
func CausationIDMiddleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			if CausationIDFromContext(ctx) != "" {
				return next(ctx, cmd)
			}

			if carrier, ok := cmd.(interface{ GetCausationID() string }); ok {
				if id := carrier.GetCausationID(); id != "" {
					ctx = WithCausationIDContext(ctx, id)
				}
			}
			return next(ctx, cmd)
		}
	}
}
