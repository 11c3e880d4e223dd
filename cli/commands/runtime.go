package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	orderflow "github.com/orderflow-io/orderflow"
	"github.com/orderflow-io/orderflow/adapters/memory"
	"github.com/orderflow-io/orderflow/adapters/postgres"
	"github.com/orderflow-io/orderflow/cli/config"
	"github.com/orderflow-io/orderflow/fulfillment"
	"github.com/orderflow-io/orderflow/middleware/metrics"
	"github.com/orderflow-io/orderflow/order"
	msgpackser "github.com/orderflow-io/orderflow/serializer/msgpack"
)

// Env holds the wired runtime shared by serve and sagas commands.
type Env struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     *orderflow.EventStore
	Bus       *orderflow.CommandBus
	SagaStore fulfillment.Store
	Manager   *fulfillment.Manager
	Metrics   *metrics.Metrics

	cleanups []func()
}

// Close releases all resources in reverse wiring order.
func (e *Env) Close() {
	for i := len(e.cleanups) - 1; i >= 0; i-- {
		e.cleanups[i]()
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if !config.Exists(cwd) {
		return config.DefaultConfig(), nil
	}
	return config.Load(cwd)
}

// buildEnv wires the event store, command bus, and saga manager from
// configuration. Callers must Close the returned Env.
func buildEnv(ctx context.Context, configPath string) (*Env, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", problems[0])
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	env := &Env{
		Config: cfg,
		Logger: zapLogger,
	}
	env.cleanups = append(env.cleanups, func() { _ = zapLogger.Sync() })

	logger := orderflow.NewZapLogger(zapLogger)

	var serializer orderflow.Serializer
	switch cfg.EventStore.Serializer {
	case "msgpack":
		serializer = msgpackser.NewSerializer()
	default:
		serializer = orderflow.NewJSONSerializer()
	}

	var (
		store     *orderflow.EventStore
		sagaStore fulfillment.Store
	)
	switch cfg.Database.Driver {
	case "postgres":
		dbURL := os.ExpandEnv(cfg.Database.URL)
		adapter, err := postgres.NewAdapter(dbURL)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("failed to create postgres adapter: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = adapter.Ping(pingCtx)
		cancel()
		if err != nil {
			_ = adapter.Close()
			env.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		store = orderflow.New(adapter,
			orderflow.WithSerializer(serializer),
			orderflow.WithLogger(logger),
			orderflow.WithSnapshotInterval(cfg.EventStore.SnapshotInterval),
		)
		sagaStore = postgres.NewSagaStore(adapter.DB())

	case "memory":
		store = orderflow.New(memory.NewAdapter(),
			orderflow.WithSerializer(serializer),
			orderflow.WithLogger(logger),
			orderflow.WithSnapshotInterval(cfg.EventStore.SnapshotInterval),
		)
		sagaStore = memory.NewSagaStore()

	default:
		env.Close()
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	env.Store = store
	env.cleanups = append(env.cleanups, func() { _ = store.Close() })
	env.SagaStore = sagaStore
	env.cleanups = append(env.cleanups, func() { _ = sagaStore.Close() })

	order.RegisterEvents(store)

	bus := orderflow.NewCommandBus()
	bus.Use(
		orderflow.RecoveryMiddleware(),
		orderflow.CorrelationIDMiddleware(),
		orderflow.CausationIDMiddleware(),
		orderflow.NewLoggingMiddleware(logger).Middleware(),
		orderflow.ValidationMiddleware(),
	)
	order.RegisterHandlers(bus, store)
	env.Bus = bus
	env.cleanups = append(env.cleanups, func() { _ = bus.Close() })

	env.Metrics = metrics.New(metrics.WithServiceName(cfg.Service))

	services := fulfillment.NewSimulatedServices()
	orch := fulfillment.NewOrchestrator(sagaStore, services, services, services, bus, logger,
		fulfillment.WithCompensationObserver(env.Metrics.RecordCompensation),
	)
	env.Manager = fulfillment.NewManager(orch,
		fulfillment.WithMaxRetries(cfg.Saga.MaxRetries),
		fulfillment.WithStaleTimeout(cfg.Saga.StaleTimeout),
	)

	return env, nil
}
