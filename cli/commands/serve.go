package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	orderflow "github.com/orderflow-io/orderflow"
	"github.com/orderflow-io/orderflow/cli/config"
	"github.com/orderflow-io/orderflow/cli/styles"
	"github.com/orderflow-io/orderflow/middleware/metrics"
	"github.com/orderflow-io/orderflow/middleware/tracing"
	"github.com/orderflow-io/orderflow/order"
	"github.com/orderflow-io/orderflow/publish/kafka"
	snspub "github.com/orderflow-io/orderflow/publish/sns"
	"github.com/orderflow-io/orderflow/publish/webhook"
	"github.com/orderflow-io/orderflow/relay"
)

const statsInterval = time.Minute

// NewServeCommand creates the serve command.
func NewServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orderflow service",
		Long: `Run the orderflow service: the command bus, the event relay, and
the fulfillment saga manager, with the publishers and telemetry
configured in orderflow.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	env, err := buildEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg := env.Config
	logger := env.Logger

	if err := env.Store.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize event store: %w", err)
	}
	if init, ok := env.SagaStore.(interface{ Initialize(context.Context) error }); ok {
		if err := init.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize saga store: %w", err)
		}
	}

	m := env.Metrics
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	env.Bus.Use(m.CommandMiddleware())

	var sagaHandler relay.Handler = env.Manager
	if cfg.Telemetry.Tracing {
		tp, shutdown, err := tracing.NewStdoutProvider(cfg.Service)
		if err != nil {
			return err
		}
		otel.SetTracerProvider(tp)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()

		tracer := tracing.NewTracer(
			tracing.WithTracerProvider(tp),
			tracing.WithServiceName(cfg.Service),
		)
		env.Bus.Use(tracing.CommandMiddleware(tracer))
		sagaHandler = tracing.WrapHandler(env.Manager, tracer)
	}

	relayOpts := []relay.Option{
		relay.WithHandler(sagaHandler),
		relay.WithCategory(order.AggregateType),
		relay.WithLogger(orderflow.NewZapLogger(logger)),
	}
	relayOpts = append(relayOpts, publisherOptions(ctx, cfg, logger)...)
	r := relay.New(env.Store, relayOpts...)
	defer func() { _ = r.Close() }()

	if err := env.Manager.Start(ctx); err != nil {
		return fmt.Errorf("saga recovery failed: %w", err)
	}

	if cfg.Telemetry.MetricsAddr != "" {
		go serveMetrics(cfg.Telemetry.MetricsAddr, logger)
	}
	go collectStats(ctx, env, m)
	go cleanupLoop(ctx, env)

	fmt.Println(styles.FormatSuccess(fmt.Sprintf("orderflow serving (driver=%s)", cfg.Database.Driver)))

	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

func publisherOptions(ctx context.Context, cfg *config.Config, logger *zap.Logger) []relay.Option {
	var opts []relay.Option

	if cfg.Publishers.Kafka.Enabled {
		opts = append(opts, relay.WithPublisher(
			kafka.New(cfg.Publishers.Kafka.Brokers, cfg.Publishers.Kafka.Topic),
		))
		logger.Info("kafka publisher enabled",
			zap.Strings("brokers", cfg.Publishers.Kafka.Brokers),
			zap.String("topic", cfg.Publishers.Kafka.Topic))
	}

	if cfg.Publishers.SNS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS config, sns publisher disabled", zap.Error(err))
		} else {
			opts = append(opts, relay.WithPublisher(
				snspub.New(awssns.NewFromConfig(awsCfg), cfg.Publishers.SNS.TopicARN),
			))
			logger.Info("sns publisher enabled", zap.String("topicArn", cfg.Publishers.SNS.TopicARN))
		}
	}

	if cfg.Publishers.Webhook.Enabled {
		opts = append(opts, relay.WithPublisher(
			webhook.New(cfg.Publishers.Webhook.URL),
		))
		logger.Info("webhook publisher enabled", zap.String("url", cfg.Publishers.Webhook.URL))
	}

	return opts
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics endpoint failed", zap.Error(err))
	}
}

func collectStats(ctx context.Context, env *Env, m *metrics.Metrics) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := env.Manager.GetStats(ctx)
			if err != nil {
				env.Logger.Warn("failed to collect saga stats", zap.Error(err))
				continue
			}
			m.ObserveSagaStats(*stats)
		case <-ctx.Done():
			return
		}
	}
}

func cleanupLoop(ctx context.Context, env *Env) {
	retention := env.Config.Saga.Retention
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := env.Manager.Cleanup(ctx, retention)
			if err != nil {
				env.Logger.Warn("saga cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				env.Logger.Info("cleaned up terminal sagas", zap.Int("removed", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}
