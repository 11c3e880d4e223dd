// Package config provides configuration management for the orderflow CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "orderflow.yaml"

// Config represents the orderflow service configuration.
type Config struct {
	// Version of the config file format
	Version string `yaml:"version"`

	// Service name used in logs, metrics, and traces
	Service string `yaml:"service"`

	Database   DatabaseConfig   `yaml:"database"`
	EventStore EventStoreConfig `yaml:"event_store"`
	Saga       SagaConfig       `yaml:"saga"`
	Publishers PublishersConfig `yaml:"publishers"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Driver is the storage backend (postgres, memory)
	Driver string `yaml:"driver"`

	// URL is the database connection string
	URL string `yaml:"url,omitempty"`
}

// EventStoreConfig contains event store settings.
type EventStoreConfig struct {
	// Serializer selects the event payload encoding (json, msgpack)
	Serializer string `yaml:"serializer"`

	// SnapshotInterval takes an aggregate snapshot every N events.
	// Zero disables snapshots.
	SnapshotInterval int64 `yaml:"snapshot_interval"`
}

// SagaConfig contains fulfillment saga manager settings.
type SagaConfig struct {
	// MaxRetries bounds manual retries of a failed saga
	MaxRetries int `yaml:"max_retries"`

	// StaleTimeout marks in-flight sagas older than this as failed
	// during the recovery sweep
	StaleTimeout time.Duration `yaml:"stale_timeout"`

	// Retention is how long terminal sagas are kept before cleanup
	Retention time.Duration `yaml:"retention"`
}

// PublishersConfig configures external event publishers.
type PublishersConfig struct {
	Kafka   KafkaConfig   `yaml:"kafka"`
	SNS     SNSConfig     `yaml:"sns"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// SNSConfig configures the AWS SNS publisher.
type SNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TopicARN string `yaml:"topic_arn,omitempty"`
}

// WebhookConfig configures the webhook publisher.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// Tracing enables stdout span export
	Tracing bool `yaml:"tracing"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Service: "orderflow",
		Database: DatabaseConfig{
			Driver: "memory",
		},
		EventStore: EventStoreConfig{
			Serializer:       "json",
			SnapshotInterval: 50,
		},
		Saga: SagaConfig{
			MaxRetries:   3,
			StaleTimeout: 30 * time.Minute,
			Retention:    7 * 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			MetricsAddr: ":9090",
		},
	}
}

// Load loads configuration from the specified directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save saves the configuration to the specified directory.
func (c *Config) Save(dir string) error {
	return c.SaveFile(filepath.Join(dir, ConfigFileName))
}

// SaveFile saves the configuration to a specific file path.
func (c *Config) SaveFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Exists checks if a config file exists in the directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// Validate returns a list of configuration problems, empty when valid.
func (c *Config) Validate() []string {
	var problems []string

	if c.Service == "" {
		problems = append(problems, "service is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		problems = append(problems, "database.driver must be 'postgres' or 'memory'")
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		problems = append(problems, "database.url is required for postgres driver")
	}
	if c.EventStore.Serializer != "json" && c.EventStore.Serializer != "msgpack" {
		problems = append(problems, "event_store.serializer must be 'json' or 'msgpack'")
	}
	if c.EventStore.SnapshotInterval < 0 {
		problems = append(problems, "event_store.snapshot_interval cannot be negative")
	}
	if c.Saga.MaxRetries < 0 {
		problems = append(problems, "saga.max_retries cannot be negative")
	}
	if c.Saga.StaleTimeout <= 0 {
		problems = append(problems, "saga.stale_timeout must be positive")
	}
	if c.Publishers.Kafka.Enabled && (len(c.Publishers.Kafka.Brokers) == 0 || c.Publishers.Kafka.Topic == "") {
		problems = append(problems, "publishers.kafka requires brokers and topic when enabled")
	}
	if c.Publishers.SNS.Enabled && c.Publishers.SNS.TopicARN == "" {
		problems = append(problems, "publishers.sns.topic_arn is required when enabled")
	}
	if c.Publishers.Webhook.Enabled && c.Publishers.Webhook.URL == "" {
		problems = append(problems, "publishers.webhook.url is required when enabled")
	}

	return problems
}
