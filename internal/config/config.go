package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

// Sink names accepted in SINKS.
const (
	SinkJSONL  = "jsonl"
	SinkSQLite = "sqlite"
	SinkKafka  = "kafka"
	SinkCDA    = "cda"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	HTTPAddr        string        `env:"HTTP_ADDR" validate:"required"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	Sinks []string `env:"SINKS" validate:"min=1,dive,oneof=jsonl sqlite kafka cda"`

	// CWMS Data API destination.
	CDAURL     string        `env:"CDA_URL" validate:"omitempty,url"`
	CDAAPIKey  string        `env:"CDA_API_KEY"`
	CDAOffice  string        `env:"CDA_OFFICE" validate:"required"`
	CDAGroup   string        `env:"CDA_GROUP" validate:"required"`
	CDATimeout time.Duration `env:"CDA_TIMEOUT" validate:"gt=0"`

	KafkaBrokers     []string `env:"KAFKA_BROKERS"`
	KafkaSourceTopic string   `env:"KAFKA_SOURCE_TOPIC" validate:"required"`
	KafkaSinkTopic   string   `env:"KAFKA_SINK_TOPIC" validate:"required"`
	KafkaGroupID     string   `env:"KAFKA_GROUP_ID" validate:"required"`

	BatchSize          int
	BatchFlushInterval time.Duration

	SQLitePath   string        `env:"SQLITE_PATH" validate:"required"`
	InboxDir     string        `env:"INBOX_DIR" validate:"required"`
	PollInterval time.Duration `env:"POLL_INTERVAL" validate:"gt=0"`

	// SHEF layout.
	MaxLineLength  int    `env:"SHEF_MAX_LINE_LENGTH" validate:"min=20,max=132"`
	MaxLocations   int    `env:"SHEF_MAX_LOCATIONS" validate:"min=1"`
	DefaultVersion string `env:"SHEF_DEFAULT_VERSION" validate:"len=3,alpha"`
	MesonetMissing string `env:"MESONET_MISSING" validate:"required"`
}

// HasSink reports whether name is one of the configured sinks.
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.Sinks, name)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cdaTimeout, err := parseDuration("CDA_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	maxLine, err := parseInt("SHEF_MAX_LINE_LENGTH", 65)
	if err != nil {
		return nil, err
	}
	maxLocations, err := parseInt("SHEF_MAX_LOCATIONS", 60)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdownTimeout,

		Sinks: splitList(sharedcfg.EnvOrDefault("SINKS", SinkJSONL)),

		CDAURL:     sharedcfg.EnvOrDefault("CDA_URL", ""),
		CDAAPIKey:  sharedcfg.EnvOrDefault("CDA_API_KEY", ""),
		CDAOffice:  sharedcfg.EnvOrDefault("CDA_OFFICE", "LRL"),
		CDAGroup:   sharedcfg.EnvOrDefault("CDA_GROUP", "SHEF Data Acquisition"),
		CDATimeout: cdaTimeout,

		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "shef-products"),
		KafkaSinkTopic:   sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "decoded-timeseries"),
		KafkaGroupID:     sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "shef-etl"),

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		SQLitePath:   sharedcfg.EnvOrDefault("SQLITE_PATH", "shef.db"),
		InboxDir:     sharedcfg.EnvOrDefault("INBOX_DIR", "inbox"),
		PollInterval: pollInterval,

		MaxLineLength:  maxLine,
		MaxLocations:   maxLocations,
		DefaultVersion: strings.ToUpper(sharedcfg.EnvOrDefault("SHEF_DEFAULT_VERSION", "RZZ")),
		MesonetMissing: sharedcfg.EnvOrDefault("MESONET_MISSING", "M"),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, validationError(err)
	}
	if cfg.HasSink(SinkKafka) && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required for the kafka sink")
	}
	if cfg.HasSink(SinkCDA) && cfg.CDAURL == "" {
		return nil, errors.New("CDA_URL is required for the cda sink")
	}

	return cfg, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("invalid %s: failed %q validation", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, strconv.Itoa(def))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
