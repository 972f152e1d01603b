package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "careline.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CARELINE_PORT")
	setDuration(&cfg.Server.RequestTimeout, "CARELINE_REQUEST_TIMEOUT")
	setString(&cfg.Server.PublicURL, "CARELINE_PUBLIC_URL")
	setString(&cfg.Logging.Level, "CARELINE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CARELINE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CARELINE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "CARELINE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CARELINE_BREAKER_TIMEOUT")

	// Gateway
	setInt(&cfg.Gateway.MaxConcurrent, "CARELINE_GATEWAY_MAX_CONCURRENT")
	setDuration(&cfg.Gateway.ExtractionTimeout, "CARELINE_EXTRACTION_TIMEOUT")
	setDuration(&cfg.Gateway.TriageTimeout, "CARELINE_TRIAGE_TIMEOUT")
	setDuration(&cfg.Gateway.InsuranceTimeout, "CARELINE_INSURANCE_TIMEOUT")

	// Capabilities
	setString(&cfg.Extraction.URL, "CARELINE_EXTRACTION_URL")
	setString(&cfg.Extraction.APIKey, "CARELINE_EXTRACTION_API_KEY")
	setString(&cfg.Extraction.Model, "CARELINE_EXTRACTION_MODEL")
	setInt(&cfg.Extraction.MaxTokens, "CARELINE_EXTRACTION_MAX_TOKENS")
	setString(&cfg.Triage.URL, "CARELINE_TRIAGE_URL")
	setString(&cfg.Triage.SharedKey, "CARELINE_TRIAGE_SHARED_KEY")
	setInt(&cfg.Triage.DefaultAge, "CARELINE_TRIAGE_DEFAULT_AGE")
	setString(&cfg.Triage.DefaultSex, "CARELINE_TRIAGE_DEFAULT_SEX")
	setString(&cfg.Insurance.URL, "CARELINE_INSURANCE_URL")
	setString(&cfg.Insurance.APIKey, "CARELINE_INSURANCE_API_KEY")
	setString(&cfg.Insurance.ProviderNPI, "CARELINE_INSURANCE_PROVIDER_NPI")

	// Orchestrator
	setInt(&cfg.Orchestrator.MaxConsecutiveErrors, "CARELINE_MAX_CONSECUTIVE_ERRORS")
	setInt(&cfg.Orchestrator.MaxTriageAttempts, "CARELINE_MAX_TRIAGE_ATTEMPTS")
	setString(&cfg.Orchestrator.TriageRetryPolicy, "CARELINE_TRIAGE_RETRY_POLICY")
	setInt(&cfg.Orchestrator.HistoryWindow, "CARELINE_HISTORY_WINDOW")

	// Storage
	setString(&cfg.Store.Backend, "CARELINE_STORE_BACKEND")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.TasksBucket, "CARELINE_NATS_TASKS_BUCKET")
	setBool(&cfg.NATS.Events, "CARELINE_NATS_EVENTS")
	setInt64(&cfg.Cache.L1MaxSizeMB, "CARELINE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "CARELINE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.TTL, "CARELINE_CACHE_TTL")
	setString(&cfg.Recorder.Sink, "CARELINE_RECORDER_SINK")
	setString(&cfg.Recorder.Dir, "CARELINE_RECORDER_DIR")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CARELINE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CARELINE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CARELINE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CARELINE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CARELINE_PG_HEALTH_CHECK")

	// Telemetry
	setBool(&cfg.OTEL.Enabled, "CARELINE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "CARELINE_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "CARELINE_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "CARELINE_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "CARELINE_OTEL_SAMPLE_RATE")

	// Inbound surfaces
	setBool(&cfg.MCP.Enabled, "CARELINE_MCP_ENABLED")
	setString(&cfg.MCP.APIKey, "CARELINE_MCP_API_KEY")
	setString(&cfg.Auth.SharedKey, "CARELINE_SHARED_KEY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if budget := cfg.Gateway.TurnBudget(); cfg.Server.RequestTimeout < budget {
		return fmt.Errorf("server.request_timeout %s is shorter than a full turn (%s)", cfg.Server.RequestTimeout, budget)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Gateway.MaxConcurrent < 1 {
		return errors.New("gateway.max_concurrent must be >= 1")
	}
	if cfg.Orchestrator.MaxConsecutiveErrors < 1 {
		return errors.New("orchestrator.max_consecutive_errors must be >= 1")
	}
	if cfg.Orchestrator.MaxTriageAttempts < 0 {
		return errors.New("orchestrator.max_triage_attempts must be >= 0")
	}
	switch cfg.Orchestrator.TriageRetryPolicy {
	case RetryExhaustOnFailure, RetryAllowRetry:
	default:
		return fmt.Errorf("orchestrator.triage_retry_policy %q is not supported", cfg.Orchestrator.TriageRetryPolicy)
	}
	switch cfg.Store.Backend {
	case "memory":
	case "nats":
		if cfg.NATS.URL == "" {
			return errors.New("nats.url is required for the nats store backend")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", cfg.Store.Backend)
	}
	switch cfg.Recorder.Sink {
	case "file":
		if cfg.Recorder.Dir == "" {
			return errors.New("recorder.dir is required for the file sink")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres sink")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("recorder.sink %q is not supported", cfg.Recorder.Sink)
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be between 0 and 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
