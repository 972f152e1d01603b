package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Orchestrator.MaxConsecutiveErrors != 3 {
		t.Errorf("expected max consecutive errors 3, got %d", cfg.Orchestrator.MaxConsecutiveErrors)
	}
	if cfg.Orchestrator.MaxTriageAttempts != 1 {
		t.Errorf("expected max triage attempts 1, got %d", cfg.Orchestrator.MaxTriageAttempts)
	}
	if cfg.Orchestrator.TriageRetryPolicy != RetryExhaustOnFailure {
		t.Errorf("expected exhaust_on_failure, got %s", cfg.Orchestrator.TriageRetryPolicy)
	}
	if cfg.Gateway.InsuranceTimeout != 45*time.Second {
		t.Errorf("expected insurance timeout 45s, got %v", cfg.Gateway.InsuranceTimeout)
	}
	if cfg.Gateway.ExtractionTimeout != 30*time.Second {
		t.Errorf("expected extraction timeout 30s, got %v", cfg.Gateway.ExtractionTimeout)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected memory store, got %s", cfg.Store.Backend)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
orchestrator:
  max_triage_attempts: 2
  triage_retry_policy: "allow_retry"
recorder:
  sink: "postgres"
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Orchestrator.MaxTriageAttempts != 2 {
		t.Errorf("expected 2 triage attempts, got %d", cfg.Orchestrator.MaxTriageAttempts)
	}
	if cfg.Orchestrator.TriageRetryPolicy != RetryAllowRetry {
		t.Errorf("expected allow_retry, got %s", cfg.Orchestrator.TriageRetryPolicy)
	}
	if cfg.Recorder.Sink != "postgres" {
		t.Errorf("expected postgres sink, got %s", cfg.Recorder.Sink)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.Orchestrator.HistoryWindow != 6 {
		t.Errorf("expected default history window, got %d", cfg.Orchestrator.HistoryWindow)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(yamlPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("CARELINE_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("CARELINE_MAX_CONSECUTIVE_ERRORS", "5")
	t.Setenv("CARELINE_LOG_LEVEL", "warn")
	t.Setenv("CARELINE_TRIAGE_TIMEOUT", "10s")
	t.Setenv("CARELINE_LOG_ASYNC", "true")
	t.Setenv("CARELINE_OTEL_SAMPLE_RATE", "0.5")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Orchestrator.MaxConsecutiveErrors != 5 {
		t.Errorf("expected 5 max errors, got %d", cfg.Orchestrator.MaxConsecutiveErrors)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Gateway.TriageTimeout != 10*time.Second {
		t.Errorf("expected triage timeout 10s, got %v", cfg.Gateway.TriageTimeout)
	}
	if !cfg.Logging.Async {
		t.Error("expected async logging")
	}
	if cfg.OTEL.SampleRate != 0.5 {
		t.Errorf("expected sample rate 0.5, got %v", cfg.OTEL.SampleRate)
	}
}

func TestEnvInvalidValueIgnored(t *testing.T) {
	cfg := Defaults()
	t.Setenv("CARELINE_HISTORY_WINDOW", "many")
	t.Setenv("CARELINE_BREAKER_TIMEOUT", "soon")

	loadEnv(&cfg)

	if cfg.Orchestrator.HistoryWindow != 6 {
		t.Errorf("invalid int should be ignored, got %d", cfg.Orchestrator.HistoryWindow)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("invalid duration should be ignored, got %v", cfg.Breaker.Timeout)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "request timeout shorter than a turn",
			modify: func(c *Config) { c.Server.RequestTimeout = 2 * time.Minute },
			errMsg: "server.request_timeout 2m0s is shorter than a full turn (2m30s)",
		},
		{
			name: "raised capability timeout",
			modify: func(c *Config) {
				c.Gateway.InsuranceTimeout = 90 * time.Second
			},
			errMsg: "server.request_timeout 3m0s is shorter than a full turn (4m0s)",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name:   "zero gateway concurrency",
			modify: func(c *Config) { c.Gateway.MaxConcurrent = 0 },
			errMsg: "gateway.max_concurrent must be >= 1",
		},
		{
			name:   "zero max errors",
			modify: func(c *Config) { c.Orchestrator.MaxConsecutiveErrors = 0 },
			errMsg: "orchestrator.max_consecutive_errors must be >= 1",
		},
		{
			name:   "unknown retry policy",
			modify: func(c *Config) { c.Orchestrator.TriageRetryPolicy = "sometimes" },
			errMsg: `orchestrator.triage_retry_policy "sometimes" is not supported`,
		},
		{
			name:   "unknown store backend",
			modify: func(c *Config) { c.Store.Backend = "redis" },
			errMsg: `store.backend "redis" is not supported`,
		},
		{
			name: "nats store without url",
			modify: func(c *Config) {
				c.Store.Backend = "nats"
				c.NATS.URL = ""
			},
			errMsg: "nats.url is required for the nats store backend",
		},
		{
			name:   "file sink without dir",
			modify: func(c *Config) { c.Recorder.Dir = "" },
			errMsg: "recorder.dir is required for the file sink",
		},
		{
			name: "postgres sink without dsn",
			modify: func(c *Config) {
				c.Recorder.Sink = "postgres"
				c.Postgres.DSN = ""
			},
			errMsg: "postgres.dsn is required for the postgres sink",
		},
		{
			name:   "sample rate out of range",
			modify: func(c *Config) { c.OTEL.SampleRate = 2 },
			errMsg: "otel.sample_rate must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}
