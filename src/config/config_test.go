package config

import (
	"testing"

	"stackline/src/errs"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(lookupFrom(nil))
	if err != nil {
		t.Fatalf("LoadFrom() unexpected error: %v", err)
	}

	if cfg.AWSRegion != DefaultRegion {
		t.Errorf("AWSRegion = %q, want %q", cfg.AWSRegion, DefaultRegion)
	}
	if cfg.EventBus != DefaultEventBus {
		t.Errorf("EventBus = %q, want %q", cfg.EventBus, DefaultEventBus)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.UseRedpanda() || cfg.UsePostgres() {
		t.Error("no broker or store should be configured by default")
	}
	if cfg.Branch() != "master" {
		t.Errorf("Branch() = %q, want master", cfg.Branch())
	}
}

func TestLoadFrom_Values(t *testing.T) {
	cfg, err := LoadFrom(lookupFrom(map[string]string{
		"GITHUB_PR_NUMBER": "42",
		"GITHUB_HEAD_REF":  "feature/status",
		"BUCKET_NAME":      "archive",
		"REDPANDA_BROKERS": "localhost:19092, localhost:29092,",
		"POSTGRES_DSN":     "postgres://localhost/stackline",
		"LOG_FORMAT":       "json",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() unexpected error: %v", err)
	}

	if len(cfg.RedpandaBrokers) != 2 || cfg.RedpandaBrokers[1] != "localhost:29092" {
		t.Errorf("RedpandaBrokers = %v, want 2 trimmed entries", cfg.RedpandaBrokers)
	}
	if !cfg.UsePostgres() {
		t.Error("UsePostgres() = false, want true")
	}
	if cfg.Branch() != "feature/status" {
		t.Errorf("Branch() = %q, want feature/status", cfg.Branch())
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad level", map[string]string{"LOG_LEVEL": "chatty"}},
		{"bad format", map[string]string{"LOG_FORMAT": "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(lookupFrom(tt.env))
			if !errs.IsConfiguration(err) {
				t.Errorf("LoadFrom() error = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestEnvironmentNaming(t *testing.T) {
	tests := []struct {
		pr          string
		wantEnv     string
		wantStack   string
		wantBucket  string
		integration bool
	}{
		{"", "Production", "InfrastructureStack-Production", "static-app-production", false},
		{"17", "Integration-17", "InfrastructureStack-Integration-17", "static-app-17", true},
	}

	for _, tt := range tests {
		t.Run(tt.wantEnv, func(t *testing.T) {
			cfg := &Config{PRNumber: tt.pr}
			if got := cfg.Environment(); got != tt.wantEnv {
				t.Errorf("Environment() = %q, want %q", got, tt.wantEnv)
			}
			if got := cfg.Suffixed("InfrastructureStack"); got != tt.wantStack {
				t.Errorf("Suffixed() = %q, want %q", got, tt.wantStack)
			}
			if got := cfg.Lowered("static-app"); got != tt.wantBucket {
				t.Errorf("Lowered() = %q, want %q", got, tt.wantBucket)
			}
			if cfg.IsIntegration() != tt.integration {
				t.Errorf("IsIntegration() = %v, want %v", cfg.IsIntegration(), tt.integration)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	cfg := &Config{}
	if _, err := cfg.RequireBucket(); !errs.IsConfiguration(err) {
		t.Errorf("RequireBucket() error = %v, want ConfigurationError", err)
	}

	cfg.BucketName = "archive"
	if got, err := cfg.RequireBucket(); err != nil || got != "archive" {
		t.Errorf("RequireBucket() = %q, %v", got, err)
	}

	if _, err := RequireSecret("", "AWS_SECRETS_SLACK"); !errs.IsConfiguration(err) {
		t.Errorf("RequireSecret() error = %v, want ConfigurationError", err)
	}
}
