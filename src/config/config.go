// Package config provides configuration management for stackline.
package config

import (
	"fmt"
	"os"
	"strings"

	"stackline/src/errs"
	"stackline/src/logger"
)

const (
	// DefaultRegion is used when AWS_REGION is unset.
	DefaultRegion = "eu-west-2"
	// DefaultEventBus is the bus name used when EVENT_BUS_NAME is unset.
	DefaultEventBus = "default"
	// DefaultHTTPAddr is the listen address of the local gateway.
	DefaultHTTPAddr = ":8080"
	// ProductionEnvironment names deployments that are not tied to a pull request.
	ProductionEnvironment = "Production"
)

// Config holds the application configuration.
type Config struct {
	// PRNumber is the pull request number of an integration deployment (GITHUB_PR_NUMBER).
	PRNumber string
	// HeadRef is the source branch tracked by the pipeline (GITHUB_HEAD_REF).
	HeadRef string
	// BucketName is the archive bucket for storage events (BUCKET_NAME).
	BucketName string
	// GitHubSecretID names the secret holding the GitHub token (AWS_SECRETS_GITHUB).
	GitHubSecretID string
	// SlackSecretID names the secret holding the Slack webhook (AWS_SECRETS_SLACK).
	SlackSecretID string

	AWSRegion   string
	AWSEndpoint string
	EventBus    string

	// RedpandaBrokers enables the distributed broker when non-empty.
	RedpandaBrokers []string
	// PostgresDSN enables the Postgres execution store when non-empty.
	PostgresDSN string

	LogLevel  string
	LogFormat string
	HTTPAddr  string

	// ArchiveACL is an optional canned ACL applied to archived objects.
	ArchiveACL string
	// StatusContext overrides the commit status context label.
	StatusContext string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom loads configuration through lookup, which behaves like os.LookupEnv.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := &Config{
		PRNumber:       get("GITHUB_PR_NUMBER", ""),
		HeadRef:        get("GITHUB_HEAD_REF", ""),
		BucketName:     get("BUCKET_NAME", ""),
		GitHubSecretID: get("AWS_SECRETS_GITHUB", ""),
		SlackSecretID:  get("AWS_SECRETS_SLACK", ""),
		AWSRegion:      get("AWS_REGION", DefaultRegion),
		AWSEndpoint:    get("AWS_ENDPOINT_URL", ""),
		EventBus:       get("EVENT_BUS_NAME", DefaultEventBus),
		PostgresDSN:    get("POSTGRES_DSN", ""),
		LogLevel:       get("LOG_LEVEL", "info"),
		LogFormat:      get("LOG_FORMAT", "text"),
		HTTPAddr:       get("HTTP_ADDR", DefaultHTTPAddr),
		ArchiveACL:     get("ARCHIVE_OBJECT_ACL", ""),
		StatusContext:  get("STATUS_CONTEXT", ""),
	}

	if brokers := get("REDPANDA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.RedpandaBrokers = append(cfg.RedpandaBrokers, b)
			}
		}
	}

	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return nil, errs.Configuration("LOG_LEVEL: %v", err)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return nil, errs.Configuration("LOG_FORMAT: unknown format %q (want text or json)", cfg.LogFormat)
	}

	return cfg, nil
}

// MustLoadFromEnv loads configuration from environment variables and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoadFromEnv() *Config {
	cfg, err := LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// IsIntegration reports whether this deployment belongs to a pull request.
func (c *Config) IsIntegration() bool {
	return c.PRNumber != ""
}

// Environment returns "Integration-<pr>" for pull request deployments and "Production" otherwise.
func (c *Config) Environment() string {
	if c.IsIntegration() {
		return "Integration-" + c.PRNumber
	}
	return ProductionEnvironment
}

// Suffixed appends the environment to a resource base name, e.g. "InfrastructureStack-Production".
func (c *Config) Suffixed(base string) string {
	return base + "-" + c.Environment()
}

// Lowered returns "<base>-<pr>" for integration deployments and "<base>-production" otherwise.
// Used for resources that must be lowercase, like bucket names.
func (c *Config) Lowered(base string) string {
	if c.IsIntegration() {
		return strings.ToLower(base + "-" + c.PRNumber)
	}
	return strings.ToLower(base + "-production")
}

// Branch returns the tracked source branch, defaulting to master.
func (c *Config) Branch() string {
	if c.HeadRef == "" {
		return "master"
	}
	return c.HeadRef
}

// UseRedpanda reports whether a distributed broker is configured.
func (c *Config) UseRedpanda() bool {
	return len(c.RedpandaBrokers) > 0
}

// UsePostgres reports whether a Postgres store is configured.
func (c *Config) UsePostgres() bool {
	return c.PostgresDSN != ""
}

// RequireBucket returns the archive bucket or a ConfigurationError when it is unset.
func (c *Config) RequireBucket() (string, error) {
	if c.BucketName == "" {
		return "", errs.Configuration("BUCKET_NAME is not set").WithHint("set BUCKET_NAME to the archive bucket name")
	}
	return c.BucketName, nil
}

// RequireSecret returns the secret id or a ConfigurationError naming envVar when it is empty.
func RequireSecret(id, envVar string) (string, error) {
	if id == "" {
		return "", errs.Configuration("%s is not set", envVar).WithHint("set " + envVar + " to the secret name or ARN")
	}
	return id, nil
}

// NewLogger builds the logger described by LOG_LEVEL and LOG_FORMAT, writing to stderr.
func (c *Config) NewLogger() (logger.Logger, error) {
	return logger.New(c.LogLevel, c.LogFormat, os.Stderr)
}
