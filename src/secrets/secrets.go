// Package secrets retrieves secret values from AWS Secrets Manager or from memory.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"stackline/src/awsclient"
	"stackline/src/errs"
)

var (
	// ErrSecretNotFound is returned when the secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrFieldNotFound is returned when a JSON secret lacks the requested field.
	ErrFieldNotFound = errors.New("secret field not found")
)

// Provider returns secret strings by id.
type Provider interface {
	GetSecret(ctx context.Context, id string) (string, error)
}

// ManagerAPI is the subset of the Secrets Manager client used here.
type ManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads secrets from AWS Secrets Manager.
type AWSProvider struct {
	api ManagerAPI
}

// NewAWSProvider wraps a Secrets Manager client.
func NewAWSProvider(api ManagerAPI) *AWSProvider {
	return &AWSProvider{api: api}
}

// NewAWSProviderFromConfig builds a provider from an AWS configuration.
func NewAWSProviderFromConfig(cfg aws.Config) *AWSProvider {
	return NewAWSProvider(secretsmanager.NewFromConfig(cfg))
}

// GetSecret returns the secret's string value. A missing secret is a
// ConfigurationError; any other failure is an UpstreamError.
func (p *AWSProvider) GetSecret(ctx context.Context, id string) (string, error) {
	out, err := p.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		if awsclient.ErrorCode(err) == "ResourceNotFoundException" {
			return "", errs.Wrap(errs.KindConfiguration, ErrSecretNotFound, "secret %q", id)
		}
		return "", awsclient.Upstream("GetSecretValue", err)
	}

	if out.SecretString == nil {
		return "", errs.Wrap(errs.KindConfiguration, ErrSecretNotFound, "secret %q has no string value", id)
	}
	return *out.SecretString, nil
}

// MemoryProvider serves secrets from a map. Useful for tests and local runs.
type MemoryProvider struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryProvider creates a provider holding a copy of secrets.
func NewMemoryProvider(secrets map[string]string) *MemoryProvider {
	m := &MemoryProvider{secrets: make(map[string]string, len(secrets))}
	for k, v := range secrets {
		m.secrets[k] = v
	}
	return m
}

// Set stores a secret value.
func (m *MemoryProvider) Set(id, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[id] = value
}

func (m *MemoryProvider) GetSecret(ctx context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.secrets[id]
	if !ok {
		return "", errs.Wrap(errs.KindConfiguration, ErrSecretNotFound, "secret %q", id)
	}
	return v, nil
}

// GetField reads a JSON object secret and returns one of its string fields.
func GetField(ctx context.Context, p Provider, id, field string) (string, error) {
	raw, err := p.GetSecret(ctx, id)
	if err != nil {
		return "", err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", errs.Wrap(errs.KindParse, err, "secret %q is not a JSON object", id)
	}

	value, ok := fields[field].(string)
	if !ok || value == "" {
		return "", errs.Wrap(errs.KindConfiguration, ErrFieldNotFound, "secret %q has no %s", id, field)
	}
	return value, nil
}

// Cached memoizes successful lookups of another provider for the life of the value.
type Cached struct {
	Provider
	mu     sync.Mutex
	values map[string]string
}

// NewCached wraps p with a lookup cache.
func NewCached(p Provider) *Cached {
	return &Cached{Provider: p, values: map[string]string{}}
}

func (c *Cached) GetSecret(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	if v, ok := c.values[id]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.Provider.GetSecret(ctx, id)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", id, err)
	}

	c.mu.Lock()
	c.values[id] = v
	c.mu.Unlock()
	return v, nil
}
