package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackline/src/errs"
)

type fakeManager struct {
	values map[string]string
	err    error
	calls  int
}

func (f *fakeManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "not found"}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestAWSProvider_GetSecret(t *testing.T) {
	api := &fakeManager{values: map[string]string{"github-token": "ghp_123"}}
	p := NewAWSProvider(api)

	v, err := p.GetSecret(context.Background(), "github-token")
	require.NoError(t, err)
	assert.Equal(t, "ghp_123", v)

	_, err = p.GetSecret(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.True(t, errs.IsConfiguration(err))
}

func TestAWSProvider_UpstreamError(t *testing.T) {
	api := &fakeManager{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}}

	_, err := NewAWSProvider(api).GetSecret(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errs.IsUpstream(err))
	assert.Contains(t, err.Error(), "AccessDeniedException")
}

func TestGetField(t *testing.T) {
	p := NewMemoryProvider(map[string]string{
		"slack":    `{"SLACK_WEBHOOK_URL":"https://hooks.slack.com/services/T/B/X"}`,
		"empty":    `{}`,
		"not-json": `hooks`,
	})
	ctx := context.Background()

	url, err := GetField(ctx, p, "slack", "SLACK_WEBHOOK_URL")
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/X", url)

	_, err = GetField(ctx, p, "empty", "SLACK_WEBHOOK_URL")
	assert.ErrorIs(t, err, ErrFieldNotFound)

	_, err = GetField(ctx, p, "not-json", "SLACK_WEBHOOK_URL")
	assert.True(t, errs.IsParse(err))

	_, err = GetField(ctx, p, "absent", "SLACK_WEBHOOK_URL")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestCached(t *testing.T) {
	api := &fakeManager{values: map[string]string{"token": "abc"}}
	c := NewCached(NewAWSProvider(api))

	for i := 0; i < 3; i++ {
		v, err := c.GetSecret(context.Background(), "token")
		require.NoError(t, err)
		assert.Equal(t, "abc", v)
	}
	assert.Equal(t, 1, api.calls)

	_, err := c.GetSecret(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrSecretNotFound))
}
