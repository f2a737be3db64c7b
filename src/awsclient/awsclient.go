// Package awsclient loads the shared AWS configuration and classifies SDK errors.
package awsclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/smithy-go"

	"stackline/src/errs"
)

// Load returns the default AWS configuration for region. When endpoint is
// set (for example a LocalStack URL) every service client built from the
// configuration talks to it instead of the public endpoints.
func Load(ctx context.Context, region, endpoint string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}
	return cfg, nil
}

// ErrorCode returns the service error code carried by err, or "" if err did
// not come from an AWS API.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// Upstream classifies an SDK error as an UpstreamError for op, keeping the
// service error code in the message.
func Upstream(op string, err error) error {
	if code := ErrorCode(err); code != "" {
		return &errs.Error{Kind: errs.KindUpstream, Op: op, Message: code, Err: err}
	}
	return errs.Upstream(op, err)
}
