package awsclient

import (
	"errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"

	"stackline/src/errs"
)

func TestErrorCode(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "no such secret"}

	assert.Equal(t, "ResourceNotFoundException", ErrorCode(apiErr))
	assert.Equal(t, "", ErrorCode(errors.New("dial tcp: timeout")))
}

func TestUpstream(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}

	err := Upstream("PutEvents", apiErr)
	assert.True(t, errs.IsUpstream(err))
	assert.Contains(t, err.Error(), "ThrottlingException")
	assert.ErrorIs(t, err, apiErr)

	plain := Upstream("PutObject", errors.New("connection reset"))
	assert.True(t, errs.IsUpstream(plain))
	assert.Contains(t, plain.Error(), "connection reset")
}
