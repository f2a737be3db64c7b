package pipeline

import (
	"errors"

	"stackline/src/errs"
)

// Graph validation failures. Each is returned wrapped in an errs.Error of kind
// ConfigurationError, so callers can match either the kind or the sentinel.
var (
	ErrDanglingArtifact   = errors.New("dangling artifact reference")
	ErrDuplicateArtifact  = errors.New("duplicate artifact name")
	ErrSourceStage        = errors.New("missing or duplicate source stage")
	ErrDuplicateStage     = errors.New("duplicate stage name")
	ErrDuplicateAction    = errors.New("duplicate action name")
	ErrEmptyStage         = errors.New("stage has no actions")
	ErrInvalidRunOrder    = errors.New("invalid run order")
	ErrInvalidAction      = errors.New("invalid action")
	ErrConflictingBinding = errors.New("conflicting parameter binding")
	ErrUnresolvedArtifact = errors.New("unresolved artifact location")
)

func wrapConfig(sentinel error, format string, args ...any) error {
	return errs.Wrap(errs.KindConfiguration, sentinel, format, args...)
}
