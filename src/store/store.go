// Package store defines the interface for persisting pipeline executions.
package store

import (
	"context"
	"errors"

	"stackline/src/contracts"
)

// ErrNotFound is returned when an execution record does not exist.
var ErrNotFound = errors.New("execution not found")

// Store persists pipeline execution records.
type Store interface {
	// CreateExecution records a new execution. Creating an existing execution is a no-op.
	CreateExecution(ctx context.Context, rec *contracts.ExecutionRecord) error

	// GetExecution returns the execution of pipeline with the given id.
	GetExecution(ctx context.Context, pipeline, executionID string) (*contracts.ExecutionRecord, error)

	// UpdateExecution replaces the stored state of an existing execution.
	UpdateExecution(ctx context.Context, rec *contracts.ExecutionRecord) error

	// ListExecutions returns the most recent executions of pipeline, newest first.
	ListExecutions(ctx context.Context, pipeline string, limit int) ([]contracts.ExecutionRecord, error)

	// Close closes the store connection
	Close() error
}
