package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"stackline/src/contracts"
)

// MemoryStore is an in-memory implementation of Store.
// Useful for testing and local runs.
type MemoryStore struct {
	mu         sync.RWMutex
	executions map[string]*contracts.ExecutionRecord // pipeline/executionID -> record
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string]*contracts.ExecutionRecord),
	}
}

func executionKey(pipeline, executionID string) string {
	return pipeline + "/" + executionID
}

// CreateExecution records a new execution.
func (s *MemoryStore) CreateExecution(ctx context.Context, rec *contracts.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := executionKey(rec.PipelineName, rec.ExecutionID)
	if _, exists := s.executions[key]; exists {
		return nil
	}
	s.executions[key] = rec.Clone()
	return nil
}

// GetExecution returns a copy of the stored execution.
func (s *MemoryStore) GetExecution(ctx context.Context, pipeline, executionID string) (*contracts.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.executions[executionKey(pipeline, executionID)]
	if !exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, pipeline, executionID)
	}
	return rec.Clone(), nil
}

// UpdateExecution replaces the stored execution.
func (s *MemoryStore) UpdateExecution(ctx context.Context, rec *contracts.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := executionKey(rec.PipelineName, rec.ExecutionID)
	if _, exists := s.executions[key]; !exists {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, rec.PipelineName, rec.ExecutionID)
	}
	s.executions[key] = rec.Clone()
	return nil
}

// ListExecutions returns executions of pipeline, newest first.
func (s *MemoryStore) ListExecutions(ctx context.Context, pipeline string, limit int) ([]contracts.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []contracts.ExecutionRecord
	for _, rec := range s.executions {
		if rec.PipelineName == pipeline {
			out = append(out, *rec.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
