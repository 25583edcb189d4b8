package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// Store is the registry of workflow executions. Implementations must be safe
// for concurrent use and must never hand out references to their canonical
// records.
type Store interface {
	// Create registers a new execution.
	Create(ctx context.Context, execution *Execution) error

	// Get retrieves an execution snapshot by id.
	Get(ctx context.Context, id string) (*Execution, error)

	// Update replaces an existing execution record.
	Update(ctx context.Context, execution *Execution) error

	// Delete removes an execution by id.
	Delete(ctx context.Context, id string) error

	// List returns snapshots of all executions matching the query.
	List(ctx context.Context, query *Query) ([]*Execution, error)
}

// Query defines query parameters for listing executions.
type Query struct {
	Status *Status // Filter by status
	Name   string  // Filter by exact workflow name
	Limit  int     // Maximum number of results (0 = no limit)
	Offset int     // Number of results to skip
}

// MemoryStore is an in-memory implementation of Store. It is thread-safe and
// suitable for testing or single-instance deployments; records live for the
// process lifetime with no automatic expiry.
type MemoryStore struct {
	mu         sync.RWMutex
	executions map[string]*Execution
}

// NewMemoryStore creates a new in-memory execution store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string]*Execution),
	}
}

// Create registers a new execution.
func (s *MemoryStore) Create(ctx context.Context, execution *Execution) error {
	if execution == nil {
		return &enginerrors.ValidationError{
			Field:   "execution",
			Message: "execution cannot be nil",
		}
	}
	if execution.ID == "" {
		return &enginerrors.ValidationError{
			Field:   "id",
			Message: "execution ID cannot be empty",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[execution.ID]; exists {
		return &enginerrors.ValidationError{
			Field:      "id",
			Message:    fmt.Sprintf("execution with ID %s already exists", execution.ID),
			Suggestion: "use a unique execution ID or call Update instead",
		}
	}

	if execution.Status == "" {
		execution.Status = StatusPending
	}
	if execution.Results == nil {
		execution.Results = make(map[string]interface{})
	}
	if execution.Errors == nil {
		execution.Errors = make(map[string]string)
	}

	// Store a copy to prevent external modifications
	s.executions[execution.ID] = execution.Clone()

	return nil
}

// Get retrieves an execution snapshot by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Execution, error) {
	if id == "" {
		return nil, &enginerrors.ValidationError{
			Field:   "id",
			Message: "execution ID cannot be empty",
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	execution, exists := s.executions[id]
	if !exists {
		return nil, &enginerrors.NotFoundError{
			Resource: "workflow",
			ID:       id,
		}
	}

	return execution.Clone(), nil
}

// Update replaces an existing execution record.
func (s *MemoryStore) Update(ctx context.Context, execution *Execution) error {
	if execution == nil {
		return &enginerrors.ValidationError{
			Field:   "execution",
			Message: "execution cannot be nil",
		}
	}
	if execution.ID == "" {
		return &enginerrors.ValidationError{
			Field:   "id",
			Message: "execution ID cannot be empty",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[execution.ID]; !exists {
		return &enginerrors.NotFoundError{
			Resource: "workflow",
			ID:       execution.ID,
		}
	}

	s.executions[execution.ID] = execution.Clone()

	return nil
}

// Delete removes an execution by id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &enginerrors.ValidationError{
			Field:   "id",
			Message: "execution ID cannot be empty",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[id]; !exists {
		return &enginerrors.NotFoundError{
			Resource: "workflow",
			ID:       id,
		}
	}

	delete(s.executions, id)

	return nil
}

// List returns snapshots of all executions matching the query, newest first.
func (s *MemoryStore) List(ctx context.Context, query *Query) ([]*Execution, error) {
	s.mu.RLock()

	var results []*Execution
	for _, execution := range s.executions {
		if matchesQuery(execution, query) {
			results = append(results, execution.Clone())
		}
	}

	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if !results[i].StartTime.Equal(results[j].StartTime) {
			return results[i].StartTime.After(results[j].StartTime)
		}
		return results[i].ID < results[j].ID
	})

	if query != nil {
		if query.Offset > 0 {
			if query.Offset >= len(results) {
				return []*Execution{}, nil
			}
			results = results[query.Offset:]
		}
		if query.Limit > 0 && len(results) > query.Limit {
			results = results[:query.Limit]
		}
	}

	return results, nil
}

// matchesQuery checks if an execution matches the query criteria.
func matchesQuery(execution *Execution, query *Query) bool {
	if query == nil {
		return true
	}

	if query.Status != nil && execution.Status != *query.Status {
		return false
	}

	if query.Name != "" && execution.Name != query.Name {
		return false
	}

	return true
}
