// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/models"
)

const defaultShards = 32

type shard struct {
	mu   sync.RWMutex
	apps map[string]*models.LoanApplication
}

// MemoryRepository is a sharded in-process map. Nothing survives a restart.
type MemoryRepository struct {
	shards []*shard
}

// NewMemoryRepository builds a repository with n shards (defaultShards when n <= 0).
func NewMemoryRepository(n int) *MemoryRepository {
	if n <= 0 {
		n = defaultShards
	}
	r := &MemoryRepository{shards: make([]*shard, n)}
	for i := range r.shards {
		r.shards[i] = &shard{apps: make(map[string]*models.LoanApplication)}
	}
	return r
}

func (r *MemoryRepository) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.LoanApplication, error) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(id)
	}
	return app.Clone(), nil
}

func (r *MemoryRepository) Create(_ context.Context, app *models.LoanApplication) error {
	if app == nil || app.ID == "" {
		return apperrors.NewValidationError("application id is required")
	}
	s := r.shardFor(app.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[app.ID]; exists {
		return apperrors.NewInvariantViolationError(fmt.Sprintf("application %s already exists", app.ID))
	}
	s.apps[app.ID] = app.Clone()
	return nil
}

func (r *MemoryRepository) Put(_ context.Context, app *models.LoanApplication) error {
	if app == nil || app.ID == "" {
		return apperrors.NewValidationError("application id is required")
	}
	s := r.shardFor(app.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apps[app.ID] = app.Clone()
	return nil
}

// Len counts stored applications across all shards.
func (r *MemoryRepository) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.apps)
		s.mu.RUnlock()
	}
	return n
}
