// internal/store/repository.go

// Package store holds the live loan applications between turns.
package store

import (
	"context"

	"loan-advisor/internal/models"
)

// Repository is the shared application store. Implementations hand out and
// keep independent copies, so callers may mutate what Get returns.
type Repository interface {
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	// Create fails if the ID is already present.
	Create(ctx context.Context, app *models.LoanApplication) error
	// Put replaces the stored record, creating it if absent.
	Put(ctx context.Context, app *models.LoanApplication) error
}
