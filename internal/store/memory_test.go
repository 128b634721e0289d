package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(4)
	app := models.NewLoanApplication("cust-1")
	require.NoError(t, repo.Create(ctx, app))

	app.LoanAmount = 999 // caller's copy only
	got, err := repo.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LoanAmount)

	got.Customer.Name = "mutated"
	again, err := repo.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Customer.Name)
}

func TestMemoryRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(0)

	_, err := repo.Get(ctx, "missing")
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))

	app := models.NewLoanApplication("cust-1")
	require.NoError(t, repo.Create(ctx, app))
	err = repo.Create(ctx, app)
	assert.True(t, stderrors.Is(err, apperrors.ErrInvariantViolation))

	err = repo.Put(ctx, &models.LoanApplication{})
	assert.True(t, stderrors.Is(err, apperrors.ErrValidation))
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(8)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			app := models.NewLoanApplication(fmt.Sprintf("cust-%d", i))
			if err := repo.Create(ctx, app); err != nil {
				t.Error(err)
				return
			}
			for j := 0; j < 20; j++ {
				got, err := repo.Get(ctx, app.ID)
				if err != nil {
					t.Error(err)
					return
				}
				got.TenureMonths = j + 1
				if err := repo.Put(ctx, got); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, repo.Len())
}
