// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/models"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "loan:application:"

// RedisRepository stores applications as JSON documents, one key each.
type RedisRepository struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisRepository accepts any redis.Cmdable so tests can pass a mock.
// A zero ttl keeps records forever.
func NewRedisRepository(client redis.Cmdable, prefix string, ttl time.Duration) *RedisRepository {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + id
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NewNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}

	var app models.LoanApplication
	if err := json.Unmarshal(raw, &app); err != nil {
		return nil, apperrors.NewInvariantViolationError(fmt.Sprintf("corrupt record %s: %v", id, err))
	}
	return &app, nil
}

func (r *RedisRepository) Create(ctx context.Context, app *models.LoanApplication) error {
	payload, err := encode(app)
	if err != nil {
		return err
	}
	created, err := r.client.SetNX(ctx, r.key(app.ID), payload, r.ttl).Result()
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	if !created {
		return apperrors.NewInvariantViolationError(fmt.Sprintf("application %s already exists", app.ID))
	}
	return nil
}

func (r *RedisRepository) Put(ctx context.Context, app *models.LoanApplication) error {
	payload, err := encode(app)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(app.ID), payload, r.ttl).Err(); err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}

func encode(app *models.LoanApplication) ([]byte, error) {
	if app == nil || app.ID == "" {
		return nil, apperrors.NewValidationError("application id is required")
	}
	payload, err := json.Marshal(app)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return payload, nil
}
