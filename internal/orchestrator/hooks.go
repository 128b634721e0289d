// internal/orchestrator/hooks.go
package orchestrator

import (
	"context"
	"time"

	"loan-advisor/internal/models"
)

// TurnEvent describes a committed turn to post-commit hooks.
type TurnEvent struct {
	Before   *models.LoanApplication
	After    *models.LoanApplication
	Turn     models.Turn
	Response models.ChatResponse
	Duration time.Duration
}

// StatusChanged reports whether the turn moved the application.
func (e TurnEvent) StatusChanged() bool {
	return e.Before.Status != e.After.Status
}

// Hook runs after a turn is committed. Its error is logged and counted but
// never returned to the caller.
type Hook interface {
	Name() string
	AfterTurn(ctx context.Context, event TurnEvent) error
}

// HookFunc adapts a function to Hook.
type HookFunc struct {
	HookName string
	Fn       func(ctx context.Context, event TurnEvent) error
}

func (h HookFunc) Name() string { return h.HookName }

func (h HookFunc) AfterTurn(ctx context.Context, event TurnEvent) error {
	return h.Fn(ctx, event)
}
