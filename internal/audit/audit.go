// internal/audit/audit.go

// Package audit keeps an append-only Postgres record of every committed
// conversation turn.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/models"
	"loan-advisor/internal/orchestrator"

	"github.com/lib/pq"
)

const (
	EventTurn          = "turn"
	EventStatusChanged = "status_changed"
)

const schema = `
CREATE TABLE IF NOT EXISTS loan_audit_log (
	id             BIGSERIAL PRIMARY KEY,
	application_id TEXT        NOT NULL,
	customer_id    TEXT        NOT NULL,
	event_type     TEXT        NOT NULL,
	from_status    TEXT        NOT NULL,
	to_status      TEXT        NOT NULL,
	handlers       TEXT[]      NOT NULL,
	routing_rule   TEXT        NOT NULL DEFAULT '',
	details        JSONB       NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS loan_audit_log_application_idx ON loan_audit_log (application_id, created_at);`

const insertTurn = `
	INSERT INTO loan_audit_log (
		application_id, customer_id, event_type, from_status, to_status,
		handlers, routing_rule, details, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const selectHistory = `
	SELECT details FROM loan_audit_log
	WHERE application_id = $1
	ORDER BY created_at, id`

// Recorder writes turns to loan_audit_log.
type Recorder struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRecorder(db *sql.DB, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Recorder{db: db, logger: log.WithFields(map[string]interface{}{"component": "audit"})}
}

// EnsureSchema creates the audit table when it is missing.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return apperrors.NewAuditWriteFailedError(fmt.Errorf("create schema: %w", err))
	}
	return nil
}

// Record appends one turn.
func (r *Recorder) Record(ctx context.Context, turn models.Turn) error {
	if turn.ApplicationID == "" {
		return apperrors.NewValidationError("audit record requires an application id")
	}
	details, err := json.Marshal(turn)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(err)
	}
	event := EventTurn
	if turn.FromStatus != turn.ToStatus {
		event = EventStatusChanged
	}
	handlers := turn.Handlers
	if handlers == nil {
		handlers = []string{}
	}

	_, err = r.db.ExecContext(ctx, insertTurn,
		turn.ApplicationID,
		turn.CustomerID,
		event,
		string(turn.FromStatus),
		string(turn.ToStatus),
		pq.Array(handlers),
		turn.RoutingRule,
		details,
		turn.OccurredAt,
	)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(err)
	}
	r.logger.Debug("Turn audited", map[string]interface{}{
		"applicationId": turn.ApplicationID,
		"event":         event,
	})
	return nil
}

// History returns the recorded turns of one application, oldest first.
func (r *Recorder) History(ctx context.Context, applicationID string) ([]models.Turn, error) {
	rows, err := r.db.QueryContext(ctx, selectHistory, applicationID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		var t models.Turn
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, apperrors.NewInvariantViolationError(fmt.Sprintf("corrupt audit row: %v", err))
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return turns, nil
}

func (r *Recorder) Name() string { return "audit" }

func (r *Recorder) AfterTurn(ctx context.Context, event orchestrator.TurnEvent) error {
	return r.Record(ctx, event.Turn)
}
