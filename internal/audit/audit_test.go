package audit

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/models"
	"loan-advisor/internal/orchestrator"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var occurred = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestRecorder(t *testing.T) (*Recorder, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRecorder(db, logger.NewTestLogger(t)), mock
}

func sampleTurn(from, to models.Status) models.Turn {
	return models.Turn{
		ApplicationID: "app-1",
		CustomerID:    "cust-1",
		Message:       "ok",
		Response:      "Credit assessment completed!",
		Handlers:      []string{"Underwriting Agent", "Eligibility Agent"},
		FromStatus:    from,
		ToStatus:      to,
		RoutingRule:   "current_stage",
		OccurredAt:    occurred,
	}
}

// ==========================
// Record
// ==========================

func TestRecorder_Record(t *testing.T) {
	tests := []struct {
		name      string
		turn      models.Turn
		wantEvent string
	}{
		{"status change", sampleTurn(models.StatusUnderwriting, models.StatusApproved), EventStatusChanged},
		{"same status", sampleTurn(models.StatusSalesDiscussion, models.StatusSalesDiscussion), EventTurn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newTestRecorder(t)
			details, err := json.Marshal(tt.turn)
			require.NoError(t, err)

			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO loan_audit_log")).
				WithArgs("app-1", "cust-1", tt.wantEvent, string(tt.turn.FromStatus), string(tt.turn.ToStatus),
					pq.Array(tt.turn.Handlers), "current_stage", details, occurred).
				WillReturnResult(sqlmock.NewResult(1, 1))

			require.NoError(t, r.Record(context.Background(), tt.turn))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecorder_RecordErrors(t *testing.T) {
	r, mock := newTestRecorder(t)

	err := r.Record(context.Background(), models.Turn{})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	mock.ExpectExec("INSERT INTO loan_audit_log").WillReturnError(errors.New("connection refused"))
	err = r.AfterTurn(context.Background(), orchestrator.TurnEvent{Turn: sampleTurn(models.StatusSalesDiscussion, models.StatusKYCVerification)})
	assert.Equal(t, apperrors.ErrCodeAuditWriteFailed, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_EnsureSchema(t *testing.T) {
	r, mock := newTestRecorder(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS loan_audit_log").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, r.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// History
// ==========================

func TestRecorder_History(t *testing.T) {
	first := sampleTurn(models.StatusInitiated, models.StatusSalesDiscussion)
	second := sampleTurn(models.StatusSalesDiscussion, models.StatusKYCVerification)
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)

	tests := []struct {
		name     string
		mock     func(mock sqlmock.Sqlmock)
		validate func(t *testing.T, turns []models.Turn, err error)
	}{
		{
			name: "ordered turns",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT details FROM loan_audit_log").WithArgs("app-1").
					WillReturnRows(sqlmock.NewRows([]string{"details"}).AddRow(a).AddRow(b))
			},
			validate: func(t *testing.T, turns []models.Turn, err error) {
				require.NoError(t, err)
				require.Len(t, turns, 2)
				assert.Equal(t, models.StatusSalesDiscussion, turns[0].ToStatus)
				assert.Equal(t, models.StatusKYCVerification, turns[1].ToStatus)
			},
		},
		{
			name: "query failure",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT details").WillReturnError(errors.New("timeout"))
			},
			validate: func(t *testing.T, _ []models.Turn, err error) {
				assert.Equal(t, apperrors.ErrCodeStoreUnavailable, apperrors.CodeOf(err))
			},
		},
		{
			name: "corrupt row",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT details").
					WillReturnRows(sqlmock.NewRows([]string{"details"}).AddRow([]byte(`{"toStatus":"archived"}`)))
			},
			validate: func(t *testing.T, _ []models.Turn, err error) {
				assert.True(t, errors.Is(err, apperrors.ErrInvariantViolation))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newTestRecorder(t)
			tt.mock(mock)
			turns, err := r.History(context.Background(), "app-1")
			tt.validate(t, turns, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
