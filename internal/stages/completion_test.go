package stages

import (
	"context"
	stderrors "errors"
	"testing"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedApp() *models.LoanApplication {
	app := newApp(models.StatusApproved)
	app.LoanAmount, app.TenureMonths, app.InterestRate = 500000, 24, 11
	app.EMI = finance.EMI(500000, 11, 24)
	app.Customer.CreditScore, app.PreApprovedLimit = 720, 500000
	return app
}

func TestCompletion_RecordsReference(t *testing.T) {
	renderer := &stubRenderer{ref: "s3://sanction-letters/app-1.pdf"}
	s := newTestStages(t, Dependencies{Renderer: renderer})

	r, err := s.completion.Process(context.Background(), approvedApp(), "")
	require.NoError(t, err)

	assert.Equal(t, CompletionName, r.Handler)
	assert.Equal(t, models.StatusCompleted, statusUpdate(t, r))
	ref, ok := findUpdate[models.SetSanctionLetterRef](r.Updates)
	require.True(t, ok)
	assert.Equal(t, "s3://sanction-letters/app-1.pdf", ref.Value)
	assert.Contains(t, r.Message, "s3://sanction-letters/app-1.pdf")
	require.Len(t, renderer.rendered, 1)
	assert.Equal(t, 500000.0, renderer.rendered[0].LoanAmount)
}

func TestCompletion_RenderFailureIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		renderer *stubRenderer
	}{
		{"renderer error", &stubRenderer{err: stderrors.New("disk full")}},
		{"empty reference", &stubRenderer{ref: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStages(t, Dependencies{Renderer: tt.renderer})
			r, err := s.completion.Process(context.Background(), approvedApp(), "")
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, apperrors.ErrRenderFailed))
			assert.Empty(t, r.Updates)
		})
	}
}

func TestCompletion_RequiresName(t *testing.T) {
	renderer := &stubRenderer{ref: "x"}
	s := newTestStages(t, Dependencies{Renderer: renderer})
	app := approvedApp()
	app.Customer.Name = ""

	r, err := s.completion.Process(context.Background(), app, "")
	require.NoError(t, err)
	assert.Equal(t, models.ActionCollectName, r.Action)
	assert.Empty(t, renderer.rendered)
}

func TestCompletion_PricesMissingEMI(t *testing.T) {
	renderer := &stubRenderer{ref: "x"}
	s := newTestStages(t, Dependencies{Renderer: renderer})
	app := approvedApp()
	app.EMI = 0

	r, err := s.completion.Process(context.Background(), app, "")
	require.NoError(t, err)
	emi, ok := findUpdate[models.SetEMI](r.Updates)
	require.True(t, ok)
	assert.Positive(t, emi.Value)
	assert.Equal(t, emi.Value, renderer.rendered[0].EMI)
}
