// internal/stages/completion.go
package stages

import (
	"context"
	"fmt"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"
)

// Completion renders the sanction letter and closes the application.
type Completion struct {
	*base
	renderer Renderer
}

func (h *Completion) Name() string { return CompletionName }

func (h *Completion) Process(ctx context.Context, app *models.LoanApplication, _ string) (models.HandlerResult, error) {
	if app.Customer.Name == "" {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: h.phrase(ctx, "completion", app, "Ask for the customer's name for the sanction letter", fallbackAskName),
			Action:  models.ActionCollectName,
		}, nil
	}

	if !app.HasTerms() {
		return models.HandlerResult{}, apperrors.NewInvariantViolationError("sanction letter requested without loan terms")
	}
	final := app.Clone()
	var updates []models.Update
	if !storedTermsConsistent(final) {
		final.InterestRate, final.EMI = termsFor(final.LoanAmount, final.TenureMonths, final.Customer.CreditScore)
		updates = append(updates, models.SetInterestRate{Value: final.InterestRate}, models.SetEMI{Value: final.EMI})
	}

	ref, err := h.renderer.Render(ctx, final)
	if err != nil {
		return models.HandlerResult{}, apperrors.NewDocumentRenderFailedError(err)
	}
	if ref == "" {
		return models.HandlerResult{}, apperrors.NewDocumentRenderFailedError(fmt.Errorf("renderer returned an empty reference"))
	}

	h.log.Info("Sanction letter generated", map[string]interface{}{
		"applicationId": app.ID,
		"reference":     ref,
	})

	updates = append(updates,
		models.SetSanctionLetterRef{Value: ref},
		models.SetStatus{Value: models.StatusCompleted},
	)
	return models.HandlerResult{
		Handler: h.Name(),
		Message: fmt.Sprintf("🎉 Your sanction letter for %s is ready.\nDocument: %s\n\nThank you for choosing us. Have a great day!",
			finance.FormatINR(final.LoanAmount), ref),
		Updates: updates,
	}, nil
}
