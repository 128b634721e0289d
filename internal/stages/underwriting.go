// internal/stages/underwriting.go
package stages

import (
	"context"
	"fmt"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"
)

// Underwriting fetches a credit score and sets the pre-approved limit.
type Underwriting struct {
	*base
	bureau CreditBureau
}

func (h *Underwriting) Name() string { return UnderwritingName }

func (h *Underwriting) Process(ctx context.Context, app *models.LoanApplication, _ string) (models.HandlerResult, error) {
	score, err := h.bureau.Score(ctx, app)
	if err != nil {
		return models.HandlerResult{}, apperrors.NewExternalServiceError("credit_bureau", err)
	}
	limit := PreApprovedLimit(score)

	h.log.Info("Credit assessment completed", map[string]interface{}{
		"applicationId":    app.ID,
		"creditScore":      score,
		"preApprovedLimit": limit,
	})

	return models.HandlerResult{
		Handler: h.Name(),
		Message: fmt.Sprintf("Credit assessment completed!\nCredit Score: %d\nPre-approved Limit: %s\n\nProceeding to eligibility check...",
			score, finance.FormatINR(limit)),
		Next: models.StatusEligibilityCheck,
		Updates: []models.Update{
			models.SetCreditScore{Value: score},
			models.SetPreApprovedLimit{Value: limit},
			models.SetStatus{Value: models.StatusEligibilityCheck},
		},
	}, nil
}

// PreApprovedLimit steps the instant-approval ceiling by credit score.
func PreApprovedLimit(score int) float64 {
	switch {
	case score >= 750:
		return 10 * finance.Lakh
	case score >= 700:
		return 5 * finance.Lakh
	case score >= 650:
		return 3 * finance.Lakh
	default:
		return 1 * finance.Lakh
	}
}
