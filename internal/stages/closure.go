// internal/stages/closure.go
package stages

import (
	"context"
	"fmt"

	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"
)

// Closure answers on rejected and completed applications. It never
// returns updates.
type Closure struct {
	*base
}

func (h *Closure) Name() string { return ClosureName }

func (h *Closure) Process(_ context.Context, app *models.LoanApplication, _ string) (models.HandlerResult, error) {
	var text string
	switch app.Status {
	case models.StatusCompleted:
		text = fmt.Sprintf("Your loan of %s at %s%% for %d months is sanctioned.\nSanction letter: %s\n\nThis application is closed. Start a new conversation for another loan.",
			finance.FormatINR(app.LoanAmount), finance.FormatPercent(app.InterestRate), app.TenureMonths, app.SanctionLetterRef)
	case models.StatusRejected:
		reason := app.RejectionReason
		if reason == "" {
			reason = "the application did not meet our criteria"
		}
		text = fmt.Sprintf("This application was not approved: %s.\n\nThis application is closed. You're welcome to start a new application.", reason)
	default:
		text = "This application is closed."
	}
	return models.HandlerResult{Handler: h.Name(), Message: text}, nil
}
