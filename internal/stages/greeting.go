// internal/stages/greeting.go
package stages

import (
	"context"
	"fmt"

	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"
)

const (
	fallbackAskName = "Hello! I'm here to help you with personal loans. May I know your name?"
)

// Greeting collects the customer's name and hands over to Sales.
type Greeting struct {
	*base
}

func (h *Greeting) Name() string { return GreetingName }

func (h *Greeting) Process(ctx context.Context, app *models.LoanApplication, message string) (models.HandlerResult, error) {
	if app.Customer.Name == "" {
		directive := "Welcome the customer and ask for their name"
		if message != "" {
			directive = message
		}
		return models.HandlerResult{
			Handler: h.Name(),
			Message: h.phrase(ctx, "greeting", app, directive, fallbackAskName),
			Action:  models.ActionCollectName,
		}, nil
	}

	welcome := fmt.Sprintf("Nice to meet you, %s! Our personal loans start at %s%% per annum.",
		app.Customer.Name, finance.FormatPercent(finance.MinRate))
	return models.HandlerResult{
		Handler: h.Name(),
		Message: h.phrase(ctx, "greeting", app, "Customer wants to explore loan options", welcome),
		Next:    models.StatusSalesDiscussion,
		Updates: []models.Update{models.SetStatus{Value: models.StatusSalesDiscussion}},
	}, nil
}
