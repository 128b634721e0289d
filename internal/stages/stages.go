// internal/stages/stages.go

// Package stages holds one handler per lifecycle stage of a loan
// application. Handlers read a snapshot of the record and return the typed
// updates the orchestrator should apply; they never mutate the record.
package stages

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"
)

// Handler labels, returned to callers as the agent name.
const (
	GreetingName     = "Greeting Agent"
	SalesName        = "Sales Agent"
	VerificationName = "Verification Agent"
	UnderwritingName = "Underwriting Agent"
	EligibilityName  = "Eligibility Agent"
	CompletionName   = "Completion Agent"
	ClosureName      = "Closure Agent"
)

// Handler processes one message for one stage.
type Handler interface {
	Name() string
	Process(ctx context.Context, app *models.LoanApplication, message string) (models.HandlerResult, error)
}

// Dependencies are the collaborators shared by the handlers. Generator may
// be nil, in which case every prompt uses its fallback text.
type Dependencies struct {
	Generator TextGenerator
	KYC       KYCVerifier
	Bureau    CreditBureau
	Renderer  Renderer
	Logger    logger.Logger
}

// Stages maps every status to its handler.
type Stages struct {
	greeting     *Greeting
	sales        *Sales
	verification *Verification
	underwriting *Underwriting
	eligibility  *Eligibility
	completion   *Completion
	closure      *Closure
}

// New wires all handlers to the same dependencies.
func New(deps Dependencies) *Stages {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	b := &base{gen: deps.Generator, log: deps.Logger}
	return &Stages{
		greeting:     &Greeting{base: b},
		sales:        &Sales{base: b},
		verification: &Verification{base: b, kyc: deps.KYC},
		underwriting: &Underwriting{base: b, bureau: deps.Bureau},
		eligibility:  &Eligibility{base: b},
		completion:   &Completion{base: b, renderer: deps.Renderer},
		closure:      &Closure{base: b},
	}
}

// For returns the handler for a status. Terminal statuses map to the
// read-only closure handler.
func (s *Stages) For(status models.Status) (Handler, error) {
	switch status {
	case models.StatusInitiated:
		return s.greeting, nil
	case models.StatusSalesDiscussion:
		return s.sales, nil
	case models.StatusKYCVerification:
		return s.verification, nil
	case models.StatusUnderwriting:
		return s.underwriting, nil
	case models.StatusEligibilityCheck:
		return s.eligibility, nil
	case models.StatusApproved:
		return s.completion, nil
	case models.StatusRejected, models.StatusCompleted:
		return s.closure, nil
	default:
		return nil, apperrors.NewInvariantViolationError(fmt.Sprintf("no handler for status %q", string(status)))
	}
}

// base carries what every handler needs for phrasing and logging.
type base struct {
	gen TextGenerator
	log logger.Logger
}

// phrase asks the generator for wording and falls back on any failure.
func (b *base) phrase(ctx context.Context, stage string, app *models.LoanApplication, directive, fallback string) string {
	if b.gen == nil {
		return fallback
	}
	text, err := b.gen.Generate(ctx, stage, promptContext(app), directive)
	if err != nil {
		b.log.Debug("Text generation unavailable, using fallback", map[string]interface{}{
			"stage":     stage,
			"directive": directive,
			"error":     err,
		})
		return fallback
	}
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	return strings.TrimSpace(text)
}

func promptContext(app *models.LoanApplication) map[string]string {
	ctx := map[string]string{
		"customer_name": app.Customer.Name,
		"status":        app.Status.String(),
	}
	if app.LoanAmount > 0 {
		ctx["loan_amount"] = finance.FormatINR(app.LoanAmount)
	}
	if app.TenureMonths > 0 {
		ctx["tenure_months"] = fmt.Sprintf("%d", app.TenureMonths)
	}
	if app.InterestRate > 0 {
		ctx["interest_rate"] = finance.FormatPercent(app.InterestRate)
	}
	if app.EMI > 0 {
		ctx["emi"] = finance.FormatINR(app.EMI)
	}
	return ctx
}

var affirmative = regexp.MustCompile(`^(?:yes|yeah|yep|yup|ok|okay|sure|proceed|go ahead|ready|let'?s go|let'?s proceed|continue|sounds good|fine|done|agreed|i agree|accept|i accept)\b`)

// isAffirmative reports a short go-ahead reply.
func isAffirmative(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	return m != "" && len(strings.Fields(m)) <= 6 && affirmative.MatchString(m)
}

// termsFor prices a loan and returns rate and EMI.
func termsFor(amount float64, months, creditScore int) (rate, emi float64) {
	rate = finance.Rate(amount, months, creditScore)
	return rate, finance.EMI(amount, rate, months)
}

// storedTermsConsistent reports whether the stored rate and EMI still match
// the stored amount and tenure, e.g. after a negotiated discount.
func storedTermsConsistent(app *models.LoanApplication) bool {
	if app.InterestRate <= 0 || app.EMI <= 0 {
		return false
	}
	return finance.EMI(app.LoanAmount, app.InterestRate, app.TenureMonths) == app.EMI
}
