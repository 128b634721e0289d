// internal/stages/eligibility.go
package stages

import (
	"context"
	"fmt"
	"math"
	"strings"

	"loan-advisor/internal/extract"
	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"
)

const (
	MaxEMIRatio        = 50.0
	InstantMinScore    = 700
	minPlausibleSalary = 5000.0
	maxPlausibleRatio  = 1000.0
	minAmountOffer     = 50_000.0
	amountOfferStep    = 1_000.0
)

// Eligibility decides approval from the pre-approved limit, credit score
// and EMI-to-salary ratio, and suggests counter-offers on rejection.
type Eligibility struct {
	*base
}

func (h *Eligibility) Name() string { return EligibilityName }

// offer is a set of terms that passes the ratio check.
type offer struct {
	amount float64
	months int
	rate   float64
	emi    float64
}

func (h *Eligibility) Process(ctx context.Context, app *models.LoanApplication, message string) (models.HandlerResult, error) {
	if !app.HasCreditAssessment() {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: h.phrase(ctx, "eligibility", app, "Explain that a credit check comes first", "Let me check your credit profile for pre-approval."),
			Next:    models.StatusUnderwriting,
			Updates: []models.Update{models.SetStatus{Value: models.StatusUnderwriting}},
		}, nil
	}
	if app.LoanAmount <= 0 || app.TenureMonths <= 0 {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: "Before we check eligibility, let's finalise your loan amount and tenure.",
			Next:    models.StatusSalesDiscussion,
			Updates: []models.Update{models.SetStatus{Value: models.StatusSalesDiscussion}},
		}, nil
	}

	work := app.Clone()
	score := work.Customer.CreditScore
	var updates []models.Update
	var notes []string

	// amount or tenure may have been changed by a directive this turn
	if !storedTermsConsistent(work) {
		work.InterestRate, work.EMI = termsFor(work.LoanAmount, work.TenureMonths, score)
		updates = append(updates, models.SetInterestRate{Value: work.InterestRate}, models.SetEMI{Value: work.EMI})
	}

	salary := work.Customer.Salary
	if salary <= 0 {
		if n := extract.Extract(message).BareNumber; n > 0 {
			salary = n
			work.Customer.Salary = n
			updates = append(updates, models.SetSalary{Value: n})
		}
	}

	if isAffirmative(message) && salary > 0 && !instantApproval(work) && finance.Ratio(work.EMI, salary) > MaxEMIRatio {
		if o, ok := tenureOffer(work, salary); ok {
			updates = append(updates, applyOffer(work, o)...)
			notes = append(notes, fmt.Sprintf("Done! I've extended your tenure to %d months. New EMI: %s at %s%%.",
				o.months, finance.FormatINR(o.emi), finance.FormatPercent(o.rate)))
		} else if o, ok := amountOffer(work, salary); ok {
			updates = append(updates, applyOffer(work, o)...)
			notes = append(notes, fmt.Sprintf("Done! I've revised your loan amount to %s. New EMI: %s at %s%%.",
				finance.FormatINR(o.amount), finance.FormatINR(o.emi), finance.FormatPercent(o.rate)))
		}
	}

	result := h.decide(work, salary)
	result.Updates = append(updates, result.Updates...)
	if len(notes) > 0 {
		result.Message = strings.Join(notes, "\n") + "\n\n" + result.Message
	}
	return result, nil
}

func (h *Eligibility) decide(app *models.LoanApplication, salary float64) models.HandlerResult {
	if instantApproval(app) {
		return h.approve(fmt.Sprintf("🎉 Congratulations! Your loan of %s is INSTANTLY APPROVED!\nProcessing your sanction letter...",
			finance.FormatINR(app.LoanAmount)))
	}

	if salary <= 0 {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: "To proceed with your application, please provide your monthly salary:",
			Action:  models.ActionCollectSalary,
		}
	}

	ratio := finance.Ratio(app.EMI, salary)
	if salary < minPlausibleSalary || ratio > maxPlausibleRatio {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: fmt.Sprintf("I noted a monthly salary of %s, which looks unusual for an EMI of %s. Could you please confirm your monthly take-home salary?",
				finance.FormatINR(salary), finance.FormatINR(app.EMI)),
			Action:  models.ActionConfirmSalary,
			Updates: []models.Update{models.SetSalary{Value: 0}},
		}
	}

	if ratio <= MaxEMIRatio {
		return h.approve(fmt.Sprintf("Great! Your EMI-to-salary ratio is %s%% (within acceptable limits).\nYour loan of %s is APPROVED!\nGenerating your sanction letter...",
			finance.FormatPercent(ratio), finance.FormatINR(app.LoanAmount)))
	}

	return h.reject(app, salary, ratio)
}

func (h *Eligibility) approve(text string) models.HandlerResult {
	return models.HandlerResult{
		Handler: h.Name(),
		Message: text,
		Next:    models.StatusApproved,
		Updates: []models.Update{models.SetStatus{Value: models.StatusApproved}},
	}
}

func (h *Eligibility) reject(app *models.LoanApplication, salary, ratio float64) models.HandlerResult {
	var b strings.Builder
	fmt.Fprintf(&b, "Unfortunately, your EMI-to-salary ratio is %s%% which exceeds our maximum limit of %.0f%%. Your loan application has been rejected.",
		finance.FormatPercent(ratio), MaxEMIRatio)

	var offers []string
	if o, ok := tenureOffer(app, salary); ok {
		offers = append(offers, fmt.Sprintf("• A %d-month tenure: EMI %s at %s%%",
			o.months, finance.FormatINR(o.emi), finance.FormatPercent(o.rate)))
	}
	if o, ok := amountOffer(app, salary); ok {
		offers = append(offers, fmt.Sprintf("• A loan of %s: EMI %s over %d months",
			finance.FormatINR(o.amount), finance.FormatINR(o.emi), o.months))
	}
	if len(offers) > 0 {
		b.WriteString("\n\nThis application is now closed. A new application on these terms would fit your income:\n")
		b.WriteString(strings.Join(offers, "\n"))
	}

	return models.HandlerResult{
		Handler: h.Name(),
		Message: b.String(),
		Updates: []models.Update{
			models.SetStatus{Value: models.StatusRejected},
			models.SetRejectionReason{Value: fmt.Sprintf("EMI-to-salary ratio too high: %s%%", finance.FormatPercent(ratio))},
		},
	}
}

func instantApproval(app *models.LoanApplication) bool {
	return app.LoanAmount <= app.PreApprovedLimit && app.Customer.CreditScore >= InstantMinScore
}

// tenureOffer finds the shortest tenure from max(current, 12) up to 120
// months whose EMI fits the ratio.
func tenureOffer(app *models.LoanApplication, salary float64) (offer, bool) {
	for n := max(app.TenureMonths, minOfferTenure); n <= maxOfferTenure; n++ {
		rate, emi := termsFor(app.LoanAmount, n, app.Customer.CreditScore)
		if finance.Ratio(emi, salary) <= MaxEMIRatio {
			return offer{amount: app.LoanAmount, months: n, rate: rate, emi: emi}, true
		}
	}
	return offer{}, false
}

// amountOffer finds the largest principal at the current tenure whose EMI
// fits the ratio, capped by the pre-approved limit and rounded down to the
// nearest thousand. Offers below 50,000 are discarded.
func amountOffer(app *models.LoanApplication, salary float64) (offer, bool) {
	n := app.TenureMonths
	score := app.Customer.CreditScore
	maxEMI := salary * MaxEMIRatio / 100

	// smaller principals price higher, so settle the rate before sizing
	rate := finance.Rate(app.LoanAmount, n, score)
	principal := finance.MaxPrincipal(maxEMI, rate, n)
	for i := 0; i < 5; i++ {
		next := finance.Rate(principal, n, score)
		if next == rate {
			break
		}
		rate = next
		principal = finance.MaxPrincipal(maxEMI, rate, n)
	}
	if app.PreApprovedLimit > 0 {
		principal = math.Min(principal, app.PreApprovedLimit)
	}
	principal = math.Floor(principal/amountOfferStep) * amountOfferStep

	for principal >= minAmountOffer {
		rate, emi := termsFor(principal, n, score)
		if finance.Ratio(emi, salary) <= MaxEMIRatio {
			if principal >= app.LoanAmount {
				return offer{}, false
			}
			return offer{amount: principal, months: n, rate: rate, emi: emi}, true
		}
		principal -= amountOfferStep
	}
	return offer{}, false
}

// applyOffer moves work onto the offered terms and returns the updates.
func applyOffer(work *models.LoanApplication, o offer) []models.Update {
	work.LoanAmount, work.TenureMonths, work.InterestRate, work.EMI = o.amount, o.months, o.rate, o.emi
	return []models.Update{
		models.SetLoanAmount{Value: o.amount},
		models.SetTenure{Value: o.months},
		models.SetInterestRate{Value: o.rate},
		models.SetEMI{Value: o.emi},
	}
}
