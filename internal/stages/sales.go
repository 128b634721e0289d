// internal/stages/sales.go
package stages

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"loan-advisor/internal/extract"
	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"
)

const (
	fallbackAskAmount = "Let's discuss your loan requirements. What amount are you looking for?"

	minOfferTenure = 12
	maxOfferTenure = 120
)

var (
	hesitationVocabulary  = regexp.MustCompile(`\b(?:unsure|not sure|confused|confusing|maybe|don'?t know|which is better|which one|compare|comparison|options|hesitant|can'?t decide|help me decide)\b`)
	negotiationVocabulary = regexp.MustCompile(`\b(?:reduce|lower|decrease|bring down|cut)\b[^.?!]*\b(?:rate|interest)\b|\bdiscount\b|\bbetter (?:rate|deal|offer)\b|\bnegotiat\w*\b|\bcheaper\b`)
)

// Sales collects amount and tenure, prices the loan and handles comparison
// and negotiation requests. It never advances the status itself.
type Sales struct {
	*base
}

func (h *Sales) Name() string { return SalesName }

func (h *Sales) Process(ctx context.Context, app *models.LoanApplication, message string) (models.HandlerResult, error) {
	lower := strings.ToLower(message)
	slots := extract.Extract(message)

	if slots.TenureAlternatives || hesitationVocabulary.MatchString(lower) {
		return h.compare(ctx, app, slots), nil
	}

	if app.LoanAmount <= 0 {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: h.phrase(ctx, "sales", app, "Ask for loan amount", fallbackAskAmount),
			Action:  models.ActionCollectLoanAmount,
		}, nil
	}
	if app.TenureMonths <= 0 {
		fallback := fmt.Sprintf("Great, %s it is. Over how many months would you like to repay? We offer tenures from %d to %d months.",
			finance.FormatINR(app.LoanAmount), minOfferTenure, maxOfferTenure)
		return models.HandlerResult{
			Handler: h.Name(),
			Message: h.phrase(ctx, "sales", app, "Ask for tenure preference", fallback),
			Action:  models.ActionCollectTenure,
		}, nil
	}

	if negotiationVocabulary.MatchString(lower) {
		return h.negotiate(app), nil
	}

	rate, emi := app.InterestRate, app.EMI
	var updates []models.Update
	if !storedTermsConsistent(app) {
		rate, emi = termsFor(app.LoanAmount, app.TenureMonths, app.Customer.CreditScore)
		updates = append(updates, models.SetInterestRate{Value: rate}, models.SetEMI{Value: emi})
	}

	if len(updates) == 0 && isAffirmative(message) {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: "Great! Let's start your KYC verification. Please share your PAN number (format: ABCDE1234F).",
			Action:  models.ActionStartKYC,
		}, nil
	}

	return models.HandlerResult{
		Handler: h.Name(),
		Message: summary(app.LoanAmount, app.TenureMonths, app.Customer.CreditScore, rate, emi),
		Action:  models.ActionStartKYC,
		Updates: updates,
	}, nil
}

func (h *Sales) negotiate(app *models.LoanApplication) models.HandlerResult {
	current := app.InterestRate
	if !storedTermsConsistent(app) {
		current, _ = termsFor(app.LoanAmount, app.TenureMonths, app.Customer.CreditScore)
	}
	rate := finance.NegotiatedRate(current, app.LoanAmount)
	emi := finance.EMI(app.LoanAmount, rate, app.TenureMonths)

	if rate >= current {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: fmt.Sprintf("You already have our best rate of %s%% per annum. Your EMI is %s for %d months.\n\nShare your PAN number whenever you're ready to start KYC.",
				finance.FormatPercent(rate), finance.FormatINR(emi), app.TenureMonths),
			Action:  models.ActionStartKYC,
			Updates: []models.Update{models.SetInterestRate{Value: rate}, models.SetEMI{Value: emi}},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Good news! I've applied a special discount: your rate drops from %s%% to %s%% per annum.\n",
		finance.FormatPercent(current), finance.FormatPercent(rate))
	fmt.Fprintf(&b, "New EMI: %s for %d months (earlier %s).\n\n",
		finance.FormatINR(emi), app.TenureMonths, finance.FormatINR(finance.EMI(app.LoanAmount, current, app.TenureMonths)))
	b.WriteString("Share your PAN number whenever you're ready to start KYC.")

	return models.HandlerResult{
		Handler: h.Name(),
		Message: b.String(),
		Action:  models.ActionStartKYC,
		Updates: []models.Update{models.SetInterestRate{Value: rate}, models.SetEMI{Value: emi}},
	}
}

// compare lays out EMIs for the tenures the customer is weighing, or a
// default spread around the current tenure.
func (h *Sales) compare(ctx context.Context, app *models.LoanApplication, slots extract.Slots) models.HandlerResult {
	if app.LoanAmount <= 0 {
		fallback := "No problem, let's take it step by step. First, roughly how much would you like to borrow?"
		return models.HandlerResult{
			Handler: h.Name(),
			Message: h.phrase(ctx, "sales", app, "Reassure the hesitant customer and ask for loan amount", fallback),
			Action:  models.ActionCollectLoanAmount,
		}
	}

	options := slots.TenureOptions
	if len(options) == 0 {
		options = defaultOptions(app.TenureMonths)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "No problem, here's how the options compare for %s:\n", finance.FormatINR(app.LoanAmount))
	for _, n := range options {
		rate, emi := termsFor(app.LoanAmount, n, app.Customer.CreditScore)
		fmt.Fprintf(&b, "• %d months: EMI %s at %s%% (total %s)\n",
			n, finance.FormatINR(emi), finance.FormatPercent(rate), finance.FormatINR(finance.TotalPayable(emi, n)))
	}
	b.WriteString("\nA shorter tenure costs less interest overall; a longer one keeps the EMI lighter. Which tenure would you like?")

	return models.HandlerResult{
		Handler: h.Name(),
		Message: b.String(),
		Action:  models.ActionChooseTenure,
	}
}

func summary(amount float64, months, creditScore int, rate, emi float64) string {
	var b strings.Builder
	b.WriteString("Here's your loan summary:\n")
	fmt.Fprintf(&b, "• Loan amount: %s\n", finance.FormatINR(amount))
	fmt.Fprintf(&b, "• Tenure: %d months\n", months)
	fmt.Fprintf(&b, "• Interest rate: %s%% per annum\n", finance.FormatPercent(rate))
	fmt.Fprintf(&b, "• EMI: %s\n", finance.FormatINR(emi))
	fmt.Fprintf(&b, "• Total payable: %s\n", finance.FormatINR(finance.TotalPayable(emi, months)))

	if benefits := finance.RateBenefits(amount, months); len(benefits) > 0 {
		fmt.Fprintf(&b, "\n%s\n", strings.Join(benefits, " "))
	} else {
		b.WriteString("\nCompetitive market rate.\n")
	}

	if alts := alternateTenures(months); len(alts) > 0 {
		b.WriteString("\nOther options:\n")
		for _, n := range alts {
			altRate, altEMI := termsFor(amount, n, creditScore)
			fmt.Fprintf(&b, "• %d months: EMI %s at %s%%\n", n, finance.FormatINR(altEMI), finance.FormatPercent(altRate))
		}
	}

	b.WriteString("\nWhen you're ready, share your PAN number to start KYC verification.")
	return b.String()
}

// alternateTenures returns current±12 clamped to the offered range,
// without the current tenure or duplicates.
func alternateTenures(months int) []int {
	seen := map[int]bool{months: true}
	var out []int
	for _, n := range []int{months - 12, months + 12} {
		n = max(minOfferTenure, min(maxOfferTenure, n))
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

func defaultOptions(current int) []int {
	if current <= 0 {
		return []int{12, 24, 36, 48, 60}
	}
	opts := append([]int{current}, alternateTenures(current)...)
	sort.Ints(opts)
	return opts
}
