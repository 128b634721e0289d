// internal/router/router.go

// Package router picks the stage that handles a message, from the record's
// status and the intent the message shows.
package router

import (
	"regexp"
	"strings"

	"loan-advisor/internal/extract"
	"loan-advisor/internal/models"
)

// Rule names, reported for logs and metrics.
const (
	RuleTerminal     = "terminal"
	RuleNameRequired = "name_required"
	RuleIdentity     = "identity"
	RuleSales        = "sales_intent"
	RuleCredit       = "credit_intent"
	RuleEligibility  = "eligibility_intent"
	RuleDocument     = "document_intent"
	RuleStatus       = "status"
)

var (
	identityVocabulary    = regexp.MustCompile(`\b(?:pan|aadh?aa?r|kyc)\b`)
	salesVocabulary       = regexp.MustCompile(`₹|\b(?:amount|tenure|emi|emis|interest|rate|rates|repay|repayment|installment|instalment|lakh|lakhs|lac|lacs|crore|crores|rupees|rs|inr|months?|years?|plan|discount|negotiate|cheaper|borrow)\b`)
	creditVocabulary      = regexp.MustCompile(`\b(?:credit|cibil|score|underwriting|underwrite|pre-?approved|limit)\b`)
	eligibilityVocabulary = regexp.MustCompile(`\b(?:eligible|eligibility|approve|approved|approval|salary|income|earn|earning|earnings)\b`)
	documentVocabulary    = regexp.MustCompile(`\b(?:document|documents|letter|pdf|sanction|download)\b`)
)

// Decision is the routing outcome for one message.
type Decision struct {
	Stage models.Status
	Rule  string
}

// Rerouted reports whether the decision moves away from the current status.
func (d Decision) Rerouted(current models.Status) bool {
	return d.Stage != current
}

// Route applies the rules in priority order; the first match wins. Terminal
// statuses are never re-routed.
func Route(app *models.LoanApplication, message string, slots extract.Slots) Decision {
	status := app.Status
	if status.IsTerminal() {
		return Decision{Stage: status, Rule: RuleTerminal}
	}
	if app.Customer.Name == "" {
		return Decision{Stage: models.StatusInitiated, Rule: RuleNameRequired}
	}

	lower := strings.ToLower(message)

	if (slots.HasIdentity() || identityVocabulary.MatchString(lower)) && app.LoanAmount > 0 && app.TenureMonths > 0 {
		return Decision{Stage: models.StatusKYCVerification, Rule: RuleIdentity}
	}
	if salesVocabulary.MatchString(lower) && in(status, models.StatusInitiated, models.StatusSalesDiscussion, models.StatusKYCVerification) {
		return Decision{Stage: models.StatusSalesDiscussion, Rule: RuleSales}
	}
	if creditVocabulary.MatchString(lower) && in(status, models.StatusKYCVerification, models.StatusUnderwriting, models.StatusEligibilityCheck) {
		return Decision{Stage: models.StatusUnderwriting, Rule: RuleCredit}
	}
	if eligibilityVocabulary.MatchString(lower) && in(status, models.StatusUnderwriting, models.StatusEligibilityCheck, models.StatusApproved) {
		return Decision{Stage: models.StatusEligibilityCheck, Rule: RuleEligibility}
	}
	if documentVocabulary.MatchString(lower) && in(status, models.StatusApproved, models.StatusCompleted) {
		return Decision{Stage: models.StatusApproved, Rule: RuleDocument}
	}
	return Decision{Stage: status, Rule: RuleStatus}
}

func in(s models.Status, set ...models.Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
