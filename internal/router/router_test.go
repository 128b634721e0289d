package router

import (
	"testing"

	"loan-advisor/internal/extract"
	"loan-advisor/internal/models"

	"github.com/stretchr/testify/assert"
)

func newApp(status models.Status, name string, amount float64, tenure int) *models.LoanApplication {
	app := models.NewLoanApplication("c1")
	app.Status = status
	app.Customer.Name = name
	app.LoanAmount = amount
	app.TenureMonths = tenure
	return app
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name     string
		app      *models.LoanApplication
		message  string
		want     models.Status
		wantRule string
	}{
		{
			name:     "name unset forces greeting",
			app:      newApp(models.StatusSalesDiscussion, "", 500000, 24),
			message:  "ABCDE1234F",
			want:     models.StatusInitiated,
			wantRule: RuleNameRequired,
		},
		{
			name:     "pan with terms jumps to kyc",
			app:      newApp(models.StatusSalesDiscussion, "John", 500000, 24),
			message:  "my pan is ABCDE1234F",
			want:     models.StatusKYCVerification,
			wantRule: RuleIdentity,
		},
		{
			name:     "kyc word with terms",
			app:      newApp(models.StatusSalesDiscussion, "John", 500000, 24),
			message:  "let's do the KYC",
			want:     models.StatusKYCVerification,
			wantRule: RuleIdentity,
		},
		{
			name:     "malformed pan still counts as identity",
			app:      newApp(models.StatusKYCVerification, "John", 500000, 24),
			message:  "ABCD1234F",
			want:     models.StatusKYCVerification,
			wantRule: RuleIdentity,
		},
		{
			name:     "identity without terms falls through to sales",
			app:      newApp(models.StatusSalesDiscussion, "John", 500000, 0),
			message:  "my pan is ABCDE1234F and I want 24 months",
			want:     models.StatusSalesDiscussion,
			wantRule: RuleSales,
		},
		{
			name:     "rate question during kyc goes back to sales",
			app:      newApp(models.StatusKYCVerification, "John", 500000, 24),
			message:  "what is the interest rate again?",
			want:     models.StatusSalesDiscussion,
			wantRule: RuleSales,
		},
		{
			name:     "sales vocabulary after underwriting stays",
			app:      newApp(models.StatusEligibilityCheck, "John", 500000, 24),
			message:  "what about the emi",
			want:     models.StatusEligibilityCheck,
			wantRule: RuleStatus,
		},
		{
			name:     "credit question during eligibility",
			app:      newApp(models.StatusEligibilityCheck, "John", 500000, 24),
			message:  "what is my credit score?",
			want:     models.StatusUnderwriting,
			wantRule: RuleCredit,
		},
		{
			name:     "salary during underwriting",
			app:      newApp(models.StatusUnderwriting, "John", 500000, 24),
			message:  "my salary is 50000",
			want:     models.StatusEligibilityCheck,
			wantRule: RuleEligibility,
		},
		{
			name:     "eligibility word before underwriting is ignored",
			app:      newApp(models.StatusSalesDiscussion, "John", 0, 0),
			message:  "am I eligible?",
			want:     models.StatusSalesDiscussion,
			wantRule: RuleStatus,
		},
		{
			name:     "letter request after approval",
			app:      newApp(models.StatusApproved, "John", 500000, 24),
			message:  "send me the sanction letter",
			want:     models.StatusApproved,
			wantRule: RuleDocument,
		},
		{
			name:     "completed is never re-routed",
			app:      newApp(models.StatusCompleted, "John", 500000, 24),
			message:  "can I get a better rate plan?",
			want:     models.StatusCompleted,
			wantRule: RuleTerminal,
		},
		{
			name:     "rejected is never re-routed",
			app:      newApp(models.StatusRejected, "John", 500000, 24),
			message:  "my pan is ABCDE1234F",
			want:     models.StatusRejected,
			wantRule: RuleTerminal,
		},
		{
			name:     "plain chat stays",
			app:      newApp(models.StatusSalesDiscussion, "John", 500000, 24),
			message:  "thanks!",
			want:     models.StatusSalesDiscussion,
			wantRule: RuleStatus,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Route(tt.app, tt.message, extract.Extract(tt.message))
			assert.Equal(t, tt.want, d.Stage)
			assert.Equal(t, tt.wantRule, d.Rule)
		})
	}
}

func TestDecision_Rerouted(t *testing.T) {
	d := Decision{Stage: models.StatusKYCVerification}
	assert.True(t, d.Rerouted(models.StatusSalesDiscussion))
	assert.False(t, d.Rerouted(models.StatusKYCVerification))
}
