package stages

import (
	"context"
	"fmt"
	"testing"

	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eligibilityApp builds an application with consistent, priced terms.
func eligibilityApp(amount float64, tenure, score int, limit, salary float64) *models.LoanApplication {
	app := newApp(models.StatusEligibilityCheck)
	app.LoanAmount = amount
	app.TenureMonths = tenure
	app.Customer.CreditScore = score
	app.PreApprovedLimit = limit
	app.Customer.Salary = salary
	app.InterestRate = finance.Rate(amount, tenure, score)
	app.EMI = finance.EMI(amount, app.InterestRate, tenure)
	return app
}

func runEligibility(t *testing.T, app *models.LoanApplication, message string) models.HandlerResult {
	t.Helper()
	s := newTestStages(t, Dependencies{})
	r, err := s.eligibility.Process(context.Background(), app, message)
	require.NoError(t, err)
	assert.Equal(t, EligibilityName, r.Handler)
	return r
}

func TestEligibility_InstantApprovalBoundary(t *testing.T) {
	r := runEligibility(t, eligibilityApp(500000, 24, 700, 500000, 0), "")

	assert.Equal(t, models.StatusApproved, statusUpdate(t, r))
	assert.Equal(t, models.StatusApproved, r.Next)
	assert.Contains(t, r.Message, "INSTANTLY APPROVED")
}

func TestEligibility_JustOutsideInstantApproval(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		score  int
	}{
		{"amount above limit", 500001, 700},
		{"score below 700", 500000, 699},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runEligibility(t, eligibilityApp(tt.amount, 24, tt.score, 500000, 0), "")
			assert.Equal(t, models.ActionCollectSalary, r.Action)
			assert.Empty(t, statusUpdate(t, r))
			assert.False(t, r.HasNext())
		})
	}
}

func TestEligibility_RatioBoundary(t *testing.T) {
	base := eligibilityApp(600000, 24, 720, 500000, 0)

	t.Run("exactly fifty percent approves", func(t *testing.T) {
		app := base.Clone()
		app.Customer.Salary = app.EMI * 2
		r := runEligibility(t, app, "")

		assert.Equal(t, models.StatusApproved, statusUpdate(t, r))
		assert.Equal(t, models.StatusApproved, r.Next)
		assert.Contains(t, r.Message, "50.00%")
	})

	t.Run("fifty point zero one rejects with a tenure that fits", func(t *testing.T) {
		app := base.Clone()
		app.Customer.Salary = app.EMI * 100 / 50.01
		require.Equal(t, 50.01, finance.Ratio(app.EMI, app.Customer.Salary))

		r := runEligibility(t, app, "")
		assert.Equal(t, models.StatusRejected, statusUpdate(t, r))
		assert.False(t, r.HasNext())

		reason, ok := findUpdate[models.SetRejectionReason](r.Updates)
		require.True(t, ok)
		assert.Equal(t, "EMI-to-salary ratio too high: 50.01%", reason.Value)

		o, ok := tenureOffer(app, app.Customer.Salary)
		require.True(t, ok)
		assert.Greater(t, o.months, app.TenureMonths)
		assert.LessOrEqual(t, o.emi, app.Customer.Salary*0.5)
		assert.Contains(t, r.Message, fmt.Sprintf("A %d-month tenure", o.months))
		assert.Contains(t, r.Message, "A new application on these terms")
		assert.NotContains(t, r.Message, "Extend the tenure")
	})
}

func TestEligibility_SalaryCollection(t *testing.T) {
	t.Run("bare number reply is taken as salary", func(t *testing.T) {
		app := eligibilityApp(600000, 24, 720, 500000, 0)
		r := runEligibility(t, app, "80,000")

		salary, ok := findUpdate[models.SetSalary](r.Updates)
		require.True(t, ok)
		assert.Equal(t, 80000.0, salary.Value)
		assert.Equal(t, models.StatusApproved, statusUpdate(t, r))
	})

	t.Run("implausibly low salary asks for confirmation", func(t *testing.T) {
		r := runEligibility(t, eligibilityApp(600000, 24, 720, 500000, 3000), "")

		assert.Equal(t, models.ActionConfirmSalary, r.Action)
		salary, ok := findUpdate[models.SetSalary](r.Updates)
		require.True(t, ok)
		assert.Zero(t, salary.Value)
		assert.Empty(t, statusUpdate(t, r))
	})

	t.Run("ratio above a thousand percent asks for confirmation", func(t *testing.T) {
		app := eligibilityApp(9000000, 24, 720, 500000, 0)
		app.Customer.Salary = app.EMI / 11
		r := runEligibility(t, app, "")
		assert.Equal(t, models.ActionConfirmSalary, r.Action)
	})
}

func TestEligibility_AffirmativeAppliesCounterOffer(t *testing.T) {
	app := eligibilityApp(600000, 24, 720, 500000, 0)
	app.Customer.Salary = app.EMI * 100 / 60

	r := runEligibility(t, app, "yes")

	tenure, ok := findUpdate[models.SetTenure](r.Updates)
	require.True(t, ok)
	assert.Greater(t, tenure.Value, 24)
	assert.Equal(t, models.StatusApproved, statusUpdate(t, r))
	assert.Contains(t, r.Message, "extended your tenure")

	require.NoError(t, app.Apply(r.Updates...))
	assert.LessOrEqual(t, finance.Ratio(app.EMI, app.Customer.Salary), MaxEMIRatio)
	assert.Equal(t, finance.EMI(app.LoanAmount, app.InterestRate, app.TenureMonths), app.EMI)
}

func TestEligibility_RecomputesAfterDirective(t *testing.T) {
	app := eligibilityApp(600000, 24, 720, 500000, 0)
	app.LoanAmount = 400000 // changed by "reduce amount to 4 lakh" before the handler ran

	r := runEligibility(t, app, "reduce amount to 4 lakh")

	rate, ok := findUpdate[models.SetInterestRate](r.Updates)
	require.True(t, ok)
	assert.Equal(t, finance.Rate(400000, 24, 720), rate.Value)
	emi, ok := findUpdate[models.SetEMI](r.Updates)
	require.True(t, ok)
	assert.Equal(t, finance.EMI(400000, rate.Value, 24), emi.Value)
	assert.Equal(t, models.StatusApproved, statusUpdate(t, r), "4 lakh is within the 5 lakh limit")
}

func TestEligibility_WithoutCreditAssessment(t *testing.T) {
	app := newApp(models.StatusEligibilityCheck)
	app.LoanAmount, app.TenureMonths = 500000, 24

	r := runEligibility(t, app, "am I eligible?")
	assert.Equal(t, models.StatusUnderwriting, r.Next)
	assert.Equal(t, models.StatusUnderwriting, statusUpdate(t, r))
}

func TestAmountOffer(t *testing.T) {
	app := eligibilityApp(1500000, 36, 720, 1000000, 30000)

	o, ok := amountOffer(app, 30000)
	require.True(t, ok)
	assert.Less(t, o.amount, app.LoanAmount)
	assert.GreaterOrEqual(t, o.amount, minAmountOffer)
	assert.Zero(t, int(o.amount)%1000)
	assert.LessOrEqual(t, finance.Ratio(o.emi, 30000), MaxEMIRatio)

	_, ok = amountOffer(eligibilityApp(1500000, 36, 720, 1000000, 2000), 2000)
	assert.False(t, ok, "offers under 50,000 are discarded")
}

func TestAmountOffer_CappedByLimit(t *testing.T) {
	app := eligibilityApp(1500000, 60, 720, 300000, 200000)
	app.Customer.Salary = 200000

	o, ok := amountOffer(app, 200000)
	require.True(t, ok)
	assert.Equal(t, 300000.0, o.amount)
}
