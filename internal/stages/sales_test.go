package stages

import (
	"context"
	"testing"

	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesApp(amount float64, tenure int) *models.LoanApplication {
	app := newApp(models.StatusSalesDiscussion)
	app.LoanAmount = amount
	app.TenureMonths = tenure
	return app
}

func TestSales_Flow(t *testing.T) {
	tests := []struct {
		name     string
		app      *models.LoanApplication
		message  string
		validate func(t *testing.T, r models.HandlerResult)
	}{
		{
			name:    "asks for amount first",
			app:     salesApp(0, 0),
			message: "",
			validate: func(t *testing.T, r models.HandlerResult) {
				assert.Equal(t, models.ActionCollectLoanAmount, r.Action)
				assert.Equal(t, fallbackAskAmount, r.Message)
				assert.Empty(t, r.Updates)
			},
		},
		{
			name:    "asks for tenure once amount known",
			app:     salesApp(500000, 0),
			message: "I need 5 lakh",
			validate: func(t *testing.T, r models.HandlerResult) {
				assert.Equal(t, models.ActionCollectTenure, r.Action)
				assert.Contains(t, r.Message, "₹5,00,000")
			},
		},
		{
			name:    "prices and summarises without advancing",
			app:     salesApp(500000, 24),
			message: "24 months",
			validate: func(t *testing.T, r models.HandlerResult) {
				rate, ok := findUpdate[models.SetInterestRate](r.Updates)
				require.True(t, ok)
				assert.Equal(t, 11.0, rate.Value)

				emi, ok := findUpdate[models.SetEMI](r.Updates)
				require.True(t, ok)
				assert.Equal(t, finance.EMI(500000, 11, 24), emi.Value)

				_, moved := findUpdate[models.SetStatus](r.Updates)
				assert.False(t, moved, "sales never changes status")
				assert.False(t, r.HasNext())
				assert.Equal(t, models.ActionStartKYC, r.Action)
				assert.Contains(t, r.Message, "Loan amount: ₹5,00,000")
				assert.Contains(t, r.Message, "12 months: EMI")
				assert.Contains(t, r.Message, "36 months: EMI")
			},
		},
		{
			name: "keeps a consistent stored rate",
			app: func() *models.LoanApplication {
				app := salesApp(500000, 24)
				app.InterestRate = 10.5
				app.EMI = finance.EMI(500000, 10.5, 24)
				return app
			}(),
			message: "thanks",
			validate: func(t *testing.T, r models.HandlerResult) {
				assert.Empty(t, r.Updates)
				assert.Contains(t, r.Message, "10.50% per annum")
			},
		},
		{
			name: "readiness after summary prompts kyc",
			app: func() *models.LoanApplication {
				app := salesApp(500000, 24)
				app.InterestRate = 11
				app.EMI = finance.EMI(500000, 11, 24)
				return app
			}(),
			message: "yes, proceed",
			validate: func(t *testing.T, r models.HandlerResult) {
				assert.Equal(t, models.ActionStartKYC, r.Action)
				assert.Contains(t, r.Message, "PAN")
				assert.Empty(t, r.Updates)
			},
		},
		{
			name:    "two tenures joined by or get a comparison",
			app:     salesApp(500000, 0),
			message: "should I take 24 or 36 months?",
			validate: func(t *testing.T, r models.HandlerResult) {
				assert.Equal(t, models.ActionChooseTenure, r.Action)
				assert.Contains(t, r.Message, "24 months: EMI "+finance.FormatINR(finance.EMI(500000, 11, 24)))
				assert.Contains(t, r.Message, "36 months: EMI")
				assert.Empty(t, r.Updates)
			},
		},
		{
			name:    "hesitation without amount asks for amount",
			app:     salesApp(0, 0),
			message: "I'm confused about all this",
			validate: func(t *testing.T, r models.HandlerResult) {
				assert.Equal(t, models.ActionCollectLoanAmount, r.Action)
			},
		},
		{
			name:    "hesitation with terms shows spread",
			app:     salesApp(500000, 24),
			message: "hmm not sure",
			validate: func(t *testing.T, r models.HandlerResult) {
				assert.Equal(t, models.ActionChooseTenure, r.Action)
				assert.Contains(t, r.Message, "12 months")
				assert.Contains(t, r.Message, "24 months")
				assert.Contains(t, r.Message, "36 months")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStages(t, Dependencies{})
			r, err := s.sales.Process(context.Background(), tt.app, tt.message)
			require.NoError(t, err)
			assert.Equal(t, SalesName, r.Handler)
			tt.validate(t, r)
		})
	}
}

func TestSales_NegotiationStopsAtFloor(t *testing.T) {
	s := newTestStages(t, Dependencies{})
	app := salesApp(500000, 24)
	app.InterestRate = 11
	app.EMI = finance.EMI(500000, 11, 24)

	want := []float64{10.5, 10.0, 9.5, 9.5}
	for i, rate := range want {
		r, err := s.sales.Process(context.Background(), app, "can you lower the interest rate?")
		require.NoError(t, err)
		require.NoError(t, app.Apply(r.Updates...))
		assert.Equal(t, rate, app.InterestRate, "round %d", i)
		assert.Equal(t, finance.EMI(500000, rate, 24), app.EMI)
	}

	r, err := s.sales.Process(context.Background(), app, "any discount?")
	require.NoError(t, err)
	assert.Contains(t, r.Message, "best rate")
}

func TestAlternateTenures(t *testing.T) {
	assert.Equal(t, []int{12, 36}, alternateTenures(24))
	assert.Equal(t, []int{24}, alternateTenures(12))
	assert.Equal(t, []int{12, 18}, alternateTenures(6))
	assert.Equal(t, []int{108}, alternateTenures(120))
	assert.Equal(t, []int{110, 120}, alternateTenures(122))
}
