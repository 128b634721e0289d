// internal/stages/collaborators.go
package stages

import (
	"context"
	"math/rand"

	"loan-advisor/internal/models"
)

// TextGenerator phrases conversational prompts. Failures are never shown to
// the customer; the handler substitutes its fallback text.
type TextGenerator interface {
	Generate(ctx context.Context, stage string, context map[string]string, directive string) (string, error)
}

// KYCVerifier confirms an identity pair.
type KYCVerifier interface {
	Verify(ctx context.Context, pan, aadhar string) (bool, error)
}

// CreditBureau returns a credit score for the applicant.
type CreditBureau interface {
	Score(ctx context.Context, app *models.LoanApplication) (int, error)
}

// Renderer produces the sanction document and returns an opaque reference.
type Renderer interface {
	Render(ctx context.Context, app *models.LoanApplication) (string, error)
}

// KYCVerifierFunc adapts a function to KYCVerifier.
type KYCVerifierFunc func(ctx context.Context, pan, aadhar string) (bool, error)

func (f KYCVerifierFunc) Verify(ctx context.Context, pan, aadhar string) (bool, error) {
	return f(ctx, pan, aadhar)
}

// CreditBureauFunc adapts a function to CreditBureau.
type CreditBureauFunc func(ctx context.Context, app *models.LoanApplication) (int, error)

func (f CreditBureauFunc) Score(ctx context.Context, app *models.LoanApplication) (int, error) {
	return f(ctx, app)
}

// RandomKYC approves a verification with probability SuccessRate.
type RandomKYC struct {
	SuccessRate float64
	// Float defaults to math/rand/v2.Float64.
	Float func() float64
}

func (k RandomKYC) Verify(_ context.Context, _, _ string) (bool, error) {
	draw := k.Float
	if draw == nil {
		draw = rand.Float64
	}
	return draw() < k.SuccessRate, nil
}

// RandomBureau draws a score uniformly from [Min, Max].
type RandomBureau struct {
	Min, Max int
	// IntN defaults to math/rand/v2.IntN.
	IntN func(n int) int
}

func (b RandomBureau) Score(_ context.Context, _ *models.LoanApplication) (int, error) {
	draw := b.IntN
	if draw == nil {
		draw = rand.Intn
	}
	lo, hi := b.Min, b.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + draw(hi-lo+1), nil
}

// KYCSuccess and KYCFailure are deterministic verifiers.
var (
	KYCSuccess KYCVerifier = KYCVerifierFunc(func(context.Context, string, string) (bool, error) { return true, nil })
	KYCFailure KYCVerifier = KYCVerifierFunc(func(context.Context, string, string) (bool, error) { return false, nil })
)

// FixedScore always reports the same credit score.
func FixedScore(score int) CreditBureau {
	return CreditBureauFunc(func(context.Context, *models.LoanApplication) (int, error) { return score, nil })
}
