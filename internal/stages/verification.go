// internal/stages/verification.go
package stages

import (
	"context"
	"fmt"
	"strings"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/extract"
	"loan-advisor/internal/models"
)

const (
	fallbackAskPAN    = "For KYC verification, please provide your PAN number:"
	fallbackAskAadhar = "Thank you! Now please provide your Aadhar number:"

	kycSuccessText = "KYC verification successful! Your identity has been verified. Now let's check your credit profile."
	kycFailureText = "KYC verification failed. Please check your details and try again."

	KYCFailedReason = "KYC verification failed"
)

// Verification validates PAN and Aadhar and runs the identity check.
type Verification struct {
	*base
	kyc KYCVerifier
}

func (h *Verification) Name() string { return VerificationName }

func (h *Verification) Process(ctx context.Context, app *models.LoanApplication, message string) (models.HandlerResult, error) {
	if app.Customer.Name == "" {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: h.phrase(ctx, "verification", app, "Ask for the customer's name before KYC", fallbackAskName),
			Action:  models.ActionCollectName,
		}, nil
	}

	slots := extract.Extract(message)
	pan, aadhar := app.Customer.PAN, app.Customer.Aadhar
	if slots.PAN == "" && slots.PANCandidate != "" {
		pan = slots.PANCandidate
	}
	if slots.Aadhar == "" && slots.AadharCandidate != "" {
		aadhar = slots.AadharCandidate
	}

	panBad := pan != "" && !extract.ValidPAN(pan)
	aadharBad := aadhar != "" && !extract.ValidAadhar(aadhar)
	if panBad || aadharBad {
		return h.rejectFormat(app, pan, aadhar, panBad, aadharBad), nil
	}

	if pan == "" {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: h.phrase(ctx, "verification", app, "Ask for PAN number", fallbackAskPAN),
			Action:  models.ActionCollectPAN,
		}, nil
	}
	if aadhar == "" {
		return models.HandlerResult{
			Handler: h.Name(),
			Message: h.phrase(ctx, "verification", app, "Thank the customer and ask for Aadhar number", fallbackAskAadhar),
			Action:  models.ActionCollectAadhar,
		}, nil
	}

	verified, err := h.kyc.Verify(ctx, pan, aadhar)
	if err != nil {
		return models.HandlerResult{}, apperrors.NewExternalServiceError("kyc", err)
	}
	if !verified {
		h.log.Info("KYC verification failed", map[string]interface{}{"applicationId": app.ID})
		return models.HandlerResult{
			Handler: h.Name(),
			Message: kycFailureText,
			Updates: []models.Update{
				models.SetStatus{Value: models.StatusRejected},
				models.SetRejectionReason{Value: KYCFailedReason},
			},
		}, nil
	}

	return models.HandlerResult{
		Handler: h.Name(),
		Message: kycSuccessText,
		Updates: []models.Update{models.SetStatus{Value: models.StatusUnderwriting}},
	}, nil
}

// rejectFormat reports every malformed value at once and clears invalid
// values that were already stored.
func (h *Verification) rejectFormat(app *models.LoanApplication, pan, aadhar string, panBad, aadharBad bool) models.HandlerResult {
	var problems []string
	var updates []models.Update
	action := models.ActionCorrectPANAadhar

	if panBad {
		problems = append(problems, fmt.Sprintf("PAN %q is invalid. It must be 5 letters, 4 digits and 1 letter (e.g. ABCDE1234F).", pan))
		if app.Customer.PAN != "" && !extract.ValidPAN(app.Customer.PAN) {
			updates = append(updates, models.SetPAN{Value: ""})
		}
	}
	if aadharBad {
		problems = append(problems, fmt.Sprintf("Aadhar %q is invalid. It must be exactly 12 digits.", aadhar))
		if app.Customer.Aadhar != "" && !extract.ValidAadhar(app.Customer.Aadhar) {
			updates = append(updates, models.SetAadhar{Value: ""})
		}
	}
	switch {
	case panBad && !aadharBad:
		action = models.ActionCorrectPAN
	case aadharBad && !panBad:
		action = models.ActionCorrectAadhar
	}

	return models.HandlerResult{
		Handler: h.Name(),
		Message: strings.Join(problems, "\n") + "\nPlease check and send the correct details.",
		Action:  action,
		Updates: updates,
	}
}
