// internal/models/application.go
package models

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "loan-advisor/internal/common/errors"

	"github.com/google/uuid"
)

// Status is the lifecycle position of an application. It doubles as the key
// of the stage handler that owns the next turn.
type Status string

const (
	StatusInitiated        Status = "initiated"
	StatusSalesDiscussion  Status = "sales_discussion"
	StatusKYCVerification  Status = "kyc_verification"
	StatusUnderwriting     Status = "underwriting"
	StatusEligibilityCheck Status = "eligibility_check"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusCompleted        Status = "completed"
)

var allStatuses = []Status{
	StatusInitiated,
	StatusSalesDiscussion,
	StatusKYCVerification,
	StatusUnderwriting,
	StatusEligibilityCheck,
	StatusApproved,
	StatusRejected,
	StatusCompleted,
}

// ParseStatus is the only way to build a Status from untrusted text.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", apperrors.NewInvariantViolationError(fmt.Sprintf("unknown status %q", s))
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// IsTerminal is true for REJECTED and COMPLETED.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

func (s Status) String() string {
	return string(s)
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Customer fields are optional; the zero value means "not provided yet".
type Customer struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Email       string  `json:"email,omitempty"`
	PAN         string  `json:"pan,omitempty"`
	Aadhar      string  `json:"aadhar,omitempty"`
	Salary      float64 `json:"salary,omitempty"` // monthly, rupees
	CreditScore int     `json:"creditScore,omitempty"`
}

// LoanApplication is the authoritative record of one conversation.
type LoanApplication struct {
	ID                string    `json:"id"`
	Customer          Customer  `json:"customer"`
	LoanAmount        float64   `json:"loanAmount,omitempty"`
	InterestRate      float64   `json:"interestRate,omitempty"` // percent per annum
	TenureMonths      int       `json:"tenureMonths,omitempty"`
	Status            Status    `json:"status"`
	PreApprovedLimit  float64   `json:"preApprovedLimit,omitempty"`
	EMI               float64   `json:"emi,omitempty"`
	RejectionReason   string    `json:"rejectionReason,omitempty"`
	SanctionLetterRef string    `json:"sanctionLetterRef,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// NewLoanApplication starts a fresh conversation record for a customer.
func NewLoanApplication(customerID string) *LoanApplication {
	now := time.Now().UTC()
	return &LoanApplication{
		ID:        uuid.New().String(),
		Customer:  Customer{ID: customerID},
		Status:    StatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns an independent copy. All fields are values, so a shallow copy suffices.
func (a *LoanApplication) Clone() *LoanApplication {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// HasTerms reports whether amount and tenure are both known.
func (a *LoanApplication) HasTerms() bool {
	return a.LoanAmount > 0 && a.TenureMonths > 0
}

// HasCreditAssessment reports whether underwriting has run.
func (a *LoanApplication) HasCreditAssessment() bool {
	return a.Customer.CreditScore > 0 && a.PreApprovedLimit > 0
}
