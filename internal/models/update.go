// internal/models/update.go
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "loan-advisor/internal/common/errors"
)

// Update is a typed change to one field of a LoanApplication. The set of
// implementations is closed: apply is unexported.
type Update interface {
	Field() string
	apply(app *LoanApplication) error
}

type (
	SetName              struct{ Value string }
	SetPhone             struct{ Value string }
	SetEmail             struct{ Value string }
	SetPAN               struct{ Value string }
	SetAadhar            struct{ Value string }
	SetSalary            struct{ Value float64 }
	SetCreditScore       struct{ Value int }
	SetLoanAmount        struct{ Value float64 }
	SetInterestRate      struct{ Value float64 }
	SetTenure            struct{ Value int }
	SetStatus            struct{ Value Status }
	SetPreApprovedLimit  struct{ Value float64 }
	SetEMI               struct{ Value float64 }
	SetRejectionReason   struct{ Value string }
	SetSanctionLetterRef struct{ Value string }
)

func (SetName) Field() string              { return "name" }
func (SetPhone) Field() string             { return "phone" }
func (SetEmail) Field() string             { return "email" }
func (SetPAN) Field() string               { return "pan" }
func (SetAadhar) Field() string            { return "aadhar" }
func (SetSalary) Field() string            { return "salary" }
func (SetCreditScore) Field() string       { return "credit_score" }
func (SetLoanAmount) Field() string        { return "loan_amount" }
func (SetInterestRate) Field() string      { return "interest_rate" }
func (SetTenure) Field() string            { return "tenure_months" }
func (SetStatus) Field() string            { return "status" }
func (SetPreApprovedLimit) Field() string  { return "pre_approved_limit" }
func (SetEMI) Field() string               { return "emi" }
func (SetRejectionReason) Field() string   { return "rejection_reason" }
func (SetSanctionLetterRef) Field() string { return "sanction_letter_ref" }

func (u SetName) apply(a *LoanApplication) error   { a.Customer.Name = u.Value; return nil }
func (u SetPhone) apply(a *LoanApplication) error  { a.Customer.Phone = u.Value; return nil }
func (u SetEmail) apply(a *LoanApplication) error  { a.Customer.Email = u.Value; return nil }
func (u SetPAN) apply(a *LoanApplication) error    { a.Customer.PAN = u.Value; return nil }
func (u SetAadhar) apply(a *LoanApplication) error { a.Customer.Aadhar = u.Value; return nil }

func (u SetSalary) apply(a *LoanApplication) error {
	if u.Value < 0 {
		return apperrors.NewValidationError("salary must not be negative")
	}
	a.Customer.Salary = u.Value
	return nil
}

func (u SetCreditScore) apply(a *LoanApplication) error {
	if u.Value != 0 && (u.Value < 300 || u.Value > 900) {
		return apperrors.NewValidationError(fmt.Sprintf("credit score %d outside 300-900", u.Value))
	}
	a.Customer.CreditScore = u.Value
	return nil
}

func (u SetLoanAmount) apply(a *LoanApplication) error {
	if u.Value < 0 {
		return apperrors.NewValidationError("loan amount must not be negative")
	}
	a.LoanAmount = u.Value
	return nil
}

func (u SetInterestRate) apply(a *LoanApplication) error {
	if u.Value < 0 {
		return apperrors.NewValidationError("interest rate must not be negative")
	}
	a.InterestRate = u.Value
	return nil
}

func (u SetTenure) apply(a *LoanApplication) error {
	if u.Value < 0 || u.Value > 360 {
		return apperrors.NewValidationError(fmt.Sprintf("tenure %d months out of range", u.Value))
	}
	a.TenureMonths = u.Value
	return nil
}

// apply refuses unknown values and any move out of a terminal status.
func (u SetStatus) apply(a *LoanApplication) error {
	if !u.Value.Valid() {
		return apperrors.NewInvariantViolationError(fmt.Sprintf("unknown status %q", string(u.Value)))
	}
	if a.Status.IsTerminal() && u.Value != a.Status {
		return apperrors.NewInvariantViolationError(
			fmt.Sprintf("status %s is terminal, refusing transition to %s", a.Status, u.Value))
	}
	a.Status = u.Value
	return nil
}

func (u SetPreApprovedLimit) apply(a *LoanApplication) error { a.PreApprovedLimit = u.Value; return nil }
func (u SetEMI) apply(a *LoanApplication) error              { a.EMI = u.Value; return nil }
func (u SetRejectionReason) apply(a *LoanApplication) error  { a.RejectionReason = u.Value; return nil }
func (u SetSanctionLetterRef) apply(a *LoanApplication) error {
	a.SanctionLetterRef = u.Value
	return nil
}

// Apply runs the updates in order and stops at the first failure. Callers
// work on a clone so a failure never leaves a shared record half-written.
func (a *LoanApplication) Apply(updates ...Update) error {
	for _, u := range updates {
		if u == nil {
			continue
		}
		if err := u.apply(a); err != nil {
			return err
		}
	}
	return nil
}

// ParseOverrides turns a caller-supplied field map into typed updates.
// Unknown keys and mistyped values are validation errors.
func ParseOverrides(raw map[string]interface{}) ([]Update, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]Update, 0, len(raw))
	var problems []string
	for _, k := range keys {
		u, err := parseOverride(k, raw[k])
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		updates = append(updates, u)
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError(strings.Join(problems, "; "))
	}
	return updates, nil
}

func parseOverride(key string, v interface{}) (Update, error) {
	switch normalizeKey(key) {
	case "name":
		s, err := asString(key, v)
		return SetName{Value: s}, err
	case "phone":
		s, err := asString(key, v)
		return SetPhone{Value: s}, err
	case "email":
		s, err := asString(key, v)
		return SetEmail{Value: s}, err
	case "pan":
		s, err := asString(key, v)
		return SetPAN{Value: strings.ToUpper(s)}, err
	case "aadhar":
		s, err := asString(key, v)
		return SetAadhar{Value: s}, err
	case "salary":
		f, err := asFloat(key, v)
		return SetSalary{Value: f}, err
	case "creditscore":
		f, err := asFloat(key, v)
		return SetCreditScore{Value: int(f)}, err
	case "loanamount":
		f, err := asFloat(key, v)
		return SetLoanAmount{Value: f}, err
	case "interestrate":
		f, err := asFloat(key, v)
		return SetInterestRate{Value: f}, err
	case "tenuremonths", "tenure":
		f, err := asFloat(key, v)
		return SetTenure{Value: int(f)}, err
	case "preapprovedlimit":
		f, err := asFloat(key, v)
		return SetPreApprovedLimit{Value: f}, err
	case "emi":
		f, err := asFloat(key, v)
		return SetEMI{Value: f}, err
	case "rejectionreason":
		s, err := asString(key, v)
		return SetRejectionReason{Value: s}, err
	case "sanctionletterref", "sanctionletterpath":
		s, err := asString(key, v)
		return SetSanctionLetterRef{Value: s}, err
	case "status":
		s, err := asString(key, v)
		if err != nil {
			return nil, err
		}
		st, err := ParseStatus(strings.ToLower(s))
		if err != nil {
			return nil, fmt.Errorf("%s: unknown status %q", key, s)
		}
		return SetStatus{Value: st}, nil
	default:
		return nil, fmt.Errorf("%s: unknown field", key)
	}
}

// normalizeKey accepts snake_case and camelCase spellings.
func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}

func asString(key string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", key, v)
	}
	return strings.TrimSpace(s), nil
}

func asFloat(key string, v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a number", key, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", key, v)
	}
}
