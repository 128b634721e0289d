// internal/extract/extract.go

// Package extract parses free-text customer messages into candidate field
// values. Extract is a pure parse; Slots.Updates applies the merge policy
// against the current record.
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"loan-advisor/internal/models"
)

const (
	MinAmount = 10_000.0
	MaxAmount = 100_000_000.0

	minBareTenure = 6
	maxBareTenure = 120
	maxTenure     = 360

	// a tenure-unit token at or above this after a salary word is a salary
	minUnitSalary = 1_000
)

var (
	panMention    = regexp.MustCompile(`\bpan\b`)
	aadharMention = regexp.MustCompile(`\baadh?aa?r\b`)
	strictPAN     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	strictAadhar  = regexp.MustCompile(`^[0-9]{12}$`)
	onlyNumber    = regexp.MustCompile(`^\s*(?:₹|rs\.?|inr)?\s*(\d+(?:,\d+)*(?:\.\d+)?)\s*(k|lakhs?|lacs?|crores?|cr)?\s*(?:rs|rupees|inr)?\s*[.!]?\s*$`)
)

// Slots holds everything recognised in one message. Zero values mean
// "not mentioned".
type Slots struct {
	Name          string
	NameDirective bool

	LoanAmount      float64
	AmountDirective bool

	TenureMonths       int
	TenureDirective    bool
	TenureAlternatives bool
	// TenureOptions lists the months named in an "N or M" question.
	TenureOptions []int
	// BareTenure is a unit-less number in the plausible tenure range; it is
	// only used when the record has no tenure yet.
	BareTenure int

	PAN             string
	Aadhar          string
	PANMentioned    bool
	AadharMentioned bool
	// malformed identity-looking tokens, kept for validation feedback
	PANCandidate    string
	AadharCandidate string

	Salary          float64
	SalaryDirective bool

	// BareNumber is set when the whole message is a single amount, e.g. "45,000".
	BareNumber float64
}

// Extract parses a message. It never looks at the record.
func Extract(message string) Slots {
	var s Slots
	lower := strings.ToLower(message)

	rest := s.extractIdentity(lower)
	s.extractName(message)

	if alt := tenureAlternativesPattern.FindString(rest); alt != "" {
		s.TenureAlternatives = true
		s.TenureOptions = tenureOptions(alt)
	}
	for _, tok := range scanNumbers(rest) {
		s.classify(tok, rest)
	}

	if m := onlyNumber.FindStringSubmatch(lower); m != nil {
		if v, ok := parseNumber(m[1]); ok {
			s.BareNumber = v * multiplier(m[2])
		}
	}
	return s
}

func (s *Slots) extractIdentity(lower string) string {
	var spans [][]int

	s.PANMentioned = panMention.MatchString(lower)
	s.AadharMentioned = aadharMention.MatchString(lower)

	for _, loc := range panPattern.FindAllStringIndex(lower, -1) {
		if s.PAN == "" {
			s.PAN = strings.ToUpper(lower[loc[0]:loc[1]])
		}
		spans = append(spans, loc)
	}
	for _, loc := range aadharPattern.FindAllStringIndex(lower, -1) {
		if s.Aadhar == "" {
			s.Aadhar = digitsOnly(lower[loc[0]:loc[1]])
		}
		spans = append(spans, loc)
	}
	for _, loc := range panLikePattern.FindAllStringIndex(lower, -1) {
		tok := strings.ToUpper(lower[loc[0]:loc[1]])
		if ValidPAN(tok) {
			continue
		}
		if s.PANCandidate == "" {
			s.PANCandidate = tok
		}
		spans = append(spans, loc)
	}
	for _, loc := range aadharLikePattern.FindAllStringIndex(lower, -1) {
		tok := digitsOnly(lower[loc[0]:loc[1]])
		if ValidAadhar(tok) {
			continue
		}
		if s.AadharCandidate == "" {
			s.AadharCandidate = tok
		}
		spans = append(spans, loc)
	}
	return blank(lower, spans)
}

func (s *Slots) extractName(message string) {
	if m := nameDirectivePattern.FindStringSubmatch(message); m != nil {
		if name := joinName(m[1], m[2]); name != "" {
			s.Name = name
			s.NameDirective = true
			return
		}
	}
	for _, m := range namePattern.FindAllStringSubmatch(message, -1) {
		if name := joinName(m[1], m[2]); name != "" {
			s.Name = name
			return
		}
	}
}

func joinName(first, second string) string {
	if first == "" || fillerWords[strings.ToLower(strings.Trim(first, ".'-"))] {
		return ""
	}
	name := titleCase(first)
	if second != "" && !fillerWords[strings.ToLower(strings.Trim(second, ".'-"))] {
		name += " " + titleCase(second)
	}
	return name
}

func (s *Slots) classify(tok numberToken, rest string) {
	if ignoreWords.MatchString(tok.prefix) {
		return
	}

	if perUnit, ok := tenureUnits[tok.unit]; ok {
		if tok.value >= minUnitSalary && salaryWords.MatchString(tok.prefix) {
			value := tok.value
			if perUnit > 1 {
				value = math.Round(value / float64(perUnit))
			}
			s.setSalary(value, tok.isDirective(salaryWords))
			return
		}
		if ageSuffix.MatchString(tok.suffix) || s.TenureAlternatives {
			return
		}
		s.setTenure(int(math.Round(tok.value*float64(perUnit))), tok.isDirective(tenureWords))
		return
	}

	value := tok.value * multiplier(tok.unit)
	if isSalary(tok) {
		if isAnnual(tok, rest) {
			value = math.Round(value / 12)
		}
		s.setSalary(value, tok.isDirective(salaryWords))
		return
	}

	if tok.unit == "" && tok.isDirective(tenureWords) && value == math.Trunc(value) {
		s.setTenure(int(value), true)
		return
	}

	if value >= MinAmount && value <= MaxAmount {
		directive := tok.isDirective(amountWords)
		if s.LoanAmount == 0 || (directive && !s.AmountDirective) {
			s.LoanAmount = value
			s.AmountDirective = directive
		}
		return
	}

	if tok.unit == "" && value == math.Trunc(value) &&
		value >= minBareTenure && value <= maxBareTenure && s.BareTenure == 0 && !s.TenureAlternatives {
		s.BareTenure = int(value)
	}
}

// tenureOptions reads "24 or 36 months" / "2 or 3 years"; a unit on either
// side applies to a unit-less partner.
func tenureOptions(alt string) []int {
	tokens := scanNumbers(alt)
	unit := ""
	for _, tok := range tokens {
		if tok.unit != "" {
			unit = tok.unit
		}
	}
	perUnit, ok := tenureUnits[unit]
	if !ok {
		perUnit = 1
	}
	var options []int
	for _, tok := range tokens {
		n := tok.value * float64(perUnit)
		if u, ok := tenureUnits[tok.unit]; ok {
			n = tok.value * float64(u)
		}
		if months := int(math.Round(n)); months > 0 && months <= maxTenure {
			options = append(options, months)
		}
	}
	return options
}

func (s *Slots) setTenure(months int, directive bool) {
	if months <= 0 || months > maxTenure {
		return
	}
	if s.TenureMonths == 0 || (directive && !s.TenureDirective) {
		s.TenureMonths = months
		s.TenureDirective = directive
	}
}

func (s *Slots) setSalary(value float64, directive bool) {
	if value > 0 && (s.Salary == 0 || (directive && !s.SalaryDirective)) {
		s.Salary = value
		s.SalaryDirective = directive
	}
}

func isSalary(tok numberToken) bool {
	return tok.unit == "lpa" ||
		salaryWords.MatchString(tok.prefix) ||
		monthlyQualifier.MatchString(tok.suffix) ||
		annualQualifier.MatchString(tok.suffix)
}

func isAnnual(tok numberToken, rest string) bool {
	if monthlyQualifier.MatchString(tok.suffix) {
		return false
	}
	return tok.unit == "lpa" ||
		annualQualifier.MatchString(tok.suffix) ||
		annualWords.MatchString(rest)
}

// Updates returns the typed changes this message makes to app. Set fields
// are only replaced by an explicit directive; identity numbers also accept
// a replacement when the message names the document.
func (s Slots) Updates(app *models.LoanApplication) []models.Update {
	var updates []models.Update
	c := app.Customer

	if s.Name != "" && s.Name != c.Name && (c.Name == "" || s.NameDirective) {
		updates = append(updates, models.SetName{Value: s.Name})
	}
	if s.LoanAmount > 0 && s.LoanAmount != app.LoanAmount && (app.LoanAmount == 0 || s.AmountDirective) {
		updates = append(updates, models.SetLoanAmount{Value: s.LoanAmount})
	}

	tenure := s.TenureMonths
	if tenure == 0 && app.TenureMonths == 0 {
		tenure = s.BareTenure
	}
	if tenure > 0 && tenure != app.TenureMonths && (app.TenureMonths == 0 || s.TenureDirective) {
		updates = append(updates, models.SetTenure{Value: tenure})
	}

	if s.PAN != "" && s.PAN != c.PAN && (c.PAN == "" || !ValidPAN(c.PAN) || s.PANMentioned) {
		updates = append(updates, models.SetPAN{Value: s.PAN})
	}
	if s.Aadhar != "" && s.Aadhar != c.Aadhar && (c.Aadhar == "" || !ValidAadhar(c.Aadhar) || s.AadharMentioned) {
		updates = append(updates, models.SetAadhar{Value: s.Aadhar})
	}
	if s.Salary > 0 && s.Salary != c.Salary && (c.Salary == 0 || s.SalaryDirective) {
		updates = append(updates, models.SetSalary{Value: s.Salary})
	}
	return updates
}

// HasIdentity reports whether any PAN or Aadhar shaped token is present,
// valid or not.
func (s Slots) HasIdentity() bool {
	return s.PAN != "" || s.Aadhar != "" || s.PANCandidate != "" || s.AadharCandidate != ""
}

// ValidPAN checks the 5 letters, 4 digits, 1 letter format.
func ValidPAN(pan string) bool {
	return strictPAN.MatchString(pan)
}

// ValidAadhar checks for exactly 12 digits.
func ValidAadhar(aadhar string) bool {
	return strictAadhar.MatchString(aadhar)
}

// NormalizeAadhar drops the spaces of the 4-4-4 grouping.
func NormalizeAadhar(s string) string {
	return digitsOnly(s)
}

func multiplier(unit string) float64 {
	if m, ok := unitMultipliers[unit]; ok {
		return m
	}
	return 1
}

func parseNumber(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	return v, err == nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
