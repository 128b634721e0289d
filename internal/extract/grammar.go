// internal/extract/grammar.go
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Pattern table. Every pattern runs against the lower-cased message unless
// noted otherwise.
var (
	panPattern    = regexp.MustCompile(`\b[a-z]{5}[0-9]{4}[a-z]\b`)
	aadharPattern = regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`)

	// loose shapes used to report malformed identity numbers
	panLikePattern    = regexp.MustCompile(`\b[a-z]{3,7}[0-9]{3,5}[a-z]{0,2}\b`)
	aadharLikePattern = regexp.MustCompile(`\b(?:\d{11}|\d{13,14}|\d{4}\s\d{4}\s\d{3}|\d{4}\s\d{4}\s\d{5})\b`)

	numberPattern = regexp.MustCompile(
		`(?:₹|rs\.?|inr)?\s*(\d+(?:,\d+)*(?:\.\d+)?)\s*(lakhs?|lacs?|crores?|cr|k|lpa|months?|mths?|mos?|years?|yrs?|yr|y)?\b`)

	// name is matched case-insensitively on the original message to keep casing
	namePattern          = regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm)\s+([a-z][a-z.'-]*)(?:\s+([a-z][a-z.'-]*))?`)
	nameDirectivePattern = regexp.MustCompile(`(?i)\b(?:change|update|correct)\s+(?:my\s+)?name\s+(?:to|is|=)\s*([a-z][a-z.'-]*)(?:\s+([a-z][a-z.'-]*))?`)

	tenureAlternativesPattern = regexp.MustCompile(
		`\b\d+\s*(?:months?|years?|yrs?)?\s+or\s+\d+\s*(?:months?|years?|yrs?)\b`)

	directiveTail = regexp.MustCompile(`(?:\bto|\bis|=)\s*(?:₹|rs\.?|inr)?\s*$`)

	amountWords = regexp.MustCompile(`\b(?:amount|loan|principal|borrow|sum)\b`)
	tenureWords = regexp.MustCompile(`\b(?:tenure|duration|period|term|extend|repay|repayment)\b`)
	salaryWords = regexp.MustCompile(`\b(?:salary|income|earn|earns|earning|earnings|ctc|take[- ]home)\b`)
	ignoreWords = regexp.MustCompile(`\b(?:emi|installment|instalment|score|age|pin|pincode)\s*(?:of|is|be|=|around|about)?\s*(?:₹|rs\.?|inr)?\s*$`)

	monthlyQualifier = regexp.MustCompile(`^\s*(?:per month|a month|/month|/m\b|monthly|pm\b|p\.m\.?)`)
	annualQualifier  = regexp.MustCompile(`^\s*(?:per annum|p\.?a\.?|per year|a year|/year|/yr|annually|yearly)`)
	annualWords      = regexp.MustCompile(`\b(?:annum|annual|annually|yearly|ctc|lpa)\b|p\.a\.?|per year|a year`)
	ageSuffix        = regexp.MustCompile(`^\s*old\b`)
)

var unitMultipliers = map[string]float64{
	"lakh": 1e5, "lakhs": 1e5, "lac": 1e5, "lacs": 1e5, "lpa": 1e5,
	"crore": 1e7, "crores": 1e7, "cr": 1e7,
	"k": 1e3,
}

var tenureUnits = map[string]int{
	"month": 1, "months": 1, "mth": 1, "mths": 1, "mo": 1, "mos": 1,
	"year": 12, "years": 12, "yr": 12, "yrs": 12, "y": 12,
}

// fillerWords follow "i am" / "i'm" without being a name.
var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true, "not": true, "interested": true, "looking": true,
	"here": true, "fine": true, "good": true, "ok": true, "okay": true, "ready": true,
	"unsure": true, "confused": true, "planning": true, "trying": true, "also": true,
	"just": true, "employed": true, "working": true, "salaried": true, "self": true,
	"happy": true, "sure": true, "thinking": true, "applying": true, "in": true,
	"on": true, "from": true, "with": true, "and": true, "so": true, "very": true,
	"still": true, "now": true, "currently": true, "earning": true, "getting": true,
	"done": true, "glad": true, "well": true, "need": true,
	"want": true, "would": true, "going": true, "willing": true, "able": true,
	"eligible": true, "satisfied": true, "agree": true, "kyc": true, "pan": true,
	"aadhar": true, "aadhaar": true, "to": true, "for": true, "i": true, "my": true,
	"is": true, "it": true, "that": true, "this": true, "yes": true, "no": true,
}

// numberToken is one numeric mention with its unit and surroundings.
type numberToken struct {
	value  float64
	unit   string
	start  int
	end    int
	prefix string // text since the previous numeric token
	suffix string // up to 24 bytes after the token
}

func scanNumbers(lower string) []numberToken {
	matches := numberPattern.FindAllStringSubmatchIndex(lower, -1)
	tokens := make([]numberToken, 0, len(matches))
	prevEnd := 0
	for _, m := range matches {
		raw := strings.ReplaceAll(lower[m[2]:m[3]], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		unit := ""
		if m[4] >= 0 {
			unit = lower[m[4]:m[5]]
		}
		tokens = append(tokens, numberToken{
			value:  v,
			unit:   unit,
			start:  m[2],
			end:    m[1],
			prefix: lower[prevEnd:m[0]],
			suffix: lower[m[1]:min(len(lower), m[1]+24)],
		})
		prevEnd = m[1]
	}
	return tokens
}

// isDirective reports an explicit change keyword right before the number
// with the field word somewhere in the same clause.
func (t numberToken) isDirective(fieldWords *regexp.Regexp) bool {
	return directiveTail.MatchString(t.prefix) && fieldWords.MatchString(t.prefix)
}

// blank overwrites the given spans with spaces so later patterns skip them.
func blank(s string, spans [][]int) string {
	if len(spans) == 0 {
		return s
	}
	b := []byte(s)
	for _, sp := range spans {
		for i := sp[0]; i < sp[1]; i++ {
			b[i] = ' '
		}
	}
	return string(b)
}

func titleCase(word string) string {
	word = strings.Trim(word, ".'-")
	if word == "" {
		return ""
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}
