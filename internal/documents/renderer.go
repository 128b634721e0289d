// internal/documents/renderer.go
package documents

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/finance"
	"loan-advisor/internal/models"

	"github.com/go-pdf/fpdf"
)

const defaultLender = "Personal Loans Desk"

var letterTerms = []string{
	"This sanction is valid for 30 days from the date of issue.",
	"Processing fee: 2% of loan amount (minimum Rs. 1,000).",
	"First EMI due date: 30 days from disbursement.",
	"Prepayment allowed after 6 months with 2% charges.",
}

// Renderer builds the sanction letter PDF and hands it to a Store.
type Renderer struct {
	store    Store
	lender   string
	now      func() time.Time
	compress bool
	logger   logger.Logger
}

func NewRenderer(store Store, lender string, log logger.Logger) *Renderer {
	if lender == "" {
		lender = defaultLender
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Renderer{
		store:    store,
		lender:   lender,
		now:      time.Now,
		compress: true,
		logger:   log,
	}
}

// Render returns the stored document's reference.
func (r *Renderer) Render(ctx context.Context, app *models.LoanApplication) (string, error) {
	if !app.HasTerms() || app.EMI <= 0 {
		return "", apperrors.NewValidationError("sanction letter needs amount, tenure and EMI")
	}

	data, err := r.Build(app)
	if err != nil {
		return "", err
	}

	key := LetterKey(app.ID)
	ref, err := r.store.Save(ctx, key, data)
	if err != nil {
		return "", err
	}
	r.logger.Info("Sanction letter stored", map[string]interface{}{
		"applicationId": app.ID,
		"ref":           ref,
		"bytes":         len(data),
	})
	return ref, nil
}

// Build lays out the letter. Core PDF fonts have no rupee glyph, so amounts
// use "Rs.".
func (r *Renderer) Build(app *models.LoanApplication) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetTitle("Loan Sanction Letter", false)
	pdf.SetAuthor(r.lender, false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "LOAN SANCTION LETTER", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, tr(r.lender), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, "Date: "+r.now().Format("January 02, 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	section := func(title string, lines []string, size float64) {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", size)
		for _, l := range lines {
			pdf.SetX(20)
			pdf.MultiCell(0, 6, tr(l), "", "L", false)
		}
		pdf.Ln(4)
	}

	c := app.Customer
	section("Customer Details:", []string{
		"Name: " + c.Name,
		"Application ID: " + app.ID,
		"PAN: " + maskPAN(c.PAN),
		fmt.Sprintf("Credit Score: %d", c.CreditScore),
	}, 12)

	section("Loan Details:", []string{
		"Loan Amount: " + rupees(app.LoanAmount),
		"Interest Rate: " + finance.FormatPercent(app.InterestRate) + "% per annum",
		fmt.Sprintf("Tenure: %d months", app.TenureMonths),
		"EMI: " + rupees(app.EMI),
		"Total Amount Payable: " + rupees(finance.TotalPayable(app.EMI, app.TenureMonths)),
	}, 12)

	terms := make([]string, len(letterTerms))
	for i, t := range letterTerms {
		terms[i] = "- " + t
	}
	section("Terms & Conditions:", terms, 10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Congratulations on your loan approval!", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render sanction letter: %w", err)
	}
	return buf.Bytes(), nil
}

func rupees(v float64) string {
	return strings.Replace(finance.FormatINR(v), "₹", "Rs. ", 1)
}

// maskPAN keeps the first and last two characters.
func maskPAN(pan string) string {
	if len(pan) < 5 {
		return pan
	}
	return pan[:2] + strings.Repeat("X", len(pan)-4) + pan[len(pan)-2:]
}
