// internal/finance/calculator.go

// Package finance holds the pure loan economics: EMI, rate slabs, negotiation
// and affordability. Nothing here performs I/O or keeps state.
package finance

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	BaseRate = 9.0
	MinRate  = 9.5
	MaxRate  = 15.0

	Lakh  = 100_000.0
	Crore = 10_000_000.0
)

// EMI is the reducing-balance installment P·r·(1+r)^n / ((1+r)^n − 1) with
// r = annualRate/1200, rounded to paise. A non-positive rate or tenure falls
// back to straight-line principal/max(n,1).
func EMI(principal, annualRate float64, months int) float64 {
	r := annualRate / 1200
	if r <= 0 || months <= 0 {
		return RoundMoney(principal / float64(max(months, 1)))
	}
	growth := math.Pow(1+r, float64(months))
	return RoundMoney(principal * r * growth / (growth - 1))
}

// MaxPrincipal inverts EMI: the largest principal whose installment at the
// given rate and tenure does not exceed maxEMI.
func MaxPrincipal(maxEMI, annualRate float64, months int) float64 {
	if maxEMI <= 0 || months <= 0 {
		return 0
	}
	r := annualRate / 1200
	if r <= 0 {
		return RoundMoney(maxEMI * float64(months))
	}
	growth := math.Pow(1+r, float64(months))
	return RoundMoney(maxEMI * (growth - 1) / (r * growth))
}

// TotalPayable is EMI times tenure.
func TotalPayable(emi float64, months int) float64 {
	return decimal.NewFromFloat(emi).Mul(decimal.NewFromInt(int64(months))).Round(2).InexactFloat64()
}

// Rate prices a loan from its amount, tenure and, when known, credit score.
// creditScore <= 0 means "not assessed yet" and adds no premium.
func Rate(amount float64, months int, creditScore int) float64 {
	rate := BaseRate + amountPremium(amount) + tenurePremium(months) + creditPremium(creditScore)
	rate = math.Max(MinRate, math.Min(MaxRate, rate))
	return math.Round(rate*2) / 2
}

func amountPremium(amount float64) float64 {
	switch {
	case amount <= 5*Lakh:
		return 1.5
	case amount <= 10*Lakh:
		return 1.2
	case amount <= 25*Lakh:
		return 1.0
	case amount <= 50*Lakh:
		return 0.8
	case amount <= Crore:
		return 0.6
	default:
		return 0.4
	}
}

func tenurePremium(months int) float64 {
	switch {
	case months <= 12:
		return 0.0
	case months <= 24:
		return 0.3
	case months <= 36:
		return 0.5
	case months <= 48:
		return 0.7
	default:
		return 1.0
	}
}

func creditPremium(score int) float64 {
	switch {
	case score <= 0:
		return 0
	case score >= 800:
		return -0.5
	case score >= 750:
		return 0
	case score >= 700:
		return 0.3
	case score >= 650:
		return 0.8
	default:
		return 1.5
	}
}

// NegotiatedRate applies a one-shot discount to the current rate, floored at MinRate.
func NegotiatedRate(currentRate, amount float64) float64 {
	discount := 0.5
	switch {
	case amount >= 50*Lakh:
		discount = 1.0
	case amount >= 20*Lakh:
		discount = 0.75
	}
	return RoundMoney(math.Max(MinRate, currentRate-discount))
}

// RateBenefits explains which pricing advantages a loan earns.
func RateBenefits(amount float64, months int) []string {
	var benefits []string
	switch {
	case amount >= 50*Lakh:
		benefits = append(benefits, "Premium customer discount applied!")
	case amount >= 20*Lakh:
		benefits = append(benefits, "High-value loan discount!")
	case amount >= 10*Lakh:
		benefits = append(benefits, "Volume discount applied!")
	}
	if months <= 24 {
		benefits = append(benefits, "Short tenure bonus!")
	}
	return benefits
}

// Ratio returns emi/salary as a percentage rounded to two decimals.
func Ratio(emi, salary float64) float64 {
	if salary <= 0 {
		return math.Inf(1)
	}
	return decimal.NewFromFloat(emi).
		Div(decimal.NewFromFloat(salary)).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

// RoundMoney rounds half away from zero to two decimals.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
