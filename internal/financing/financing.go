// Package financing calculates amortized payment plans for catalog cars.
package financing

import (
	"errors"
	"math"
)

// Standard terms offered: 3 to 6 years.
var availableMonths = []int{36, 48, 60, 72}

// ErrDownPaymentTooHigh means the down payment leaves nothing to finance.
var ErrDownPaymentTooHigh = errors.New("down payment must be less than car price")

// Plan is one financing option for a fixed term.
type Plan struct {
	Months         int     `json:"months"`
	MonthlyPayment float64 `json:"monthly_payment"`
	TotalAmount    float64 `json:"total_amount"`
	InterestAmount float64 `json:"interest_amount"`
}

// Calculator computes financing plans with a fixed annual rate.
type Calculator struct {
	AnnualRate            float64 // e.g. 0.10 for 10%
	DefaultDownPaymentPct float64 // e.g. 0.10 for 10%
}

// NewCalculator creates a calculator, filling zero fields with defaults.
func NewCalculator(annualRate, defaultDownPaymentPct float64) *Calculator {
	if annualRate == 0 {
		annualRate = 0.10
	}
	if defaultDownPaymentPct == 0 {
		defaultDownPaymentPct = 0.10
	}
	return &Calculator{AnnualRate: annualRate, DefaultDownPaymentPct: defaultDownPaymentPct}
}

// MonthlyPayment computes the fixed monthly payment for a principal over
// the given number of months using compound interest.
func (c *Calculator) MonthlyPayment(principal float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	monthlyRate := c.AnnualRate / 12
	if monthlyRate == 0 {
		return round2(principal / float64(months))
	}
	factor := math.Pow(1+monthlyRate, float64(months))
	payment := principal * monthlyRate * factor / (factor - 1)
	return round2(payment)
}

// Plans computes plans for every standard term within [minMonths, maxMonths].
func (c *Calculator) Plans(carPrice, downPayment float64, minMonths, maxMonths int) ([]Plan, error) {
	if minMonths == 0 {
		minMonths = 36
	}
	if maxMonths == 0 {
		maxMonths = 72
	}
	financed := carPrice - downPayment
	if financed <= 0 {
		return nil, ErrDownPaymentTooHigh
	}

	var plans []Plan
	for _, months := range availableMonths {
		if months < minMonths || months > maxMonths {
			continue
		}
		monthly := c.MonthlyPayment(financed, months)
		total := round2(monthly * float64(months))
		plans = append(plans, Plan{
			Months:         months,
			MonthlyPayment: monthly,
			TotalAmount:    total,
			InterestAmount: round2(total - financed),
		})
	}
	return plans, nil
}

// DefaultDownPayment returns the default down payment for a price.
func (c *Calculator) DefaultDownPayment(carPrice float64) float64 {
	return round2(carPrice * c.DefaultDownPaymentPct)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
