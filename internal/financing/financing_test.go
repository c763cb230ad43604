package financing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyPayment(t *testing.T) {
	c := NewCalculator(0.10, 0.10)

	// 180,000 financed over 36 months at 10% annual ≈ 5,808.09/month.
	payment := c.MonthlyPayment(180000, 36)
	assert.InDelta(t, 5808.09, payment, 1.0)
}

func TestMonthlyPayment_ZeroRate(t *testing.T) {
	c := &Calculator{AnnualRate: 0, DefaultDownPaymentPct: 0.10}
	payment := c.MonthlyPayment(12000, 12)
	assert.Equal(t, 1000.0, payment)
}

func TestMonthlyPayment_Invalid(t *testing.T) {
	c := NewCalculator(0.10, 0.10)
	assert.Zero(t, c.MonthlyPayment(0, 36))
	assert.Zero(t, c.MonthlyPayment(-100, 36))
	assert.Zero(t, c.MonthlyPayment(100000, 0))
}

func TestPlans(t *testing.T) {
	c := NewCalculator(0.10, 0.10)

	plans, err := c.Plans(200000, 20000, 36, 72)
	require.NoError(t, err)
	require.Len(t, plans, 4)

	months := []int{36, 48, 60, 72}
	for i, p := range plans {
		assert.Equal(t, months[i], p.Months)
		assert.Positive(t, p.MonthlyPayment)
		assert.InDelta(t, p.MonthlyPayment*float64(p.Months), p.TotalAmount, 0.01)
		assert.InDelta(t, p.TotalAmount-180000, p.InterestAmount, 0.01)
	}

	// Longer terms cost less per month, more in total.
	assert.Less(t, plans[3].MonthlyPayment, plans[0].MonthlyPayment)
	assert.Greater(t, plans[3].TotalAmount, plans[0].TotalAmount)
}

func TestPlans_TermFilter(t *testing.T) {
	c := NewCalculator(0.10, 0.10)

	plans, err := c.Plans(200000, 20000, 48, 60)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, 48, plans[0].Months)
	assert.Equal(t, 60, plans[1].Months)
}

func TestPlans_DownPaymentTooHigh(t *testing.T) {
	c := NewCalculator(0.10, 0.10)

	_, err := c.Plans(200000, 200000, 0, 0)
	assert.ErrorIs(t, err, ErrDownPaymentTooHigh)

	_, err = c.Plans(200000, 250000, 0, 0)
	assert.ErrorIs(t, err, ErrDownPaymentTooHigh)
}

func TestDefaultDownPayment(t *testing.T) {
	c := NewCalculator(0.10, 0.10)
	assert.Equal(t, 25000.0, c.DefaultDownPayment(250000))
}
