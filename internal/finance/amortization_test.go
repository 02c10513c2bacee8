// internal/finance/amortization_test.go
package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
)

// ==========================
// Test Helper Functions
// ==========================

func testPlan() Plan {
	return Plan{
		BasePriceMinor:      100000,
		DownPaymentPercent:  25,
		DurationMonths:      3,
		InterestRatePercent: 15,
		ServiceFeeMinor:     500,
		FirstDueDate:        time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
}

func sumInstallments(installments []Installment) int64 {
	var total int64
	for _, inst := range installments {
		total += inst.AmountMinor
	}
	return total
}

// ==========================
// Core Functionality Tests
// ==========================

func TestCompute_ReferenceCase(t *testing.T) {
	schedule, err := Compute(testPlan())
	require.NoError(t, err)

	assert.Equal(t, int64(25000), schedule.DownPaymentMinor)
	assert.Equal(t, int64(75000), schedule.PrincipalMinor)
	assert.Equal(t, int64(11250), schedule.InterestMinor)
	assert.Equal(t, int64(86250), schedule.LoanTotalMinor)
	assert.Equal(t, int64(28750), schedule.MonthlyRepaymentMinor)
	assert.Equal(t, int64(25000+86250+500), schedule.TotalPayableMinor)

	require.Len(t, schedule.Installments, 3)
	for i, inst := range schedule.Installments {
		assert.Equal(t, i+1, inst.Index)
		assert.Equal(t, InstallmentPending, inst.Status)
		assert.Equal(t, int64(28750), inst.AmountMinor)
	}
	assert.Equal(t, schedule.LoanTotalMinor, sumInstallments(schedule.Installments))
}

func TestCompute_LastInstallmentAbsorbsResidual(t *testing.T) {
	plan := testPlan()
	plan.BasePriceMinor = 100001
	plan.DownPaymentPercent = 0
	plan.InterestRatePercent = 0
	plan.DurationMonths = 7

	schedule, err := Compute(plan)
	require.NoError(t, err)

	// 100001 / 7 = 14285.857..., rounds up to 14286; the last slot takes
	// whatever is left so the sum still reconciles exactly.
	assert.Equal(t, int64(14286), schedule.MonthlyRepaymentMinor)
	require.Len(t, schedule.Installments, 7)
	last := schedule.Installments[6]
	assert.Equal(t, int64(100001-6*14286), last.AmountMinor)
	assert.Equal(t, schedule.LoanTotalMinor, sumInstallments(schedule.Installments))
}

func TestCompute_FullDownPayment(t *testing.T) {
	plan := testPlan()
	plan.DownPaymentPercent = 100
	plan.DurationMonths = 12

	schedule, err := Compute(plan)
	require.NoError(t, err)

	assert.Equal(t, plan.BasePriceMinor, schedule.DownPaymentMinor)
	assert.Equal(t, int64(0), schedule.PrincipalMinor)
	assert.Equal(t, int64(0), schedule.LoanTotalMinor)
	require.Len(t, schedule.Installments, 12)
	for _, inst := range schedule.Installments {
		assert.Equal(t, int64(0), inst.AmountMinor)
	}
}

func TestCompute_DueDatesAdvanceMonthly(t *testing.T) {
	schedule, err := Compute(testPlan())
	require.NoError(t, err)

	first := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i, inst := range schedule.Installments {
		assert.Equal(t, first.AddDate(0, i, 0), inst.DueDate)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a, err := Compute(testPlan())
	require.NoError(t, err)
	b, err := Compute(testPlan())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// ==========================
// Validation Tests
// ==========================

func TestCompute_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Plan)
	}{
		{
			name:   "zero base price",
			mutate: func(p *Plan) { p.BasePriceMinor = 0 },
		},
		{
			name:   "negative base price",
			mutate: func(p *Plan) { p.BasePriceMinor = -100 },
		},
		{
			name:   "zero duration",
			mutate: func(p *Plan) { p.DurationMonths = 0 },
		},
		{
			name:   "down payment above 100",
			mutate: func(p *Plan) { p.DownPaymentPercent = 101 },
		},
		{
			name:   "negative down payment",
			mutate: func(p *Plan) { p.DownPaymentPercent = -1 },
		},
		{
			name:   "interest above 100",
			mutate: func(p *Plan) { p.InterestRatePercent = 150 },
		},
		{
			name:   "negative service fee",
			mutate: func(p *Plan) { p.ServiceFeeMinor = -1 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := testPlan()
			tt.mutate(&plan)

			schedule, err := Compute(plan)
			assert.Nil(t, schedule)
			require.Error(t, err)

			stdErr, ok := err.(*errors.StandardError)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
			assert.False(t, stdErr.Retryable)
		})
	}
}
