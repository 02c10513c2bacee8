// internal/finance/amortization.go

// Package finance implements the flat-interest amortization engine. All
// money is handled in integer minor units; the package is pure and holds
// no state.
package finance

import (
	"fmt"
	"math"
	"time"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
)

// InstallmentStatus is the payment state of a single installment.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentOverdue InstallmentStatus = "overdue"
)

// Plan is the input to a schedule computation.
type Plan struct {
	BasePriceMinor      int64     `json:"basePriceMinor"`
	DownPaymentPercent  float64   `json:"downPaymentPercent"`
	DurationMonths      int       `json:"durationMonths"`
	InterestRatePercent float64   `json:"interestRatePercent"`
	ServiceFeeMinor     int64     `json:"serviceFeeMinor"`
	FirstDueDate        time.Time `json:"firstDueDate"`
}

// Installment is one monthly repayment slot.
type Installment struct {
	Index       int               `json:"index"`
	DueDate     time.Time         `json:"dueDate"`
	AmountMinor int64             `json:"amountMinor"`
	FeeMinor    int64             `json:"feeMinor"`
	Status      InstallmentStatus `json:"status"`
}

// Schedule is the full computed repayment breakdown for a plan.
type Schedule struct {
	DownPaymentMinor      int64         `json:"downPaymentMinor"`
	PrincipalMinor        int64         `json:"principalMinor"`
	InterestMinor         int64         `json:"interestMinor"`
	LoanTotalMinor        int64         `json:"loanTotalMinor"`
	MonthlyRepaymentMinor int64         `json:"monthlyRepaymentMinor"`
	ServiceFeeMinor       int64         `json:"serviceFeeMinor"`
	TotalPayableMinor     int64         `json:"totalPayableMinor"`
	Installments          []Installment `json:"installments"`
}

// Compute derives the repayment schedule for a plan using flat interest:
// interest is charged once on the financed principal, not on a declining
// balance. Intermediate rounding is half-up to the minor unit and the last
// installment absorbs the residual, so the installments always sum exactly
// to the loan total.
func Compute(plan Plan) (*Schedule, error) {
	if err := Validate(plan); err != nil {
		return nil, err
	}

	downPayment := roundMinor(float64(plan.BasePriceMinor) * plan.DownPaymentPercent / 100)
	principal := plan.BasePriceMinor - downPayment
	interest := roundMinor(float64(principal) * plan.InterestRatePercent / 100)
	loanTotal := principal + interest
	monthly := roundMinor(float64(loanTotal) / float64(plan.DurationMonths))

	installments := make([]Installment, plan.DurationMonths)
	var allocated int64
	for i := range installments {
		amount := monthly
		if i == plan.DurationMonths-1 {
			amount = loanTotal - allocated
		}
		allocated += amount
		installments[i] = Installment{
			Index:       i + 1,
			DueDate:     plan.FirstDueDate.AddDate(0, i, 0),
			AmountMinor: amount,
			Status:      InstallmentPending,
		}
	}

	return &Schedule{
		DownPaymentMinor:      downPayment,
		PrincipalMinor:        principal,
		InterestMinor:         interest,
		LoanTotalMinor:        loanTotal,
		MonthlyRepaymentMinor: monthly,
		ServiceFeeMinor:       plan.ServiceFeeMinor,
		TotalPayableMinor:     downPayment + loanTotal + plan.ServiceFeeMinor,
		Installments:          installments,
	}, nil
}

// Validate checks a plan without computing it.
func Validate(plan Plan) error {
	if plan.BasePriceMinor <= 0 {
		return errors.NewValidationFailedError(
			fmt.Sprintf("basePriceMinor must be positive, got %d", plan.BasePriceMinor))
	}
	if plan.DurationMonths < 1 {
		return errors.NewValidationFailedError(
			fmt.Sprintf("durationMonths must be at least 1, got %d", plan.DurationMonths))
	}
	if plan.DownPaymentPercent < 0 || plan.DownPaymentPercent > 100 {
		return errors.NewValidationFailedError(
			fmt.Sprintf("downPaymentPercent must be within [0,100], got %v", plan.DownPaymentPercent))
	}
	if plan.InterestRatePercent < 0 || plan.InterestRatePercent > 100 {
		return errors.NewValidationFailedError(
			fmt.Sprintf("interestRatePercent must be within [0,100], got %v", plan.InterestRatePercent))
	}
	if plan.ServiceFeeMinor < 0 {
		return errors.NewValidationFailedError(
			fmt.Sprintf("serviceFeeMinor must not be negative, got %d", plan.ServiceFeeMinor))
	}
	return nil
}

// roundMinor rounds half-up to the nearest minor unit.
func roundMinor(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
