package baddebt

import (
	"math"
	"sort"
	"time"

	"baddebt_engine/internal/models"

	"github.com/shopspring/decimal"
)

const week = 7 * 24 * time.Hour

// Amortization is the state of one loan as seen from one evaluation instant.
// Cash amounts are split into principal and profit with the loan's fixed
// profit ratio.
type Amortization struct {
	EvaluatedAt          time.Time
	TotalToPay           decimal.Decimal
	ProfitRatio          decimal.Decimal
	TotalPaid            decimal.Decimal
	ProfitRecognized     decimal.Decimal
	PrincipalRecovered   decimal.Decimal
	PendingAmount        decimal.Decimal
	ProfitStillToCollect decimal.Decimal
	BadDebtCandidate     decimal.Decimal
	LastPaymentDate      *time.Time
	WeeksSinceLoan       int
	WeeksWithoutPayment  int
}

// Evaluate computes the amortization of loan at the given instant. Only
// payments dated on or before at are counted, but the pending amount is
// always the loan's current stored balance.
func Evaluate(loan models.Loan, at time.Time) Amortization {
	total := loan.TotalToPay()
	a := Amortization{
		EvaluatedAt:   at,
		TotalToPay:    total,
		PendingAmount: loan.PendingAmountStored,
	}

	zeroTotal := total.IsZero()
	prorate := func(amount decimal.Decimal) decimal.Decimal {
		if zeroTotal {
			return decimal.Zero
		}
		return amount.Mul(loan.ProfitAmount).Div(total)
	}
	if !zeroTotal {
		a.ProfitRatio = loan.ProfitAmount.Div(total)
	}

	for _, p := range sortedPayments(loan.Payments) {
		d := p.Date()
		if d.After(at) {
			break
		}
		a.TotalPaid = a.TotalPaid.Add(p.Amount)
		a.ProfitRecognized = a.ProfitRecognized.Add(prorate(p.Amount))
		last := d
		a.LastPaymentDate = &last
	}
	a.PrincipalRecovered = a.TotalPaid.Sub(a.ProfitRecognized)

	if !zeroTotal {
		a.ProfitStillToCollect = prorate(loan.PendingAmountStored)
		a.BadDebtCandidate = decimal.Max(decimal.Zero, loan.PendingAmountStored.Sub(a.ProfitStillToCollect))
	}

	ref := loan.SignDate
	if a.LastPaymentDate != nil {
		ref = *a.LastPaymentDate
	}
	a.WeeksSinceLoan = WeeksBetween(loan.SignDate, at)
	a.WeeksWithoutPayment = WeeksBetween(ref, at)

	return a
}

// PaymentReference is the date weeks-without-payment counts from: the last
// payment on or before the evaluation instant, else the sign date.
func (a Amortization) PaymentReference(loan models.Loan) time.Time {
	if a.LastPaymentDate != nil {
		return *a.LastPaymentDate
	}
	return loan.SignDate
}

// WeeksBetween returns the number of whole weeks from from to to, rounded
// toward negative infinity.
func WeeksBetween(from, to time.Time) int {
	return int(math.Floor(float64(to.Sub(from)) / float64(week)))
}

func sortedPayments(payments []models.Payment) []models.Payment {
	out := make([]models.Payment, len(payments))
	copy(out, payments)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date(), out[j].Date()
		if di.Equal(dj) {
			return out[i].ID < out[j].ID
		}
		return di.Before(dj)
	})
	return out
}
