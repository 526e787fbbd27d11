package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Loan struct {
	ID                  string
	AmountGived         decimal.Decimal
	ProfitAmount        decimal.Decimal
	PendingAmountStored decimal.Decimal
	SignDate            time.Time
	BadDebtDate         *time.Time
	FinishedDate        *time.Time

	Borrower Borrower
	Lead     Lead
	Payments []Payment
}

// TotalToPay is the disbursed principal plus the expected profit.
func (l Loan) TotalToPay() decimal.Decimal {
	return l.AmountGived.Add(l.ProfitAmount)
}

// IsMarked reports whether the loan carries a bad-debt date.
func (l Loan) IsMarked() bool {
	return l.BadDebtDate != nil
}

type Borrower struct {
	ID         string
	FullName   string
	ClientCode string
}

type Lead struct {
	ID           string
	RouteID      string
	RouteName    string
	PersonalData PersonalData
}

type PersonalData struct {
	FullName  string
	Addresses []Address
}

type Address struct {
	LocationID   string
	LocationName string
}

// LocalityName returns the location of the lead's first address, which is
// the canonical one. Empty when the lead has no address.
func (l Lead) LocalityName() string {
	if len(l.PersonalData.Addresses) == 0 {
		return ""
	}
	return l.PersonalData.Addresses[0].LocationName
}
