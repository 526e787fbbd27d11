package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID         string
	LoanID     string
	Amount     decimal.Decimal
	ReceivedAt *time.Time
	CreatedAt  time.Time
}

// Date is the instant the payment counts from: receivedAt, else createdAt.
func (p Payment) Date() time.Time {
	if p.ReceivedAt != nil && !p.ReceivedAt.IsZero() {
		return *p.ReceivedAt
	}
	return p.CreatedAt
}
