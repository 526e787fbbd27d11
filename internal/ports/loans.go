package ports

import (
	"context"
	"time"

	"baddebt_engine/internal/models"

	"github.com/shopspring/decimal"
)

// BadDebtCondition is the coarse bad_debt_date predicate pushed to storage.
type BadDebtCondition int

const (
	BadDebtAny BadDebtCondition = iota
	BadDebtUnset
	BadDebtSet
	BadDebtUnsetOrAfter
)

// LoanFilter is the storage-level half of the criteria filter. It may select
// a superset of the final result; finished loans and loans without a pending
// balance are always excluded by implementations.
type LoanFilter struct {
	RouteID string

	SignedFrom *time.Time
	SignedTo   *time.Time

	BadDebt BadDebtCondition
	// BadDebtFrom is inclusive for BadDebtSet and exclusive for BadDebtUnsetOrAfter.
	BadDebtFrom *time.Time
	BadDebtTo   *time.Time
}

type LoanRepository interface {
	Query(ctx context.Context, filter LoanFilter) ([]models.Loan, error)
	// BulkMarkBadDebt sets bad_debt_date only on loans where it is still NULL
	// and returns how many rows changed.
	BulkMarkBadDebt(ctx context.Context, loanIDs []string, date time.Time) (int64, error)
}

type PaymentAggregate interface {
	GroupSum(ctx context.Context, loanIDs []string) (map[string]decimal.Decimal, error)
}

type MarkingEntry struct {
	LoanIDs      []string
	DeadDebtDate time.Time
	UpdatedCount int64
	Source       string
	FilePath     string
}

type MarkingAudit interface {
	RecordMarking(ctx context.Context, entry MarkingEntry) error
}
