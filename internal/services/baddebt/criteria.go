package baddebt

import (
	"fmt"
	"strings"
	"time"

	"baddebt_engine/internal/models"
	"baddebt_engine/internal/ports"
)

type BadDebtStatus string

const (
	StatusAll      BadDebtStatus = "ALL"
	StatusMarked   BadDebtStatus = "MARKED"
	StatusUnmarked BadDebtStatus = "UNMARKED"
)

// ParseBadDebtStatus maps the caller's string to the closed status set. An
// empty value means UNMARKED.
func ParseBadDebtStatus(s string) (BadDebtStatus, error) {
	switch v := BadDebtStatus(strings.ToUpper(strings.TrimSpace(s))); v {
	case "":
		return StatusUnmarked, nil
	case StatusAll, StatusMarked, StatusUnmarked:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Mode selects how the status is interpreted.
type Mode int

const (
	// ModeSnapshot: MARKED is bounded by the optional from/to dates.
	ModeSnapshot Mode = iota
	// ModeBacktest: MARKED and UNMARKED are judged against the evaluation date.
	ModeBacktest
)

// WeekRange bounds a week count. Each bound N becomes the date at-N weeks:
// Min requires the reference date on or before it, Max on or after it.
type WeekRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

func (r WeekRange) IsZero() bool { return r.Min == nil && r.Max == nil }

// Bounds returns the earliest and latest allowed reference dates for at.
func (r WeekRange) Bounds(at time.Time) (earliest, latest *time.Time) {
	if r.Max != nil {
		t := at.Add(-time.Duration(*r.Max) * week)
		earliest = &t
	}
	if r.Min != nil {
		t := at.Add(-time.Duration(*r.Min) * week)
		latest = &t
	}
	return earliest, latest
}

func (r WeekRange) Contains(ref, at time.Time) bool {
	earliest, latest := r.Bounds(at)
	if latest != nil && ref.After(*latest) {
		return false
	}
	if earliest != nil && ref.Before(*earliest) {
		return false
	}
	return true
}

type Criteria struct {
	WeeksSinceLoan      WeekRange     `json:"weeksSinceLoan"`
	WeeksWithoutPayment WeekRange     `json:"weeksWithoutPayment"`
	Status              BadDebtStatus `json:"badDebtStatus"`
	FromDate            *ISOTime      `json:"fromDate,omitempty"`
	ToDate              *ISOTime      `json:"toDate,omitempty"`
	RouteID             string        `json:"routeId,omitempty"`
	Localities          []string      `json:"localities"`
}

func (c Criteria) status() BadDebtStatus {
	if c.Status == "" {
		return StatusUnmarked
	}
	return c.Status
}

// SnapshotFilter is the storage half of the criteria evaluated at now.
func (c Criteria) SnapshotFilter(now time.Time) ports.LoanFilter {
	f := ports.LoanFilter{RouteID: c.RouteID}
	f.SignedFrom, f.SignedTo = c.WeeksSinceLoan.Bounds(now)

	switch c.status() {
	case StatusUnmarked:
		f.BadDebt = ports.BadDebtUnset
	case StatusMarked:
		f.BadDebt = ports.BadDebtSet
		if c.FromDate != nil {
			t := c.FromDate.Time()
			f.BadDebtFrom = &t
		}
		if c.ToDate != nil {
			t := c.ToDate.Time()
			f.BadDebtTo = &t
		}
	}
	return f
}

// BacktestFilter is a single storage predicate covering every evaluation
// date between first and last. It selects a superset; the exact per-month
// check happens in memory.
func (c Criteria) BacktestFilter(first, last time.Time) ports.LoanFilter {
	f := ports.LoanFilter{RouteID: c.RouteID}

	signedTo := last
	if _, latest := c.WeeksSinceLoan.Bounds(last); latest != nil && latest.Before(signedTo) {
		signedTo = *latest
	}
	f.SignedTo = &signedTo
	if earliest, _ := c.WeeksSinceLoan.Bounds(first); earliest != nil {
		f.SignedFrom = earliest
	}

	switch c.status() {
	case StatusUnmarked:
		f.BadDebt = ports.BadDebtUnsetOrAfter
		f.BadDebtFrom = &first
	case StatusMarked:
		f.BadDebt = ports.BadDebtSet
		f.BadDebtTo = &last
	}
	return f
}

// Matcher is the exact in-memory half of the criteria.
type Matcher struct {
	criteria Criteria
	mode     Mode
}

func (c Criteria) Matcher(mode Mode) Matcher {
	return Matcher{criteria: c, mode: mode}
}

// Match reports whether loan satisfies the criteria at a.EvaluatedAt.
// Locality is checked separately by LocalityFilter.
func (m Matcher) Match(loan models.Loan, a Amortization) bool {
	if !IsOpen(loan) {
		return false
	}
	if m.criteria.RouteID != "" && loan.Lead.RouteID != m.criteria.RouteID {
		return false
	}

	at := a.EvaluatedAt
	if !m.criteria.WeeksSinceLoan.Contains(loan.SignDate, at) {
		return false
	}
	if !m.criteria.WeeksWithoutPayment.Contains(a.PaymentReference(loan), at) {
		return false
	}
	return m.matchStatus(loan.BadDebtDate, at)
}

func (m Matcher) matchStatus(badDebt *time.Time, at time.Time) bool {
	switch m.criteria.status() {
	case StatusUnmarked:
		if badDebt == nil {
			return true
		}
		return m.mode == ModeBacktest && badDebt.After(at)
	case StatusMarked:
		if badDebt == nil {
			return false
		}
		if m.mode == ModeBacktest {
			return !badDebt.After(at)
		}
		if m.criteria.FromDate != nil && badDebt.Before(m.criteria.FromDate.Time()) {
			return false
		}
		if m.criteria.ToDate != nil && badDebt.After(m.criteria.ToDate.Time()) {
			return false
		}
		return true
	default:
		return true
	}
}

// IsOpen holds for loans that can still be classified: not finished and
// with a positive stored balance.
func IsOpen(loan models.Loan) bool {
	return loan.FinishedDate == nil && loan.PendingAmountStored.IsPositive()
}
