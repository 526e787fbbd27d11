package baddebt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"baddebt_engine/internal/models"
	"baddebt_engine/internal/ports"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

type RecordedTotals struct {
	Totals
	TotalPaid             Money `json:"totalPaid"`
	TotalProfitRecognized Money `json:"totalProfitRecognized"`
}

type RecordedMonth struct {
	Year       int            `json:"year"`
	Month      int            `json:"month"`
	From       ISOTime        `json:"from"`
	To         ISOTime        `json:"to"`
	RouteID    string         `json:"routeId,omitempty"`
	Localities []string       `json:"localities"`
	Loans      []LoanRow      `json:"loans"`
	Totals     RecordedTotals `json:"totals"`
}

// ByMonth reports the loans actually marked during the given month, each
// evaluated at its own bad-debt date. Unlike MonthlySummary nothing is
// deduplicated across months.
func (s *Service) ByMonth(ctx context.Context, year, month int, routeID string, localities []string) (*RecordedMonth, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
	}
	from := MonthStart(year, time.Month(month))
	to := MonthEnd(year, time.Month(month))

	fetched, err := s.Loans.Query(ctx, ports.LoanFilter{
		RouteID:     routeID,
		BadDebt:     ports.BadDebtSet,
		BadDebtFrom: &from,
		BadDebtTo:   &to,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "by month %d-%02d: fetch loans", year, month)
	}

	allowed := NewLocalityFilter(localities)
	loans := make([]models.Loan, 0, len(fetched))
	for _, l := range fetched {
		if !IsOpen(l) || l.BadDebtDate == nil {
			continue
		}
		if l.BadDebtDate.Before(from) || l.BadDebtDate.After(to) {
			continue
		}
		if routeID != "" && l.Lead.RouteID != routeID {
			continue
		}
		if !allowed.Allows(l) {
			continue
		}
		loans = append(loans, l)
	}
	sort.SliceStable(loans, func(i, j int) bool {
		di, dj := *loans[i].BadDebtDate, *loans[j].BadDebtDate
		if di.Equal(dj) {
			return loans[i].ID < loans[j].ID
		}
		return di.Before(dj)
	})

	if localities == nil {
		localities = []string{}
	}
	out := &RecordedMonth{
		Year:       year,
		Month:      month,
		From:       ISOTime(from),
		To:         ISOTime(to),
		RouteID:    routeID,
		Localities: localities,
		Loans:      make([]LoanRow, 0, len(loans)),
	}
	for _, l := range loans {
		a := Evaluate(l, *l.BadDebtDate)
		out.Loans = append(out.Loans, newLoanRow(l, a, a))
		out.Totals.add(a)
		out.Totals.TotalPaid = Money(out.Totals.TotalPaid.Decimal().Add(a.TotalPaid))
		out.Totals.TotalProfitRecognized = Money(out.Totals.TotalProfitRecognized.Decimal().Add(a.ProfitRecognized))
	}

	s.Logger.Info("baddebt.recorded.month",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("loans", len(out.Loans)),
	)
	return out, nil
}
