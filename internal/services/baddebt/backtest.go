package baddebt

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

type MonthResult struct {
	Month          int       `json:"month"`
	EvaluationDate ISOTime   `json:"evaluationDate"`
	Totals                   // totalLoans, totalPendingAmount, totalBadDebtCandidate
	Loans          []LoanRow `json:"loans"`
}

type YearRollup struct {
	Totals
	MonthsWithLoans int `json:"monthsWithLoans"`
}

type MonthlySummary struct {
	Year     int           `json:"year"`
	Criteria Criteria      `json:"criteria"`
	Months   []MonthResult `json:"months"`
	Summary  YearRollup    `json:"summary"`
}

// MonthlySummary replays the criteria at the last instant of every month of
// year. A loan counts in the first month it qualifies and is excluded from
// every later month, so the yearly totals never double-count.
func (s *Service) MonthlySummary(ctx context.Context, year int, c Criteria) (*MonthlySummary, error) {
	first := MonthEnd(year, time.January)
	last := MonthEnd(year, time.December)

	loans, err := s.Loans.Query(ctx, c.BacktestFilter(first, last))
	if err != nil {
		return nil, eris.Wrapf(err, "backtest %d: fetch loans", year)
	}
	sortBySignDate(loans)

	matcher := c.Matcher(ModeBacktest)
	localities := NewLocalityFilter(c.Localities)
	processed := make(map[string]struct{})

	out := &MonthlySummary{
		Year:     year,
		Criteria: c,
		Months:   make([]MonthResult, 0, 12),
	}

	// Months must run in ascending order: exclusion depends on it.
	for m := time.January; m <= time.December; m++ {
		eval := MonthEnd(year, m)
		month := MonthResult{
			Month:          int(m),
			EvaluationDate: ISOTime(eval),
			Loans:          make([]LoanRow, 0),
		}

		for _, l := range loans {
			if _, done := processed[l.ID]; done {
				continue
			}
			if l.SignDate.After(eval) {
				continue
			}
			a := Evaluate(l, eval)
			if !matcher.Match(l, a) {
				continue
			}
			if !localities.Allows(l) {
				continue
			}

			month.Loans = append(month.Loans, newLoanRow(l, a, a))
			month.add(a)
		}

		for _, row := range month.Loans {
			processed[row.ID] = struct{}{}
		}

		if month.TotalLoans > 0 {
			out.Summary.MonthsWithLoans++
		}
		out.Summary.TotalLoans += month.TotalLoans
		out.Summary.TotalPendingAmount = Money(out.Summary.TotalPendingAmount.Decimal().Add(month.TotalPendingAmount.Decimal()))
		out.Summary.TotalBadDebtCandidate = Money(out.Summary.TotalBadDebtCandidate.Decimal().Add(month.TotalBadDebtCandidate.Decimal()))
		out.Months = append(out.Months, month)

		s.Logger.Debug("baddebt.backtest.month",
			zap.Int("year", year),
			zap.Int("month", int(m)),
			zap.Int("loans", month.TotalLoans),
			zap.Int("processed", len(processed)),
		)
	}

	s.Logger.Info("baddebt.backtest.done",
		zap.Int("year", year),
		zap.Int("fetched", len(loans)),
		zap.Int("loans", out.Summary.TotalLoans),
	)
	return out, nil
}
