package baddebt

import (
	"context"
	"sort"
	"time"

	"baddebt_engine/internal/models"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

type SnapshotListing struct {
	EvaluatedAt ISOTime   `json:"evaluatedAt"`
	Criteria    Criteria  `json:"criteria"`
	Loans       []LoanRow `json:"loans"`
	Totals      Totals    `json:"totals"`
}

type LocalitySummary struct {
	Locality     string `json:"locality"`
	LoanCount    int    `json:"loanCount"`
	TotalPending Money  `json:"totalPending"`
	TotalPaid    Money  `json:"totalPaid"`
}

type SnapshotSummary struct {
	EvaluatedAt ISOTime           `json:"evaluatedAt"`
	Criteria    Criteria          `json:"criteria"`
	Localities  []LocalitySummary `json:"localities"`
	Totals      LocalitySummary   `json:"totals"`
}

// ListLoans returns the loans matching c right now, oldest first. Marked
// loans report their amounts as of their bad-debt date, unmarked loans as of
// now; week counters and filtering always use now.
func (s *Service) ListLoans(ctx context.Context, c Criteria) (*SnapshotListing, error) {
	now := s.now()
	loans, err := s.selectSnapshot(ctx, c, now)
	if err != nil {
		return nil, err
	}

	out := &SnapshotListing{
		EvaluatedAt: ISOTime(now),
		Criteria:    c,
		Loans:       make([]LoanRow, 0, len(loans)),
	}
	for _, l := range loans {
		weeks := Evaluate(l, now)
		amounts := weeks
		if l.BadDebtDate != nil {
			amounts = Evaluate(l, *l.BadDebtDate)
		}
		out.Loans = append(out.Loans, newLoanRow(l, amounts, weeks))
		out.Totals.add(amounts)
	}

	s.Logger.Info("baddebt.snapshot.list",
		zap.String("status", string(c.status())),
		zap.Int("loans", len(out.Loans)),
	)
	return out, nil
}

// Summary groups the loans matching c by locality. The paid total is the
// plain ledger sum per loan, not the amortized amount.
func (s *Service) Summary(ctx context.Context, c Criteria) (*SnapshotSummary, error) {
	now := s.now()
	loans, err := s.selectSnapshot(ctx, c, now)
	if err != nil {
		return nil, err
	}

	out := &SnapshotSummary{
		EvaluatedAt: ISOTime(now),
		Criteria:    c,
		Localities:  make([]LocalitySummary, 0),
		Totals:      LocalitySummary{Locality: "TOTAL"},
	}
	if len(loans) == 0 {
		return out, nil
	}

	paid, err := s.Payments.GroupSum(ctx, loanIDs(loans))
	if err != nil {
		return nil, eris.Wrap(err, "summary: payment totals")
	}

	groups := make(map[string]*LocalitySummary)
	for _, l := range loans {
		name := localityLabel(l)
		g, ok := groups[name]
		if !ok {
			g = &LocalitySummary{Locality: name}
			groups[name] = g
		}
		loanPaid := paid[l.ID]
		g.LoanCount++
		g.TotalPending = Money(g.TotalPending.Decimal().Add(l.PendingAmountStored))
		g.TotalPaid = Money(g.TotalPaid.Decimal().Add(loanPaid))

		out.Totals.LoanCount++
		out.Totals.TotalPending = Money(out.Totals.TotalPending.Decimal().Add(l.PendingAmountStored))
		out.Totals.TotalPaid = Money(out.Totals.TotalPaid.Decimal().Add(loanPaid))
	}

	for _, g := range groups {
		out.Localities = append(out.Localities, *g)
	}
	sort.Slice(out.Localities, func(i, j int) bool {
		return out.Localities[i].Locality < out.Localities[j].Locality
	})

	s.Logger.Info("baddebt.snapshot.summary",
		zap.Int("loans", out.Totals.LoanCount),
		zap.Int("localities", len(out.Localities)),
	)
	return out, nil
}

func (s *Service) selectSnapshot(ctx context.Context, c Criteria, now time.Time) ([]models.Loan, error) {
	fetched, err := s.Loans.Query(ctx, c.SnapshotFilter(now))
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: fetch loans")
	}

	matcher := c.Matcher(ModeSnapshot)
	matched := make([]models.Loan, 0, len(fetched))
	for _, l := range fetched {
		if matcher.Match(l, Evaluate(l, now)) {
			matched = append(matched, l)
		}
	}
	matched = FilterByLocality(matched, c.Localities)
	sortBySignDate(matched)

	s.Logger.Debug("baddebt.snapshot.select",
		zap.Int("fetched", len(fetched)),
		zap.Int("matched", len(matched)),
	)
	return matched, nil
}
