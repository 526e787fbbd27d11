package baddebt

import (
	"context"
	"errors"
	"strconv"
	"time"

	"baddebt_engine/internal/models"
	"baddebt_engine/internal/ports"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

// fakeStore ignores the pushed filter on purpose: every test then exercises
// the exact in-memory phase on its own.
type fakeStore struct {
	loans []*models.Loan

	queryErr error
	markErr  error
	sumErr   error

	filters       []ports.LoanFilter
	groupSumCalls int
}

func newFakeStore(loans ...models.Loan) *fakeStore {
	f := &fakeStore{}
	for i := range loans {
		l := loans[i]
		f.loans = append(f.loans, &l)
	}
	return f
}

func (f *fakeStore) Query(_ context.Context, filter ports.LoanFilter) ([]models.Loan, error) {
	f.filters = append(f.filters, filter)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := make([]models.Loan, 0, len(f.loans))
	for _, l := range f.loans {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeStore) BulkMarkBadDebt(_ context.Context, ids []string, date time.Time) (int64, error) {
	if f.markErr != nil {
		return 0, f.markErr
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var n int64
	for _, l := range f.loans {
		if wanted[l.ID] && l.BadDebtDate == nil {
			d := date
			l.BadDebtDate = &d
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GroupSum(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	f.groupSumCalls++
	if f.sumErr != nil {
		return nil, f.sumErr
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make(map[string]decimal.Decimal)
	for _, l := range f.loans {
		if !wanted[l.ID] {
			continue
		}
		for _, p := range l.Payments {
			out[l.ID] = out[l.ID].Add(p.Amount)
		}
	}
	return out, nil
}

func (f *fakeStore) get(id string) *models.Loan {
	for _, l := range f.loans {
		if l.ID == id {
			return l
		}
	}
	return nil
}

type fakeAudit struct {
	entries []ports.MarkingEntry
	err     error
}

func (a *fakeAudit) RecordMarking(_ context.Context, e ports.MarkingEntry) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, e)
	return nil
}

var errStorage = errors.New("connection refused")

func newTestService(store *fakeStore) *Service {
	s := NewService(store, store, nil, zap.NewNop())
	s.Now = func() time.Time { return testNow }
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func intp(v int) *int { return &v }

type loanOpt func(*models.Loan)

// newLoan builds an open loan of 1000 + 200 profit with 600 pending, in
// locality "Centro" on route "r1".
func newLoan(id string, signed time.Time, opts ...loanOpt) models.Loan {
	l := models.Loan{
		ID:                  id,
		AmountGived:         dec("1000"),
		ProfitAmount:        dec("200"),
		PendingAmountStored: dec("600"),
		SignDate:            signed,
		Borrower:            models.Borrower{ID: "b-" + id, FullName: "Borrower " + id, ClientCode: "C-" + id},
		Lead: models.Lead{
			ID:        "lead-1",
			RouteID:   "r1",
			RouteName: "Ruta 1",
			PersonalData: models.PersonalData{
				FullName:  "Lead Uno",
				Addresses: []models.Address{{LocationID: "loc-centro", LocationName: "Centro"}},
			},
		},
	}
	for _, o := range opts {
		o(&l)
	}
	return l
}

func withAmounts(gived, profit, pending string) loanOpt {
	return func(l *models.Loan) {
		l.AmountGived = dec(gived)
		l.ProfitAmount = dec(profit)
		l.PendingAmountStored = dec(pending)
	}
}

func withPayment(amount string, at time.Time) loanOpt {
	return func(l *models.Loan) {
		t := at
		l.Payments = append(l.Payments, models.Payment{
			ID:         l.ID + "-p" + strconv.Itoa(len(l.Payments)+1),
			LoanID:     l.ID,
			Amount:     dec(amount),
			ReceivedAt: &t,
			CreatedAt:  at,
		})
	}
}

func withBadDebt(at time.Time) loanOpt {
	return func(l *models.Loan) {
		t := at
		l.BadDebtDate = &t
	}
}

func withFinished(at time.Time) loanOpt {
	return func(l *models.Loan) {
		t := at
		l.FinishedDate = &t
	}
}

func withLocality(name string) loanOpt {
	return func(l *models.Loan) {
		l.Lead.PersonalData.Addresses = []models.Address{{LocationID: "loc-" + name, LocationName: name}}
	}
}

func withRoute(id string) loanOpt {
	return func(l *models.Loan) {
		l.Lead.RouteID = id
	}
}

func rowIDs(rows []LoanRow) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}
