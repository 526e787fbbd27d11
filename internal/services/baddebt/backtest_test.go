package baddebt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"baddebt_engine/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthOf(t *testing.T, out *MonthlySummary) map[string]int {
	t.Helper()
	seen := make(map[string]int)
	for _, m := range out.Months {
		for _, row := range m.Loans {
			prev, dup := seen[row.ID]
			require.False(t, dup, "loan %s in months %d and %d", row.ID, prev, m.Month)
			seen[row.ID] = m.Month
		}
	}
	return seen
}

func TestMonthlySummary_EachLoanCountedOnce(t *testing.T) {
	old := ts("2023-10-01T00:00:00Z")
	store := newFakeStore(
		newLoan("l1", old),
		newLoan("l2", ts("2024-01-20T00:00:00Z")),
		newLoan("l3", old, withPayment("50", ts("2024-01-25T00:00:00Z"))),
		newLoan("l4", old, withBadDebt(ts("2024-01-15T00:00:00Z"))),
		newLoan("l5", ts("2024-07-10T00:00:00Z")),
		newLoan("l6", old, withBadDebt(ts("2024-05-10T00:00:00Z"))),
	)
	svc := newTestService(store)

	out, err := svc.MonthlySummary(context.Background(), 2024, Criteria{
		WeeksWithoutPayment: WeekRange{Min: intp(4)},
	})
	require.NoError(t, err)
	require.Len(t, out.Months, 12)

	assert.Equal(t, map[string]int{"l1": 1, "l6": 1, "l2": 2, "l3": 2, "l5": 8}, monthOf(t, out))

	total := 0
	for i, m := range out.Months {
		assert.Equal(t, i+1, m.Month)
		assert.Equal(t, MonthEnd(2024, time.Month(i+1)), m.EvaluationDate.Time())
		assert.Equal(t, len(m.Loans), m.TotalLoans)
		total += m.TotalLoans
	}
	assert.Equal(t, 5, out.Summary.TotalLoans)
	assert.Equal(t, total, out.Summary.TotalLoans)
	assert.Equal(t, 3, out.Summary.MonthsWithLoans)
	assert.True(t, out.Summary.TotalBadDebtCandidate.Decimal().Equal(dec("2500")))

	require.Len(t, store.filters, 1, "one fetch for the whole year")
	assert.Equal(t, ports.BadDebtUnsetOrAfter, store.filters[0].BadDebt)
}

func TestMonthlySummary_CriteriaRecomputedPerMonth(t *testing.T) {
	store := newFakeStore(
		newLoan("young", ts("2024-01-15T00:00:00Z")),
		newLoan("future", ts("2025-01-02T00:00:00Z")),
	)
	svc := newTestService(store)

	out, err := svc.MonthlySummary(context.Background(), 2024, Criteria{
		WeeksSinceLoan: WeekRange{Min: intp(12)},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"young": 4}, monthOf(t, out))
}

func TestMonthlySummary_AmountsAtMonthEnd(t *testing.T) {
	store := newFakeStore(newLoan("a", ts("2023-12-01T00:00:00Z"),
		withPayment("120", ts("2024-02-10T00:00:00Z")),
	))
	svc := newTestService(store)

	out, err := svc.MonthlySummary(context.Background(), 2024, Criteria{Status: StatusAll})
	require.NoError(t, err)

	jan := out.Months[0]
	require.Len(t, jan.Loans, 1)
	assert.True(t, jan.Loans[0].TotalPaid.Decimal().IsZero())
	assert.Equal(t, 8, jan.Loans[0].WeeksSinceLoan)
	assert.Empty(t, out.Months[1].Loans)
}

func TestMonthlySummary_MarkedStatus(t *testing.T) {
	old := ts("2023-10-01T00:00:00Z")
	store := newFakeStore(
		newLoan("unmarked", old),
		newLoan("march", old, withBadDebt(ts("2024-03-01T00:00:00Z"))),
		newLoan("last-year", old, withBadDebt(ts("2023-12-20T00:00:00Z"))),
	)
	svc := newTestService(store)

	out, err := svc.MonthlySummary(context.Background(), 2024, Criteria{Status: StatusMarked})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"last-year": 1, "march": 3}, monthOf(t, out))
}

func TestMonthlySummary_Localities(t *testing.T) {
	old := ts("2023-10-01T00:00:00Z")
	store := newFakeStore(
		newLoan("centro", old),
		newLoan("norte", old, withLocality("Norte")),
	)
	svc := newTestService(store)

	out, err := svc.MonthlySummary(context.Background(), 2024, Criteria{Localities: []string{"Norte"}})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"norte": 1}, monthOf(t, out))
}

func TestMonthlySummary_StorageError(t *testing.T) {
	store := newFakeStore()
	store.queryErr = errStorage
	svc := newTestService(store)

	_, err := svc.MonthlySummary(context.Background(), 2024, Criteria{})
	assert.True(t, errors.Is(err, errStorage))
}

func TestMonthlySummary_MarkedInMarchCountedInFebruary(t *testing.T) {
	store := newFakeStore(newLoan("b", ts("2023-12-01T00:00:00Z"),
		withBadDebt(ts("2024-03-01T00:00:00Z")),
	))
	svc := newTestService(store)

	out, err := svc.MonthlySummary(context.Background(), 2024, Criteria{
		WeeksSinceLoan: WeekRange{Min: intp(10)},
	})
	require.NoError(t, err)

	// Unmarked at the end of February, already marked at the end of March.
	assert.Equal(t, map[string]int{"b": 2}, monthOf(t, out))
}

func TestByMonth_EvaluatesAtMarkingDate(t *testing.T) {
	store := newFakeStore(
		newLoan("b", ts("2023-12-01T00:00:00Z"),
			withPayment("120", ts("2024-02-01T00:00:00Z")),
			withPayment("60", ts("2024-03-15T00:00:00Z")),
			withBadDebt(ts("2024-03-01T00:00:00Z")),
		),
		newLoan("late", ts("2023-12-01T00:00:00Z"), withBadDebt(ts("2024-03-31T23:00:00Z"))),
		newLoan("feb", ts("2023-12-01T00:00:00Z"), withBadDebt(ts("2024-02-29T23:00:00Z"))),
		newLoan("closed", ts("2023-12-01T00:00:00Z"),
			withBadDebt(ts("2024-03-05T00:00:00Z")),
			withFinished(ts("2024-04-01T00:00:00Z")),
		),
		newLoan("unmarked", ts("2023-12-01T00:00:00Z")),
	)
	svc := newTestService(store)

	out, err := svc.ByMonth(context.Background(), 2024, 3, "", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "late"}, rowIDs(out.Loans))
	assert.Equal(t, MonthStart(2024, time.March), out.From.Time())
	assert.Equal(t, MonthEnd(2024, time.March), out.To.Time())

	row := out.Loans[0]
	assert.True(t, row.TotalPaid.Decimal().Equal(dec("120")))
	assert.True(t, row.ProfitRecognized.Decimal().Equal(dec("20")))
	assert.Equal(t, ts("2024-03-01T00:00:00Z"), row.EvaluatedAt.Time())

	raw, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"badDebtDate":"2024-03-01T00:00:00.000Z"`)

	assert.Equal(t, 2, out.Totals.TotalLoans)
	assert.True(t, out.Totals.TotalPaid.Decimal().Equal(dec("120")))
	assert.True(t, out.Totals.TotalBadDebtCandidate.Decimal().Equal(dec("1000")))

	require.Len(t, store.filters, 1)
	assert.Equal(t, ports.BadDebtSet, store.filters[0].BadDebt)
}

func TestByMonth_RouteAndLocality(t *testing.T) {
	marked := withBadDebt(ts("2024-03-10T00:00:00Z"))
	store := newFakeStore(
		newLoan("keep", ts("2023-12-01T00:00:00Z"), marked, withLocality("Norte")),
		newLoan("centro", ts("2023-12-01T00:00:00Z"), marked),
		newLoan("other-route", ts("2023-12-01T00:00:00Z"), marked, withLocality("Norte"), withRoute("r2")),
	)
	svc := newTestService(store)

	out, err := svc.ByMonth(context.Background(), 2024, 3, "r1", []string{"Norte"})
	require.NoError(t, err)

	assert.Equal(t, []string{"keep"}, rowIDs(out.Loans))
	assert.Equal(t, "r1", store.filters[0].RouteID)
}

func TestByMonth_InvalidMonth(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	for _, m := range []int{0, 13} {
		_, err := svc.ByMonth(context.Background(), 2024, m, "", nil)
		assert.True(t, errors.Is(err, ErrInvalidMonth), "month %d", m)
	}
	assert.Empty(t, store.filters)
}
