package resolvers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"baddebt_engine/internal/repository/markings"
	"baddebt_engine/internal/services/baddebt"
	"baddebt_engine/internal/services/export"
	"baddebt_engine/internal/services/idfile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	criteria []baddebt.Criteria
	year     int
	month    int
	routeID  string
	marks    []baddebt.MarkRequest
	err      error
}

func (f *fakeEngine) ListLoans(_ context.Context, c baddebt.Criteria) (*baddebt.SnapshotListing, error) {
	f.criteria = append(f.criteria, c)
	if f.err != nil {
		return nil, f.err
	}
	return &baddebt.SnapshotListing{Criteria: c, Loans: []baddebt.LoanRow{{ID: "l1"}}, Totals: baddebt.Totals{TotalLoans: 1}}, nil
}

func (f *fakeEngine) Summary(_ context.Context, c baddebt.Criteria) (*baddebt.SnapshotSummary, error) {
	f.criteria = append(f.criteria, c)
	if f.err != nil {
		return nil, f.err
	}
	return &baddebt.SnapshotSummary{Criteria: c, Localities: []baddebt.LocalitySummary{}}, nil
}

func (f *fakeEngine) MonthlySummary(_ context.Context, year int, c baddebt.Criteria) (*baddebt.MonthlySummary, error) {
	f.year = year
	f.criteria = append(f.criteria, c)
	if f.err != nil {
		return nil, f.err
	}
	return &baddebt.MonthlySummary{Year: year, Criteria: c, Months: []baddebt.MonthResult{}}, nil
}

func (f *fakeEngine) ByMonth(_ context.Context, year, month int, routeID string, _ []string) (*baddebt.RecordedMonth, error) {
	f.year, f.month, f.routeID = year, month, routeID
	if month < 1 || month > 12 {
		return nil, baddebt.ErrInvalidMonth
	}
	return &baddebt.RecordedMonth{Year: year, Month: month, Loans: []baddebt.LoanRow{}}, nil
}

func (f *fakeEngine) MarkLoans(_ context.Context, req baddebt.MarkRequest) (baddebt.MarkResult, error) {
	f.marks = append(f.marks, req)
	if len(req.LoanIDs) == 0 {
		return baddebt.MarkResult{}, baddebt.ErrEmptyLoanIDs
	}
	if f.err != nil {
		return baddebt.MarkResult{}, f.err
	}
	return baddebt.MarkResult{Success: true, Message: "marked", UpdatedCount: int64(len(req.LoanIDs) - 1)}, nil
}

type fakeIDs struct {
	ids []string
	err error
}

func (f fakeIDs) ReadIDs(_ context.Context, p string) (idfile.Result, error) {
	return idfile.Result{FilePath: p, IDs: f.ids}, f.err
}

type fakeReports struct{ kinds []string }

func (f *fakeReports) Snapshot(context.Context, *baddebt.SnapshotListing) (export.Result, error) {
	f.kinds = append(f.kinds, "snapshot")
	return export.Result{Key: "reports/snapshot.xlsx", Rows: 1}, nil
}

func (f *fakeReports) Monthly(context.Context, *baddebt.MonthlySummary) (export.Result, error) {
	f.kinds = append(f.kinds, "monthly")
	return export.Result{Key: "reports/monthly.xlsx"}, nil
}

type fakeHistory struct{ limit, skip int64 }

func (f *fakeHistory) List(_ context.Context, limit, skip int64) ([]markings.Record, int64, error) {
	f.limit, f.skip = limit, skip
	return []markings.Record{{LoanIDs: []string{"l1"}, Source: "manual"}}, 1, nil
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out), s)
	return out
}

func strp(s string) *string { return &s }
func intp(v int) *int       { return &v }

func TestCriteriaArgs(t *testing.T) {
	c, err := CriteriaArgs{
		WeeksSinceLoanMin: intp(4),
		BadDebtStatus:     strp("marked"),
		FromDate:          strp("2024-03-01"),
		ToDate:            strp("2024-03-31"),
		RouteID:           strp(" r1 "),
		Localities:        []string{" Centro ", ""},
	}.Criteria()
	require.NoError(t, err)

	assert.Equal(t, baddebt.StatusMarked, c.Status)
	assert.Equal(t, 4, *c.WeeksSinceLoan.Min)
	assert.Nil(t, c.WeeksSinceLoan.Max)
	assert.Equal(t, "r1", c.RouteID)
	assert.Equal(t, []string{"Centro"}, c.Localities)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), c.FromDate.Time())
	assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC), c.ToDate.Time())

	c, err = CriteriaArgs{}.Criteria()
	require.NoError(t, err)
	assert.Equal(t, baddebt.StatusUnmarked, c.Status)

	_, err = CriteriaArgs{BadDebtStatus: strp("SOMETIMES")}.Criteria()
	assert.ErrorIs(t, err, baddebt.ErrInvalidStatus)

	_, err = CriteriaArgs{FromDate: strp("yesterday")}.Criteria()
	assert.ErrorIs(t, err, baddebt.ErrInvalidDate)
}

func TestDeadDebtLoans(t *testing.T) {
	engine := &fakeEngine{}
	r := New(engine, nil, nil, nil, nil)

	out := decode(t, r.DeadDebtLoans(context.Background(), CriteriaArgs{}))
	assert.Equal(t, true, out["success"])
	data := out["data"].(map[string]any)
	assert.Len(t, data["loans"], 1)
	assert.Equal(t, "UNMARKED", data["criteria"].(map[string]any)["badDebtStatus"])
	assert.NotContains(t, out, "message")
}

func TestDeadDebtLoans_FailurePayloads(t *testing.T) {
	engine := &fakeEngine{err: errors.New("snapshot: fetch loans: connection refused")}
	r := New(engine, nil, nil, nil, nil)

	out := decode(t, r.DeadDebtLoans(context.Background(), CriteriaArgs{}))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "snapshot: fetch loans: connection refused", out["message"])
	assert.NotContains(t, out, "data")

	out = decode(t, r.DeadDebtSummary(context.Background(), CriteriaArgs{BadDebtStatus: strp("nope")}))
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["message"], "invalid badDebtStatus")
}

func TestDeadDebtMonthlySummaryAndByMonth(t *testing.T) {
	engine := &fakeEngine{}
	r := New(engine, nil, nil, nil, nil)
	ctx := context.Background()

	out := decode(t, r.DeadDebtMonthlySummary(ctx, 2024, CriteriaArgs{BadDebtStatus: strp("ALL")}))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 2024, engine.year)
	assert.Equal(t, baddebt.StatusAll, engine.criteria[0].Status)

	out = decode(t, r.DeadDebtByMonth(ctx, 2024, 3, strp("r2"), nil))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "r2", engine.routeID)

	out = decode(t, r.DeadDebtByMonth(ctx, 2024, 13, nil, nil))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, baddebt.ErrInvalidMonth.Error(), out["message"])
}

func TestMarkLoansDeadDebt(t *testing.T) {
	engine := &fakeEngine{}
	r := New(engine, nil, nil, nil, nil)

	out := decode(t, r.MarkLoansDeadDebt(context.Background(), []string{"a", "b"}, "2024-03-01"))
	assert.Equal(t, map[string]any{"success": true, "message": "marked", "updatedCount": float64(1)}, out)
	assert.Equal(t, baddebt.SourceManual, engine.marks[0].Source)

	out = decode(t, r.MarkLoansDeadDebt(context.Background(), nil, "2024-03-01"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, float64(0), out["updatedCount"])
	assert.Equal(t, baddebt.ErrEmptyLoanIDs.Error(), out["message"])
}

func TestMarkLoansDeadDebtFromFile(t *testing.T) {
	engine := &fakeEngine{}
	r := New(engine, fakeIDs{ids: []string{"a", "b", "c"}}, nil, nil, nil)

	out := decode(t, r.MarkLoansDeadDebtFromFile(context.Background(), "s3://b/ids.csv", "2024-03-01"))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(2), out["updatedCount"])
	assert.Equal(t, float64(3), out["requestedCount"])
	assert.Equal(t, "s3://b/ids.csv", out["filePath"])
	require.Len(t, engine.marks, 1)
	assert.Equal(t, baddebt.SourceFile, engine.marks[0].Source)
	assert.Equal(t, "s3://b/ids.csv", engine.marks[0].FilePath)

	out = decode(t, r.MarkLoansDeadDebtFromFile(context.Background(), "s3://b/ids.csv", "not a date"))
	assert.Equal(t, false, out["success"])
	assert.Len(t, engine.marks, 1, "nothing is read or marked with a bad date")

	r.IDs = fakeIDs{err: idfile.ErrNoIDs}
	out = decode(t, r.MarkLoansDeadDebtFromFile(context.Background(), "ids.csv", "2024-03-01"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, idfile.ErrNoIDs.Error(), out["message"])

	r.IDs = nil
	out = decode(t, r.MarkLoansDeadDebtFromFile(context.Background(), "ids.csv", "2024-03-01"))
	assert.Equal(t, false, out["success"])
}

func TestExportDeadDebtReport(t *testing.T) {
	engine := &fakeEngine{}
	reports := &fakeReports{}
	r := New(engine, nil, reports, nil, nil)
	ctx := context.Background()

	out := decode(t, r.ExportDeadDebtReport(ctx, "snapshot", nil, CriteriaArgs{}))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "reports/snapshot.xlsx", out["data"].(map[string]any)["key"])

	out = decode(t, r.ExportDeadDebtReport(ctx, "MONTHLY", nil, CriteriaArgs{}))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, ErrYearRequired.Error(), out["message"])

	out = decode(t, r.ExportDeadDebtReport(ctx, "MONTHLY", intp(2023), CriteriaArgs{}))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 2023, engine.year)

	out = decode(t, r.ExportDeadDebtReport(ctx, "PDF", nil, CriteriaArgs{}))
	assert.Equal(t, false, out["success"])

	assert.Equal(t, []string{"snapshot", "monthly"}, reports.kinds)
}

func TestDeadDebtMarkings(t *testing.T) {
	history := &fakeHistory{}
	r := New(&fakeEngine{}, nil, nil, history, nil)

	skip := int64(-5)
	out := decode(t, r.DeadDebtMarkings(context.Background(), nil, &skip))
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, 50, history.limit)
	assert.EqualValues(t, 0, history.skip)
	data := out["data"].(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	assert.Len(t, data["items"], 1)
}

func TestDeadDebtMarkings_Paging(t *testing.T) {
	history := &fakeHistory{}
	r := New(&fakeEngine{}, nil, nil, history, nil)

	limit, skip := int64(20), int64(40)
	out := decode(t, r.DeadDebtMarkings(context.Background(), &limit, &skip))
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, 20, history.limit)
	assert.EqualValues(t, 40, history.skip)

	tooMany := int64(501)
	decode(t, r.DeadDebtMarkings(context.Background(), &tooMany, nil))
	assert.EqualValues(t, 50, history.limit)
	assert.EqualValues(t, 0, history.skip)
}
