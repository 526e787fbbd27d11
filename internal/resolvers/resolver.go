// Package resolvers exposes the bad-debt operations as JSON-string payloads.
// Business failures never become transport errors: every call returns a
// string the caller decodes and inspects.
package resolvers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"baddebt_engine/internal/repository/markings"
	"baddebt_engine/internal/services/baddebt"
	"baddebt_engine/internal/services/export"
	"baddebt_engine/internal/services/idfile"

	"go.uber.org/zap"
)

type Engine interface {
	ListLoans(ctx context.Context, c baddebt.Criteria) (*baddebt.SnapshotListing, error)
	Summary(ctx context.Context, c baddebt.Criteria) (*baddebt.SnapshotSummary, error)
	MonthlySummary(ctx context.Context, year int, c baddebt.Criteria) (*baddebt.MonthlySummary, error)
	ByMonth(ctx context.Context, year, month int, routeID string, localities []string) (*baddebt.RecordedMonth, error)
	MarkLoans(ctx context.Context, req baddebt.MarkRequest) (baddebt.MarkResult, error)
}

type IDReader interface {
	ReadIDs(ctx context.Context, filePath string) (idfile.Result, error)
}

type ReportExporter interface {
	Snapshot(ctx context.Context, listing *baddebt.SnapshotListing) (export.Result, error)
	Monthly(ctx context.Context, summary *baddebt.MonthlySummary) (export.Result, error)
}

type MarkingHistory interface {
	List(ctx context.Context, limit, skip int64) ([]markings.Record, int64, error)
}

var ErrYearRequired = errors.New("year is required for MONTHLY reports")

// Resolver has one method per exposed field. IDs, Reports and History are
// optional; their fields answer with a failure payload when unset.
type Resolver struct {
	Engine  Engine
	IDs     IDReader
	Reports ReportExporter
	History MarkingHistory
	Logger  *zap.Logger
}

func New(engine Engine, ids IDReader, reports ReportExporter, history MarkingHistory, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		Engine:  engine,
		IDs:     ids,
		Reports: reports,
		History: history,
		Logger:  logger,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type markPayload struct {
	baddebt.MarkResult
	RequestedCount *int   `json:"requestedCount,omitempty"`
	FilePath       string `json:"filePath,omitempty"`
}

func (r *Resolver) DeadDebtLoans(ctx context.Context, args CriteriaArgs) string {
	const field = "deadDebtLoans"
	c, err := args.Criteria()
	if err != nil {
		return r.fail(field, err)
	}
	out, err := r.Engine.ListLoans(ctx, c)
	if err != nil {
		return r.fail(field, err)
	}
	return r.ok(field, out)
}

func (r *Resolver) DeadDebtSummary(ctx context.Context, args CriteriaArgs) string {
	const field = "deadDebtSummary"
	c, err := args.Criteria()
	if err != nil {
		return r.fail(field, err)
	}
	out, err := r.Engine.Summary(ctx, c)
	if err != nil {
		return r.fail(field, err)
	}
	return r.ok(field, out)
}

func (r *Resolver) DeadDebtMonthlySummary(ctx context.Context, year int, args CriteriaArgs) string {
	const field = "deadDebtMonthlySummary"
	c, err := args.Criteria()
	if err != nil {
		return r.fail(field, err)
	}
	out, err := r.Engine.MonthlySummary(ctx, year, c)
	if err != nil {
		return r.fail(field, err)
	}
	return r.ok(field, out)
}

func (r *Resolver) DeadDebtByMonth(ctx context.Context, year, month int, routeID *string, localities []string) string {
	const field = "deadDebtByMonth"
	out, err := r.Engine.ByMonth(ctx, year, month, deref(routeID), cleanNames(localities))
	if err != nil {
		return r.fail(field, err)
	}
	return r.ok(field, out)
}

func (r *Resolver) MarkLoansDeadDebt(ctx context.Context, loanIDs []string, deadDebtDate string) string {
	const field = "markLoansDeadDebt"
	res, err := r.Engine.MarkLoans(ctx, baddebt.MarkRequest{
		LoanIDs:      loanIDs,
		DeadDebtDate: deadDebtDate,
		Source:       baddebt.SourceManual,
	})
	if err != nil {
		return r.failMark(field, err, markPayload{})
	}
	return encode(markPayload{MarkResult: res})
}

// MarkLoansDeadDebtFromFile reads the ids from a csv/xlsx file and marks
// them like MarkLoansDeadDebt.
func (r *Resolver) MarkLoansDeadDebtFromFile(ctx context.Context, filePath, deadDebtDate string) string {
	const field = "markLoansDeadDebtFromFile"
	base := markPayload{FilePath: filePath}
	if r.IDs == nil {
		return r.failMark(field, errors.New("file import is not configured"), base)
	}
	if _, err := baddebt.ParseISODate(deadDebtDate); err != nil {
		return r.failMark(field, err, base)
	}

	file, err := r.IDs.ReadIDs(ctx, filePath)
	if err != nil {
		return r.failMark(field, err, base)
	}
	requested := len(file.IDs)
	base.RequestedCount = &requested

	res, err := r.Engine.MarkLoans(ctx, baddebt.MarkRequest{
		LoanIDs:      file.IDs,
		DeadDebtDate: deadDebtDate,
		Source:       baddebt.SourceFile,
		FilePath:     filePath,
	})
	if err != nil {
		return r.failMark(field, err, base)
	}
	base.MarkResult = res
	return encode(base)
}

// ExportDeadDebtReport renders the listing (SNAPSHOT) or the backtest
// (MONTHLY) to xlsx and returns where it was stored.
func (r *Resolver) ExportDeadDebtReport(ctx context.Context, kind string, year *int, args CriteriaArgs) string {
	const field = "exportDeadDebtReport"
	if r.Reports == nil {
		return r.fail(field, errors.New("report export is not configured"))
	}
	k, err := export.ParseKind(kind)
	if err != nil {
		return r.fail(field, err)
	}
	c, err := args.Criteria()
	if err != nil {
		return r.fail(field, err)
	}

	var res export.Result
	switch k {
	case export.KindSnapshot:
		listing, err := r.Engine.ListLoans(ctx, c)
		if err != nil {
			return r.fail(field, err)
		}
		res, err = r.Reports.Snapshot(ctx, listing)
		if err != nil {
			return r.fail(field, err)
		}
	case export.KindMonthly:
		if year == nil {
			return r.fail(field, ErrYearRequired)
		}
		summary, err := r.Engine.MonthlySummary(ctx, *year, c)
		if err != nil {
			return r.fail(field, err)
		}
		res, err = r.Reports.Monthly(ctx, summary)
		if err != nil {
			return r.fail(field, err)
		}
	}
	return r.ok(field, res)
}

// DeadDebtMarkings pages the marking audit trail. A nil or out of range
// limit falls back to 50.
func (r *Resolver) DeadDebtMarkings(ctx context.Context, limitArg, skipArg *int64) string {
	const field = "deadDebtMarkings"
	if r.History == nil {
		return r.fail(field, errors.New("marking history is not configured"))
	}
	limit, skip := deref(limitArg), deref(skipArg)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	items, total, err := r.History.List(ctx, limit, skip)
	if err != nil {
		return r.fail(field, err)
	}
	return r.ok(field, map[string]any{
		"items": items,
		"total": total,
		"limit": limit,
		"skip":  skip,
	})
}

func (r *Resolver) ok(field string, data any) string {
	r.Logger.Debug("resolver.ok", zap.String("field", field))
	return encode(envelope{Success: true, Data: data})
}

func (r *Resolver) fail(field string, err error) string {
	r.logFailure(field, err)
	return encode(envelope{Success: false, Message: err.Error()})
}

func (r *Resolver) failMark(field string, err error, p markPayload) string {
	r.logFailure(field, err)
	p.MarkResult = baddebt.MarkResult{Success: false, Message: err.Error()}
	return encode(p)
}

func (r *Resolver) logFailure(field string, err error) {
	if isValidation(err) {
		r.Logger.Warn("resolver.rejected", zap.String("field", field), zap.Error(err))
		return
	}
	r.Logger.Error("resolver.failed", zap.String("field", field), zap.Error(err))
}

func isValidation(err error) bool {
	for _, target := range []error{
		baddebt.ErrEmptyLoanIDs,
		baddebt.ErrInvalidDate,
		baddebt.ErrInvalidStatus,
		baddebt.ErrInvalidMonth,
		export.ErrInvalidReportKind,
		idfile.ErrNoIDs,
		ErrYearRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(envelope{Success: false, Message: fmt.Sprintf("encode result: %v", err)})
	}
	return string(b)
}
