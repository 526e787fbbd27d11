package baddebt

import (
	"context"
	"fmt"
	"strings"

	"baddebt_engine/internal/ports"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	SourceManual = "manual"
	SourceFile   = "file"
)

type MarkRequest struct {
	LoanIDs      []string
	DeadDebtDate string
	Source       string
	FilePath     string
}

// MarkResult keeps the flat payload callers already parse.
type MarkResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	UpdatedCount int64  `json:"updatedCount"`
}

// MarkLoans stamps bad_debt_date on the given loans. Loans that already carry
// a date are skipped, so repeating a call changes nothing and an
// updatedCount below the number of ids is expected.
func (s *Service) MarkLoans(ctx context.Context, req MarkRequest) (MarkResult, error) {
	ids := uniqueIDs(req.LoanIDs)
	if len(ids) == 0 {
		return MarkResult{}, ErrEmptyLoanIDs
	}
	date, err := ParseISODate(req.DeadDebtDate)
	if err != nil {
		return MarkResult{}, err
	}

	updated, err := s.Loans.BulkMarkBadDebt(ctx, ids, date)
	if err != nil {
		return MarkResult{}, eris.Wrap(err, "mark loans")
	}

	source := req.Source
	if source == "" {
		source = SourceManual
	}
	s.Logger.Info("baddebt.mark",
		zap.Int("requested", len(ids)),
		zap.Int64("updated", updated),
		zap.Time("dead_debt_date", date),
		zap.String("source", source),
	)

	if s.Audit != nil {
		if err := s.Audit.RecordMarking(ctx, ports.MarkingEntry{
			LoanIDs:      ids,
			DeadDebtDate: date,
			UpdatedCount: updated,
			Source:       source,
			FilePath:     req.FilePath,
		}); err != nil {
			s.Logger.Warn("baddebt.mark.audit_failed", zap.Error(err))
		}
	}

	return MarkResult{
		Success:      true,
		Message:      fmt.Sprintf("marked %d of %d loans as bad debt", updated, len(ids)),
		UpdatedCount: updated,
	}, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
