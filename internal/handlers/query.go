package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"baddebt_engine/internal/resolvers"

	"go.uber.org/zap"
)

type queryRequest struct {
	Field string          `json:"field"`
	Args  json.RawMessage `json:"args"`
}

type queryArgs struct {
	resolvers.CriteriaArgs

	Year         *int     `json:"year"`
	Month        *int     `json:"month"`
	LoanIDs      []string `json:"loanIds"`
	DeadDebtDate *string  `json:"deadDebtDate"`
	FilePath     *string  `json:"filePath"`
	Kind         *string  `json:"kind"`
	Limit        *int64   `json:"limit"`
	Skip         *int64   `json:"skip"`
}

type queryError struct {
	Message string `json:"message"`
}

// Query serves POST /query {"field": ..., "args": {...}}. Each field
// answers with a JSON-encoded string; only malformed requests get a non-200
// status.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.JSON(w, http.StatusMethodNotAllowed, map[string][]queryError{"errors": {{Message: "use POST"}}})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.badRequest(w, "bad JSON: "+err.Error())
		return
	}

	var args queryArgs
	if len(bytes.TrimSpace(req.Args)) > 0 && !bytes.Equal(bytes.TrimSpace(req.Args), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(req.Args))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&args); err != nil {
			h.badRequest(w, "invalid args: "+err.Error())
			return
		}
	}

	field := strings.TrimSpace(req.Field)
	if missing := missingArgs(field, args); len(missing) > 0 {
		h.badRequest(w, fmt.Sprintf("field %q requires argument(s): %s", field, strings.Join(missing, ", ")))
		return
	}

	ctx := r.Context()
	var out string
	switch field {
	case "deadDebtLoans":
		out = h.Resolver.DeadDebtLoans(ctx, args.CriteriaArgs)
	case "deadDebtSummary":
		out = h.Resolver.DeadDebtSummary(ctx, args.CriteriaArgs)
	case "deadDebtMonthlySummary":
		out = h.Resolver.DeadDebtMonthlySummary(ctx, *args.Year, args.CriteriaArgs)
	case "deadDebtByMonth":
		out = h.Resolver.DeadDebtByMonth(ctx, *args.Year, *args.Month, args.RouteID, args.Localities)
	case "markLoansDeadDebt":
		out = h.Resolver.MarkLoansDeadDebt(ctx, args.LoanIDs, *args.DeadDebtDate)
	case "markLoansDeadDebtFromFile":
		out = h.Resolver.MarkLoansDeadDebtFromFile(ctx, *args.FilePath, *args.DeadDebtDate)
	case "exportDeadDebtReport":
		out = h.Resolver.ExportDeadDebtReport(ctx, *args.Kind, args.Year, args.CriteriaArgs)
	case "deadDebtMarkings":
		out = h.Resolver.DeadDebtMarkings(ctx, args.Limit, args.Skip)
	default:
		h.badRequest(w, fmt.Sprintf("unknown field %q", field))
		return
	}

	h.JSON(w, http.StatusOK, map[string]map[string]string{"data": {field: out}})
}

// missingArgs lists the non-null arguments a field declares but the request
// omitted.
func missingArgs(field string, a queryArgs) []string {
	var missing []string
	need := func(ok bool, name string) {
		if !ok {
			missing = append(missing, name)
		}
	}
	switch field {
	case "deadDebtMonthlySummary":
		need(a.Year != nil, "year")
	case "deadDebtByMonth":
		need(a.Year != nil, "year")
		need(a.Month != nil, "month")
	case "markLoansDeadDebt":
		need(a.LoanIDs != nil, "loanIds")
		need(a.DeadDebtDate != nil, "deadDebtDate")
	case "markLoansDeadDebtFromFile":
		need(a.FilePath != nil, "filePath")
		need(a.DeadDebtDate != nil, "deadDebtDate")
	case "exportDeadDebtReport":
		need(a.Kind != nil, "kind")
	}
	return missing
}

func (h *Handlers) badRequest(w http.ResponseWriter, msg string) {
	h.Logger.Info("query.rejected", zap.String("reason", msg))
	h.JSON(w, http.StatusBadRequest, map[string][]queryError{"errors": {{Message: msg}}})
}
