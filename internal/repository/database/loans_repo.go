package database

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"baddebt_engine/internal/config/connections/postgres"
	"baddebt_engine/internal/models"
	"baddebt_engine/internal/ports"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

type LoansRepo struct {
	pool  postgres.Pool
	table string
}

func NewLoansRepo(pool postgres.Pool, table string) *LoansRepo {
	if strings.TrimSpace(table) == "" {
		table = "loans"
	}
	return &LoansRepo{
		pool:  pool,
		table: table,
	}
}

type paymentJSON struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	ReceivedAt *string         `json:"receivedAt"`
	CreatedAt  string          `json:"createdAt"`
}

// json_build_object writes timestamp columns without an offset and
// timestamptz columns with one; both are read as UTC instants.
var ledgerTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseLedgerTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range ledgerTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Borrower and lead names, the lead's first address and the full payment
// ledger all come back in the same round trip.
const loanSelect = `
	SELECT
		l.id::text,
		l.amount_gived::text,
		l.profit_amount::text,
		l.pending_amount_stored::text,
		l.sign_date,
		l.bad_debt_date,
		l.finished_date,
		COALESCE(b.id::text, ''),
		COALESCE(bpd.full_name, ''),
		COALESCE(bpd.client_code, ''),
		COALESCE(ld.id::text, ''),
		COALESCE(ld.route_id::text, ''),
		COALESCE(r.name, ''),
		COALESCE(lpd.full_name, ''),
		COALESCE(addr.location_id::text, ''),
		COALESCE(addr.location_name, ''),
		COALESCE(pay.items, '[]'::json)
	FROM %s l
	LEFT JOIN borrowers b ON b.id = l.borrower_id
	LEFT JOIN personal_data bpd ON bpd.id = b.personal_data_id
	LEFT JOIN employees ld ON ld.id = l.lead_id
	LEFT JOIN routes r ON r.id = ld.route_id
	LEFT JOIN personal_data lpd ON lpd.id = ld.personal_data_id
	LEFT JOIN LATERAL (
		SELECT a.location_id, loc.name AS location_name
		FROM addresses a
		LEFT JOIN locations loc ON loc.id = a.location_id
		WHERE a.personal_data_id = lpd.id
		ORDER BY a.created_at, a.id
		LIMIT 1
	) addr ON true
	LEFT JOIN LATERAL (
		SELECT json_agg(json_build_object(
			'id', p.id::text,
			'amount', p.amount::text,
			'receivedAt', p.received_at,
			'createdAt', p.created_at
		) ORDER BY COALESCE(p.received_at, p.created_at), p.id) AS items
		FROM payments p
		WHERE p.loan_id = l.id
	) pay ON true
`

func (r *LoansRepo) Query(ctx context.Context, filter ports.LoanFilter) ([]models.Loan, error) {
	where, args := buildLoanWhere(filter)
	query := strings.Replace(loanSelect, "%s", r.table, 1) +
		" WHERE " + where + " ORDER BY l.sign_date, l.id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "loans: query")
	}
	defer rows.Close()

	loans := make([]models.Loan, 0)
	for rows.Next() {
		var (
			loan                         models.Loan
			amountGived, profit, pending string
			locationID, locationName     string
			paymentsRaw                  []byte
		)
		if err := rows.Scan(
			&loan.ID, &amountGived, &profit, &pending,
			&loan.SignDate, &loan.BadDebtDate, &loan.FinishedDate,
			&loan.Borrower.ID, &loan.Borrower.FullName, &loan.Borrower.ClientCode,
			&loan.Lead.ID, &loan.Lead.RouteID, &loan.Lead.RouteName,
			&loan.Lead.PersonalData.FullName,
			&locationID, &locationName,
			&paymentsRaw,
		); err != nil {
			return nil, eris.Wrap(err, "loans: scan")
		}

		if loan.AmountGived, err = parseAmount(amountGived); err != nil {
			return nil, eris.Wrapf(err, "loans: amount_gived of %s", loan.ID)
		}
		if loan.ProfitAmount, err = parseAmount(profit); err != nil {
			return nil, eris.Wrapf(err, "loans: profit_amount of %s", loan.ID)
		}
		if loan.PendingAmountStored, err = parseAmount(pending); err != nil {
			return nil, eris.Wrapf(err, "loans: pending_amount_stored of %s", loan.ID)
		}

		if locationID != "" || locationName != "" {
			loan.Lead.PersonalData.Addresses = []models.Address{{
				LocationID:   locationID,
				LocationName: locationName,
			}}
		}

		if loan.Payments, err = decodePayments(loan.ID, paymentsRaw); err != nil {
			return nil, err
		}

		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "loans: rows")
	}

	return loans, nil
}

func (r *LoansRepo) BulkMarkBadDebt(ctx context.Context, loanIDs []string, date time.Time) (int64, error) {
	if len(loanIDs) == 0 {
		return 0, nil
	}

	query := `UPDATE ` + r.table + ` SET bad_debt_date = $1 WHERE id = ANY($2) AND bad_debt_date IS NULL`

	ct, err := r.pool.Exec(ctx, query, date, loanIDs)
	if err != nil {
		return 0, eris.Wrap(err, "loans: mark bad debt")
	}
	return ct.RowsAffected(), nil
}

func buildLoanWhere(f ports.LoanFilter) (string, []any) {
	conds := []string{
		"l.finished_date IS NULL",
		"l.pending_amount_stored > 0",
	}
	args := make([]any, 0)

	appendCond := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if v := strings.TrimSpace(f.RouteID); v != "" {
		appendCond("ld.route_id::text = ?", v)
	}
	if f.SignedFrom != nil {
		appendCond("l.sign_date >= ?", *f.SignedFrom)
	}
	if f.SignedTo != nil {
		appendCond("l.sign_date <= ?", *f.SignedTo)
	}

	switch f.BadDebt {
	case ports.BadDebtUnset:
		conds = append(conds, "l.bad_debt_date IS NULL")
	case ports.BadDebtSet:
		conds = append(conds, "l.bad_debt_date IS NOT NULL")
		if f.BadDebtFrom != nil {
			appendCond("l.bad_debt_date >= ?", *f.BadDebtFrom)
		}
		if f.BadDebtTo != nil {
			appendCond("l.bad_debt_date <= ?", *f.BadDebtTo)
		}
	case ports.BadDebtUnsetOrAfter:
		if f.BadDebtFrom != nil {
			appendCond("(l.bad_debt_date IS NULL OR l.bad_debt_date > ?)", *f.BadDebtFrom)
		}
	}

	return strings.Join(conds, " AND "), args
}

func decodePayments(loanID string, raw []byte) ([]models.Payment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []paymentJSON
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, eris.Wrapf(err, "loans: decode payments of %s", loanID)
	}
	payments := make([]models.Payment, 0, len(items))
	for _, it := range items {
		created, err := parseLedgerTime(it.CreatedAt)
		if err != nil {
			return nil, eris.Wrapf(err, "loans: payment %s of %s: createdAt", it.ID, loanID)
		}
		var received *time.Time
		if it.ReceivedAt != nil {
			t, err := parseLedgerTime(*it.ReceivedAt)
			if err != nil {
				return nil, eris.Wrapf(err, "loans: payment %s of %s: receivedAt", it.ID, loanID)
			}
			received = &t
		}
		payments = append(payments, models.Payment{
			ID:         it.ID,
			LoanID:     loanID,
			Amount:     it.Amount,
			ReceivedAt: received,
			CreatedAt:  created,
		})
	}
	return payments, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
