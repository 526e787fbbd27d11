package database

import (
	"context"
	"strings"

	"baddebt_engine/internal/config/connections/postgres"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

type PaymentTotalsRepo struct {
	pool  postgres.Pool
	table string
}

func NewPaymentTotalsRepo(pool postgres.Pool, table string) *PaymentTotalsRepo {
	if strings.TrimSpace(table) == "" {
		table = "payments"
	}
	return &PaymentTotalsRepo{
		pool:  pool,
		table: table,
	}
}

// GroupSum returns the ledger total per loan in one grouped query. Loans
// without payments are absent from the map.
func (r *PaymentTotalsRepo) GroupSum(ctx context.Context, loanIDs []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(loanIDs))
	if len(loanIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT loan_id::text, COALESCE(SUM(amount), 0)::text
		FROM ` + r.table + `
		WHERE loan_id = ANY($1)
		GROUP BY loan_id
	`

	rows, err := r.pool.Query(ctx, query, loanIDs)
	if err != nil {
		return nil, eris.Wrap(err, "payments: group sum")
	}
	defer rows.Close()

	for rows.Next() {
		var loanID, total string
		if err := rows.Scan(&loanID, &total); err != nil {
			return nil, eris.Wrap(err, "payments: scan group sum")
		}
		amount, err := parseAmount(total)
		if err != nil {
			return nil, eris.Wrapf(err, "payments: total of %s", loanID)
		}
		out[loanID] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "payments: rows")
	}

	return out, nil
}
