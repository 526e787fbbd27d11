package resolvers

import (
	"strings"

	"baddebt_engine/internal/services/baddebt"
)

// CriteriaArgs are the shared filter arguments of the bad-debt queries.
type CriteriaArgs struct {
	WeeksSinceLoanMin      *int     `json:"weeksSinceLoanMin"`
	WeeksSinceLoanMax      *int     `json:"weeksSinceLoanMax"`
	WeeksWithoutPaymentMin *int     `json:"weeksWithoutPaymentMin"`
	WeeksWithoutPaymentMax *int     `json:"weeksWithoutPaymentMax"`
	RouteID                *string  `json:"routeId"`
	Localities             []string `json:"localities"`
	BadDebtStatus          *string  `json:"badDebtStatus"`
	FromDate               *string  `json:"fromDate"`
	ToDate                 *string  `json:"toDate"`
}

// Criteria validates the arguments. A date-only toDate covers the whole day.
func (a CriteriaArgs) Criteria() (baddebt.Criteria, error) {
	var c baddebt.Criteria

	status, err := baddebt.ParseBadDebtStatus(deref(a.BadDebtStatus))
	if err != nil {
		return c, err
	}
	c.Status = status
	c.WeeksSinceLoan = baddebt.WeekRange{Min: a.WeeksSinceLoanMin, Max: a.WeeksSinceLoanMax}
	c.WeeksWithoutPayment = baddebt.WeekRange{Min: a.WeeksWithoutPaymentMin, Max: a.WeeksWithoutPaymentMax}
	c.RouteID = strings.TrimSpace(deref(a.RouteID))
	c.Localities = cleanNames(a.Localities)

	if v := strings.TrimSpace(deref(a.FromDate)); v != "" {
		t, err := baddebt.ParseISODate(v)
		if err != nil {
			return c, err
		}
		from := baddebt.ISOTime(t)
		c.FromDate = &from
	}
	if v := strings.TrimSpace(deref(a.ToDate)); v != "" {
		t, err := baddebt.ParseISODateEnd(v)
		if err != nil {
			return c, err
		}
		to := baddebt.ISOTime(t)
		c.ToDate = &to
	}
	return c, nil
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
