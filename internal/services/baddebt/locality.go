package baddebt

import "baddebt_engine/internal/models"

// UnknownLocality groups loans whose lead has no address.
const UnknownLocality = "Sin localidad"

// LocalityFilter keeps loans whose lead's first address is in one of the
// named localities. The zero value, or one built from an empty list, keeps
// everything.
type LocalityFilter struct {
	names map[string]struct{}
}

func NewLocalityFilter(names []string) LocalityFilter {
	if len(names) == 0 {
		return LocalityFilter{}
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return LocalityFilter{names: set}
}

func (f LocalityFilter) Allows(loan models.Loan) bool {
	if len(f.names) == 0 {
		return true
	}
	_, ok := f.names[loan.Lead.LocalityName()]
	return ok
}

// FilterByLocality returns the loans allowed by the named localities,
// preserving order.
func FilterByLocality(loans []models.Loan, names []string) []models.Loan {
	f := NewLocalityFilter(names)
	if len(f.names) == 0 {
		return loans
	}
	out := make([]models.Loan, 0, len(loans))
	for _, l := range loans {
		if f.Allows(l) {
			out = append(out, l)
		}
	}
	return out
}

func localityLabel(loan models.Loan) string {
	if name := loan.Lead.LocalityName(); name != "" {
		return name
	}
	return UnknownLocality
}
