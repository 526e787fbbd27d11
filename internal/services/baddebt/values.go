package baddebt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyLoanIDs  = errors.New("loanIds must not be empty")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidStatus = errors.New("invalid badDebtStatus")
	ErrInvalidMonth  = errors.New("month must be between 1 and 12")
)

const isoLayout = "2006-01-02T15:04:05.000Z"

// Money renders as a JSON number rounded to cents.
type Money decimal.Decimal

func (m Money) Decimal() decimal.Decimal { return decimal.Decimal(m) }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).Round(2).String()), nil
}

// ISOTime renders as a UTC timestamp with millisecond precision,
// e.g. "2024-03-01T00:00:00.000Z".
type ISOTime time.Time

func (t ISOTime) Time() time.Time { return time.Time(t) }

func (t ISOTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(isoLayout) + `"`), nil
}

func isoPtr(t *time.Time) *ISOTime {
	if t == nil {
		return nil
	}
	v := ISOTime(*t)
	return &v
}

// ParseISODate accepts RFC3339 timestamps, zone-less timestamps and plain
// dates; values without a zone are read as UTC.
func ParseISODate(s string) (time.Time, error) {
	t, _, err := parseISO(s)
	return t, err
}

// ParseISODateEnd is ParseISODate, except that a plain date resolves to the
// last millisecond of that day. Used for inclusive upper bounds.
func ParseISODateEnd(s string) (time.Time, error) {
	t, dateOnly, err := parseISO(s)
	if err != nil || !dateOnly {
		return t, err
	}
	return t.Add(24*time.Hour - time.Millisecond), nil
}

func parseISO(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), false, nil
	}
	for _, l := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(l, s, time.UTC); err == nil {
			return t, false, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// MonthStart is the first instant of the month in UTC.
func MonthStart(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd is the last millisecond of the month in UTC.
func MonthEnd(year int, month time.Month) time.Time {
	return MonthStart(year, month).AddDate(0, 1, 0).Add(-time.Millisecond)
}
