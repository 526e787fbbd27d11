// Package baddebt classifies open loans as bad debt ("cartera muerta"),
// reports the principal/profit impact and replays the classification at
// the month-ends of a past year.
package baddebt

import (
	"sort"
	"time"

	"baddebt_engine/internal/models"
	"baddebt_engine/internal/ports"

	"go.uber.org/zap"
)

type Service struct {
	Loans    ports.LoanRepository
	Payments ports.PaymentAggregate
	Audit    ports.MarkingAudit

	Now    func() time.Time
	Logger *zap.Logger
}

func NewService(loans ports.LoanRepository, payments ports.PaymentAggregate, audit ports.MarkingAudit, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Loans:    loans,
		Payments: payments,
		Audit:    audit,
		Now:      time.Now,
		Logger:   logger,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// LoanRow is one loan as reported by the listing, the backtest drill-down
// and the recorded-marking report.
type LoanRow struct {
	ID                   string   `json:"id"`
	BorrowerName         string   `json:"borrowerName"`
	ClientCode           string   `json:"clientCode"`
	LeadName             string   `json:"leadName"`
	RouteID              string   `json:"routeId"`
	RouteName            string   `json:"routeName"`
	Locality             string   `json:"locality"`
	SignDate             ISOTime  `json:"signDate"`
	BadDebtDate          *ISOTime `json:"badDebtDate"`
	AmountGived          Money    `json:"amountGived"`
	ProfitAmount         Money    `json:"profitAmount"`
	TotalToPay           Money    `json:"totalToPay"`
	PendingAmount        Money    `json:"pendingAmount"`
	TotalPaid            Money    `json:"totalPaid"`
	ProfitRecognized     Money    `json:"profitRecognized"`
	PrincipalRecovered   Money    `json:"principalRecovered"`
	ProfitStillToCollect Money    `json:"profitStillToCollect"`
	BadDebtCandidate     Money    `json:"badDebtCandidate"`
	WeeksSinceLoan       int      `json:"weeksSinceLoan"`
	WeeksWithoutPayment  int      `json:"weeksWithoutPayment"`
	LastPaymentDate      *ISOTime `json:"lastPaymentDate"`
	EvaluatedAt          ISOTime  `json:"evaluatedAt"`
}

// Totals aggregates a set of rows.
type Totals struct {
	TotalLoans            int   `json:"totalLoans"`
	TotalPendingAmount    Money `json:"totalPendingAmount"`
	TotalBadDebtCandidate Money `json:"totalBadDebtCandidate"`
}

func (t *Totals) add(a Amortization) {
	t.TotalLoans++
	t.TotalPendingAmount = Money(t.TotalPendingAmount.Decimal().Add(a.PendingAmount))
	t.TotalBadDebtCandidate = Money(t.TotalBadDebtCandidate.Decimal().Add(a.BadDebtCandidate))
}

// newLoanRow builds a row whose amounts come from amounts and whose week
// counters come from weeks; the two may be evaluated at different instants.
func newLoanRow(loan models.Loan, amounts, weeks Amortization) LoanRow {
	return LoanRow{
		ID:                   loan.ID,
		BorrowerName:         loan.Borrower.FullName,
		ClientCode:           loan.Borrower.ClientCode,
		LeadName:             loan.Lead.PersonalData.FullName,
		RouteID:              loan.Lead.RouteID,
		RouteName:            loan.Lead.RouteName,
		Locality:             localityLabel(loan),
		SignDate:             ISOTime(loan.SignDate),
		BadDebtDate:          isoPtr(loan.BadDebtDate),
		AmountGived:          Money(loan.AmountGived),
		ProfitAmount:         Money(loan.ProfitAmount),
		TotalToPay:           Money(amounts.TotalToPay),
		PendingAmount:        Money(amounts.PendingAmount),
		TotalPaid:            Money(amounts.TotalPaid),
		ProfitRecognized:     Money(amounts.ProfitRecognized),
		PrincipalRecovered:   Money(amounts.PrincipalRecovered),
		ProfitStillToCollect: Money(amounts.ProfitStillToCollect),
		BadDebtCandidate:     Money(amounts.BadDebtCandidate),
		WeeksSinceLoan:       weeks.WeeksSinceLoan,
		WeeksWithoutPayment:  weeks.WeeksWithoutPayment,
		LastPaymentDate:      isoPtr(amounts.LastPaymentDate),
		EvaluatedAt:          ISOTime(amounts.EvaluatedAt),
	}
}

func sortBySignDate(loans []models.Loan) {
	sort.SliceStable(loans, func(i, j int) bool {
		if loans[i].SignDate.Equal(loans[j].SignDate) {
			return loans[i].ID < loans[j].ID
		}
		return loans[i].SignDate.Before(loans[j].SignDate)
	})
}

func loanIDs(loans []models.Loan) []string {
	ids := make([]string, 0, len(loans))
	for _, l := range loans {
		ids = append(ids, l.ID)
	}
	return ids
}
