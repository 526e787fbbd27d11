// Package export renders bad-debt reports as xlsx workbooks and stores them
// in the object bucket.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"baddebt_engine/internal/services/baddebt"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Kind string

const (
	KindSnapshot Kind = "SNAPSHOT"
	KindMonthly  Kind = "MONTHLY"
)

var ErrInvalidReportKind = errors.New("report kind must be SNAPSHOT or MONTHLY")

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindSnapshot, KindMonthly:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReportKind, s)
	}
}

// Putter is the part of the minio client the exporter needs.
type Putter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Result struct {
	Path      string `json:"path"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	SizeBytes int64  `json:"sizeBytes"`
	Rows      int    `json:"rows"`
}

type Exporter struct {
	Store  Putter
	Bucket string
	Prefix string

	Now    func() time.Time
	Logger *zap.Logger
}

func NewExporter(store Putter, bucket, prefix string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "reports"
	}
	return &Exporter{
		Store:  store,
		Bucket: bucket,
		Prefix: strings.Trim(prefix, "/"),
		Now:    time.Now,
		Logger: logger,
	}
}

var loanHeader = []any{
	"Préstamo", "Cliente", "Código", "Líder", "Ruta", "Localidad",
	"Fecha firma", "Fecha cartera muerta", "Monto otorgado", "Ganancia",
	"Total a pagar", "Pagado", "Ganancia cobrada", "Capital recuperado",
	"Pendiente", "Ganancia por cobrar", "Cartera muerta",
	"Semanas desde préstamo", "Semanas sin pago", "Último pago",
}

func loanRow(r baddebt.LoanRow) []any {
	return []any{
		r.ID, r.BorrowerName, r.ClientCode, r.LeadName, r.RouteName, r.Locality,
		r.SignDate.Time(), optionalTime(r.BadDebtDate), money(r.AmountGived), money(r.ProfitAmount),
		money(r.TotalToPay), money(r.TotalPaid), money(r.ProfitRecognized), money(r.PrincipalRecovered),
		money(r.PendingAmount), money(r.ProfitStillToCollect), money(r.BadDebtCandidate),
		r.WeeksSinceLoan, r.WeeksWithoutPayment, optionalTime(r.LastPaymentDate),
	}
}

// Snapshot uploads the current listing as a single-sheet workbook.
func (e *Exporter) Snapshot(ctx context.Context, listing *baddebt.SnapshotListing) (Result, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Cartera muerta"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return Result{}, eris.Wrap(err, "export: sheet")
	}

	rows := [][]any{loanHeader}
	for _, r := range listing.Loans {
		rows = append(rows, loanRow(r))
	}
	rows = append(rows, []any{
		"TOTAL", fmt.Sprintf("%d préstamos", listing.Totals.TotalLoans), "", "", "", "",
		"", "", "", "", "", "", "", "",
		money(listing.Totals.TotalPendingAmount), "", money(listing.Totals.TotalBadDebtCandidate),
	})
	if err := writeRows(f, sheet, rows); err != nil {
		return Result{}, err
	}

	return e.upload(ctx, f, KindSnapshot, len(listing.Loans))
}

// Monthly uploads the backtest as two sheets: one line per month and the
// loans behind each month.
func (e *Exporter) Monthly(ctx context.Context, summary *baddebt.MonthlySummary) (Result, error) {
	f := excelize.NewFile()
	defer f.Close()

	const (
		summarySheet = "Resumen"
		detailSheet  = "Detalle"
	)
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return Result{}, eris.Wrap(err, "export: sheet")
	}
	if _, err := f.NewSheet(detailSheet); err != nil {
		return Result{}, eris.Wrap(err, "export: sheet")
	}

	months := [][]any{{"Año", "Mes", "Fecha evaluación", "Préstamos", "Pendiente", "Cartera muerta"}}
	detail := [][]any{append([]any{"Mes"}, loanHeader...)}
	count := 0
	for _, m := range summary.Months {
		months = append(months, []any{
			summary.Year, m.Month, m.EvaluationDate.Time(),
			m.TotalLoans, money(m.TotalPendingAmount), money(m.TotalBadDebtCandidate),
		})
		for _, r := range m.Loans {
			detail = append(detail, append([]any{m.Month}, loanRow(r)...))
			count++
		}
	}
	months = append(months, []any{
		summary.Year, "TOTAL", "",
		summary.Summary.TotalLoans, money(summary.Summary.TotalPendingAmount), money(summary.Summary.TotalBadDebtCandidate),
	})

	if err := writeRows(f, summarySheet, months); err != nil {
		return Result{}, err
	}
	if err := writeRows(f, detailSheet, detail); err != nil {
		return Result{}, err
	}

	return e.upload(ctx, f, KindMonthly, count)
}

func (e *Exporter) upload(ctx context.Context, f *excelize.File, kind Kind, rows int) (Result, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return Result{}, eris.Wrap(err, "export: render workbook")
	}
	size := int64(buf.Len())

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	name := fmt.Sprintf("%s-%s-%s.xlsx",
		strings.ToLower(string(kind)), now().UTC().Format("20060102-150405"), uuid.NewString())
	key := path.Join(e.Prefix, name)

	if _, err := e.Store.PutObject(ctx, e.Bucket, key, bytes.NewReader(buf.Bytes()), size, minio.PutObjectOptions{
		ContentType: xlsxContentType,
	}); err != nil {
		return Result{}, eris.Wrapf(err, "export: upload %s", key)
	}

	e.Logger.Info("export.uploaded",
		zap.String("kind", string(kind)),
		zap.String("bucket", e.Bucket),
		zap.String("key", key),
		zap.Int64("size", size),
		zap.Int("rows", rows),
	)

	return Result{
		Path:      "s3://" + e.Bucket + "/" + key,
		Bucket:    e.Bucket,
		Key:       key,
		SizeBytes: size,
		Rows:      rows,
	}, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return eris.Wrap(err, "export: cell")
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return eris.Wrapf(err, "export: %s row %d", sheet, i+1)
		}
	}
	return nil
}

func money(m baddebt.Money) float64 {
	return m.Decimal().Round(2).InexactFloat64()
}

func optionalTime(t *baddebt.ISOTime) any {
	if t == nil {
		return ""
	}
	return t.Time()
}
