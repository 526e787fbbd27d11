// Package idfile reads loan ids from an uploaded csv or xlsx file.
package idfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"baddebt_engine/internal/ports"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const defaultMaxBytes = 32 << 20

var (
	ErrNoIDs       = errors.New("file contains no loan ids")
	ErrTooLarge    = errors.New("file exceeds the size limit")
	ErrUnreadable  = errors.New("file is neither csv nor xlsx")
	idColumnHeader = []string{"loan_id", "loanid", "id"}
)

type Result struct {
	Source    string
	FilePath  string
	Format    string
	IDs       []string
	Rows      int
	Bucket    string
	Key       string
	SizeBytes int64
}

type Reader struct {
	Opener   ports.FileOpener
	Logger   *zap.Logger
	MaxBytes int64
}

func NewReader(opener ports.FileOpener, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{Opener: opener, Logger: logger, MaxBytes: defaultMaxBytes}
}

// ReadIDs opens filePath and returns the loan ids of its first sheet (xlsx)
// or of the whole file (csv). The id column is the one headed loan_id,
// loanId or id; without such a header the first column is used.
func (r *Reader) ReadIDs(ctx context.Context, filePath string) (Result, error) {
	rc, meta, err := r.Opener.Open(ctx, filePath)
	if err != nil {
		return Result{}, eris.Wrapf(err, "open %s", filePath)
	}
	defer rc.Close()

	limit := r.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	// Buffered whole so a failed format guess can be retried with the other one.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return Result{}, eris.Wrapf(err, "read %s", filePath)
	}
	if int64(len(data)) > limit {
		return Result{}, ErrTooLarge
	}

	format := detectFormat(filePath, meta.ContentType)
	order := []string{"xlsx", "csv"}
	if format == "csv" {
		order = []string{"csv", "xlsx"}
	}

	var (
		rows    [][]string
		readErr error
	)
	for _, f := range order {
		rows, readErr = readRows(f, data)
		if readErr == nil {
			format = f
			break
		}
		r.Logger.Debug("idfile.format_failed", zap.String("format", f), zap.Error(readErr))
	}
	if readErr != nil {
		return Result{}, eris.Wrap(ErrUnreadable, readErr.Error())
	}

	ids, n := extractIDs(rows)
	if len(ids) == 0 {
		return Result{}, ErrNoIDs
	}

	r.Logger.Info("idfile.read",
		zap.String("path", filePath),
		zap.String("source", meta.Source),
		zap.String("format", format),
		zap.Int("rows", n),
		zap.Int("ids", len(ids)),
	)

	return Result{
		Source:    meta.Source,
		FilePath:  filePath,
		Format:    format,
		IDs:       ids,
		Rows:      n,
		Bucket:    meta.Bucket,
		Key:       meta.Key,
		SizeBytes: int64(len(data)),
	}, nil
}

func readRows(format string, data []byte) ([][]string, error) {
	if format == "xlsx" {
		return readXLSX(data)
	}
	return readCSV(data)
}

func readCSV(data []byte) ([][]string, error) {
	if !looksLikeText(data) {
		return nil, errors.New("csv: binary content")
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}
	return f.GetRows(sheets[0])
}

// extractIDs consumes the header row and returns the distinct non-empty ids
// in file order, plus the number of data rows seen.
func extractIDs(rows [][]string) ([]string, int) {
	if len(rows) == 0 {
		return nil, 0
	}
	col := idColumn(rows[0])

	seen := make(map[string]struct{})
	ids := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[col])
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, len(rows) - 1
}

func idColumn(header []string) int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
	}
	for _, want := range idColumnHeader {
		for i, h := range normalized {
			if h == want {
				return i
			}
		}
	}
	return 0
}

func looksLikeText(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return !bytes.ContainsRune(head, 0) && !bytes.HasPrefix(head, []byte("PK\x03\x04"))
}

func detectFormat(filePath, contentType string) string {
	p := filePath
	if u, err := url.Parse(filePath); err == nil && u != nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "xlsx":
		return "xlsx"
	case "csv", "txt":
		return "csv"
	}
	med, _, _ := mime.ParseMediaType(contentType)
	switch med {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "text/csv", "application/csv", "text/plain":
		return "csv"
	}
	return ""
}
