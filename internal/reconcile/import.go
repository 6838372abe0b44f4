package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"daisycash/internal/core"
	"daisycash/internal/store"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnreadableWorkbook = errors.New("unreadable workbook")
	ErrMissingSheet       = errors.New("invalid file format: sheet not found")
	ErrUnsupportedVersion = errors.New("unsupported file version")
)

// Store is the slice of the transaction store the importer needs.
type Store interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
}

// RowError describes why a data row was not imported. Row is the 1-based
// position among data rows, not counting the header.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Reason)
}

// Outcome summarizes an import run.
type Outcome struct {
	Succeeded int        `json:"succeeded"`
	Skipped   int        `json:"skipped"`
	Failed    int        `json:"failed"`
	Errors    []RowError `json:"errors"`
}

// Processed is the number of rows that reached a verdict.
func (o Outcome) Processed() int {
	return o.Succeeded + o.Skipped + o.Failed
}

func (o *Outcome) fail(row int, err error) {
	o.Failed++
	o.Errors = append(o.Errors, RowError{Row: row, Reason: err.Error()})
}

type Importer struct {
	Store Store
}

// Import reads a workbook produced by Exporter (or edited by hand) and
// creates the rows not already present. Structural problems return an error
// before any row is touched; row problems are counted in the Outcome.
// Cancelling ctx stops between rows and returns the partial Outcome along
// with ctx.Err().
func (im Importer) Import(ctx context.Context, r io.Reader) (Outcome, error) {
	out := Outcome{Errors: []RowError{}}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	if err := checkMetadata(f); err != nil {
		return out, err
	}
	if !hasSheet(f, SheetTransactions) {
		return out, fmt.Errorf("%w: %s", ErrMissingSheet, SheetTransactions)
	}
	rows, err := f.GetRows(SheetTransactions, excelize.Options{RawCellValue: true})
	if err != nil {
		return out, fmt.Errorf("%w: read %s: %v", ErrUnreadableWorkbook, SheetTransactions, err)
	}
	if len(rows) == 0 {
		return out, nil
	}

	h := newHeader(rows[0])
	for _, cells := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if isBlank(cells) {
			continue
		}
		// Rows are numbered by their sequence among non-blank data rows.
		im.importRow(ctx, &out, out.Processed()+1, h, cells)
	}

	slog.InfoContext(ctx, "Import finished",
		"succeeded", out.Succeeded,
		"skipped", out.Skipped,
		"failed", out.Failed)

	return out, nil
}

func (im Importer) importRow(ctx context.Context, out *Outcome, n int, h header, cells []string) {
	row, err := decodeRow(h, cells)
	if err != nil {
		out.fail(n, err)
		return
	}

	if row.ID != "" {
		_, err := im.Store.GetTransaction(ctx, row.ID)
		switch {
		case err == nil:
			out.Skipped++
			return
		case !errors.Is(err, store.ErrNotFound):
			out.fail(n, fmt.Errorf("lookup existing: %w", err))
			return
		}
	}

	if _, err := im.Store.CreateTransaction(ctx, row.Transaction()); err != nil {
		out.fail(n, err)
		return
	}
	out.Succeeded++
}

func hasSheet(f *excelize.File, name string) bool {
	idx, err := f.GetSheetIndex(name)
	return err == nil && idx >= 0
}

// checkMetadata requires the Metadata sheet. A Version row, when present,
// must share the major component of FormatVersion.
func checkMetadata(f *excelize.File) error {
	if !hasSheet(f, SheetMetadata) {
		return fmt.Errorf("%w: %s", ErrMissingSheet, SheetMetadata)
	}
	rows, err := f.GetRows(SheetMetadata, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrUnreadableWorkbook, SheetMetadata, err)
	}
	for _, cells := range rows {
		if len(cells) < 2 || strings.TrimSpace(cells[0]) != "Version" {
			continue
		}
		version := strings.TrimSpace(cells[1])
		if major(version) != major(FormatVersion) {
			return fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
		}
	}
	return nil
}

func major(version string) string {
	m, _, _ := strings.Cut(version, ".")
	return m
}
