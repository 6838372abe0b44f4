// Package reconcile moves transactions in and out of Excel workbooks.
//
// An exported workbook has two sheets: Transactions, one row per record, and
// Metadata, a Key/Value table carrying the format version. Import accepts the
// same layout and reports per-row results instead of stopping at the first
// bad row.
package reconcile

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"daisycash/internal/core"

	"github.com/xuri/excelize/v2"
)

const (
	SheetTransactions = "Transactions"
	SheetMetadata     = "Metadata"

	// FormatVersion is written to the Metadata sheet. Import accepts any
	// version with the same major component.
	FormatVersion = "1.0"

	exportDateLayout = "2006-01-02 15:04:05"
)

// Column headers of the Transactions sheet, in order.
const (
	ColID          = "ID"
	ColDate        = "Date"
	ColType        = "Type"
	ColTitle       = "Title"
	ColDescription = "Description"
	ColAmount      = "Amount"
	ColCategory    = "Category"
)

var transactionHeader = []string{ColID, ColDate, ColType, ColTitle, ColDescription, ColAmount, ColCategory}

// Header returns the Transactions sheet columns in order.
func Header() []string {
	return append([]string(nil), transactionHeader...)
}

// Exporter renders transactions into a workbook. It never touches the store.
type Exporter struct {
	// Now stamps the ExportDate metadata row. Defaults to time.Now.
	Now func() time.Time
}

// FileName is the download name for a month export, e.g. transactions_01_2025.xlsx.
func FileName(year int, month time.Month) string {
	return fmt.Sprintf("transactions_%02d_%d.xlsx", int(month), year)
}

// Export builds the workbook. The caller owns the returned file and must Close it.
func (e Exporter) Export(txs []core.Transaction) (*excelize.File, error) {
	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(defaultSheet, SheetTransactions); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	if err := writeTransactions(f, txs); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SheetMetadata); err != nil {
		f.Close()
		return nil, fmt.Errorf("create metadata sheet: %w", err)
	}
	if err := e.writeMetadata(f, len(txs)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write streams the workbook for txs to w.
func (e Exporter) Write(w io.Writer, txs []core.Transaction) error {
	f, err := e.Export(txs)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTransactions(f *excelize.File, txs []core.Transaction) error {
	if err := setRow(f, SheetTransactions, 1, toCells(transactionHeader)); err != nil {
		return err
	}
	for i, tx := range txs {
		row := i + 2
		cells := []any{
			tx.ID,
			tx.OccurredOn.String(),
			tx.Kind.Label(),
			tx.Title,
			tx.Description,
			tx.Amount.InexactFloat64(),
			tx.Category.DisplayName(),
		}
		if err := setRow(f, SheetTransactions, row, cells); err != nil {
			return err
		}
	}
	return nil
}

func (e Exporter) writeMetadata(f *excelize.File, total int) error {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	rows := [][]any{
		{"Key", "Value"},
		{"Version", FormatVersion},
		{"ExportDate", now().Format(exportDateLayout)},
		{"TotalRecords", strconv.Itoa(total)},
	}
	for i, cells := range rows {
		if err := setRow(f, SheetMetadata, i+1, cells); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
