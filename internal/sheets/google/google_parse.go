package google

import (
	"fmt"
	"strings"

	"daisycash/internal/core"
	"daisycash/internal/reconcile"
)

// lastColumn is the letter of the final mirrored column.
var lastColumn = string(rune('A' + len(reconcile.Header()) - 1))

// headerRow is the first row of the mirror sheet. It matches the export
// workbook so a downloaded sheet can be imported.
func headerRow() []any {
	h := reconcile.Header()
	out := make([]any, len(h))
	for i, v := range h {
		out[i] = v
	}
	return out
}

// transactionRow renders tx in header order.
func transactionRow(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.OccurredOn.String(),
		tx.Kind.Label(),
		tx.Title,
		tx.Description,
		tx.Amount.String(),
		tx.Category.DisplayName(),
	}
}

// findRow returns the 1-based sheet row whose first cell equals id, or -1.
// values is the A column as returned by the Values API, header included.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return -1
}

// appendRow is the row a new transaction goes to given the current A column.
// Row 1 is always the header.
func appendRow(values [][]any) int {
	if len(values) < 1 {
		return 2
	}
	return len(values) + 1
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, lastColumn, row)
}

func columnRange(sheet string) string {
	return fmt.Sprintf("%s!A:A", quoteSheet(sheet))
}

// quoteSheet wraps names with spaces or quotes in A1 notation quotes.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
