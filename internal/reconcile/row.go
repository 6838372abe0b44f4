package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"daisycash/internal/core"
)

var errMissingFields = errors.New("missing required fields")

// Row is one decoded line of the Transactions sheet.
type Row struct {
	ID          string
	Date        core.Date
	Kind        core.Kind
	Title       string
	Description string
	Amount      core.Money
	Category    string
}

// header maps column names to their index in the sheet.
type header map[string]int

func newHeader(cells []string) header {
	h := header{}
	for i, c := range cells {
		name := strings.TrimSpace(c)
		if name == "" {
			continue
		}
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	return h
}

func (h header) cell(cells []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

// decodeRow validates a raw sheet row. Required columns are Date, Type,
// Title and Amount; the Type must be a canonical label.
func decodeRow(h header, cells []string) (Row, error) {
	raw := map[string]string{}
	for _, col := range transactionHeader {
		raw[col] = h.cell(cells, col)
	}

	var missing []string
	for _, col := range []string{ColDate, ColType, ColTitle, ColAmount} {
		if raw[col] == "" {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return Row{}, fmt.Errorf("%w (%s)", errMissingFields, strings.Join(missing, ", "))
	}

	date, err := core.ParseDate(raw[ColDate])
	if err != nil {
		return Row{}, err
	}
	kind, err := core.ParseKindLabel(raw[ColType])
	if err != nil {
		return Row{}, err
	}
	amount, err := core.ParseAmount(raw[ColAmount])
	if err != nil {
		return Row{}, fmt.Errorf("%w: %q", err, raw[ColAmount])
	}

	return Row{
		ID:          raw[ColID],
		Date:        date,
		Kind:        kind,
		Title:       raw[ColTitle],
		Description: raw[ColDescription],
		Amount:      amount,
		Category:    raw[ColCategory],
	}, nil
}

// Transaction converts the row into a record ready for the store. The ID is
// carried over so a repeated import of the same file is recognized.
func (r Row) Transaction() core.Transaction {
	name := r.Category
	if name == "" {
		name = core.Uncategorized
	}
	return core.Transaction{
		ID:          r.ID,
		OccurredOn:  r.Date,
		Kind:        r.Kind,
		Title:       r.Title,
		Description: r.Description,
		Amount:      r.Amount,
		Category:    core.CategoryRef{Name: name},
	}
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
