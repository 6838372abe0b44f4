// Package sheets mirrors transactions into a spreadsheet for people who read
// their books in Google Sheets. The store stays the source of truth.
package sheets

import (
	"context"

	"daisycash/internal/core"
)

// Mirror keeps one row per transaction, keyed by ID.
type Mirror interface {
	// Upsert writes tx over its existing row or appends a new one.
	Upsert(ctx context.Context, tx core.Transaction) error
	// Delete removes the row for id. A missing row is not an error.
	Delete(ctx context.Context, id string) error
}
