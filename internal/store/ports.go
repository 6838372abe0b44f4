// Package store defines the persistence ports used by services, the
// reconciler and the HTTP layer. Implementations live in store/memory and
// in the SQLite-backed internal/storage package.
package store

import (
	"context"
	"errors"

	"daisycash/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// TransactionFilter narrows ListTransactions. Zero values mean unbounded.
type TransactionFilter struct {
	From core.Date
	To   core.Date
	Kind core.Kind
}

// Matches reports whether tx passes the filter.
func (f TransactionFilter) Matches(tx core.Transaction) bool {
	if f.Kind != core.Both && tx.Kind != f.Kind {
		return false
	}
	if !f.From.IsZero() && tx.OccurredOn.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && tx.OccurredOn.After(f.To.Time) {
		return false
	}
	return true
}

// ForWindow returns a filter covering w.
func ForWindow(w core.Window) TransactionFilter {
	return TransactionFilter{From: w.Start, To: w.End}
}

type (
	TransactionStore interface {
		// ListTransactions returns matching transactions, newest first.
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// CreateTransaction stores tx. A non-empty tx.ID is kept as is and
		// yields ErrConflict if taken; an empty one is generated.
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	CategoryStore interface {
		// ListCategories returns categories applicable to kind. A nil kind
		// returns every category.
		ListCategories(ctx context.Context, kind *core.Kind) ([]core.Category, error)
		GetCategory(ctx context.Context, id string) (core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, id string) error
	}

	UserStore interface {
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		CreateUser(ctx context.Context, u core.User) (core.User, error)
	}

	// Store is the full persistence surface selected by the backend factory.
	Store interface {
		TransactionStore
		CategoryStore
		UserStore
		Ping(ctx context.Context) error
		Close() error
	}
)
