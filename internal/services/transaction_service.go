package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"daisycash/internal/amqp"
	"daisycash/internal/blob"
	"daisycash/internal/core"
	"daisycash/internal/store"
)

// Publisher announces transaction changes to the mirror worker.
type Publisher interface {
	PublishTransactionChanged(ctx context.Context, id string, op amqp.Op) error
}

// TransactionInput is what a client submits for a create or update. The
// category is chosen by ID and resolved to a name snapshot on save.
type TransactionInput struct {
	OccurredOn  core.Date  `json:"occurredOn"`
	Kind        core.Kind  `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	CategoryID  string     `json:"categoryId"`
}

// CategoryInput is what a client submits for a category create or update.
type CategoryInput struct {
	Name  string    `json:"name"`
	Kind  core.Kind `json:"kind"`
	Icon  string    `json:"icon"`
	Color string    `json:"color"`
}

// TransactionService orchestrates transaction and category writes across the
// store, the receipt store and the change publisher.
type TransactionService struct {
	store     store.Store
	blobs     blob.Store
	publisher Publisher

	mu        sync.Mutex
	onChanges []func()
}

// NewTransactionService wires the service. blobs and publisher may be nil;
// receipts are then rejected and change events skipped.
func NewTransactionService(st store.Store, blobs blob.Store, publisher Publisher) *TransactionService {
	return &TransactionService{store: st, blobs: blobs, publisher: publisher}
}

// OnChange registers fn to run after every successful transaction write.
func (s *TransactionService) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChanges = append(s.onChanges, fn)
}

func (s *TransactionService) List(ctx context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	tx, err := s.build(ctx, core.Transaction{}, in)
	if err != nil {
		return core.Transaction{}, err
	}
	return s.insert(ctx, tx)
}

func (s *TransactionService) Update(ctx context.Context, id string, in TransactionInput) (core.Transaction, error) {
	prev, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	tx, err := s.build(ctx, prev, in)
	if err != nil {
		return core.Transaction{}, err
	}
	saved, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.changed(ctx, saved.ID, amqp.OpUpsert)
	return saved, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.changed(ctx, id, amqp.OpDelete)
	return nil
}

// AttachReceipt validates and uploads an image, then records its reference
// on the transaction.
func (s *TransactionService) AttachReceipt(ctx context.Context, id, name string, r io.Reader) (core.Transaction, error) {
	if s.blobs == nil {
		return core.Transaction{}, errors.New("receipt storage is not configured")
	}
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	img, err := blob.ReadImage(r)
	if err != nil {
		return core.Transaction{}, err
	}
	ref, err := s.blobs.Upload(ctx, name, img.ContentType, img.Reader())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("upload receipt: %w", err)
	}

	previous := tx.ImageRef
	tx.ImageRef = ref
	saved, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		s.dropBlob(ctx, ref)
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	slog.InfoContext(ctx, "Receipt attached", "id", id, "ref", ref, "size", len(img.Data))
	if previous != "" && previous != ref {
		s.dropBlob(ctx, previous)
	}
	s.changed(ctx, saved.ID, amqp.OpUpsert)
	return saved, nil
}

// dropBlob removes a receipt nothing points at. Failures only leave an
// orphaned file behind, so they are logged.
func (s *TransactionService) dropBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		slog.WarnContext(ctx, "Failed to delete receipt", "ref", ref, "error", err)
	}
}

// ReceiptURL is where a client fetches the receipt of tx, or "" when it has none.
func (s *TransactionService) ReceiptURL(tx core.Transaction) string {
	if tx.ImageRef == "" || s.blobs == nil {
		return ""
	}
	return s.blobs.URL(tx.ImageRef)
}

// Restore stores a fully formed record as is, keeping its ID. Import uses it
// so a repeated run recognizes rows it already wrote.
func (s *TransactionService) Restore(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return s.insert(ctx, tx)
}

func (s *TransactionService) insert(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.changed(ctx, saved.ID, amqp.OpUpsert)
	return saved, nil
}

func (s *TransactionService) build(ctx context.Context, base core.Transaction, in TransactionInput) (core.Transaction, error) {
	tx := base
	tx.OccurredOn = in.OccurredOn
	tx.Kind = in.Kind
	tx.Title = strings.TrimSpace(in.Title)
	tx.Description = strings.TrimSpace(in.Description)
	tx.Amount = in.Amount
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	ref, err := s.resolveCategory(ctx, in.CategoryID, in.Kind)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Category = ref
	return tx, nil
}

// resolveCategory turns a category ID into the snapshot stored on the
// transaction. An empty or unknown ID yields Uncategorized.
func (s *TransactionService) resolveCategory(ctx context.Context, id string, kind core.Kind) (core.CategoryRef, error) {
	if strings.TrimSpace(id) == "" {
		return core.CategoryRef{Name: core.Uncategorized}, nil
	}
	cat, err := s.store.GetCategory(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return core.CategoryRef{Name: core.Uncategorized}, nil
	}
	if err != nil {
		return core.CategoryRef{}, fmt.Errorf("resolve category: %w", err)
	}
	if !cat.AppliesTo(kind) {
		return core.CategoryRef{}, fmt.Errorf("%w: %s is a %s category", core.ErrKindMismatch, cat.Name, cat.Kind)
	}
	return cat.Ref(), nil
}

func (s *TransactionService) changed(ctx context.Context, id string, op amqp.Op) {
	s.mu.Lock()
	hooks := append([]func(){}, s.onChanges...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping change event", "id", id)
		return
	}
	// The record is already saved; the periodic sweep repairs a lost event.
	if err := s.publisher.PublishTransactionChanged(ctx, id, op); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event", "id", id, "op", op, "error", err)
	}
}

func (s *TransactionService) ListCategories(ctx context.Context, kind *core.Kind) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *TransactionService) CreateCategory(ctx context.Context, in CategoryInput) (core.Category, error) {
	c := core.Category{
		Name:  strings.TrimSpace(in.Name),
		Kind:  in.Kind,
		Icon:  strings.TrimSpace(in.Icon),
		Color: strings.TrimSpace(in.Color),
	}.WithDefaults()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	return s.store.CreateCategory(ctx, c)
}

func (s *TransactionService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (core.Category, error) {
	c := core.Category{
		ID:    id,
		Name:  strings.TrimSpace(in.Name),
		Kind:  in.Kind,
		Icon:  strings.TrimSpace(in.Icon),
		Color: strings.TrimSpace(in.Color),
	}.WithDefaults()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	return s.store.UpdateCategory(ctx, c)
}

func (s *TransactionService) DeleteCategory(ctx context.Context, id string) error {
	return s.store.DeleteCategory(ctx, id)
}

// IsValidation reports whether err is a client input problem rather than a
// server failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		core.ErrInvalidDate, core.ErrInvalidKind, core.ErrEmptyTitle, core.ErrTitleTooLong,
		core.ErrNegativeAmount, core.ErrInvalidAmount, core.ErrAmountPrecision, core.ErrEmptyName, core.ErrInvalidColor,
		core.ErrKindMismatch, core.ErrUnknownKindLabel, blob.ErrTooLarge, blob.ErrNotImage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
