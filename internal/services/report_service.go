package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"daisycash/internal/cache"
	"daisycash/internal/core"
	"daisycash/internal/reconcile"
	"daisycash/internal/store"

	"golang.org/x/sync/errgroup"
)

// DashboardMonths is how many months before the current one the dashboard covers.
const DashboardMonths = 6

const recentLimit = 5

// Dashboard is the landing page payload.
type Dashboard struct {
	Trailing     core.Report        `json:"trailing"`
	CurrentMonth core.Report        `json:"currentMonth"`
	Recent       []core.Transaction `json:"recent"`
}

// ReportService computes aggregates and moves months in and out of workbooks.
type ReportService struct {
	store    store.TransactionStore
	txs      *TransactionService
	cache    cache.Cache[core.Report]
	exporter reconcile.Exporter
	now      func() time.Time

	// gen counts invalidations. A report computed across an invalidation
	// is returned but not cached.
	mu  sync.Mutex
	gen uint64
}

// NewReportService caches reports in c and drops the cache whenever txs
// writes. c may be nil to disable caching.
func NewReportService(st store.TransactionStore, txs *TransactionService, c cache.Cache[core.Report]) *ReportService {
	s := &ReportService{
		store: st,
		txs:   txs,
		cache: c,
		now:   time.Now,
	}
	s.exporter = reconcile.Exporter{Now: func() time.Time { return s.now() }}
	if txs != nil {
		txs.OnChange(s.Invalidate)
	}
	return s
}

// WithClock overrides the time source.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// Report aggregates the transactions dated within w.
func (s *ReportService) Report(ctx context.Context, w core.Window) (core.Report, error) {
	if s.cache != nil {
		if r, ok := s.cache.Get(w.Key()); ok {
			return r, nil
		}
	}
	gen := s.generation()

	txs, err := s.store.ListTransactions(ctx, store.ForWindow(w))
	if err != nil {
		return core.Report{}, fmt.Errorf("list transactions for %s: %w", w.Key(), err)
	}
	r := core.Aggregate(txs, w)

	if s.cache != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.cache.Set(w.Key(), r)
		}
		s.mu.Unlock()
	}
	slog.DebugContext(ctx, "Report computed", "window", w.Key(), "transactions", len(txs))
	return r, nil
}

// Monthly is the report for one calendar month.
func (s *ReportService) Monthly(ctx context.Context, year int, month time.Month) (core.Report, error) {
	return s.Report(ctx, core.MonthWindow(year, month))
}

// Dashboard gathers the trailing window, the current month and the latest
// transactions concurrently.
func (s *ReportService) Dashboard(ctx context.Context) (Dashboard, error) {
	now := s.now()
	var d Dashboard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.Report(gctx, core.TrailingMonths(now, DashboardMonths))
		d.Trailing = r
		return err
	})
	g.Go(func() error {
		r, err := s.Monthly(gctx, now.Year(), now.Month())
		d.CurrentMonth = r
		return err
	})
	g.Go(func() error {
		txs, err := s.store.ListTransactions(gctx, store.TransactionFilter{})
		if err != nil {
			return fmt.Errorf("list recent transactions: %w", err)
		}
		if len(txs) > recentLimit {
			txs = txs[:recentLimit]
		}
		d.Recent = txs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// Export writes the month's transactions as a workbook.
func (s *ReportService) Export(ctx context.Context, year int, month time.Month, w io.Writer) error {
	txs, err := s.store.ListTransactions(ctx, store.ForWindow(core.MonthWindow(year, month)))
	if err != nil {
		return fmt.Errorf("list transactions for export: %w", err)
	}
	if err := s.exporter.Write(w, txs); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Export written", "year", year, "month", int(month), "records", len(txs))
	return nil
}

// Import loads a workbook through the transaction service so every created
// row is published and the report cache is dropped.
func (s *ReportService) Import(ctx context.Context, r io.Reader) (reconcile.Outcome, error) {
	return reconcile.Importer{Store: importSink{s.txs}}.Import(ctx, r)
}

// Invalidate drops every cached report and keeps in-flight computations
// from caching what they read before the write.
func (s *ReportService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cache != nil {
		s.cache.Clear()
	}
}

func (s *ReportService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

type importSink struct {
	txs *TransactionService
}

func (i importSink) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return i.txs.Get(ctx, id)
}

func (i importSink) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return i.txs.Restore(ctx, tx)
}
