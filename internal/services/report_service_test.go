package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"daisycash/internal/cache"
	"daisycash/internal/core"
	"daisycash/internal/store"
	"daisycash/internal/store/memory"
)

var reportNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newReportFixture(t *testing.T) (*TransactionService, *ReportService, *recordingPublisher) {
	t.Helper()
	st := seededStore()
	pub := &recordingPublisher{}
	txs := NewTransactionService(st, nil, pub)
	rs := NewReportService(st, txs, cache.NewLRUCache[core.Report](8, time.Hour)).
		WithClock(func() time.Time { return reportNow })
	return txs, rs, pub
}

func create(t *testing.T, svc *TransactionService, date core.Date, kind core.Kind, amount float64, cat string) core.Transaction {
	t.Helper()
	tx, err := svc.Create(context.Background(), TransactionInput{
		OccurredOn: date, Kind: kind, Title: "t", Amount: core.NewMoney(amount), CategoryID: cat,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return tx
}

func TestMonthlyReport(t *testing.T) {
	txs, rs, _ := newReportFixture(t)
	create(t, txs, core.NewDate(2025, 3, 1), core.Credit, 500, "salary")
	create(t, txs, core.NewDate(2025, 3, 2), core.Debit, 150, "food")
	create(t, txs, core.NewDate(2025, 3, 3), core.Debit, 100, "")
	create(t, txs, core.NewDate(2025, 2, 28), core.Debit, 999, "food")

	r, err := rs.Monthly(context.Background(), 2025, time.March)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if r.TotalCredit.String() != "500" || r.TotalDebit.String() != "250" || r.NetBalance.String() != "250" {
		t.Fatalf("unexpected totals: %s", r)
	}
	if len(r.ByMonth) != 1 || r.ByMonth[0].Label != "Mar 2025" {
		t.Fatalf("unexpected months: %+v", r.ByMonth)
	}
}

func TestReportCacheInvalidatedOnWrite(t *testing.T) {
	txs, rs, _ := newReportFixture(t)
	ctx := context.Background()
	create(t, txs, core.NewDate(2025, 3, 1), core.Debit, 10, "")

	first, _ := rs.Monthly(ctx, 2025, time.March)
	create(t, txs, core.NewDate(2025, 3, 2), core.Debit, 5, "")
	second, _ := rs.Monthly(ctx, 2025, time.March)

	if first.TotalDebit.String() != "10" || second.TotalDebit.String() != "15" {
		t.Fatalf("cache not invalidated: first=%s second=%s", first.TotalDebit, second.TotalDebit)
	}
}

// pausingStore blocks the first ListTransactions after reading, until
// release is closed.
type pausingStore struct {
	*memory.Store
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingStore) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	txs, err := p.Store.ListTransactions(ctx, f)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return txs, err
}

func TestReportNotCachedAcrossConcurrentWrite(t *testing.T) {
	st := &pausingStore{Store: seededStore(), read: make(chan struct{}), release: make(chan struct{})}
	txs := NewTransactionService(st.Store, nil, nil)
	rs := NewReportService(st, txs, cache.NewLRUCache[core.Report](8, time.Hour))
	ctx := context.Background()

	done := make(chan core.Report)
	go func() {
		r, err := rs.Monthly(ctx, 2025, time.January)
		if err != nil {
			t.Errorf("monthly: %v", err)
		}
		done <- r
	}()

	<-st.read
	create(t, txs, core.NewDate(2025, 1, 10), core.Credit, 100, "salary")
	close(st.release)

	if stale := <-done; !stale.TotalCredit.IsZero() {
		t.Fatalf("in-flight report should predate the write, got credit=%s", stale.TotalCredit)
	}
	r, err := rs.Monthly(ctx, 2025, time.January)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if r.TotalCredit.String() != "100" {
		t.Fatalf("stale report cached: credit=%s want 100", r.TotalCredit)
	}
}

func TestDashboard(t *testing.T) {
	txs, rs, _ := newReportFixture(t)
	create(t, txs, core.NewDate(2024, 8, 31), core.Credit, 1000, "salary") // day before the window
	create(t, txs, core.NewDate(2024, 9, 1), core.Debit, 1, "")            // first day of the window
	create(t, txs, core.NewDate(2024, 12, 5), core.Debit, 20, "food")
	create(t, txs, core.NewDate(2025, 3, 10), core.Credit, 100, "salary")

	d, err := rs.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.Trailing.Window.Start.String() != "2024-09-01" || d.Trailing.Window.End.String() != "2025-03-31" {
		t.Fatalf("unexpected window: %s", d.Trailing.Window.Key())
	}
	if d.Trailing.TotalCredit.String() != "100" || d.Trailing.TotalDebit.String() != "21" {
		t.Fatalf("unexpected trailing totals: %s", d.Trailing)
	}
	if d.CurrentMonth.TotalCredit.String() != "100" {
		t.Fatalf("unexpected current month: %s", d.CurrentMonth)
	}
	if len(d.Recent) != 4 || d.Recent[0].OccurredOn.String() != "2025-03-10" {
		t.Fatalf("unexpected recent list: %+v", d.Recent)
	}
}

func TestExportImportThroughServices(t *testing.T) {
	ctx := context.Background()
	txs, rs, _ := newReportFixture(t)
	create(t, txs, core.NewDate(2025, 3, 1), core.Credit, 500, "salary")
	create(t, txs, core.NewDate(2025, 3, 2), core.Debit, 150, "food")
	create(t, txs, core.NewDate(2025, 4, 2), core.Debit, 1, "food")

	var buf bytes.Buffer
	if err := rs.Export(ctx, 2025, time.March, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	st := memory.New(nil)
	pub := &recordingPublisher{}
	other := NewTransactionService(st, nil, pub)
	otherReports := NewReportService(st, other, cache.NewLRUCache[core.Report](8, time.Hour))

	before, _ := otherReports.Monthly(ctx, 2025, time.March)
	out, err := otherReports.Import(ctx, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if out.Succeeded != 2 || out.Failed != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(pub.ops()) != 2 {
		t.Fatalf("expected an upsert event per imported row, got %v", pub.ops())
	}
	after, _ := otherReports.Monthly(ctx, 2025, time.March)
	if before.NetBalance.String() != "0" || after.NetBalance.String() != "350" {
		t.Fatalf("import should invalidate cached report: before=%s after=%s", before.NetBalance, after.NetBalance)
	}

	out, err = otherReports.Import(ctx, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if out.Skipped != 2 || out.Succeeded != 0 {
		t.Fatalf("second import should skip everything: %+v", out)
	}
}
