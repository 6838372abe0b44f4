package memory

import (
	"context"
	"sync"

	"daisycash/internal/core"
	"daisycash/internal/sheets"
)

var _ sheets.Mirror = (*Mirror)(nil)

// Mirror is an in-process sheet used in tests and when no spreadsheet is
// configured. Rows keep insertion order like a real sheet.
type Mirror struct {
	mu    sync.Mutex
	order []string
	rows  map[string]core.Transaction
}

func New() *Mirror {
	return &Mirror{rows: map[string]core.Transaction{}}
}

func (m *Mirror) Upsert(_ context.Context, tx core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[tx.ID]; !ok {
		m.order = append(m.order, tx.ID)
	}
	m.rows[tx.ID] = tx
	return nil
}

func (m *Mirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return nil
	}
	delete(m.rows, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Rows returns the mirrored transactions in sheet order.
func (m *Mirror) Rows() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Transaction, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rows[id])
	}
	return out
}

// Get returns the mirrored row for id.
func (m *Mirror) Get(id string) (core.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.rows[id]
	return tx, ok
}
