package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"daisycash/internal/core"
	"daisycash/internal/store"

	"github.com/google/uuid"
)

// Store keeps everything in process memory. It is used for development and
// as the fake behind handler and reconciler tests.
type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	txs   map[string]core.Transaction
	cats  map[string]core.Category
	users map[string]core.User
}

func New(cats []core.Category) *Store {
	s := &Store{
		now:   time.Now,
		txs:   map[string]core.Transaction{},
		cats:  map[string]core.Category{},
		users: map[string]core.User{},
	}
	for _, c := range cats {
		c = c.WithDefaults()
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		s.cats[c.ID] = c
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt. Each line is
// "kind:Name" (kind is credit, debit or both); "Name" alone means both.
func NewFromFiles(base string) *Store {
	cats := readCategories(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = []core.Category{
			{Name: "Salary", Kind: core.Credit},
			{Name: "Food", Kind: core.Debit},
			{Name: "Transport", Kind: core.Debit},
			{Name: "Other", Kind: core.Both},
		}
	}
	return New(cats)
}

// WithClock overrides the time source used for RecordedAt and CreatedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) ListTransactions(_ context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if f.Matches(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.OccurredOn.Equal(b.OccurredOn.Time) {
			return a.OccurredOn.After(b.OccurredOn.Time)
		}
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.After(b.RecordedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return tx, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	} else if _, ok := s.txs[tx.ID]; ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrConflict)
	}
	if tx.RecordedAt.IsZero() {
		tx.RecordedAt = s.now().UTC()
	}
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.ID]; !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrNotFound)
	}
	tx.RecordedAt = s.now().UTC()
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) ListCategories(_ context.Context, kind *core.Kind) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.cats))
	for _, c := range s.cats {
		if kind != nil && !c.AppliesTo(*kind) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cats[id]
	if !ok {
		return core.Category{}, fmt.Errorf("category %s: %w", id, store.ErrNotFound)
	}
	return c, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if _, ok := s.cats[c.ID]; ok {
		return core.Category{}, fmt.Errorf("category %s: %w", c.ID, store.ErrConflict)
	}
	s.cats[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cats[c.ID]; !ok {
		return core.Category{}, fmt.Errorf("category %s: %w", c.ID, store.ErrNotFound)
	}
	s.cats[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cats[id]; !ok {
		return fmt.Errorf("category %s: %w", id, store.ErrNotFound)
	}
	delete(s.cats, id)
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[normalizeEmail(email)]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return core.User{}, fmt.Errorf("create user: empty email")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return core.User{}, fmt.Errorf("user %s: %w", u.Email, store.ErrConflict)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[u.Email] = u
	return u, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func readCategories(path string) []core.Category {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	seen := map[string]struct{}{}
	var out []core.Category
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kind := core.Both
		name := line
		if prefix, rest, ok := strings.Cut(line, ":"); ok {
			k, err := core.ParseKind(prefix)
			if err != nil {
				continue
			}
			kind, name = k, strings.TrimSpace(rest)
		}
		if name == "" {
			continue
		}
		key := kind.String() + "/" + name
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, core.Category{Name: name, Kind: kind})
	}
	return out
}
