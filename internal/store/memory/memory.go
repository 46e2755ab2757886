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

	"finpulse/internal/core"
	"finpulse/internal/store"
)

// DefaultCategories seed a fresh store when no seed file is present.
var DefaultCategories = []string{"Food", "Transport", "Shopping", "Bills", "Health", "Entertainment"}

// Store keeps categories and expenses in process memory.
type Store struct {
	mu        sync.Mutex
	cats      []core.Category
	items     []core.Expense
	nextCatID int64
	nextExpID int64
}

func New(cats []string) *Store {
	s := &Store{nextCatID: 1, nextExpID: 1}
	for _, name := range dedupe(cats) {
		s.cats = append(s.cats, core.Category{ID: s.nextCatID, Name: name})
		s.nextCatID++
	}
	return s
}

// NewFromFiles seeds the store from base/seed_categories.txt, falling back to
// DefaultCategories.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	return New(cats)
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Category(nil), s.cats...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertCategory(_ context.Context, name string) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cats {
		if existing.Name == c.Name {
			return existing, nil
		}
	}
	c.ID = s.nextCatID
	s.nextCatID++
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.categoryIndex(id)
	if idx < 0 {
		return fmt.Errorf("category %d: %w", id, store.ErrNotFound)
	}
	s.cats = append(s.cats[:idx], s.cats[idx+1:]...)

	kept := s.items[:0]
	for _, e := range s.items {
		if e.CategoryID != id {
			kept = append(kept, e)
		}
	}
	s.items = kept
	return nil
}

func (s *Store) InsertExpense(_ context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.categoryIndex(e.CategoryID) < 0 {
		return 0, fmt.Errorf("category %d: %w", e.CategoryID, store.ErrUnknownCategory)
	}
	e.ID = s.nextExpID
	s.nextExpID++
	e.Notes = copyNotes(e.Notes)
	s.items = append(s.items, e)
	return e.ID, nil
}

func (s *Store) ListExpenses(_ context.Context, r *core.Range) ([]core.ExpenseWithCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ExpenseWithCategory, 0, len(s.items))
	for _, e := range s.items {
		if r != nil && !r.Contains(e.Date) {
			continue
		}
		idx := s.categoryIndex(e.CategoryID)
		if idx < 0 {
			continue
		}
		e.Notes = copyNotes(e.Notes)
		out = append(out, core.ExpenseWithCategory{Expense: e, Category: s.cats[idx]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Expense, out[j].Expense
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) categoryIndex(id int64) int {
	for i, c := range s.cats {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func copyNotes(n *string) *string {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe trims and drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

var _ store.Store = (*Store)(nil)
