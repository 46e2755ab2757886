package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/store"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	loc     *time.Location
}

// DSN enables foreign keys (cascade deletes rely on them) and waits on
// locks held by other processes sharing the file.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it. Dates are returned in loc.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		loc:     loc,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = core.Category{ID: c.ID, Name: c.Name}
	}
	return out, nil
}

func (r *SQLiteRepository) InsertCategory(ctx context.Context, name string) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	var row CategoryRow
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.InsertCategoryIgnore(ctx, c.Name); err != nil {
			return err
		}
		var err error
		row, err = q.GetCategoryByName(ctx, c.Name)
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category %q: %w", c.Name, err)
	}
	return core.Category{ID: row.ID, Name: row.Name}, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("category %d: %w", id, store.ErrNotFound)
	}
	slog.InfoContext(ctx, "Category deleted with its expenses", "id", id)
	return nil
}

func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := r.inTx(ctx, func(q *Queries) error {
		exists, err := q.CategoryExists(ctx, e.CategoryID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("category %d: %w", e.CategoryID, store.ErrUnknownCategory)
		}
		id, err = q.CreateExpense(ctx, CreateExpenseParams{
			Title:      e.Title,
			Amount:     core.FormatAmount(e.Amount),
			CategoryID: e.CategoryID,
			Date:       e.Date.UnixMilli(),
			Notes:      nullString(e.Notes),
		})
		return err
	})
	switch {
	case errors.Is(err, store.ErrUnknownCategory):
		return 0, err
	case isForeignKeyViolation(err):
		return 0, fmt.Errorf("category %d: %w", e.CategoryID, store.ErrUnknownCategory)
	case err != nil:
		return 0, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"title", e.Title,
		"amount", core.FormatAmount(e.Amount),
		"category_id", e.CategoryID)

	return id, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, rng *core.Range) ([]core.ExpenseWithCategory, error) {
	var (
		rows []ExpenseRow
		err  error
	)
	if rng == nil {
		rows, err = r.queries.ListExpenses(ctx)
	} else {
		rows, err = r.queries.ListExpensesBetween(ctx, rng.Start.UnixMilli(), rng.End.UnixMilli())
	}
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	out := make([]core.ExpenseWithCategory, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("expense %d: invalid stored amount %q: %w", row.ID, row.Amount, err)
		}
		e := core.Expense{
			ID:         row.ID,
			Title:      row.Title,
			Amount:     amount,
			CategoryID: row.CategoryID,
			Date:       core.FromUnixMilli(row.Date, r.loc),
		}
		if row.Notes.Valid {
			notes := row.Notes.String
			e.Notes = &notes
		}
		out = append(out, core.ExpenseWithCategory{
			Expense:  e,
			Category: core.Category{ID: row.CategoryID, Name: row.CategoryName},
		})
	}
	return out, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

var _ store.Store = (*SQLiteRepository)(nil)
