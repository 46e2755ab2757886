package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL statements of the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type CategoryRow struct {
	ID   int64
	Name string
}

type ExpenseRow struct {
	ID           int64
	Title        string
	Amount       string
	CategoryID   int64
	Date         int64
	Notes        sql.NullString
	CategoryName string
}

type CreateExpenseParams struct {
	Title      string
	Amount     string
	CategoryID int64
	Date       int64
	Notes      sql.NullString
}

const listCategories = `SELECT id, name FROM categories ORDER BY name, id`

func (q *Queries) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryRow
	for rows.Next() {
		var i CategoryRow
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertCategoryIgnore = `INSERT INTO categories (name) VALUES (?) ON CONFLICT(name) DO NOTHING`

func (q *Queries) InsertCategoryIgnore(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, insertCategoryIgnore, name)
	return err
}

const getCategoryByName = `SELECT id, name FROM categories WHERE name = ?`

func (q *Queries) GetCategoryByName(ctx context.Context, name string) (CategoryRow, error) {
	var i CategoryRow
	err := q.db.QueryRowContext(ctx, getCategoryByName, name).Scan(&i.ID, &i.Name)
	return i, err
}

const categoryExists = `SELECT EXISTS (SELECT 1 FROM categories WHERE id = ?)`

func (q *Queries) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, categoryExists, id).Scan(&exists)
	return exists, err
}

const deleteCategory = `DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createExpense = `INSERT INTO expenses (title, amount, category_id, date, notes)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createExpense,
		arg.Title,
		arg.Amount,
		arg.CategoryID,
		arg.Date,
		arg.Notes,
	).Scan(&id)
	return id, err
}

const listExpenses = `SELECT e.id, e.title, e.amount, e.category_id, e.date, e.notes, c.name
FROM expenses e
JOIN categories c ON c.id = e.category_id
ORDER BY e.date DESC, e.id DESC`

func (q *Queries) ListExpenses(ctx context.Context) ([]ExpenseRow, error) {
	return q.scanExpenses(ctx, listExpenses)
}

const listExpensesBetween = `SELECT e.id, e.title, e.amount, e.category_id, e.date, e.notes, c.name
FROM expenses e
JOIN categories c ON c.id = e.category_id
WHERE e.date BETWEEN ? AND ?
ORDER BY e.date DESC, e.id DESC`

func (q *Queries) ListExpensesBetween(ctx context.Context, start, end int64) ([]ExpenseRow, error) {
	return q.scanExpenses(ctx, listExpensesBetween, start, end)
}

func (q *Queries) scanExpenses(ctx context.Context, query string, args ...any) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExpenseRow
	for rows.Next() {
		var i ExpenseRow
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.Amount,
			&i.CategoryID,
			&i.Date,
			&i.Notes,
			&i.CategoryName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
