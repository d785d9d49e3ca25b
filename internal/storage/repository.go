package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"vet/internal/core"

	_ "modernc.org/sqlite"
)

const (
	expenseColumns = `id, date, amount, category, traveler, description, receipt_data, created_at, updated_at, synced`

	insertExpenseSQL = `INSERT INTO expenses (` + expenseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	upsertExpenseSQL = insertExpenseSQL + `
ON CONFLICT(id) DO UPDATE SET
    date = excluded.date,
    amount = excluded.amount,
    category = excluded.category,
    traveler = excluded.traveler,
    description = excluded.description,
    receipt_data = excluded.receipt_data,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    synced = excluded.synced`

	selectExpenseSQL     = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`
	selectAllExpensesSQL = `SELECT ` + expenseColumns + ` FROM expenses`
	existsExpenseSQL     = `SELECT EXISTS(SELECT 1 FROM expenses WHERE id = ?)`
	markSyncedSQL        = `UPDATE expenses SET synced = 1 WHERE id = ?`
)

// SQLiteRepository is the durable RecordStore, one table keyed by id.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, unavailable("create db directory", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, unavailable("open sqlite database", err)
	}
	// A single connection serializes writers, which is what the
	// single-table transactional model expects.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, unavailable("ping database", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, unavailable("run migrations", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Add implements RecordStore.
func (r *SQLiteRepository) Add(ctx context.Context, e core.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin add", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, existsExpenseSQL, e.ID).Scan(&exists); err != nil {
		return unavailable("check expense id", err)
	}
	if exists {
		return fmt.Errorf("add expense %s: %w", e.ID, core.ErrDuplicateKey)
	}

	if _, err := tx.ExecContext(ctx, insertExpenseSQL, expenseArgs(e)...); err != nil {
		return unavailable("insert expense", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit add", err)
	}

	slog.DebugContext(ctx, "Expense added", "id", e.ID, "amount", e.Amount, "category", e.Category)
	return nil
}

// Put implements RecordStore.
func (r *SQLiteRepository) Put(ctx context.Context, e core.Expense) error {
	if _, err := r.db.ExecContext(ctx, upsertExpenseSQL, expenseArgs(e)...); err != nil {
		return unavailable("upsert expense", err)
	}
	slog.DebugContext(ctx, "Expense stored", "id", e.ID, "synced", e.Synced)
	return nil
}

// Get implements RecordStore.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, selectExpenseSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, unavailable("get expense", err)
	}
	return e, nil
}

// GetAll implements RecordStore. A single SELECT is one implicit read
// transaction, so the returned set is consistent.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, selectAllExpensesSQL)
	if err != nil {
		return nil, unavailable("list expenses", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, unavailable("scan expense", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate expenses", err)
	}
	return expenses, nil
}

// MarkSynced implements RecordStore.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("begin mark synced", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, markSyncedSQL)
	if err != nil {
		return 0, unavailable("prepare mark synced", err)
	}
	defer stmt.Close()

	count := 0
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id)
		if err != nil {
			return 0, unavailable("mark expense synced", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, unavailable("rows affected", err)
		}
		count += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, unavailable("commit mark synced", err)
	}

	slog.InfoContext(ctx, "Expenses marked as synced", "requested", len(ids), "updated", count)
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e         core.Expense
		receipt   sql.NullString
		updatedAt sql.NullInt64
		synced    int64
	)
	err := row.Scan(&e.ID, &e.Date, &e.Amount, &e.Category, &e.Traveler, &e.Description,
		&receipt, &e.CreatedAt, &updatedAt, &synced)
	if err != nil {
		return core.Expense{}, err
	}
	if receipt.Valid {
		e.ReceiptData = receipt.String
	}
	if updatedAt.Valid {
		v := updatedAt.Int64
		e.UpdatedAt = &v
	}
	e.Synced = synced != 0
	return e, nil
}

func expenseArgs(e core.Expense) []any {
	var receipt sql.NullString
	if e.ReceiptData != "" {
		receipt = sql.NullString{String: e.ReceiptData, Valid: true}
	}
	var updatedAt sql.NullInt64
	if e.UpdatedAt != nil {
		updatedAt = sql.NullInt64{Int64: *e.UpdatedAt, Valid: true}
	}
	synced := 0
	if e.Synced {
		synced = 1
	}
	return []any{e.ID, e.Date, e.Amount, e.Category, e.Traveler, e.Description,
		receipt, e.CreatedAt, updatedAt, synced}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStorageUnavailable, err)
}
