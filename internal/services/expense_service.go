package services

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vet/internal/core"
	applog "vet/internal/log"
	"vet/internal/storage"
)

// ExpenseInput is the raw form content for a new expense.
type ExpenseInput struct {
	Date        string
	Amount      string
	Category    string
	Traveler    string
	Description string
	Receipt     *ReceiptFile
}

// ReceiptFile is an image attached at creation time.
type ReceiptFile struct {
	MediaType string
	Body      []byte
}

// ExpensePatch holds the fields an edit may change. Nil fields keep the
// stored value.
type ExpensePatch struct {
	Date        *string
	Amount      *string
	Category    *string
	Traveler    *string
	Description *string
}

// ExpenseService creates and edits expenses and tells notifiers about it.
type ExpenseService struct {
	store     storage.RecordStore
	notifiers notifiers
	now       func() time.Time
}

func NewExpenseService(store storage.RecordStore, observers ...ChangeNotifier) *ExpenseService {
	return &ExpenseService{
		store:     store,
		notifiers: observers,
		now:       time.Now,
	}
}

// Subscribe registers another notifier.
func (s *ExpenseService) Subscribe(n ChangeNotifier) {
	s.notifiers = append(s.notifiers, n)
}

// Create builds a new unsynced record from form input and commits it with
// Add. A blank date becomes today. The receipt, when present, is embedded.
func (s *ExpenseService) Create(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	now := s.now()

	date := in.Date
	if strings.TrimSpace(date) == "" {
		date = core.Today(now)
	}

	e := core.Expense{
		ID:          core.NewID(now),
		Date:        date,
		Amount:      core.ParseAmount(in.Amount),
		Category:    in.Category,
		Traveler:    in.Traveler,
		Description: in.Description,
		CreatedAt:   core.FormatTimestamp(now),
		Synced:      false,
	}
	if in.Receipt != nil && len(in.Receipt.Body) > 0 {
		e.ReceiptData = core.EncodeReceipt(in.Receipt.MediaType, in.Receipt.Body)
	}

	if err := s.store.Add(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	fields := applog.NewFields().
		WithComponent(applog.ComponentExpense).
		WithOperation(applog.OpCreate).
		WithExpense(e.ID, e.Amount, e.NormalizedCategory())
	slog.InfoContext(ctx, "Expense saved", append(fields.ToSlice(), "receipt", e.HasReceipt())...)

	s.notifiers.notify(ctx, core.ChangeEvent{Op: core.OpCreated, IDs: []string{e.ID}})
	return e, nil
}

// Edit applies patch to existing and commits the result with Put. The
// category is trimmed, UpdatedAt is stamped and the record is marked
// unsynced. Id, CreatedAt and ReceiptData are kept.
func (s *ExpenseService) Edit(ctx context.Context, existing core.Expense, patch ExpensePatch) (core.Expense, error) {
	e := existing.Clone()

	if patch.Date != nil {
		e.Date = *patch.Date
	}
	if patch.Amount != nil {
		e.Amount = core.ParseAmount(*patch.Amount)
	}
	if patch.Category != nil {
		e.Category = *patch.Category
	}
	if patch.Traveler != nil {
		e.Traveler = *patch.Traveler
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	e.Category = strings.TrimSpace(e.Category)

	updated := s.now().UnixMilli()
	e.UpdatedAt = &updated
	e.Synced = false

	if err := s.store.Put(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", e.ID, err)
	}

	slog.InfoContext(ctx, "Expense updated", applog.NewFields().
		WithComponent(applog.ComponentExpense).
		WithOperation(applog.OpEdit).
		WithExpense(e.ID, e.Amount, e.NormalizedCategory()).
		ToSlice()...)

	s.notifiers.notify(ctx, core.ChangeEvent{Op: core.OpEdited, IDs: []string{e.ID}})
	return e, nil
}

// EditByID loads the record first. It returns core.ErrNotFound when the id
// is unknown.
func (s *ExpenseService) EditByID(ctx context.Context, id string, patch ExpensePatch) (core.Expense, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("load expense %s: %w", id, err)
	}
	return s.Edit(ctx, existing, patch)
}

// LoadReceiptFile reads an image from disk for attachment. The media type is
// taken from the extension, then from content sniffing.
func LoadReceiptFile(path string) (*ReceiptFile, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt = http.DetectContentType(body)
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return &ReceiptFile{MediaType: mt, Body: body}, nil
}
