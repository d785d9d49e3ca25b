package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"vet/internal/core"
	applog "vet/internal/log"
	"vet/internal/sheets"
)

var (
	ErrNoPayload      = errors.New("no payload")
	ErrInvalidPayload = errors.New("invalid payload")
)

// DecodePayload accepts either a JSON array of expenses or a single expense
// object.
func DecodePayload(body []byte) ([]core.Expense, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, ErrNoPayload
	}

	if body[0] == '[' {
		var items []core.Expense
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return items, nil
	}

	var item core.Expense
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return []core.Expense{item}, nil
}

// Ingester stores synced items: receipts go to disk, records to the JSON
// archive, and optionally a copy to a spreadsheet mirror.
type Ingester struct {
	file     *JSONFile
	receipts *ReceiptStore
	mirror   sheets.ExpenseMirror
	workers  int
	now      func() time.Time
}

// NewIngester wires an ingester. mirror may be nil.
func NewIngester(file *JSONFile, receipts *ReceiptStore, mirror sheets.ExpenseMirror) *Ingester {
	return &Ingester{
		file:     file,
		receipts: receipts,
		mirror:   mirror,
		workers:  4,
		now:      time.Now,
	}
}

// Ingest archives items and returns them as stored, receipts replaced by
// their reference paths.
func (in *Ingester) Ingest(ctx context.Context, items []core.Expense) ([]Record, error) {
	now := in.now()
	receivedAt := core.FormatTimestamp(now)
	records := make([]Record, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := item.ID
			if name == "" {
				name = strconv.FormatInt(now.UnixMilli(), 10)
				if i > 0 {
					name += "-" + strconv.Itoa(i)
				}
			}
			ref, err := in.receipts.Save(name, item.ReceiptData)
			if err != nil {
				return err
			}
			if ref != item.ReceiptData {
				slog.DebugContext(gctx, "Receipt stored",
					applog.FieldComponent, applog.ComponentArchive,
					applog.FieldExpenseID, item.ID,
					applog.FieldReceiptRef, ref)
			}
			item.ReceiptData = ref
			records[i] = Record{Expense: item, ServerReceivedAt: receivedAt}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("store receipts: %w", err)
	}

	if err := in.file.Append(records); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Archived synced expenses", applog.NewFields().
		WithComponent(applog.ComponentArchive).
		WithOperation(applog.OpArchive).
		WithCount(len(records)).
		ToSlice()...)

	if in.mirror != nil && len(records) > 0 {
		expenses := make([]core.Expense, len(records))
		for i, r := range records {
			expenses[i] = r.Expense
		}
		if err := in.mirror.MirrorExpenses(ctx, now, expenses); err != nil {
			slog.WarnContext(ctx, "Failed to mirror expenses to spreadsheet",
				applog.FieldComponent, applog.ComponentArchive,
				applog.FieldCount, len(expenses),
				"error", err)
		}
	}

	return records, nil
}

// List returns the archive contents.
func (in *Ingester) List() ([]Record, error) {
	return in.file.ReadAll()
}
