package services

import (
	"context"
	"log/slog"

	"vet/internal/core"
	"vet/internal/syncapi"
)

// ChangeNotifier is told about every committed mutation so that derived
// state (the view, a message bus) can refresh.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, event core.ChangeEvent) error
}

// Pusher submits unsynced records to the backend.
type Pusher interface {
	Push(ctx context.Context, records []core.Expense) (syncapi.Response, error)
}

// notifiers fans an event out to every registered ChangeNotifier. A failing
// notifier is logged and never undoes the committed mutation.
type notifiers []ChangeNotifier

func (n notifiers) notify(ctx context.Context, event core.ChangeEvent) {
	for _, nt := range n {
		if nt == nil {
			continue
		}
		if err := nt.NotifyChange(ctx, event); err != nil {
			slog.ErrorContext(ctx, "Failed to deliver change notification",
				"op", event.Op,
				"ids", len(event.IDs),
				"error", err)
		}
	}
}
