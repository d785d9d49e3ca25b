package worker

import (
	"context"
	"errors"
	"log/slog"

	"vet/internal/amqp"
	"vet/internal/core"
	"vet/internal/services"
)

// Syncer runs one reconciliation pass.
type Syncer interface {
	SyncOnce(ctx context.Context) (services.SyncResult, error)
}

// SyncWorker reacts to expense change messages by pushing unsynced
// records to the backend.
type SyncWorker struct {
	syncer Syncer
}

func NewSyncWorker(syncer Syncer) *SyncWorker {
	return &SyncWorker{syncer: syncer}
}

// HandleChangeMessage processes a single change message from AMQP.
//
// Synced events are produced by a pass and are skipped. A failed pass is
// logged but not returned, so the message is acked and the next periodic
// pass retries instead of the broker redelivering in a loop.
func (w *SyncWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	if msg.Op == core.OpSynced {
		slog.DebugContext(ctx, "Skipping synced event", "ids", len(msg.IDs))
		return nil
	}

	slog.InfoContext(ctx, "Processing change message",
		"op", msg.Op,
		"ids", len(msg.IDs))

	res, err := w.syncer.SyncOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		slog.ErrorContext(ctx, "Sync pass failed", "op", msg.Op, "error", err)
		return nil
	}

	logResult(ctx, "Change sync completed", res)
	return nil
}

// StartupSyncCheck pushes anything left unsynced by a previous run before
// the worker starts consuming.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	res, err := w.syncer.SyncOnce(ctx)
	if err != nil {
		return err
	}
	if res.NothingToSync {
		slog.InfoContext(ctx, "No pending expenses found on startup")
		return nil
	}
	logResult(ctx, "Startup sync completed", res)
	return nil
}

func logResult(ctx context.Context, msg string, res services.SyncResult) {
	if res.NothingToSync {
		slog.DebugContext(ctx, msg, "submitted", 0)
		return
	}
	attrs := []any{"submitted", res.Submitted, "synced", res.Synced}
	if res.Fallback {
		attrs = append(attrs, "fallback", true)
	}
	if len(res.Unacknowledged) > 0 {
		slog.WarnContext(ctx, msg, append(attrs, "unacknowledged", res.Unacknowledged)...)
		return
	}
	slog.InfoContext(ctx, msg, attrs...)
}
