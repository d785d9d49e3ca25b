package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vet/internal/core"
	applog "vet/internal/log"
	"vet/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// Interval is how often the background loop runs a pass (default: 1m)
	Interval time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		Interval: time.Minute,
	}
}

// SyncResult summarises one reconciliation pass.
type SyncResult struct {
	// Submitted is how many unsynced records were sent.
	Submitted int
	// Synced is how many records were flagged synced.
	Synced int
	// Fallback is set when the response lacked per-record acks and every
	// submitted record was flagged instead.
	Fallback bool
	// NothingToSync is set when no request was made.
	NothingToSync bool
	// Unacknowledged lists submitted ids the backend did not ack.
	Unacknowledged []string
}

// SyncProcessor pushes unsynced records to the backend and reconciles the
// store with the acknowledgements.
type SyncProcessor struct {
	store     storage.RecordStore
	pusher    Pusher
	notifiers notifiers
	config    SyncProcessorConfig

	// pass serialises SyncOnce calls
	pass sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(
	store storage.RecordStore,
	pusher Pusher,
	config SyncProcessorConfig,
	observers ...ChangeNotifier,
) *SyncProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultSyncProcessorConfig().Interval
	}
	return &SyncProcessor{
		store:     store,
		pusher:    pusher,
		notifiers: observers,
		config:    config,
	}
}

// SyncOnce runs a single pass. With nothing unsynced no request is made.
//
// On a transport or status failure no record changes and the error wraps
// core.ErrSyncFailed. When the response carries no items array every
// submitted record is flagged synced. Otherwise each acked id that was
// submitted is flagged synced and, if the ack carries a server reference,
// its ReceiptData is replaced.
func (p *SyncProcessor) SyncOnce(ctx context.Context) (SyncResult, error) {
	p.pass.Lock()
	defer p.pass.Unlock()

	all, err := p.store.GetAll(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load expenses: %w", err)
	}

	unsynced := make([]core.Expense, 0, len(all))
	for _, e := range all {
		if !e.Synced {
			unsynced = append(unsynced, e)
		}
	}
	if len(unsynced) == 0 {
		slog.DebugContext(ctx, "Nothing to sync")
		return SyncResult{NothingToSync: true}, nil
	}

	result := SyncResult{Submitted: len(unsynced)}
	slog.InfoContext(ctx, "Syncing expenses",
		applog.FieldComponent, applog.ComponentSync,
		applog.FieldOperation, applog.OpSync,
		applog.FieldCount, len(unsynced))

	resp, err := p.pusher.Push(ctx, unsynced)
	switch {
	case errors.Is(err, core.ErrMalformedResponse):
		return p.markAll(ctx, unsynced, result)
	case err != nil:
		slog.WarnContext(ctx, "Sync failed", "count", len(unsynced), "error", err)
		if !errors.Is(err, core.ErrSyncFailed) {
			err = fmt.Errorf("%w: %w", core.ErrSyncFailed, err)
		}
		return result, err
	}

	submitted := make(map[string]core.Expense, len(unsynced))
	for _, e := range unsynced {
		submitted[e.ID] = e
	}

	done := make(map[string]bool, len(resp.Items))
	var synced []string
	for _, ack := range resp.Items {
		rec, ok := submitted[ack.ID]
		if !ok || done[ack.ID] {
			continue
		}
		rec.Synced = true
		if ack.ReceiptData != "" && !core.IsEmbeddedReceipt(ack.ReceiptData) {
			rec.ReceiptData = ack.ReceiptData
		}
		if err := p.store.Put(ctx, rec); err != nil {
			result.Synced = len(synced)
			p.announce(ctx, synced)
			return result, fmt.Errorf("reconcile expense %s: %w", rec.ID, err)
		}
		done[ack.ID] = true
		synced = append(synced, ack.ID)
	}

	for _, e := range unsynced {
		if !done[e.ID] {
			result.Unacknowledged = append(result.Unacknowledged, e.ID)
		}
	}
	result.Synced = len(synced)

	slog.InfoContext(ctx, "Sync complete",
		applog.FieldComponent, applog.ComponentSync,
		"submitted", result.Submitted,
		"synced", result.Synced,
		"unacknowledged", len(result.Unacknowledged))

	p.announce(ctx, synced)
	return result, nil
}

func (p *SyncProcessor) markAll(ctx context.Context, unsynced []core.Expense, result SyncResult) (SyncResult, error) {
	ids := make([]string, len(unsynced))
	for i, e := range unsynced {
		ids[i] = e.ID
	}

	slog.WarnContext(ctx, "Sync response had no items, flagging all submitted records", "count", len(ids))

	n, err := p.store.MarkSynced(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("mark synced: %w", err)
	}
	result.Fallback = true
	result.Synced = n
	p.announce(ctx, ids)
	return result, nil
}

func (p *SyncProcessor) announce(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	p.notifiers.notify(ctx, core.ChangeEvent{Op: core.OpSynced, IDs: ids})
}

// Start begins the periodic sync loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Trigger runs a pass outside the ticker, e.g. when a change message
// arrives. Errors are logged.
func (p *SyncProcessor) Trigger(ctx context.Context) {
	if _, err := p.SyncOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Sync pass failed", "error", err)
	}
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Trigger(ctx)
		}
	}
}
