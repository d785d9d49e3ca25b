package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"vet/internal/core"
)

// Reader is the part of the record store the view needs.
type Reader interface {
	GetAll(ctx context.Context) ([]core.Expense, error)
}

// RenderFunc receives every freshly computed snapshot.
type RenderFunc func(Snapshot)

// State owns the filter selector and the latest snapshot. It satisfies the
// change notifier port, so a store mutation triggers Recompute.
type State struct {
	store  Reader
	render RenderFunc

	// refresh serialises store reads with snapshot updates, so a slow read
	// never replaces a newer snapshot. render runs while it is held and must
	// not call SetFilter or Recompute.
	refresh sync.Mutex

	mu     sync.Mutex
	filter string
	last   Snapshot
}

// NewState starts with the filter set to FilterAll. render may be nil.
func NewState(store Reader, render RenderFunc) *State {
	return &State{
		store:  store,
		render: render,
		filter: FilterAll,
		last:   Compute(nil, FilterAll),
	}
}

// Filter returns the current selection.
func (s *State) Filter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Snapshot returns the last computed snapshot.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// SetFilter selects a category and recomputes. The selection only takes
// effect once the records are read; on a read failure the previous filter
// and snapshot are kept.
func (s *State) SetFilter(ctx context.Context, filter string) (Snapshot, error) {
	return s.recompute(ctx, &filter)
}

// Recompute reads every record and derives a new snapshot. A selection that
// no longer matches any record falls back to FilterAll. On a read failure
// the previous snapshot is kept.
func (s *State) Recompute(ctx context.Context) (Snapshot, error) {
	return s.recompute(ctx, nil)
}

func (s *State) recompute(ctx context.Context, requested *string) (Snapshot, error) {
	s.refresh.Lock()
	defer s.refresh.Unlock()

	records, err := s.store.GetAll(ctx)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("recompute view: %w", err)
	}

	s.mu.Lock()
	filter := s.filter
	if requested != nil {
		filter = *requested
	}
	snap := Compute(records, filter)
	if snap.Filter != filter {
		slog.DebugContext(ctx, "Filter reset", "from", filter, "to", snap.Filter)
	}
	s.filter = snap.Filter
	s.last = snap
	render := s.render
	s.mu.Unlock()

	if render != nil {
		render(snap)
	}
	return snap, nil
}

// NotifyChange recomputes after a committed mutation.
func (s *State) NotifyChange(ctx context.Context, event core.ChangeEvent) error {
	slog.DebugContext(ctx, "Recomputing view", "op", event.Op, "ids", len(event.IDs))
	_, err := s.Recompute(ctx)
	return err
}
