package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vet/internal/core"
	"vet/internal/storage"
	"vet/internal/syncapi"
)

type fakePusher struct {
	mu    sync.Mutex
	calls [][]core.Expense
	resp  syncapi.Response
	err   error
	// respond, when set, builds the response from the submitted batch
	respond func([]core.Expense) syncapi.Response
}

func (f *fakePusher) Push(_ context.Context, records []core.Expense) (syncapi.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, records)
	if f.err != nil {
		return syncapi.Response{}, f.err
	}
	if f.respond != nil {
		return f.respond(records), nil
	}
	return f.resp, nil
}

func (f *fakePusher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []core.ChangeEvent
	err    error
}

func (r *recordingNotifier) NotifyChange(_ context.Context, event core.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

// failingPutStore rejects every Put after the first n.
type failingPutStore struct {
	*storage.MemoryStore
	allowed int
}

func (s *failingPutStore) Put(ctx context.Context, e core.Expense) error {
	if s.allowed <= 0 {
		return core.ErrStorageUnavailable
	}
	s.allowed--
	return s.MemoryStore.Put(ctx, e)
}

func unsyncedExpense(id string) core.Expense {
	return core.Expense{
		ID:        id,
		Date:      "2024-06-01",
		Amount:    12.5,
		Category:  "Food",
		Traveler:  "Ann",
		CreatedAt: "2024-06-01T10:00:00.000Z",
	}
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	assert.Equal(t, time.Minute, DefaultSyncProcessorConfig().Interval)
}

func TestSyncOnce_ReplacesReceiptWithServerReference(t *testing.T) {
	ctx := context.Background()
	e1 := unsyncedExpense("e1")
	e1.ReceiptData = "data:image/jpeg;base64,AAAA"
	store := storage.NewMemoryStore(e1)

	pusher := &fakePusher{resp: syncapi.Response{
		Saved: 1,
		Items: []core.SyncAck{{ID: "e1", ReceiptData: "/data/uploads/e1.jpg"}},
	}}
	notifier := &recordingNotifier{}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig(), notifier)

	result, err := p.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Submitted: 1, Synced: 1}, result)

	got, err := store.Get(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Equal(t, "/data/uploads/e1.jpg", got.ReceiptData)
	assert.Equal(t, e1.Amount, got.Amount)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, core.ChangeEvent{Op: core.OpSynced, IDs: []string{"e1"}}, notifier.events[0])
}

func TestSyncOnce_NothingToSync(t *testing.T) {
	synced := unsyncedExpense("e1")
	synced.Synced = true
	store := storage.NewMemoryStore(synced)
	pusher := &fakePusher{}
	notifier := &recordingNotifier{}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig(), notifier)

	result, err := p.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, result.NothingToSync)
	assert.Zero(t, pusher.callCount())
	assert.Empty(t, notifier.events)
}

func TestSyncOnce_OnlySubmitsUnsynced(t *testing.T) {
	done := unsyncedExpense("done")
	done.Synced = true
	store := storage.NewMemoryStore(done, unsyncedExpense("a"), unsyncedExpense("b"))
	pusher := &fakePusher{}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig())

	_, err := p.SyncOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, pusher.callCount())
	var ids []string
	for _, e := range pusher.calls[0] {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestSyncOnce_TransportFailureLeavesFlags(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(unsyncedExpense("a"), unsyncedExpense("b"))
	pusher := &fakePusher{err: errors.New("connection refused")}
	notifier := &recordingNotifier{}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig(), notifier)

	result, err := p.SyncOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSyncFailed)
	assert.Equal(t, 2, result.Submitted)
	assert.Zero(t, result.Synced)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	for _, e := range all {
		assert.False(t, e.Synced, e.ID)
	}
	assert.Empty(t, notifier.events)
}

func TestSyncOnce_PartialAck(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(unsyncedExpense("a"), unsyncedExpense("b"), unsyncedExpense("c"))
	pusher := &fakePusher{resp: syncapi.Response{Items: []core.SyncAck{{ID: "a"}, {ID: "c"}}}}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig())

	result, err := p.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, []string{"b"}, result.Unacknowledged)

	for id, want := range map[string]bool{"a": true, "b": false, "c": true} {
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Synced, id)
	}
}

func TestSyncOnce_IgnoresUnknownAndDuplicateAcks(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(unsyncedExpense("a"))
	pusher := &fakePusher{resp: syncapi.Response{Items: []core.SyncAck{
		{ID: "ghost"},
		{ID: "a", ReceiptData: "/data/uploads/a.png"},
		{ID: "a", ReceiptData: "/data/uploads/other.png"},
	}}}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig())

	result, err := p.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)

	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "/data/uploads/a.png", got.ReceiptData)
}

func TestSyncOnce_KeepsReceiptWhenAckHasNone(t *testing.T) {
	ctx := context.Background()
	e := unsyncedExpense("a")
	e.ReceiptData = "/data/uploads/a.jpg"
	store := storage.NewMemoryStore(e)
	pusher := &fakePusher{resp: syncapi.Response{Items: []core.SyncAck{
		{ID: "a", ReceiptData: "data:image/jpeg;base64,BBBB"},
	}}}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig())

	_, err := p.SyncOnce(ctx)
	require.NoError(t, err)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Equal(t, "/data/uploads/a.jpg", got.ReceiptData)
}

func TestSyncOnce_MalformedResponseFallsBack(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(unsyncedExpense("a"), unsyncedExpense("b"))
	pusher := &fakePusher{err: core.ErrMalformedResponse}
	notifier := &recordingNotifier{}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig(), notifier)

	result, err := p.SyncOnce(ctx)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, 2, result.Synced)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	for _, e := range all {
		assert.True(t, e.Synced, e.ID)
	}
	require.Len(t, notifier.events, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, notifier.events[0].IDs)
}

func TestSyncOnce_StoreFailureMidReconcile(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore(unsyncedExpense("a"), unsyncedExpense("b"))
	store := &failingPutStore{MemoryStore: mem, allowed: 1}
	pusher := &fakePusher{respond: func(batch []core.Expense) syncapi.Response {
		acks := make([]core.SyncAck, len(batch))
		for i, e := range batch {
			acks[i] = core.SyncAck{ID: e.ID}
		}
		return syncapi.Response{Items: acks}
	}}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig())

	result, err := p.SyncOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
	assert.Equal(t, 1, result.Synced)
}

func TestSyncOnce_NotifierErrorDoesNotFailPass(t *testing.T) {
	store := storage.NewMemoryStore(unsyncedExpense("a"))
	pusher := &fakePusher{resp: syncapi.Response{Items: []core.SyncAck{{ID: "a"}}}}
	notifier := &recordingNotifier{err: errors.New("broker down")}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig(), notifier)

	result, err := p.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
}

func TestSyncProcessor_EditAfterSyncIsResubmitted(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(unsyncedExpense("a"))
	pusher := &fakePusher{respond: func(batch []core.Expense) syncapi.Response {
		acks := make([]core.SyncAck, len(batch))
		for i, e := range batch {
			acks[i] = core.SyncAck{ID: e.ID}
		}
		return syncapi.Response{Items: acks}
	}}
	p := NewSyncProcessor(store, pusher, DefaultSyncProcessorConfig())
	svc := NewExpenseService(store)

	_, err := p.SyncOnce(ctx)
	require.NoError(t, err)

	amount := "99"
	edited, err := svc.EditByID(ctx, "a", ExpensePatch{Amount: &amount})
	require.NoError(t, err)
	assert.False(t, edited.Synced)

	_, err = p.SyncOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, pusher.callCount())
	require.Len(t, pusher.calls[1], 1)
	assert.Equal(t, 99.0, pusher.calls[1][0].Amount)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Synced)
}

func TestSyncProcessor_IsRunning(t *testing.T) {
	p := NewSyncProcessor(storage.NewMemoryStore(), &fakePusher{}, DefaultSyncProcessorConfig())
	assert.False(t, p.IsRunning())
}

func TestSyncProcessor_StartTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewSyncProcessor(storage.NewMemoryStore(), &fakePusher{}, SyncProcessorConfig{Interval: 50 * time.Millisecond})

	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
}

func TestSyncProcessor_LoopSyncsPeriodically(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewMemoryStore(unsyncedExpense("a"))
	pusher := &fakePusher{err: errors.New("offline")}
	p := NewSyncProcessor(store, pusher, SyncProcessorConfig{Interval: 20 * time.Millisecond})

	require.NoError(t, p.Start(ctx))
	assert.Eventually(t, func() bool { return pusher.callCount() >= 2 }, time.Second, 10*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, p.Stop(stopCtx))
}

func TestSyncProcessor_StopWhenNotRunning(t *testing.T) {
	p := NewSyncProcessor(storage.NewMemoryStore(), &fakePusher{}, DefaultSyncProcessorConfig())
	assert.NoError(t, p.Stop(context.Background()))
}
