package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"vet/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// RecordStoreSuite runs the same contract against every RecordStore.
type RecordStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) RecordStore
	store    RecordStore
	ctx      context.Context
}

func (s *RecordStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func (s *RecordStoreSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func sampleExpense(id string) core.Expense {
	return core.Expense{
		ID:          id,
		Date:        "2024-06-01",
		Amount:      12.5,
		Category:    "Food",
		Traveler:    "Ana",
		Description: "Lunch",
		ReceiptData: core.EncodeReceipt("image/jpeg", []byte("jpeg-bytes")),
		CreatedAt:   "2024-06-01T10:00:00.000Z",
	}
}

func (s *RecordStoreSuite) TestAddThenGetAllReturnsIdenticalRecord() {
	e := sampleExpense("e1")
	require.NoError(s.T(), s.store.Add(s.ctx, e))

	all, err := s.store.GetAll(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 1)
	assert.Equal(s.T(), e, all[0])
	assert.False(s.T(), all[0].Synced)
}

func (s *RecordStoreSuite) TestAddPreservesOptionalFields() {
	ts := int64(1717236000000)
	e := core.Expense{ID: "e2", Date: "2024-06-02", Amount: -3.25, CreatedAt: "2024-06-02T08:00:00.000Z", UpdatedAt: &ts}
	require.NoError(s.T(), s.store.Add(s.ctx, e))

	got, err := s.store.Get(s.ctx, "e2")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), e, got)
	assert.Empty(s.T(), got.ReceiptData)
	require.NotNil(s.T(), got.UpdatedAt)
	assert.Equal(s.T(), ts, *got.UpdatedAt)
}

func (s *RecordStoreSuite) TestAddDuplicateKey() {
	require.NoError(s.T(), s.store.Add(s.ctx, sampleExpense("e1")))

	dup := sampleExpense("e1")
	dup.Amount = 99
	err := s.store.Add(s.ctx, dup)
	assert.ErrorIs(s.T(), err, core.ErrDuplicateKey)

	got, err := s.store.Get(s.ctx, "e1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 12.5, got.Amount, "duplicate add must not overwrite")
}

func (s *RecordStoreSuite) TestPutReplacesAndIsIdempotent() {
	e := sampleExpense("e1")
	require.NoError(s.T(), s.store.Add(s.ctx, e))

	e.Amount = 20
	e.Synced = true
	e.ReceiptData = "/data/uploads/e1.jpg"
	require.NoError(s.T(), s.store.Put(s.ctx, e))
	once, err := s.store.GetAll(s.ctx)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.store.Put(s.ctx, e))
	twice, err := s.store.GetAll(s.ctx)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), once, twice)
	require.Len(s.T(), twice, 1)
	assert.Equal(s.T(), e, twice[0])
}

func (s *RecordStoreSuite) TestPutInsertsMissingRecord() {
	require.NoError(s.T(), s.store.Put(s.ctx, sampleExpense("fresh")))
	_, err := s.store.Get(s.ctx, "fresh")
	assert.NoError(s.T(), err)
}

func (s *RecordStoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "nope")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RecordStoreSuite) TestGetAllEmpty() {
	all, err := s.store.GetAll(s.ctx)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), all)
}

func (s *RecordStoreSuite) TestMarkSyncedIgnoresUnknownIDs() {
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(s.T(), s.store.Add(s.ctx, sampleExpense(id)))
	}

	n, err := s.store.MarkSynced(s.ctx, []string{"a", "c", "ghost"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, n)

	all, err := s.store.GetAll(s.ctx)
	require.NoError(s.T(), err)
	synced := map[string]bool{}
	for _, e := range all {
		synced[e.ID] = e.Synced
	}
	assert.Equal(s.T(), map[string]bool{"a": true, "b": false, "c": true}, synced)
}

func (s *RecordStoreSuite) TestMarkSyncedEmpty() {
	n, err := s.store.MarkSynced(s.ctx, nil)
	require.NoError(s.T(), err)
	assert.Zero(s.T(), n)
}

func (s *RecordStoreSuite) TestConcurrentPutsNeverTear() {
	require.NoError(s.T(), s.store.Add(s.ctx, sampleExpense("e1")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := sampleExpense("e1")
			e.Amount = float64(i)
			e.Description = core.FormatAmount(float64(i))
			assert.NoError(s.T(), s.store.Put(s.ctx, e))
		}(i)
	}
	wg.Wait()

	got, err := s.store.Get(s.ctx, "e1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), core.FormatAmount(got.Amount), got.Description, "amount and description come from different writes")
}

func TestSQLiteRepositorySuite(t *testing.T) {
	suite.Run(t, &RecordStoreSuite{newStore: func(t *testing.T) RecordStore {
		repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "vet.db"))
		require.NoError(t, err, "failed to create test database")
		return repo
	}})
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &RecordStoreSuite{newStore: func(t *testing.T) RecordStore {
		return NewMemoryStore()
	}})
}

func TestSQLiteRepositorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vet.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Add(context.Background(), sampleExpense("e1")))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, sampleExpense("e1"), all[0])
}

func TestSQLiteRepositoryClosedIsUnavailable(t *testing.T) {
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "vet.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = repo.GetAll(context.Background())
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
	err = repo.Put(context.Background(), sampleExpense("e1"))
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
}

func TestNewMemoryStoreFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewMemoryStoreFromFile(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	all, _ := s.GetAll(context.Background())
	assert.Empty(t, all)

	path := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"e1","date":"2024-06-01","amount":3,"category":"","createdAt":"2024-06-01T00:00:00.000Z","synced":true}]`), 0644))
	s, err = NewMemoryStoreFromFile(path)
	require.NoError(t, err)
	got, err := s.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Equal(t, 3.0, got.Amount)

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))
	_, err = NewMemoryStoreFromFile(path)
	assert.Error(t, err)
}

func TestMemoryStoreCopiesOnReadAndWrite(t *testing.T) {
	ts := int64(1)
	e := sampleExpense("e1")
	e.UpdatedAt = &ts
	s := NewMemoryStore()
	require.NoError(t, s.Add(context.Background(), e))

	ts = 99
	got, err := s.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), *got.UpdatedAt)

	*got.UpdatedAt = 5
	again, _ := s.Get(context.Background(), "e1")
	assert.Equal(t, int64(1), *again.UpdatedAt)
}
