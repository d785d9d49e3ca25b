package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vet/internal/config"
	"vet/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{StoreBackend: "memory", MemorySeedFile: "seed.json"})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)
	assert.Equal(t, "seed.json", cfg.MemorySeedFile)

	_, err = FromAppConfig(&config.Config{StoreBackend: "sheets"})
	assert.ErrorContains(t, err, "invalid backend type in config: sheets")

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.NoError(t, Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: "redis"}.Validate())
	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}

func TestCreateBackend_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vet.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	require.NoError(t, res.Store.Add(ctx, core.Expense{ID: "e1", Amount: 5, CreatedAt: "2024-06-01T10:00:00.000Z"}))
	got, err := res.Store.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Amount)
}

func TestCreateBackend_MemorySeeded(t *testing.T) {
	ctx := context.Background()
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[{"id":"s1","amount":2.5,"category":"Food","synced":true}]`), 0o644))

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, MemorySeedFile: seed})
	require.NoError(t, err)

	all, err := res.Store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "s1", all[0].ID)
	assert.True(t, all[0].Synced)
	assert.NoError(t, res.Cleanup())
}

func TestCreateBackend_Errors(t *testing.T) {
	ctx := context.Background()
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{oops`), 0o644))

	_, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, MemorySeedFile: bad})
	assert.ErrorContains(t, err, "failed to seed memory store")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewFactory(nil).CreateBackend(cancelled, Config{Type: MemoryBackend})
	assert.ErrorIs(t, err, context.Canceled)
}
