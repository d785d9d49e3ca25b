package worker

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vet/internal/amqp"
	"vet/internal/core"
	"vet/internal/services"
)

type fakeSyncer struct {
	calls  int
	result services.SyncResult
	err    error
}

func (f *fakeSyncer) SyncOnce(context.Context) (services.SyncResult, error) {
	f.calls++
	return f.result, f.err
}

func TestHandleChangeMessage(t *testing.T) {
	tests := []struct {
		name      string
		op        core.ChangeOp
		err       error
		wantCalls int
		wantErr   error
	}{
		{"created triggers a pass", core.OpCreated, nil, 1, nil},
		{"edited triggers a pass", core.OpEdited, nil, 1, nil},
		{"synced is skipped", core.OpSynced, nil, 0, nil},
		{"failed pass is acked", core.OpCreated, fmt.Errorf("push: %w", core.ErrSyncFailed), 1, nil},
		{"cancellation is returned", core.OpEdited, context.Canceled, 1, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &fakeSyncer{result: services.SyncResult{Submitted: 1, Synced: 1}, err: tt.err}
			w := NewSyncWorker(syncer)

			err := w.HandleChangeMessage(context.Background(), &amqp.ExpenseChangedMessage{Op: tt.op, IDs: []string{"e1"}})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, syncer.calls)
		})
	}
}

func TestStartupSyncCheck(t *testing.T) {
	syncer := &fakeSyncer{result: services.SyncResult{NothingToSync: true}}
	require.NoError(t, NewSyncWorker(syncer).StartupSyncCheck(context.Background()))
	assert.Equal(t, 1, syncer.calls)

	syncer = &fakeSyncer{result: services.SyncResult{Submitted: 2, Synced: 1, Unacknowledged: []string{"e2"}}}
	require.NoError(t, NewSyncWorker(syncer).StartupSyncCheck(context.Background()))

	syncer = &fakeSyncer{err: core.ErrSyncFailed}
	assert.ErrorIs(t, NewSyncWorker(syncer).StartupSyncCheck(context.Background()), core.ErrSyncFailed)
}
