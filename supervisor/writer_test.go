package supervisor

import (
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/require"

	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/infra"
)

func newTestWriter(store RecordStore) *recordWriter {
	w := newRecordWriter(store, infra.NewNopLogger(), queuedRecord("job-w"), 0, 3)
	w.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return w
}

func TestRecordWriterTerminalIsFinal(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	w := newTestWriter(store)
	ctx := t.Context()

	require.NoError(t, w.MarkRunning(ctx))
	require.NoError(t, w.Beat(ctx, 12.5))
	require.NoError(t, w.Finish(ctx, nil, ""))

	require.ErrorIs(t, w.Beat(ctx, 20), errRecordFinal)
	require.ErrorIs(t, w.Finish(ctx, errors.New("late"), ""), errRecordFinal)

	writes := store.writes()
	require.Len(t, writes, 3)
	final := writes[2]
	require.Equal(t, entity.JobStatusCompleted, final.Status)
	require.Nil(t, final.Error)
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.FinishedAt)
	require.NotNil(t, final.LastHeartbeat)
	require.InDelta(t, 12.5, *final.MemoryUsageMB, 0.001)
}

func TestRecordWriterRejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	w := newTestWriter(store)

	require.Error(t, w.Finish(t.Context(), nil, ""))
	require.Empty(t, store.writes())
	require.Equal(t, entity.JobStatusQueued, w.Snapshot().Status)

	require.NoError(t, w.Finish(t.Context(), errors.New("spawn failed"), ""))
	require.Equal(t, entity.JobStatusFailed, store.last().Status)
	require.Equal(t, "spawn failed", *store.last().Error)
}

func TestRecordWriterRetriesStoreErrors(t *testing.T) {
	t.Parallel()

	store := &memStore{failures: 2}
	w := newTestWriter(store)

	require.NoError(t, w.MarkRunning(t.Context()))
	require.Len(t, store.writes(), 1)
	require.Equal(t, entity.JobStatusRunning, store.last().Status)
}

func TestRecordWriterGivesUp(t *testing.T) {
	t.Parallel()

	store := &memStore{failures: 10}
	w := newTestWriter(store)

	err := w.MarkRunning(t.Context())
	require.Error(t, err)
	require.Empty(t, store.writes())
	require.Equal(t, 7, store.failures)
}
