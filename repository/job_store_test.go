package repository_test

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/repository"
)

func newTestStore(t *testing.T) (*repository.JobStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return repository.NewJobStore(client), mr
}

func TestJobStorePutGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := t.Context()

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	record := &entity.JobRecord{
		ID:                "job-1",
		Kind:              entity.JobKindCrawl,
		Status:            entity.JobStatusQueued,
		CreatedAt:         created,
		RequestParameters: map[string]any{"starting_url": "https://example.com"},
	}
	require.NoError(t, store.Put(ctx, record, time.Hour))

	require.True(t, mr.Exists("job:job-1"))
	require.Equal(t, time.Hour, mr.TTL("job:job-1"))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusQueued, got.Status)
	require.Nil(t, got.Error)
	require.True(t, created.Equal(got.CreatedAt))
	require.Equal(t, "https://example.com", got.RequestParameters["starting_url"])
}

func TestJobStoreWriteRefreshesTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := t.Context()

	record := &entity.JobRecord{ID: "job-ttl", Kind: entity.JobKindIndex, Status: entity.JobStatusQueued}
	require.NoError(t, store.Put(ctx, record, 10*time.Second))

	mr.FastForward(8 * time.Second)
	record.Status = entity.JobStatusRunning
	require.NoError(t, store.Put(ctx, record, 10*time.Second))

	mr.FastForward(8 * time.Second)
	got, err := store.Get(ctx, "job-ttl")
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusRunning, got.Status)

	mr.FastForward(3 * time.Second)
	_, err = store.Get(ctx, "job-ttl")
	require.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestJobStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := t.Context()

	require.ErrorIs(t, store.Delete(ctx, "missing"), repository.ErrJobNotFound)

	require.NoError(t, store.Put(ctx, &entity.JobRecord{ID: "job-2", Status: entity.JobStatusFailed}, time.Minute))
	require.NoError(t, store.Delete(ctx, "job-2"))

	_, err := store.Get(ctx, "job-2")
	require.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestJobStoreList(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := t.Context()

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(ctx, &entity.JobRecord{
			ID:        id,
			Status:    entity.JobStatusQueued,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}, time.Hour))
	}
	require.NoError(t, mr.Set("unrelated", "x"))

	records, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "c", records[0].ID)
	require.Equal(t, "a", records[2].ID)

	records, err = store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestJobStoreBackendFailure(t *testing.T) {
	store, mr := newTestStore(t)
	mr.SetError("LOADING dataset in memory")

	err := store.Put(t.Context(), &entity.JobRecord{ID: "x"}, time.Minute)
	var storeErr *repository.StoreError
	require.True(t, errors.As(err, &storeErr))
	require.Equal(t, "put", storeErr.Op)

	_, err = store.Get(t.Context(), "x")
	require.True(t, errors.As(err, &storeErr))
}
