package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmorishita/penflow/internal/common"
	"github.com/tmorishita/penflow/internal/models"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.DB.Close() })
	return stores
}

func TestSQLiteStore_CRUD(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	s, err := stores.Registry.Lookup(models.CollectionChapters)
	require.NoError(t, err)

	now := time.Now().UnixMilli()
	c := &models.Chapter{
		Meta:  models.NewMeta("ch1", "p1", now),
		Title: "First",
		Order: 1,
	}

	require.NoError(t, s.Insert(ctx, c))

	got, err := s.Get(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, "First", got.(*models.Chapter).Title)
	assert.Equal(t, int64(1), got.RecordVersion())

	err = s.Insert(ctx, c)
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	c.Title = "Renamed"
	c.Touch(now + 1)
	require.NoError(t, s.Put(ctx, c))

	got, err = s.Get(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.(*models.Chapter).Title)
	assert.Equal(t, int64(2), got.RecordVersion())

	require.NoError(t, s.Delete(ctx, "ch1"))
	_, err = s.Get(ctx, "ch1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// deleting a missing id is a noop
	assert.NoError(t, s.Delete(ctx, "ch1"))
}

func TestSQLiteStore_ListByProject(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	s, err := stores.Registry.Lookup(models.CollectionScenes)
	require.NoError(t, err)

	now := time.Now().UnixMilli()
	for i, id := range []string{"s1", "s2", "s3"} {
		scene := &models.Scene{
			Meta:  models.NewMeta(id, "p1", now+int64(i)),
			Title: id,
		}
		require.NoError(t, s.Insert(ctx, scene))
	}
	other := &models.Scene{Meta: models.NewMeta("sx", "p2", now)}
	require.NoError(t, s.Insert(ctx, other))

	got, err := s.ListByProject(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, rec := range got {
		assert.Equal(t, "p1", rec.ProjectRef())
	}
}

func TestRegistry_UnknownCollection(t *testing.T) {
	stores := newTestStores(t)
	_, err := stores.Registry.Lookup(models.Collection("bogus"))
	assert.ErrorIs(t, err, common.ErrUnknownCollection)
}

func TestRegistry_Decode(t *testing.T) {
	stores := newTestStores(t)
	rec, err := stores.Registry.Decode(models.CollectionCharacters,
		[]byte(`{"id":"c1","projectId":"p1","name":"Ishikawa","_version":3,"updatedAt":10}`))
	require.NoError(t, err)
	ch, ok := rec.(*models.Character)
	require.True(t, ok)
	assert.Equal(t, "Ishikawa", ch.Name)
	assert.Equal(t, int64(3), ch.RecordVersion())
}

func TestSettingsStore_DefaultsAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	settings, err := stores.Settings.Get(ctx)
	require.NoError(t, err)
	assert.True(t, settings.SyncEnabled)
	assert.Equal(t, "manual", settings.ConflictResolution)

	require.NoError(t, stores.Settings.SetSyncEnabled(ctx, false))
	require.NoError(t, stores.Settings.SetConflictResolution(ctx, "remote"))

	settings, err = stores.Settings.Get(ctx)
	require.NoError(t, err)
	assert.False(t, settings.SyncEnabled)
	assert.Equal(t, "remote", settings.ConflictResolution)
}

func TestMetadataStore_LastSyncTime(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	ts, err := stores.Metadata.LastSyncTime(ctx)
	require.NoError(t, err)
	assert.Zero(t, ts)

	require.NoError(t, stores.Metadata.SetLastSyncTime(ctx, 1234567890))
	ts, err = stores.Metadata.LastSyncTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890), ts)
}

func TestHistoryStore_RecordAndTrim(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	scene := &models.Scene{Meta: models.NewMeta("s1", "p1", 1), Content: "draft"}
	require.NoError(t, stores.History.Record(ctx, models.CollectionScenes, "s1", "p1", scene, "create"))
	require.NoError(t, stores.History.Record(ctx, models.CollectionScenes, "s1", "p1", scene, "update"))

	entries, err := stores.History.ByEntity(ctx, models.CollectionScenes, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	n, err := stores.History.TrimOlderThan(ctx, time.Now().UnixMilli()+1000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestProgressStore_Accumulates(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	require.NoError(t, stores.Progress.AddProgress(ctx, "p1", 500, 10, "s1"))
	require.NoError(t, stores.Progress.AddProgress(ctx, "p1", 300, 5, "s1"))
	require.NoError(t, stores.Progress.AddProgress(ctx, "p1", 200, 5, "s2"))

	logs, err := stores.Progress.ByProject(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1000, logs[0].CharactersWritten)
	assert.Equal(t, 20, logs[0].TimeSpentMinutes)
	assert.ElementsMatch(t, []string{"s1", "s2"}, logs[0].SceneIDs)

	stats, err := stores.Progress.Stats(ctx, "p1", 30)
	require.NoError(t, err)
	assert.Equal(t, 1000, stats.TotalCharacters)
	assert.Equal(t, 1000, stats.MaxDaily)
	assert.Equal(t, 1, stats.ConsecutiveDays)
}
