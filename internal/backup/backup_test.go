package backup

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmorishita/penflow/internal/config"
	"github.com/tmorishita/penflow/internal/logging"
	"github.com/tmorishita/penflow/internal/models"
	"github.com/tmorishita/penflow/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Stores, *store.Entities) {
	t.Helper()
	stores, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.DB.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.S3Bucket = "penflow-backups"

	entities := store.NewEntities(stores, nil, logger)
	return NewService(stores, cfg, logger), stores, entities
}

func seedProject(t *testing.T, entities *store.Entities) *models.Project {
	t.Helper()
	ctx := context.Background()
	p, err := entities.CreateProject(ctx, models.ProjectCreateInput{Title: "Snowfall"})
	require.NoError(t, err)
	ch, err := entities.CreateChapter(ctx, models.ChapterCreateInput{ProjectID: p.ID, Title: "One"})
	require.NoError(t, err)
	_, err = entities.CreateScene(ctx, models.SceneCreateInput{ProjectID: p.ID, ChapterID: ch.ID, Title: "Opening", Content: "snow"})
	require.NoError(t, err)
	_, err = entities.CreateCharacter(ctx, models.CharacterCreateInput{ProjectID: p.ID, Name: "Yuki"})
	require.NoError(t, err)
	return p
}

func TestSnapshotProject(t *testing.T) {
	ctx := context.Background()
	svc, stores, entities := newTestService(t)
	p := seedProject(t, entities)
	require.NoError(t, stores.Progress.AddProgress(ctx, p.ID, 500, 10, ""))

	snap, err := svc.SnapshotProject(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, formatVersion, snap.FormatVersion)
	assert.Equal(t, p.ID, snap.ProjectID)
	assert.Len(t, snap.Collections[models.CollectionProjects], 1)
	assert.Len(t, snap.Collections[models.CollectionChapters], 1)
	assert.Len(t, snap.Collections[models.CollectionScenes], 1)
	assert.Len(t, snap.Collections[models.CollectionCharacters], 1)
	assert.Len(t, snap.ProgressLogs, 1)
}

func TestRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, stores, entities := newTestService(t)
	p := seedProject(t, entities)
	require.NoError(t, stores.Progress.AddProgress(ctx, p.ID, 500, 10, ""))

	snap, err := svc.SnapshotProject(ctx, p.ID)
	require.NoError(t, err)

	// wipe the project, then restore it from the snapshot
	require.NoError(t, entities.Delete(ctx, models.CollectionProjects, p.ID))
	require.NoError(t, svc.Restore(ctx, snap))

	projects, err := stores.Registry.Lookup(models.CollectionProjects)
	require.NoError(t, err)
	got, err := projects.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Snowfall", got.(*models.Project).Title)

	for _, col := range models.ProjectScoped() {
		rs, err := stores.Registry.Lookup(col)
		require.NoError(t, err)
		recs, err := rs.ListByProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, recs, len(snap.Collections[col]), "collection %s", col)
	}

	logs, err := stores.Progress.ByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRestoreRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.Restore(context.Background(), &Snapshot{FormatVersion: 99})
	assert.Error(t, err)
}

type capturePutter struct {
	input *s3.PutObjectInput
}

func (c *capturePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	c.input = in
	return &s3.PutObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	svc, _, entities := newTestService(t)
	p := seedProject(t, entities)

	capture := &capturePutter{}
	svc.newClient = func(ctx context.Context) (ObjectPutter, error) { return capture, nil }

	snap, err := svc.SnapshotProject(ctx, p.ID)
	require.NoError(t, err)

	key, err := svc.Upload(ctx, snap)
	require.NoError(t, err)

	require.NotNil(t, capture.input)
	assert.Equal(t, "penflow-backups", *capture.input.Bucket)
	assert.Equal(t, key, *capture.input.Key)
	assert.Contains(t, key, p.ID)

	body, err := io.ReadAll(capture.input.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Snowfall")
}
