package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/tmorishita/penflow/internal/dbx"
	"github.com/tmorishita/penflow/internal/logging"
	"github.com/tmorishita/penflow/internal/models"
)

// Entities is the write-side service for the synced collections. Every
// mutation stamps sync metadata, feeds the change sink and bumps the
// owning project so project listings sort by real activity.
type Entities struct {
	stores *Stores
	sink   ChangeSink
	logger logging.Logger
}

// NewEntities wires the service. A nil sink is allowed and disables
// outbound change propagation (used before the sync engine starts and in
// store-level tests).
func NewEntities(stores *Stores, sink ChangeSink, logger logging.Logger) *Entities {
	return &Entities{stores: stores, sink: sink, logger: logger}
}

func (e *Entities) enqueue(col models.Collection, id string, action models.ChangeAction) {
	if e.sink != nil {
		e.sink.Enqueue(col, id, action)
	}
}

func (e *Entities) CreateProject(ctx context.Context, input models.ProjectCreateInput) (*models.Project, error) {
	now := time.Now().UnixMilli()
	p := &models.Project{
		Meta:        models.NewMeta(uuid.New().String(), "", now),
		Title:       input.Title,
		Description: input.Description,
		Status:      models.ProjectDraft,
		Settings: models.ProjectSettings{
			WritingMode: "horizontal",
			FontSize:    16,
			Theme:       "auto",
			Goal:        models.WritingGoal{Type: "daily", Target: 1000},
		},
	}
	if err := e.insert(ctx, models.CollectionProjects, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Entities) CreateChapter(ctx context.Context, input models.ChapterCreateInput) (*models.Chapter, error) {
	order, err := e.nextOrder(ctx, models.CollectionChapters, input.ProjectID, "")
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	c := &models.Chapter{
		Meta:     models.NewMeta(uuid.New().String(), input.ProjectID, now),
		Title:    input.Title,
		Order:    order,
		Synopsis: input.Synopsis,
	}
	if err := e.insert(ctx, models.CollectionChapters, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Entities) CreateScene(ctx context.Context, input models.SceneCreateInput) (*models.Scene, error) {
	order, err := e.nextOrder(ctx, models.CollectionScenes, input.ProjectID, input.ChapterID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	s := &models.Scene{
		Meta:           models.NewMeta(uuid.New().String(), input.ProjectID, now),
		ChapterID:      input.ChapterID,
		Title:          input.Title,
		Content:        input.Content,
		Order:          order,
		CharacterCount: countCharacters(input.Content),
	}
	if err := e.insert(ctx, models.CollectionScenes, s); err != nil {
		return nil, err
	}
	if err := e.stores.History.Record(ctx, models.CollectionScenes, s.ID, s.ProjectID, s, "create"); err != nil {
		e.logger.Warn(ctx, "failed to record scene history", "sceneId", s.ID, "error", err)
	}
	return s, nil
}

func (e *Entities) CreateCharacter(ctx context.Context, input models.CharacterCreateInput) (*models.Character, error) {
	now := time.Now().UnixMilli()
	c := &models.Character{
		Meta: models.NewMeta(uuid.New().String(), input.ProjectID, now),
		Name: input.Name,
		Role: input.Role,
	}
	if err := e.insert(ctx, models.CollectionCharacters, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Entities) CreatePlot(ctx context.Context, input models.PlotCreateInput) (*models.Plot, error) {
	order, err := e.nextOrder(ctx, models.CollectionPlots, input.ProjectID, "")
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	p := &models.Plot{
		Meta:   models.NewMeta(uuid.New().String(), input.ProjectID, now),
		Title:  input.Title,
		Type:   input.Type,
		Status: input.Status,
		Order:  order,
	}
	if err := e.insert(ctx, models.CollectionPlots, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Entities) CreateWorldbuilding(ctx context.Context, input models.WorldbuildingCreateInput) (*models.Worldbuilding, error) {
	now := time.Now().UnixMilli()
	w := &models.Worldbuilding{
		Meta:     models.NewMeta(uuid.New().String(), input.ProjectID, now),
		Category: input.Category,
		Title:    input.Title,
		Content:  input.Content,
	}
	if err := e.insert(ctx, models.CollectionWorldbuilding, w); err != nil {
		return nil, err
	}
	return w, nil
}

// insert persists a freshly created record, enqueues the create and bumps
// the owning project.
func (e *Entities) insert(ctx context.Context, col models.Collection, rec models.Record) error {
	s, err := e.stores.Registry.Lookup(col)
	if err != nil {
		return err
	}
	if err := s.Insert(ctx, rec); err != nil {
		return err
	}
	e.enqueue(col, rec.RecordID(), models.ChangeCreate)
	if rec.ProjectRef() != "" {
		e.touchProject(ctx, rec.ProjectRef())
	}
	e.logger.Debug(ctx, "created record", "collection", col, "id", rec.RecordID())
	return nil
}

// Get returns one record from col.
func (e *Entities) Get(ctx context.Context, col models.Collection, id string) (models.Record, error) {
	s, err := e.stores.Registry.Lookup(col)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ListByProject returns col's records owned by projectID.
func (e *Entities) ListByProject(ctx context.Context, col models.Collection, projectID string) ([]models.Record, error) {
	s, err := e.stores.Registry.Lookup(col)
	if err != nil {
		return nil, err
	}
	return s.ListByProject(ctx, projectID)
}

// Update applies a field patch to one record. Metadata fields are managed
// here and cannot be patched directly: UpdatedAt and Version are bumped on
// every call, a scene's character count is recomputed when its content
// changes, content changes snapshot the scene into history, and growth in
// the count accumulates into the day's progress log.
func (e *Entities) Update(ctx context.Context, col models.Collection, id string, patch map[string]any) (models.Record, error) {
	s, err := e.stores.Registry.Lookup(col)
	if err != nil {
		return nil, err
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := applyPatch(s, rec, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to patch %s/%s: %w", col, id, err)
	}
	updated.Touch(time.Now().UnixMilli())

	contentChanged := false
	written := 0
	if scene, ok := updated.(*models.Scene); ok {
		if _, ok := patch["content"]; ok {
			prev := 0
			if old, ok := rec.(*models.Scene); ok {
				prev = old.CharacterCount
			}
			scene.CharacterCount = countCharacters(scene.Content)
			written = scene.CharacterCount - prev
			contentChanged = true
		}
	}

	if err := s.Put(ctx, updated); err != nil {
		return nil, err
	}
	if contentChanged {
		if err := e.stores.History.Record(ctx, col, id, updated.ProjectRef(), updated, "update"); err != nil {
			e.logger.Warn(ctx, "failed to record scene history", "sceneId", id, "error", err)
		}
		if written > 0 {
			if err := e.stores.Progress.AddProgress(ctx, updated.ProjectRef(), written, 0, id); err != nil {
				e.logger.Warn(ctx, "failed to log writing progress", "sceneId", id, "error", err)
			}
		}
	}

	e.enqueue(col, id, models.ChangeUpdate)
	if updated.ProjectRef() != "" {
		e.touchProject(ctx, updated.ProjectRef())
	}
	return updated, nil
}

// Delete removes a record. Deleting a project cascades over every child
// collection plus history and progress logs in a single transaction, and
// a delete is enqueued for the project and each removed synced child so
// the remote store converges.
func (e *Entities) Delete(ctx context.Context, col models.Collection, id string) error {
	if col == models.CollectionProjects {
		return e.deleteProject(ctx, id)
	}

	s, err := e.stores.Registry.Lookup(col)
	if err != nil {
		return err
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Delete(ctx, id); err != nil {
		return err
	}
	e.enqueue(col, id, models.ChangeDelete)
	if rec.ProjectRef() != "" {
		e.touchProject(ctx, rec.ProjectRef())
	}
	e.logger.Debug(ctx, "deleted record", "collection", col, "id", id)
	return nil
}

func (e *Entities) deleteProject(ctx context.Context, projectID string) error {
	// Child ids are collected inside the cascade transaction so the
	// enqueued remote deletes match exactly the rows it removes.
	children := make(map[models.Collection][]string)
	err := dbx.WithTx(ctx, e.stores.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		reg := e.stores.Registry.Bind(tx)
		for _, col := range models.ProjectScoped() {
			s, err := reg.Lookup(col)
			if err != nil {
				return err
			}
			recs, err := s.ListByProject(ctx, projectID)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				children[col] = append(children[col], rec.RecordID())
			}
		}

		for _, table := range []string{"chapters", "scenes", "characters", "plots", "worldbuilding", "history", "progress_logs"} {
			query := fmt.Sprintf(`DELETE FROM %s WHERE project_id = ?`, table)
			if _, err := tx.ExecContext(ctx, query, projectID); err != nil {
				return fmt.Errorf("failed to cascade into %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.enqueue(models.CollectionProjects, projectID, models.ChangeDelete)
	for col, ids := range children {
		for _, id := range ids {
			e.enqueue(col, id, models.ChangeDelete)
		}
	}
	e.logger.Info(ctx, "deleted project", "projectId", projectID)
	return nil
}

// touchProject bumps the parent project's activity metadata without
// enqueueing a change: the bump is local bookkeeping, not content worth a
// round trip of its own.
func (e *Entities) touchProject(ctx context.Context, projectID string) {
	s, err := e.stores.Registry.Lookup(models.CollectionProjects)
	if err != nil {
		return
	}
	rec, err := s.Get(ctx, projectID)
	if err != nil {
		e.logger.Warn(ctx, "failed to touch project", "projectId", projectID, "error", err)
		return
	}
	rec.Touch(time.Now().UnixMilli())
	if err := s.Put(ctx, rec); err != nil {
		e.logger.Warn(ctx, "failed to touch project", "projectId", projectID, "error", err)
	}
}

// nextOrder computes the next ordinal for ordered collections. Scenes
// order within their chapter; chapters and plots within the project.
func (e *Entities) nextOrder(ctx context.Context, col models.Collection, projectID, chapterID string) (int, error) {
	s, err := e.stores.Registry.Lookup(col)
	if err != nil {
		return 0, err
	}
	recs, err := s.ListByProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if col == models.CollectionScenes && chapterID != "" {
		n := 0
		for _, rec := range recs {
			if scene, ok := rec.(*models.Scene); ok && scene.ChapterID == chapterID {
				n++
			}
		}
		return n + 1, nil
	}
	return len(recs) + 1, nil
}

// applyPatch merges caller fields over the record's JSON form. Keys for
// managed metadata are ignored so callers cannot forge sync bookkeeping.
func applyPatch(s RecordStore, rec models.Record, patch map[string]any) (models.Record, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	for k, v := range patch {
		switch k {
		case "id", "projectId", "createdAt", "updatedAt", "syncedAt", "_version":
			continue
		}
		m[k] = v
	}
	merged, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return s.Decode(merged)
}

// countCharacters counts the non-whitespace runes of scene content.
func countCharacters(content string) int {
	n := 0
	for _, r := range content {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
