package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmorishita/penflow/internal/models"
)

func scene(version, updatedAt int64, content string) *models.Scene {
	return &models.Scene{
		Meta:    models.Meta{ID: "s1", ProjectID: "p1", UpdatedAt: updatedAt, Version: version},
		Title:   "Opening",
		Content: content,
	}
}

func TestDetectDivergence(t *testing.T) {
	tests := []struct {
		name   string
		local  *models.Scene
		remote *models.Scene
		want   bool
	}{
		{
			name:   "opposed orderings fork",
			local:  scene(4, 500, "a"),
			remote: scene(3, 600, "b"),
			want:   true,
		},
		{
			name:   "same version same timestamp",
			local:  scene(3, 500, "a"),
			remote: scene(3, 500, "a"),
			want:   false,
		},
		{
			name:   "remote strict descendant",
			local:  scene(1, 100, "a"),
			remote: scene(2, 200, "b"),
			want:   false,
		},
		{
			name:   "local strict descendant",
			local:  scene(5, 900, "a"),
			remote: scene(2, 200, "b"),
			want:   false,
		},
		{
			name:   "version differs, timestamp equal",
			local:  scene(3, 500, "a"),
			remote: scene(4, 500, "b"),
			want:   false,
		},
		{
			// both devices edited the same ancestor once; same version
			// count, different edit paths
			name:   "equal versions, independent edits",
			local:  scene(3, 500, "a"),
			remote: scene(3, 600, "b"),
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDivergence(tt.local, tt.remote))
		})
	}
}

func TestDetectDivergence_Symmetric(t *testing.T) {
	a := scene(3, 500, "a")
	b := scene(3, 500, "b")
	assert.False(t, DetectDivergence(a, b))
	assert.False(t, DetectDivergence(b, a))

	c := scene(4, 400, "c")
	d := scene(3, 600, "d")
	assert.True(t, DetectDivergence(c, d))
	assert.True(t, DetectDivergence(d, c))

	e := scene(3, 500, "e")
	f := scene(3, 600, "f")
	assert.True(t, DetectDivergence(e, f))
	assert.True(t, DetectDivergence(f, e))
}

func TestConflictFields(t *testing.T) {
	local := scene(4, 500, "the snow fell")
	local.Tags = []string{"draft"}
	remote := scene(3, 600, "the rain fell")
	remote.Tags = []string{"draft"}

	fields, err := ConflictFields(local, remote)
	require.NoError(t, err)

	assert.Contains(t, fields, "content")
	assert.Contains(t, fields, "updatedAt")
	assert.NotContains(t, fields, "title")
	assert.NotContains(t, fields, "tags")
	// bookkeeping keys are never reported
	assert.NotContains(t, fields, "_version")
}

func TestConflictFields_EqualRecords(t *testing.T) {
	a := scene(3, 500, "same")
	b := scene(3, 500, "same")
	fields, err := ConflictFields(a, b)
	require.NoError(t, err)
	assert.Empty(t, fields)
}
