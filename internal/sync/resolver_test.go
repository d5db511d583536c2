package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmorishita/penflow/internal/models"
)

func fixedPolicy(p Policy) PolicyFunc {
	return func() Policy { return p }
}

func TestResolver_ForcedPolicies(t *testing.T) {
	local := scene(4, 100, "mine")
	remote := scene(3, 200, "theirs")

	r := NewResolver(fixedPolicy(PolicyLocal))
	res, err := r.Resolve(models.CollectionScenes, local, remote)
	require.NoError(t, err)
	assert.False(t, res.Pending)
	assert.Equal(t, SideLocal, res.Winner)

	r = NewResolver(fixedPolicy(PolicyRemote))
	res, err = r.Resolve(models.CollectionScenes, local, remote)
	require.NoError(t, err)
	assert.Equal(t, SideRemote, res.Winner)
}

func TestResolver_LastWriteWins(t *testing.T) {
	r := NewResolver(fixedPolicy(Policy("")))

	res, err := r.Resolve(models.CollectionScenes, scene(4, 600, "newer local"), scene(3, 500, "older remote"))
	require.NoError(t, err)
	assert.Equal(t, SideLocal, res.Winner)

	res, err = r.Resolve(models.CollectionScenes, scene(4, 500, "older local"), scene(3, 600, "newer remote"))
	require.NoError(t, err)
	assert.Equal(t, SideRemote, res.Winner)

	// ties go to remote
	res, err = r.Resolve(models.CollectionScenes, scene(4, 500, "a"), scene(3, 500, "b"))
	require.NoError(t, err)
	assert.Equal(t, SideRemote, res.Winner)
}

func TestResolver_ManualParksConflict(t *testing.T) {
	r := NewResolver(nil) // defaults to manual
	local := scene(4, 500, "mine")
	remote := scene(3, 600, "theirs")

	res, err := r.Resolve(models.CollectionScenes, local, remote)
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.True(t, r.IsPending("s1"))
	assert.True(t, r.HasPending())

	pending := r.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "s1", pending[0].ID)
	assert.Equal(t, models.CollectionScenes, pending[0].Collection)
	assert.Contains(t, pending[0].Fields, "content")

	// re-detecting the same record replaces, not duplicates
	_, err = r.Resolve(models.CollectionScenes, local, remote)
	require.NoError(t, err)
	assert.Len(t, r.Pending(), 1)

	pc, ok := r.Take("s1")
	require.True(t, ok)
	assert.Equal(t, "s1", pc.ID)
	assert.False(t, r.HasPending())

	_, ok = r.Take("s1")
	assert.False(t, ok)
}
