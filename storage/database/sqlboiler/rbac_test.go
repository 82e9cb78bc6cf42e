package boiledrepos

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/rbac"
	appfs "github.com/trezcool/ratiba/fs"
	"github.com/trezcool/ratiba/tests"
)

func TestRBACStore(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	svc := rbac.NewService(NewRBACStore(db.DB), testutil.NewLogger())

	data, err := appfs.FS.ReadFile(appfs.DefaultSeedPath)
	require.NoError(t, err)
	seed, err := rbac.ParseSeed(data)
	require.NoError(t, err)

	require.NoError(t, svc.Seed(ctx, seed))
	require.NoError(t, svc.Seed(ctx, seed), "seeding twice")

	assert.NoError(t, svc.Check(ctx, 1, rbac.Lesson(rbac.ActionWrite)))
	assert.NoError(t, svc.Check(ctx, 2, rbac.Lesson(rbac.ActionRead)))
	assert.True(t, errors.Is(svc.Check(ctx, 2, rbac.Lesson(rbac.ActionWrite)), core.ErrForbidden))
	assert.True(t, errors.Is(svc.Check(ctx, 3, rbac.Lesson(rbac.ActionRead)), core.ErrForbidden))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM permission"))
	assert.Equal(t, len(seed.Permissions), count)
}
