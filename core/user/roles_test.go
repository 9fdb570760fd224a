package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/database/inmem"
	"github.com/trezcool/campus/tests"
)

func newResolver(t *testing.T, cache user.RoleCache) (*user.RoleResolver, user.Repository, *testutil.Logger) {
	t.Helper()
	conf := testutil.NewConfig()
	conf.Roles.AdminEmails = []string{" Boss@Campus.cd "}
	conf.Roles.ProfessorEmails = []string{"prof@campus.cd", "boss@campus.cd"}
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	logger := new(testutil.Logger)
	return user.NewRoleResolver(conf, repo, cache, logger), repo, logger
}

func TestRoleResolver_ResolveRole(t *testing.T) {
	rr, _, _ := newResolver(t, user.NewMemoryRoleCache(time.Minute))

	assert.Equal(t, user.RoleAdmin, rr.ResolveRole("boss@campus.cd"), "admin wins over professor")
	assert.Equal(t, user.RoleProfessor, rr.ResolveRole(" PROF@campus.cd"))
	assert.Equal(t, user.RoleStudent, rr.ResolveRole("anyone@campus.cd"))
	assert.Equal(t, user.RoleStudent, rr.ResolveRole(""))
}

func TestRoleResolver_EnsureCorrectRole(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes & creates the professor profile", func(t *testing.T) {
		rr, repo, logger := newResolver(t, user.NewMemoryRoleCache(time.Minute))
		usr := testutil.CreateUser(t, repo, "Prof", "prof@campus.cd", "pwd", user.RoleStudent, true)

		updated, changed, err := rr.EnsureCorrectRole(ctx, usr)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, user.RoleProfessor, updated.Role)

		stored, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		assert.Equal(t, user.RoleProfessor, stored.Role)
		_, err = repo.GetProfessorProfile(ctx, usr.ID)
		assert.NoError(t, err)
		assert.Contains(t, logger.Entries(), "INFO: user "+usr.ID+" role changed: student -> professor")

		// cooling down: the stored role is trusted
		stored.Role = user.RoleStudent
		_, err = repo.UpdateUser(ctx, stored)
		require.NoError(t, err)
		_, changed, err = rr.EnsureCorrectRole(ctx, stored)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("demotes & drops the professor profile", func(t *testing.T) {
		rr, repo, _ := newResolver(t, user.NewMemoryRoleCache(time.Minute))
		usr := testutil.CreateUser(t, repo, "Former", "former@campus.cd", "pwd", user.RoleProfessor, true)
		_, err := repo.SaveProfessorProfile(ctx, user.ProfessorProfile{UserID: usr.ID})
		require.NoError(t, err)

		updated, changed, err := rr.EnsureCorrectRole(ctx, usr)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, user.RoleStudent, updated.Role)
		_, err = repo.GetProfessorProfile(ctx, usr.ID)
		assert.ErrorIs(t, err, user.ErrProfileNotFound)
	})

	t.Run("unchanged", func(t *testing.T) {
		rr, repo, _ := newResolver(t, user.NewMemoryRoleCache(time.Minute))
		usr := testutil.CreateUser(t, repo, "Boss", "boss@campus.cd", "pwd", user.RoleAdmin, true)

		updated, changed, err := rr.EnsureCorrectRole(ctx, usr)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, usr, updated)
	})

	t.Run("cache errors never block", func(t *testing.T) {
		rr, repo, logger := newResolver(t, brokenCache{})
		usr := testutil.CreateUser(t, repo, "Prof", "prof@campus.cd", "pwd", user.RoleStudent, true)

		updated, changed, err := rr.EnsureCorrectRole(ctx, usr)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, user.RoleStudent, updated.Role)
		assert.Len(t, logger.Entries(), 1)
	})
}

type brokenCache struct{}

func (brokenCache) Begin(context.Context, string) (bool, error) { return false, errors.New("redis down") }
func (brokenCache) Done(context.Context, string, bool) error    { return nil }
