package sqlxrepos_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/calendar"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/database"
	sqlxrepos "github.com/trezcool/campus/storage/database/sqlx"
	"github.com/trezcool/campus/tests"
)

// prepareDB connects to TEST_DATABASE_URL, skipping the test when it is not set.
func prepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	db, err := database.OpenURL(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewUserRepository(prepareDB(t))

	email := uuid.New().String()[:8] + "@test.cd"
	usr := testutil.CreateUser(t, repo, "Sqlx", email, "pwd", user.RoleStudent, true)

	got, err := repo.GetUser(ctx, user.GetFilter{Email: email})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.NoError(t, got.CheckPassword("pwd"))

	_, err = repo.CreateUser(ctx, user.User{ID: uuid.New().String(), Name: "Dup", Email: email})
	assert.Error(t, err, "emails are unique")

	got.Role = user.RoleProfessor
	_, err = repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	_, err = repo.SaveProfessorProfile(ctx, user.ProfessorProfile{UserID: got.ID, Title: "Dr"})
	require.NoError(t, err)
	prof, err := repo.GetProfessorProfile(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr", prof.Title)

	n, err := repo.DeleteUsersByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = repo.GetUser(ctx, user.GetFilter{ID: got.ID})
	assert.ErrorIs(t, err, user.ErrNotFound)
	_, err = repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestCalendarRepository_overlaps(t *testing.T) {
	ctx := context.Background()
	db := prepareDB(t)
	repo := sqlxrepos.NewCalendarRepository(db)
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Booker", uuid.New().String()[:8]+"@test.cd", "", user.RoleAdmin, true)

	room, err := repo.CreateRoom(ctx, calendar.Room{ID: uuid.New().String(), Name: "Room " + uuid.New().String()[:8], IsActive: true})
	require.NoError(t, err)
	_, err = repo.CreateRoom(ctx, calendar.Room{ID: uuid.New().String(), Name: room.Name, IsActive: true})
	assert.ErrorIs(t, err, calendar.ErrRoomNameExists)

	at := func(hour int) time.Time { return time.Date(2026, 11, 2, hour, 0, 0, 0, time.UTC) }
	event := func(start, end int) calendar.Event {
		now := time.Now().UTC()
		return calendar.Event{
			ID: uuid.New().String(), Title: "Event", RoomID: room.ID,
			StartsAt: at(start), EndsAt: at(end), CreatedBy: usr.ID, CreatedAt: now, UpdatedAt: now,
		}
	}

	lecture, err := repo.CreateEvent(ctx, event(10, 11))
	require.NoError(t, err)
	_, err = repo.CreateEvent(ctx, event(9, 12))
	assert.ErrorIs(t, err, calendar.ErrRoomUnavailable)
	_, err = repo.CreateEvent(ctx, event(11, 12))
	assert.NoError(t, err, "back to back")

	busy, err := repo.RoomHasOverlap(ctx, room.ID, at(10), at(11), lecture.ID)
	require.NoError(t, err)
	assert.False(t, busy, "the excluded event does not count")

	lecture.EndsAt = at(12)
	_, err = repo.UpdateEvent(ctx, lecture)
	assert.ErrorIs(t, err, calendar.ErrRoomUnavailable)
}
