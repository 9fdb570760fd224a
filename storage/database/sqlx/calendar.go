package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/calendar"
)

type (
	roomRow struct {
		ID       string `db:"id"`
		Name     string `db:"name"`
		Building string `db:"building"`
		Capacity int    `db:"capacity"`
		IsActive bool   `db:"is_active"`
	}

	eventRow struct {
		ID          string      `db:"id"`
		Title       string      `db:"title"`
		Description string      `db:"description"`
		ClassID     null.String `db:"class_id"`
		RoomID      null.String `db:"room_id"`
		StartsAt    time.Time   `db:"starts_at"`
		EndsAt      time.Time   `db:"ends_at"`
		CreatedBy   string      `db:"created_by"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	calendarRepository struct {
		db *sqlx.DB
	}
)

var _ calendar.Repository = (*calendarRepository)(nil) // interface compliance check

func NewCalendarRepository(db *sqlx.DB) calendar.Repository {
	return &calendarRepository{db: db}
}

func boilEvent(evt calendar.Event) eventRow {
	return eventRow{
		ID:          evt.ID,
		Title:       evt.Title,
		Description: evt.Description,
		ClassID:     nullString(evt.ClassID),
		RoomID:      nullString(evt.RoomID),
		StartsAt:    evt.StartsAt.UTC(),
		EndsAt:      evt.EndsAt.UTC(),
		CreatedBy:   evt.CreatedBy,
		CreatedAt:   evt.CreatedAt.UTC(),
		UpdatedAt:   evt.UpdatedAt.UTC(),
	}
}

func (r eventRow) unboil() calendar.Event {
	return calendar.Event{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		ClassID:     r.ClassID.String,
		RoomID:      r.RoomID.String,
		StartsAt:    r.StartsAt.UTC(),
		EndsAt:      r.EndsAt.UTC(),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func trapRoomNameExists(err error, msg string) error {
	if pgCode(err) == uniqueViolation {
		return calendar.ErrRoomNameExists
	}
	return errors.Wrap(err, msg)
}

func (repo *calendarRepository) CreateRoom(ctx context.Context, room calendar.Room) (calendar.Room, error) {
	q := `INSERT INTO rooms (id, name, building, capacity, is_active) VALUES (:id, :name, :building, :capacity, :is_active)`
	if _, err := repo.db.NamedExecContext(ctx, q, roomRow(room)); err != nil {
		return calendar.Room{}, trapRoomNameExists(err, "inserting room")
	}
	return room, nil
}

func (repo *calendarRepository) QueryRooms(ctx context.Context, activeOnly bool) ([]calendar.Room, error) {
	q := `SELECT * FROM rooms`
	if activeOnly {
		q += ` WHERE is_active`
	}
	var rows []roomRow
	if err := repo.db.SelectContext(ctx, &rows, q+` ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}
	rooms := make([]calendar.Room, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, calendar.Room(r))
	}
	return rooms, nil
}

func (repo *calendarRepository) GetRoom(ctx context.Context, id string) (calendar.Room, error) {
	if !isUUID(id) {
		return calendar.Room{}, calendar.ErrRoomNotFound
	}
	var r roomRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM rooms WHERE id = $1`, id); err != nil {
		return calendar.Room{}, trapNoRows(err, calendar.ErrRoomNotFound, "finding room")
	}
	return calendar.Room(r), nil
}

func (repo *calendarRepository) UpdateRoom(ctx context.Context, room calendar.Room) (calendar.Room, error) {
	q := `UPDATE rooms SET name = :name, building = :building, capacity = :capacity, is_active = :is_active WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, roomRow(room))
	if err != nil {
		return calendar.Room{}, trapRoomNameExists(err, "updating room")
	}
	if err = checkAffected(res, nil, calendar.ErrRoomNotFound, "updating room"); err != nil {
		return calendar.Room{}, err
	}
	return room, nil
}

func (repo *calendarRepository) DeleteRoom(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	return checkAffected(res, err, calendar.ErrRoomNotFound, "deleting room")
}

const overlapQuery = `SELECT EXISTS (
	SELECT 1 FROM calendar_events
	WHERE room_id = $1 AND id::text <> $2 AND starts_at < $4 AND ends_at > $3)`

func (repo *calendarRepository) RoomHasOverlap(ctx context.Context, roomID string, start, end time.Time, excludeEventID string) (bool, error) {
	var overlap bool
	err := repo.db.GetContext(ctx, &overlap, overlapQuery, roomID, excludeEventID, start.UTC(), end.UTC())
	return overlap, errors.Wrap(err, "checking room overlap")
}

// saveEvent locks the room row, so that two bookings of a room are checked one after the other.
// the exclusion constraint of calendar_events backs the check.
func (repo *calendarRepository) saveEvent(ctx context.Context, evt calendar.Event, q string, notFound error) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if evt.RoomID != "" {
			var id string
			if err := tx.GetContext(ctx, &id, `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`, evt.RoomID); err != nil {
				return trapNoRows(err, calendar.ErrRoomNotFound, "locking room")
			}
			var overlap bool
			err := tx.GetContext(ctx, &overlap, overlapQuery, evt.RoomID, evt.ID, evt.StartsAt.UTC(), evt.EndsAt.UTC())
			if err != nil {
				return errors.Wrap(err, "checking room overlap")
			}
			if overlap {
				return calendar.ErrRoomUnavailable
			}
		}

		res, err := tx.NamedExecContext(ctx, q, boilEvent(evt))
		if err != nil {
			switch pgCode(err) {
			case exclusionViolation:
				return calendar.ErrRoomUnavailable
			case uniqueViolation:
				return core.ErrConflict
			case foreignKeyViolation:
				// the room was deleted since it was checked
				if pgConstraint(err) == "calendar_events_room_id_fkey" {
					return calendar.ErrRoomNotFound
				}
			}
			return errors.Wrap(err, "saving event")
		}
		if notFound != nil {
			return checkAffected(res, nil, notFound, "saving event")
		}
		return nil
	})
}

func (repo *calendarRepository) CreateEvent(ctx context.Context, evt calendar.Event) (calendar.Event, error) {
	q := `INSERT INTO calendar_events (id, title, description, class_id, room_id, starts_at, ends_at, created_by, created_at, updated_at)
		VALUES (:id, :title, :description, :class_id, :room_id, :starts_at, :ends_at, :created_by, :created_at, :updated_at)`
	if err := repo.saveEvent(ctx, evt, q, nil); err != nil {
		return calendar.Event{}, err
	}
	return evt, nil
}

func (repo *calendarRepository) UpdateEvent(ctx context.Context, evt calendar.Event) (calendar.Event, error) {
	q := `UPDATE calendar_events SET title = :title, description = :description, class_id = :class_id, room_id = :room_id,
		starts_at = :starts_at, ends_at = :ends_at, updated_at = :updated_at
		WHERE id = :id`
	if err := repo.saveEvent(ctx, evt, q, calendar.ErrEventNotFound); err != nil {
		return calendar.Event{}, err
	}
	return evt, nil
}

func (repo *calendarRepository) GetEvent(ctx context.Context, id string) (calendar.Event, error) {
	if !isUUID(id) {
		return calendar.Event{}, calendar.ErrEventNotFound
	}
	var r eventRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM calendar_events WHERE id = $1`, id); err != nil {
		return calendar.Event{}, trapNoRows(err, calendar.ErrEventNotFound, "finding event")
	}
	return r.unboil(), nil
}

func (repo *calendarRepository) QueryEvents(ctx context.Context, filter calendar.EventFilter) ([]calendar.Event, error) {
	var w where
	if filter.RoomID != "" {
		w.add("room_id::text = ?", filter.RoomID)
	}
	if filter.ClassID != "" {
		w.add("class_id::text = ?", filter.ClassID)
	}
	if !filter.From.IsZero() {
		w.add("ends_at > ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		w.add("starts_at < ?", filter.To.UTC())
	}

	var rows []eventRow
	q := "SELECT * FROM calendar_events" + w.String() + " ORDER BY starts_at"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	events := make([]calendar.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.unboil())
	}
	return events, nil
}

func (repo *calendarRepository) DeleteEvent(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	return checkAffected(res, err, calendar.ErrEventNotFound, "deleting event")
}
