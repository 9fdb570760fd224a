package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/calendar"
)

type calendarRepository struct {
	db *DB
}

var _ calendar.Repository = (*calendarRepository)(nil) // interface compliance check

func NewCalendarRepository(db *DB) calendar.Repository {
	return &calendarRepository{db: db}
}

func (repo *calendarRepository) roomNameTaken(room calendar.Room) bool {
	for _, r := range repo.db.rooms {
		if r.ID != room.ID && r.Name == room.Name {
			return true
		}
	}
	return false
}

func (repo *calendarRepository) CreateRoom(_ context.Context, room calendar.Room) (calendar.Room, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.roomNameTaken(room) {
		return calendar.Room{}, calendar.ErrRoomNameExists
	}
	repo.db.rooms[room.ID] = &room
	return room, nil
}

func (repo *calendarRepository) QueryRooms(_ context.Context, activeOnly bool) ([]calendar.Room, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.rooms,
		func(r calendar.Room) bool { return !activeOnly || r.IsActive },
		func(a, b calendar.Room) bool { return a.Name < b.Name }), nil
}

func (repo *calendarRepository) GetRoom(_ context.Context, id string) (calendar.Room, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if room, ok := repo.db.rooms[id]; ok {
		return *room, nil
	}
	return calendar.Room{}, calendar.ErrRoomNotFound
}

func (repo *calendarRepository) UpdateRoom(_ context.Context, room calendar.Room) (calendar.Room, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rooms[room.ID]; !ok {
		return calendar.Room{}, calendar.ErrRoomNotFound
	}
	if repo.roomNameTaken(room) {
		return calendar.Room{}, calendar.ErrRoomNameExists
	}
	repo.db.rooms[room.ID] = &room
	return room, nil
}

func (repo *calendarRepository) DeleteRoom(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rooms[id]; !ok {
		return calendar.ErrRoomNotFound
	}
	delete(repo.db.rooms, id)
	for _, evt := range repo.db.events {
		if evt.RoomID == id {
			evt.RoomID = ""
		}
	}
	return nil
}

func (repo *calendarRepository) hasOverlap(roomID string, start, end time.Time, excludeEventID string) bool {
	for _, evt := range repo.db.events {
		if evt.RoomID == roomID && evt.ID != excludeEventID && calendar.Overlaps(evt.StartsAt, evt.EndsAt, start, end) {
			return true
		}
	}
	return false
}

func (repo *calendarRepository) RoomHasOverlap(_ context.Context, roomID string, start, end time.Time, excludeEventID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.hasOverlap(roomID, start, end, excludeEventID), nil
}

// saveEvent checks the room & writes evt under the write lock.
func (repo *calendarRepository) saveEvent(evt calendar.Event, mustExist bool) (calendar.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.events[evt.ID]; ok != mustExist {
		if mustExist {
			return calendar.Event{}, calendar.ErrEventNotFound
		}
		return calendar.Event{}, core.ErrConflict
	}
	if evt.RoomID != "" {
		if _, ok := repo.db.rooms[evt.RoomID]; !ok {
			return calendar.Event{}, calendar.ErrRoomNotFound
		}
		if repo.hasOverlap(evt.RoomID, evt.StartsAt, evt.EndsAt, evt.ID) {
			return calendar.Event{}, calendar.ErrRoomUnavailable
		}
	}
	repo.db.events[evt.ID] = &evt
	return evt, nil
}

func (repo *calendarRepository) CreateEvent(_ context.Context, evt calendar.Event) (calendar.Event, error) {
	return repo.saveEvent(evt, false)
}

func (repo *calendarRepository) UpdateEvent(_ context.Context, evt calendar.Event) (calendar.Event, error) {
	return repo.saveEvent(evt, true)
}

func (repo *calendarRepository) GetEvent(_ context.Context, id string) (calendar.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if evt, ok := repo.db.events[id]; ok {
		return *evt, nil
	}
	return calendar.Event{}, calendar.ErrEventNotFound
}

func (repo *calendarRepository) QueryEvents(_ context.Context, filter calendar.EventFilter) ([]calendar.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.events, filter.Match,
		func(a, b calendar.Event) bool { return a.StartsAt.Before(b.StartsAt) }), nil
}

func (repo *calendarRepository) DeleteEvent(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.events[id]; !ok {
		return calendar.ErrEventNotFound
	}
	delete(repo.db.events, id)
	return nil
}
