package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

var (
	// errors
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomNameExists  = errors.New("a room with this name already exists")
	ErrRoomInactive    = errors.New("room is not active")
	ErrEventNotFound   = errors.New("event not found")
	ErrRoomUnavailable = errors.New("room is already booked for this time slot")
)

type (
	Repository interface {
		CreateRoom(ctx context.Context, room Room) (Room, error)
		QueryRooms(ctx context.Context, activeOnly bool) ([]Room, error)
		GetRoom(ctx context.Context, id string) (Room, error)
		UpdateRoom(ctx context.Context, room Room) (Room, error)
		DeleteRoom(ctx context.Context, id string) error

		// RoomHasOverlap reports whether an event of roomID, other than excludeEventID, overlaps [start, end).
		RoomHasOverlap(ctx context.Context, roomID string, start, end time.Time, excludeEventID string) (bool, error)
		// CreateEvent & UpdateEvent check room overlaps & write atomically.
		// both return ErrRoomUnavailable on overlap.
		CreateEvent(ctx context.Context, evt Event) (Event, error)
		UpdateEvent(ctx context.Context, evt Event) (Event, error)
		GetEvent(ctx context.Context, id string) (Event, error)
		QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error)
		DeleteEvent(ctx context.Context, id string) error
	}

	Service interface {
		CreateRoom(ctx context.Context, nr NewRoom) (Room, error)
		QueryRooms(ctx context.Context, activeOnly bool) ([]Room, error)
		GetRoom(ctx context.Context, id string) (Room, error)
		UpdateRoom(ctx context.Context, room Room, nr NewRoom) (Room, error)
		DeleteRoom(ctx context.Context, id string) error

		// CheckRoomAvailability reports whether roomID is free on [start, end), ignoring excludeEventID.
		CheckRoomAvailability(ctx context.Context, roomID string, start, end time.Time, excludeEventID string) (bool, error)
		CreateEvent(ctx context.Context, by user.User, ne NewEvent) (Event, error)
		GetEvent(ctx context.Context, id string) (Event, error)
		QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error)
		UpdateEvent(ctx context.Context, by user.User, evt Event, ne NewEvent) (Event, error)
		DeleteEvent(ctx context.Context, by user.User, evt Event) error
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CreateRoom(ctx context.Context, nr NewRoom) (Room, error) {
	isActive := true
	if nr.IsActive != nil {
		isActive = *nr.IsActive
	}
	return svc.repo.CreateRoom(ctx, Room{
		ID:       uuid.New().String(),
		Name:     nr.Name,
		Building: nr.Building,
		Capacity: nr.Capacity,
		IsActive: isActive,
	})
}

func (svc *service) QueryRooms(ctx context.Context, activeOnly bool) ([]Room, error) {
	return svc.repo.QueryRooms(ctx, activeOnly)
}

func (svc *service) GetRoom(ctx context.Context, id string) (Room, error) {
	return svc.repo.GetRoom(ctx, id)
}

func (svc *service) UpdateRoom(ctx context.Context, room Room, nr NewRoom) (Room, error) {
	room.Name = nr.Name
	room.Building = nr.Building
	room.Capacity = nr.Capacity
	if nr.IsActive != nil {
		room.IsActive = *nr.IsActive
	}
	return svc.repo.UpdateRoom(ctx, room)
}

func (svc *service) DeleteRoom(ctx context.Context, id string) error {
	return svc.repo.DeleteRoom(ctx, id)
}

func (svc *service) CheckRoomAvailability(ctx context.Context, roomID string, start, end time.Time, excludeEventID string) (bool, error) {
	overlap, err := svc.repo.RoomHasOverlap(ctx, roomID, start.UTC(), end.UTC(), excludeEventID)
	if err != nil {
		return false, err
	}
	return !overlap, nil
}

func (svc *service) checkRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return nil
	}
	room, err := svc.repo.GetRoom(ctx, roomID)
	if err != nil {
		if err == ErrRoomNotFound {
			return core.NewFieldError("room_id", err.Error())
		}
		return err
	}
	if !room.IsActive {
		return core.NewFieldError("room_id", ErrRoomInactive.Error())
	}
	return nil
}

func canManage(by user.User, evt Event) bool {
	return by.IsAdmin() || (by.IsProfessor() && evt.CreatedBy == by.ID)
}

func (svc *service) CreateEvent(ctx context.Context, by user.User, ne NewEvent) (Event, error) {
	if !(by.IsAdmin() || by.IsProfessor()) {
		return Event{}, core.ErrPermissionDenied
	}
	if err := svc.checkRoom(ctx, ne.RoomID); err != nil {
		return Event{}, err
	}

	now := time.Now().UTC()
	return svc.repo.CreateEvent(ctx, Event{
		ID:          uuid.New().String(),
		Title:       ne.Title,
		Description: ne.Description,
		ClassID:     ne.ClassID,
		RoomID:      ne.RoomID,
		StartsAt:    ne.StartsAt,
		EndsAt:      ne.EndsAt,
		CreatedBy:   by.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) GetEvent(ctx context.Context, id string) (Event, error) {
	return svc.repo.GetEvent(ctx, id)
}

func (svc *service) QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	return svc.repo.QueryEvents(ctx, filter)
}

func (svc *service) UpdateEvent(ctx context.Context, by user.User, evt Event, ne NewEvent) (Event, error) {
	if !canManage(by, evt) {
		return Event{}, core.ErrPermissionDenied
	}
	if ne.RoomID != evt.RoomID {
		if err := svc.checkRoom(ctx, ne.RoomID); err != nil {
			return Event{}, err
		}
	}

	evt.Title = ne.Title
	evt.Description = ne.Description
	evt.ClassID = ne.ClassID
	evt.RoomID = ne.RoomID
	evt.StartsAt = ne.StartsAt
	evt.EndsAt = ne.EndsAt
	evt.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEvent(ctx, evt)
}

func (svc *service) DeleteEvent(ctx context.Context, by user.User, evt Event) error {
	if !canManage(by, evt) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteEvent(ctx, evt.ID)
}
