package calendar

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

type Room struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Building string `json:"building"`
	Capacity int    `json:"capacity"`
	IsActive bool   `json:"is_active"`
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ClassID     string    `json:"class_id,omitempty"`
	RoomID      string    `json:"room_id,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and [bStart, bEnd) intersect.
// back to back intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// NewRoom is also used for updates.
type NewRoom struct {
	Name     string `json:"name" validate:"required,max=120"`
	Building string `json:"building" validate:"max=120"`
	Capacity int    `json:"capacity" validate:"min=0"`
	IsActive *bool  `json:"is_active"`
}

func (nr *NewRoom) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	nr.Building = core.CleanString(nr.Building)
	return validate.Struct(nr)
}

// NewEvent is also used for updates.
type NewEvent struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description"`
	ClassID     string    `json:"class_id" validate:"omitempty,uuid"`
	RoomID      string    `json:"room_id" validate:"omitempty,uuid"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	ne.StartsAt = ne.StartsAt.UTC()
	ne.EndsAt = ne.EndsAt.UTC()
	return validate.Struct(ne)
}

type EventFilter struct {
	RoomID  string    `query:"room_id"`
	ClassID string    `query:"class_id"`
	From    time.Time `query:"-"` // events ending after From
	To      time.Time `query:"-"` // events starting before To
}

// Match applies the filter to evt, the way the repositories do.
func (f EventFilter) Match(evt Event) bool {
	if f.RoomID != "" && evt.RoomID != f.RoomID {
		return false
	}
	if f.ClassID != "" && evt.ClassID != f.ClassID {
		return false
	}
	if !f.From.IsZero() && !evt.EndsAt.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !evt.StartsAt.Before(f.To) {
		return false
	}
	return true
}
