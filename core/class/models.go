package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

// Enrollment statuses
const (
	EnrollmentActive    = "active"
	EnrollmentLocked    = "locked"
	EnrollmentCancelled = "cancelled"
	EnrollmentWithdrawn = "withdrawn"
	EnrollmentInactive  = "inactive"
)

var AllEnrollmentStatuses = []string{
	EnrollmentActive, EnrollmentLocked, EnrollmentCancelled, EnrollmentWithdrawn, EnrollmentInactive,
}

const dateLayout = "2006-01-02"

type Class struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	ProfessorID string    `json:"professor_id"`
	Name        string    `json:"name"`
	Term        string    `json:"term"`
	StartsOn    time.Time `json:"starts_on"`
	EndsOn      time.Time `json:"ends_on"`
	Capacity    int       `json:"capacity"` // 0: unlimited
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasEnded reports whether the last day of the class is before the day of `now`.
func (c Class) HasEnded(now time.Time) bool {
	y, m, d := now.UTC().Date()
	return c.EndsOn.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

type Enrollment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ClassID    string    `json:"class_id"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	EnrolledAt time.Time `json:"enrolled_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (e Enrollment) IsActive() bool { return e.Status == EnrollmentActive }

// NewClass is also used for updates.
type NewClass struct {
	CourseID    string `json:"course_id" validate:"required,uuid"`
	ProfessorID string `json:"professor_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required,max=255"`
	Term        string `json:"term" validate:"max=60"`
	StartsOn    string `json:"starts_on" validate:"required,datetime=2006-01-02"`
	EndsOn      string `json:"ends_on" validate:"required,datetime=2006-01-02"`
	Capacity    int    `json:"capacity" validate:"min=0"`
	IsActive    *bool  `json:"is_active"`

	startsOn, endsOn time.Time
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Term = core.CleanString(nc.Term)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	nc.startsOn, _ = time.Parse(dateLayout, nc.StartsOn)
	nc.endsOn, _ = time.Parse(dateLayout, nc.EndsOn)
	if nc.endsOn.Before(nc.startsOn) {
		return core.NewFieldError("ends_on", "must not be before starts_on")
	}
	return nil
}

type NewEnrollment struct {
	UserID string `json:"user_id" validate:"omitempty,uuid"`
}

type EnrollmentFilter struct {
	ClassID  string   `query:"class_id"`
	UserID   string   `query:"user_id"`
	CourseID string   `query:"course_id"`
	Statuses []string `query:"status"`
}

type QueryFilter struct {
	CourseID    string `query:"course_id"`
	ProfessorID string `query:"professor_id"`
	Term        string `query:"term"`
	ActiveOnly  bool   `query:"active_only"`
}
