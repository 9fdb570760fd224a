package class

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/user"
)

var (
	// errors
	ErrNotFound            = errors.New("class not found")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrAlreadyEnrolled     = errors.New("user is already enrolled in this class")
	ErrClassFull           = errors.New("class is full")
	ErrClassClosed         = errors.New("class is not open for enrollment")
	ErrInvalidTransition   = errors.New("invalid enrollment status transition")
	ErrCourseNotApproved   = errors.New("course is not approved")
	ErrNotEnrolled         = errors.New("user is not enrolled in this course")
	ErrEnrollmentNotActive = errors.New("enrollment is not active")
	errNotAStudent         = errors.New("only students can be enrolled")
)

// seatStatuses take a seat in a class.
var seatStatuses = []string{EnrollmentActive, EnrollmentLocked}

// transitions lists the statuses an enrollment may move from, per target status.
var transitions = map[string][]string{
	EnrollmentActive:    {EnrollmentLocked},
	EnrollmentLocked:    {EnrollmentActive},
	EnrollmentCancelled: {EnrollmentActive, EnrollmentLocked},
	EnrollmentWithdrawn: {EnrollmentActive, EnrollmentLocked},
	EnrollmentInactive:  {EnrollmentActive, EnrollmentLocked},
}

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		QueryClasses(ctx context.Context, filter QueryFilter) ([]Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		DeleteClass(ctx context.Context, id string) error

		// Enroll atomically checks the seats of the class against capacity (0: unlimited) and inserts enr.
		// returns ErrClassFull or ErrAlreadyEnrolled.
		Enroll(ctx context.Context, enr Enrollment, capacity int) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		// SetEnrollmentProgress raises the progress of enrollment id to progress, never lowering it.
		// the other fields are left untouched.
		SetEnrollmentProgress(ctx context.Context, id string, progress int, at time.Time) (Enrollment, error)
		SetEnrollmentsStatus(ctx context.Context, status string, ids ...string) (int, error)
	}

	// CourseGetter is the part of the course repository classes rely on.
	CourseGetter interface {
		GetCourse(ctx context.Context, id string, withTree bool) (course.Course, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewClass) (Class, error)
		Query(ctx context.Context, filter QueryFilter) ([]Class, error)
		GetByID(ctx context.Context, id string) (Class, error)
		Update(ctx context.Context, cls Class, nc NewClass) (Class, error)
		Delete(ctx context.Context, id string) error

		// Enroll enrolls usr into cls. admins may enroll any student; students may only enroll themselves.
		Enroll(ctx context.Context, by, usr user.User, cls Class) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
		// ActiveEnrollment returns the active enrollment of userID in a class of courseID.
		ActiveEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error)
		SetEnrollmentStatus(ctx context.Context, by user.User, enr Enrollment, status string) (Enrollment, error)
		SetProgress(ctx context.Context, enr Enrollment, progress int) (Enrollment, error)

		CheckEnrollmentPolicy(ctx context.Context, fix bool) (PolicyReport, error)
	}

	service struct {
		repo    Repository
		courses CourseGetter
		nowFunc func() time.Time // mockable
	}
)

func NewService(repo Repository, courses CourseGetter) Service {
	return &service{repo: repo, courses: courses, nowFunc: time.Now}
}

func (svc *service) Create(ctx context.Context, nc NewClass) (Class, error) {
	if _, err := svc.courses.GetCourse(ctx, nc.CourseID, false); err != nil {
		if err == course.ErrNotFound {
			return Class{}, core.NewFieldError("course_id", err.Error())
		}
		return Class{}, err
	}

	isActive := true
	if nc.IsActive != nil {
		isActive = *nc.IsActive
	}
	return svc.repo.CreateClass(ctx, Class{
		ID:          uuid.New().String(),
		CourseID:    nc.CourseID,
		ProfessorID: nc.ProfessorID,
		Name:        nc.Name,
		Term:        nc.Term,
		StartsOn:    nc.startsOn,
		EndsOn:      nc.endsOn,
		Capacity:    nc.Capacity,
		IsActive:    isActive,
		CreatedAt:   svc.nowFunc().UTC(),
	})
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) Update(ctx context.Context, cls Class, nc NewClass) (Class, error) {
	if nc.CourseID != cls.CourseID {
		return Class{}, core.NewFieldError("course_id", "the course of a class cannot change")
	}
	cls.ProfessorID = nc.ProfessorID
	cls.Name = nc.Name
	cls.Term = nc.Term
	cls.StartsOn = nc.startsOn
	cls.EndsOn = nc.endsOn
	cls.Capacity = nc.Capacity
	if nc.IsActive != nil {
		cls.IsActive = *nc.IsActive
	}
	return svc.repo.UpdateClass(ctx, cls)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteClass(ctx, id)
}

func (svc *service) Enroll(ctx context.Context, by, usr user.User, cls Class) (Enrollment, error) {
	if !by.IsAdmin() && by.ID != usr.ID {
		return Enrollment{}, core.ErrPermissionDenied
	}
	if !usr.IsStudent() {
		return Enrollment{}, core.NewFieldError("user_id", errNotAStudent.Error())
	}

	now := svc.nowFunc().UTC()
	if !cls.IsActive || cls.HasEnded(now) {
		return Enrollment{}, ErrClassClosed
	}
	crs, err := svc.courses.GetCourse(ctx, cls.CourseID, false)
	if err != nil {
		return Enrollment{}, err
	}
	if !crs.IsApproved() {
		return Enrollment{}, ErrCourseNotApproved
	}

	return svc.repo.Enroll(ctx, Enrollment{
		ID:         uuid.New().String(),
		UserID:     usr.ID,
		ClassID:    cls.ID,
		Status:     EnrollmentActive,
		EnrolledAt: now,
		UpdatedAt:  now,
	}, cls.Capacity)
}

func (svc *service) GetEnrollment(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *service) QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

func (svc *service) ActiveEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error) {
	enrs, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{UserID: userID, CourseID: courseID})
	if err != nil {
		return Enrollment{}, err
	}
	if len(enrs) == 0 {
		return Enrollment{}, ErrNotEnrolled
	}
	for _, enr := range enrs {
		if enr.IsActive() {
			return enr, nil
		}
	}
	return Enrollment{}, ErrEnrollmentNotActive
}

func (svc *service) SetEnrollmentStatus(ctx context.Context, by user.User, enr Enrollment, status string) (Enrollment, error) {
	// students may only cancel their own enrollments
	if !by.IsAdmin() && !(by.ID == enr.UserID && status == EnrollmentCancelled) {
		return Enrollment{}, core.ErrPermissionDenied
	}
	if enr.Status == status {
		return enr, nil
	}
	allowed := false
	for _, from := range transitions[status] {
		if enr.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return Enrollment{}, ErrInvalidTransition
	}

	enr.Status = status
	enr.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *service) SetProgress(ctx context.Context, enr Enrollment, progress int) (Enrollment, error) {
	return svc.repo.SetEnrollmentProgress(ctx, enr.ID, progress, svc.nowFunc().UTC())
}
