package class_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/storage/database/inmem"
)

func TestService_CheckEnrollmentPolicy(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	classRepo := inmemdb.NewClassRepository(db)
	courseRepo := inmemdb.NewCourseRepository(db)
	svc := class.NewService(classRepo, courseRepo)

	newCourse := func(status string) course.Course {
		crs, err := courseRepo.CreateCourse(ctx, course.Course{ID: uuid.New().String(), Title: status, Status: status})
		require.NoError(t, err)
		return crs
	}
	approved, draft := newCourse(course.StatusApproved), newCourse(course.StatusDraft)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	newClass := func(crs course.Course, endsOn time.Time, active bool) class.Class {
		cls, err := classRepo.CreateClass(ctx, class.Class{
			ID:       uuid.New().String(),
			CourseID: crs.ID,
			StartsOn: today.AddDate(0, -1, 0),
			EndsOn:   endsOn,
			IsActive: active,
		})
		require.NoError(t, err)
		return cls
	}
	enrolledAt := today
	enroll := func(cls class.Class, status string) class.Enrollment {
		enrolledAt = enrolledAt.Add(time.Minute)
		enr, err := classRepo.Enroll(ctx, class.Enrollment{
			ID:         uuid.New().String(),
			UserID:     uuid.New().String(),
			ClassID:    cls.ID,
			Status:     status,
			EnrolledAt: enrolledAt,
		}, 0)
		require.NoError(t, err)
		return enr
	}

	healthy := newClass(approved, today, true) // ends today
	enroll(healthy, class.EnrollmentActive)

	inactive := newClass(approved, today.AddDate(0, 1, 0), false)
	inactiveEnr := enroll(inactive, class.EnrollmentActive)
	enroll(inactive, class.EnrollmentCancelled)

	ended := newClass(approved, today.AddDate(0, 0, -1), true)
	endedEnr := enroll(ended, class.EnrollmentActive)
	enroll(ended, class.EnrollmentLocked) // locked seats are not reported

	unapproved := newClass(draft, today.AddDate(0, 1, 0), true)
	unapprovedEnr := enroll(unapproved, class.EnrollmentActive)

	crowded := newClass(approved, today.AddDate(0, 1, 0), true)
	enroll(crowded, class.EnrollmentActive)
	enroll(crowded, class.EnrollmentLocked)
	lastEnr := enroll(crowded, class.EnrollmentActive)
	crowded.Capacity = 2
	_, err := classRepo.UpdateClass(ctx, crowded)
	require.NoError(t, err)

	report, err := svc.CheckEnrollmentPolicy(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Classes)
	assert.Zero(t, report.Fixed)

	reasons := make(map[string]string)
	for _, v := range report.Violations {
		reasons[v.EnrollmentID] = v.Reason
	}
	assert.Equal(t, map[string]string{
		inactiveEnr.ID:   class.ReasonClassInactive,
		endedEnr.ID:      class.ReasonClassEnded,
		unapprovedEnr.ID: class.ReasonCourseNotApproved,
		lastEnr.ID:       class.ReasonOverCapacity,
	}, reasons)

	t.Run("fix", func(t *testing.T) {
		report, err := svc.CheckEnrollmentPolicy(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 4, report.Fixed)

		enr, err := classRepo.GetEnrollment(ctx, lastEnr.ID)
		require.NoError(t, err)
		assert.Equal(t, class.EnrollmentInactive, enr.Status)

		report, err = svc.CheckEnrollmentPolicy(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, report.Violations)
	})
}
