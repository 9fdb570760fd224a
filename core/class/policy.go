package class

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/course"
)

// Policy violation reasons
const (
	ReasonClassInactive     = "class_inactive"
	ReasonClassEnded        = "class_ended"
	ReasonCourseNotApproved = "course_not_approved"
	ReasonOverCapacity      = "over_capacity"
)

type PolicyViolation struct {
	EnrollmentID string `json:"enrollment_id"`
	UserID       string `json:"user_id"`
	ClassID      string `json:"class_id"`
	Reason       string `json:"reason"`
}

type PolicyReport struct {
	CheckedAt  time.Time         `json:"checked_at"`
	Classes    int               `json:"classes"`
	Violations []PolicyViolation `json:"violations"`
	Fixed      int               `json:"fixed"`
}

// CheckEnrollmentPolicy reports the active enrollments that should not be:
// the ones in inactive or ended classes, in classes of unapproved courses,
// and the latest ones of classes holding more seats than their capacity.
// with fix, the reported enrollments are deactivated.
func (svc *service) CheckEnrollmentPolicy(ctx context.Context, fix bool) (PolicyReport, error) {
	now := svc.nowFunc().UTC()
	report := PolicyReport{CheckedAt: now, Violations: []PolicyViolation{}}

	classes, err := svc.repo.QueryClasses(ctx, QueryFilter{})
	if err != nil {
		return report, errors.Wrap(err, "querying classes")
	}
	report.Classes = len(classes)

	approved := make(map[string]bool)
	for _, cls := range classes {
		if _, ok := approved[cls.CourseID]; !ok {
			crs, err := svc.courses.GetCourse(ctx, cls.CourseID, false)
			if err != nil && err != course.ErrNotFound {
				return report, errors.Wrap(err, "getting course")
			}
			approved[cls.CourseID] = err == nil && crs.IsApproved()
		}

		enrs, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{ClassID: cls.ID, Statuses: seatStatuses})
		if err != nil {
			return report, errors.Wrap(err, "querying enrollments")
		}

		var reason string
		switch {
		case !cls.IsActive:
			reason = ReasonClassInactive
		case cls.HasEnded(now):
			reason = ReasonClassEnded
		case !approved[cls.CourseID]:
			reason = ReasonCourseNotApproved
		}

		if reason != "" {
			for _, enr := range enrs {
				if enr.IsActive() {
					report.Violations = append(report.Violations, violation(enr, reason))
				}
			}
			continue
		}

		if cls.Capacity > 0 && len(enrs) > cls.Capacity {
			// first come, first served
			sort.SliceStable(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.Before(enrs[j].EnrolledAt) })
			for _, enr := range enrs[cls.Capacity:] {
				if enr.IsActive() {
					report.Violations = append(report.Violations, violation(enr, ReasonOverCapacity))
				}
			}
		}
	}

	if fix && len(report.Violations) > 0 {
		ids := make([]string, 0, len(report.Violations))
		for _, v := range report.Violations {
			ids = append(ids, v.EnrollmentID)
		}
		n, err := svc.repo.SetEnrollmentsStatus(ctx, EnrollmentInactive, ids...)
		if err != nil {
			return report, errors.Wrap(err, "deactivating enrollments")
		}
		report.Fixed = n
	}
	return report, nil
}

func violation(enr Enrollment, reason string) PolicyViolation {
	return PolicyViolation{EnrollmentID: enr.ID, UserID: enr.UserID, ClassID: enr.ClassID, Reason: reason}
}
