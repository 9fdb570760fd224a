package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/campus/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) QueryClasses(_ context.Context, filter class.QueryFilter) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.classes, func(cls class.Class) bool {
		if filter.CourseID != "" && cls.CourseID != filter.CourseID {
			return false
		}
		if filter.ProfessorID != "" && cls.ProfessorID != filter.ProfessorID {
			return false
		}
		if filter.Term != "" && cls.Term != filter.Term {
			return false
		}
		return !filter.ActiveOnly || cls.IsActive
	}, func(a, b class.Class) bool {
		return a.StartsOn.Before(b.StartsOn) || (a.StartsOn.Equal(b.StartsOn) && a.Name < b.Name)
	}), nil
}

func (repo *classRepository) GetClass(_ context.Context, id string) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return *cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) UpdateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[cls.ID]; !ok {
		return class.Class{}, class.ErrNotFound
	}
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) DeleteClass(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return class.ErrNotFound
	}
	delete(repo.db.classes, id)
	for enrID, enr := range repo.db.enrollments {
		if enr.ClassID == id {
			delete(repo.db.enrollments, enrID)
		}
	}
	return nil
}

func (repo *classRepository) Enroll(_ context.Context, enr class.Enrollment, capacity int) (class.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[enr.ClassID]; !ok {
		return class.Enrollment{}, class.ErrNotFound
	}
	var seats int
	for _, e := range repo.db.enrollments {
		if e.ClassID != enr.ClassID {
			continue
		}
		if e.UserID == enr.UserID {
			return class.Enrollment{}, class.ErrAlreadyEnrolled
		}
		if e.Status == class.EnrollmentActive || e.Status == class.EnrollmentLocked {
			seats++
		}
	}
	if capacity > 0 && seats >= capacity {
		return class.Enrollment{}, class.ErrClassFull
	}
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *classRepository) GetEnrollment(_ context.Context, id string) (class.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if enr, ok := repo.db.enrollments[id]; ok {
		return *enr, nil
	}
	return class.Enrollment{}, class.ErrEnrollmentNotFound
}

func (repo *classRepository) QueryEnrollments(_ context.Context, filter class.EnrollmentFilter) ([]class.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.enrollments, func(enr class.Enrollment) bool {
		if filter.ClassID != "" && enr.ClassID != filter.ClassID {
			return false
		}
		if filter.UserID != "" && enr.UserID != filter.UserID {
			return false
		}
		if filter.CourseID != "" {
			cls, ok := repo.db.classes[enr.ClassID]
			if !ok || cls.CourseID != filter.CourseID {
				return false
			}
		}
		return inOrEmpty(enr.Status, filter.Statuses)
	}, func(a, b class.Enrollment) bool {
		return a.EnrolledAt.Before(b.EnrolledAt)
	}), nil
}

func (repo *classRepository) UpdateEnrollment(_ context.Context, enr class.Enrollment) (class.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.enrollments[enr.ID]; !ok {
		return class.Enrollment{}, class.ErrEnrollmentNotFound
	}
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *classRepository) SetEnrollmentProgress(_ context.Context, id string, progress int, at time.Time) (class.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	enr, ok := repo.db.enrollments[id]
	if !ok {
		return class.Enrollment{}, class.ErrEnrollmentNotFound
	}
	if progress > enr.Progress {
		enr.Progress = progress
	}
	enr.UpdatedAt = at
	return *enr, nil
}

func (repo *classRepository) SetEnrollmentsStatus(_ context.Context, status string, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, id := range ids {
		if enr, ok := repo.db.enrollments[id]; ok && enr.Status != status {
			enr.Status = status
			enr.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}
