package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/class"
)

type (
	classRow struct {
		ID          string    `db:"id"`
		CourseID    string    `db:"course_id"`
		ProfessorID string    `db:"professor_id"`
		Name        string    `db:"name"`
		Term        string    `db:"term"`
		StartsOn    time.Time `db:"starts_on"`
		EndsOn      time.Time `db:"ends_on"`
		Capacity    int       `db:"capacity"`
		IsActive    bool      `db:"is_active"`
		CreatedAt   time.Time `db:"created_at"`
	}

	enrollmentRow struct {
		ID         string    `db:"id"`
		UserID     string    `db:"user_id"`
		ClassID    string    `db:"class_id"`
		Status     string    `db:"status"`
		Progress   int       `db:"progress"`
		EnrolledAt time.Time `db:"enrolled_at"`
		UpdatedAt  time.Time `db:"updated_at"`
	}

	classRepository struct {
		db *sqlx.DB
	}
)

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{db: db}
}

func boilClass(cls class.Class) classRow {
	return classRow{
		ID:          cls.ID,
		CourseID:    cls.CourseID,
		ProfessorID: cls.ProfessorID,
		Name:        cls.Name,
		Term:        cls.Term,
		StartsOn:    dateOf(cls.StartsOn),
		EndsOn:      dateOf(cls.EndsOn),
		Capacity:    cls.Capacity,
		IsActive:    cls.IsActive,
		CreatedAt:   cls.CreatedAt.UTC(),
	}
}

func (r classRow) unboil() class.Class {
	return class.Class{
		ID:          r.ID,
		CourseID:    r.CourseID,
		ProfessorID: r.ProfessorID,
		Name:        r.Name,
		Term:        r.Term,
		StartsOn:    dateOf(r.StartsOn),
		EndsOn:      dateOf(r.EndsOn),
		Capacity:    r.Capacity,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func boilEnrollment(enr class.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:         enr.ID,
		UserID:     enr.UserID,
		ClassID:    enr.ClassID,
		Status:     enr.Status,
		Progress:   enr.Progress,
		EnrolledAt: enr.EnrolledAt.UTC(),
		UpdatedAt:  enr.UpdatedAt.UTC(),
	}
}

func (r enrollmentRow) unboil() class.Enrollment {
	return class.Enrollment{
		ID:         r.ID,
		UserID:     r.UserID,
		ClassID:    r.ClassID,
		Status:     r.Status,
		Progress:   r.Progress,
		EnrolledAt: r.EnrolledAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	q := `INSERT INTO classes (id, course_id, professor_id, name, term, starts_on, ends_on, capacity, is_active, created_at)
		VALUES (:id, :course_id, :professor_id, :name, :term, :starts_on, :ends_on, :capacity, :is_active, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, boilClass(cls)); err != nil {
		if pgCode(err) == foreignKeyViolation {
			return class.Class{}, errors.Wrap(err, "course or professor does not exist")
		}
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter class.QueryFilter) ([]class.Class, error) {
	var w where
	if filter.CourseID != "" {
		w.add("course_id::text = ?", filter.CourseID)
	}
	if filter.ProfessorID != "" {
		w.add("professor_id::text = ?", filter.ProfessorID)
	}
	if filter.Term != "" {
		w.add("term = ?", filter.Term)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}

	var rows []classRow
	q := "SELECT * FROM classes" + w.String() + " ORDER BY starts_on, name"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.unboil())
	}
	return classes, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string) (class.Class, error) {
	if !isUUID(id) {
		return class.Class{}, class.ErrNotFound
	}
	var r classRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM classes WHERE id = $1`, id); err != nil {
		return class.Class{}, trapNoRows(err, class.ErrNotFound, "finding class")
	}
	return r.unboil(), nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	q := `UPDATE classes SET professor_id = :professor_id, name = :name, term = :term, starts_on = :starts_on,
		ends_on = :ends_on, capacity = :capacity, is_active = :is_active
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, boilClass(cls))
	if err = checkAffected(res, err, class.ErrNotFound, "updating class"); err != nil {
		return class.Class{}, err
	}
	return cls, nil
}

func (repo *classRepository) DeleteClass(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	return checkAffected(res, err, class.ErrNotFound, "deleting class")
}

// Enroll locks the class row so that concurrent enrollments count seats one at a time.
func (repo *classRepository) Enroll(ctx context.Context, enr class.Enrollment, capacity int) (class.Enrollment, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var id string
		if err := tx.GetContext(ctx, &id, `SELECT id FROM classes WHERE id = $1 FOR UPDATE`, enr.ClassID); err != nil {
			return trapNoRows(err, class.ErrNotFound, "locking class")
		}

		var enrolled bool
		q := `SELECT EXISTS (SELECT 1 FROM enrollments WHERE class_id = $1 AND user_id = $2)`
		if err := tx.GetContext(ctx, &enrolled, q, enr.ClassID, enr.UserID); err != nil {
			return errors.Wrap(err, "checking enrollment")
		}
		if enrolled {
			return class.ErrAlreadyEnrolled
		}

		if capacity > 0 {
			var seats int
			q = `SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND status = ANY($2)`
			statuses := pq.Array([]string{class.EnrollmentActive, class.EnrollmentLocked})
			if err := tx.GetContext(ctx, &seats, q, enr.ClassID, statuses); err != nil {
				return errors.Wrap(err, "counting seats")
			}
			if seats >= capacity {
				return class.ErrClassFull
			}
		}

		q = `INSERT INTO enrollments (id, user_id, class_id, status, progress, enrolled_at, updated_at)
			VALUES (:id, :user_id, :class_id, :status, :progress, :enrolled_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, q, boilEnrollment(enr)); err != nil {
			if pgCode(err) == uniqueViolation {
				return class.ErrAlreadyEnrolled
			}
			return errors.Wrap(err, "inserting enrollment")
		}
		return nil
	})
	if err != nil {
		return class.Enrollment{}, err
	}
	return enr, nil
}

func (repo *classRepository) GetEnrollment(ctx context.Context, id string) (class.Enrollment, error) {
	if !isUUID(id) {
		return class.Enrollment{}, class.ErrEnrollmentNotFound
	}
	var r enrollmentRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM enrollments WHERE id = $1`, id); err != nil {
		return class.Enrollment{}, trapNoRows(err, class.ErrEnrollmentNotFound, "finding enrollment")
	}
	return r.unboil(), nil
}

func (repo *classRepository) QueryEnrollments(ctx context.Context, filter class.EnrollmentFilter) ([]class.Enrollment, error) {
	var w where
	if filter.ClassID != "" {
		w.add("e.class_id::text = ?", filter.ClassID)
	}
	if filter.UserID != "" {
		w.add("e.user_id::text = ?", filter.UserID)
	}
	if filter.CourseID != "" {
		w.add("c.course_id::text = ?", filter.CourseID)
	}
	if len(filter.Statuses) > 0 {
		w.add("e.status = ANY(?)", pq.Array(filter.Statuses))
	}

	var rows []enrollmentRow
	q := "SELECT e.* FROM enrollments e JOIN classes c ON c.id = e.class_id" + w.String() + " ORDER BY e.enrolled_at"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]class.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrs = append(enrs, r.unboil())
	}
	return enrs, nil
}

func (repo *classRepository) UpdateEnrollment(ctx context.Context, enr class.Enrollment) (class.Enrollment, error) {
	q := `UPDATE enrollments SET status = :status, progress = :progress, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, boilEnrollment(enr))
	if err = checkAffected(res, err, class.ErrEnrollmentNotFound, "updating enrollment"); err != nil {
		return class.Enrollment{}, err
	}
	return enr, nil
}

func (repo *classRepository) SetEnrollmentProgress(ctx context.Context, id string, progress int, at time.Time) (class.Enrollment, error) {
	if !isUUID(id) {
		return class.Enrollment{}, class.ErrEnrollmentNotFound
	}
	var r enrollmentRow
	q := `UPDATE enrollments SET progress = GREATEST(progress, $1), updated_at = $2 WHERE id = $3 RETURNING *`
	if err := repo.db.GetContext(ctx, &r, q, progress, at, id); err != nil {
		return class.Enrollment{}, trapNoRows(err, class.ErrEnrollmentNotFound, "updating enrollment progress")
	}
	return r.unboil(), nil
}

func (repo *classRepository) SetEnrollmentsStatus(ctx context.Context, status string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx,
		`UPDATE enrollments SET status = $1, updated_at = $2 WHERE id::text = ANY($3) AND status <> $1`,
		status, time.Now().UTC(), pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "updating enrollments status")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "updating enrollments status")
}
