package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/progress"
)

type (
	certificateRow struct {
		ID           string    `db:"id"`
		UserID       string    `db:"user_id"`
		CourseID     string    `db:"course_id"`
		EnrollmentID string    `db:"enrollment_id"`
		Code         string    `db:"code"`
		IssuedAt     time.Time `db:"issued_at"`
	}

	progressRepository struct {
		db *sqlx.DB
	}
)

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (r certificateRow) unboil() progress.Certificate {
	return progress.Certificate{
		ID:           r.ID,
		UserID:       r.UserID,
		CourseID:     r.CourseID,
		EnrollmentID: r.EnrollmentID,
		Code:         r.Code,
		IssuedAt:     r.IssuedAt.UTC(),
	}
}

func (repo *progressRepository) MarkLessonCompleted(ctx context.Context, userID, lessonID, courseID string, at time.Time) (bool, error) {
	res, err := repo.db.ExecContext(ctx,
		`INSERT INTO lesson_progress (user_id, lesson_id, course_id, completed_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, lesson_id) DO NOTHING`,
		userID, lessonID, courseID, at.UTC())
	if err != nil {
		return false, errors.Wrap(err, "marking lesson completed")
	}
	n, err := res.RowsAffected()
	return n > 0, errors.Wrap(err, "marking lesson completed")
}

func (repo *progressRepository) CompletedLessonIDs(ctx context.Context, userID, courseID string) ([]string, error) {
	ids := make([]string, 0)
	q := `SELECT lp.lesson_id FROM lesson_progress lp
		JOIN lessons l ON l.id = lp.lesson_id
		JOIN modules m ON m.id = l.module_id
		WHERE lp.user_id = $1 AND m.course_id = $2
		ORDER BY lp.lesson_id::text`
	if err := repo.db.SelectContext(ctx, &ids, q, userID, courseID); err != nil {
		return nil, errors.Wrap(err, "querying completed lessons")
	}
	return ids, nil
}

func (repo *progressRepository) CreateCertificate(ctx context.Context, cert progress.Certificate) (progress.Certificate, error) {
	q := `INSERT INTO certificates (id, user_id, course_id, enrollment_id, code, issued_at)
		VALUES (:id, :user_id, :course_id, :enrollment_id, :code, :issued_at)`
	_, err := repo.db.NamedExecContext(ctx, q, certificateRow{
		ID:           cert.ID,
		UserID:       cert.UserID,
		CourseID:     cert.CourseID,
		EnrollmentID: cert.EnrollmentID,
		Code:         cert.Code,
		IssuedAt:     cert.IssuedAt.UTC(),
	})
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return progress.Certificate{}, progress.ErrCertificateExists
		}
		return progress.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	return cert, nil
}

func (repo *progressRepository) GetCertificate(ctx context.Context, userID, courseID string) (progress.Certificate, error) {
	var r certificateRow
	err := repo.db.GetContext(ctx, &r, `SELECT * FROM certificates WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	if err != nil {
		return progress.Certificate{}, trapNoRows(err, progress.ErrCertificateNotFound, "finding certificate")
	}
	return r.unboil(), nil
}

func (repo *progressRepository) GetCertificateByCode(ctx context.Context, code string) (progress.Certificate, error) {
	var r certificateRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM certificates WHERE code = $1`, code); err != nil {
		return progress.Certificate{}, trapNoRows(err, progress.ErrCertificateNotFound, "finding certificate")
	}
	return r.unboil(), nil
}

func (repo *progressRepository) QueryCertificates(ctx context.Context, userID string) ([]progress.Certificate, error) {
	var w where
	if userID != "" {
		w.add("user_id::text = ?", userID)
	}
	var rows []certificateRow
	q := "SELECT * FROM certificates" + w.String() + " ORDER BY issued_at DESC"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying certificates")
	}
	certs := make([]progress.Certificate, 0, len(rows))
	for _, r := range rows {
		certs = append(certs, r.unboil())
	}
	return certs, nil
}
