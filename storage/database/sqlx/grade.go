package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/grade"
)

type (
	gradeRow struct {
		ID         string    `db:"id"`
		ClassID    string    `db:"class_id"`
		StudentID  string    `db:"student_id"`
		Assessment string    `db:"assessment"`
		Score      float64   `db:"score"`
		MaxScore   float64   `db:"max_score"`
		Weight     float64   `db:"weight"`
		GradedBy   string    `db:"graded_by"`
		GradedAt   time.Time `db:"graded_at"`
	}

	gradeRepository struct {
		db *sqlx.DB
	}
)

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *sqlx.DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (r gradeRow) unboil() grade.Grade {
	g := grade.Grade(r)
	g.GradedAt = r.GradedAt.UTC()
	return g
}

func (repo *gradeRepository) CreateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	q := `INSERT INTO grades (id, class_id, student_id, assessment, score, max_score, weight, graded_by, graded_at)
		VALUES (:id, :class_id, :student_id, :assessment, :score, :max_score, :weight, :graded_by, :graded_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, gradeRow(g)); err != nil {
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return g, nil
}

func (repo *gradeRepository) GetGrade(ctx context.Context, id string) (grade.Grade, error) {
	if !isUUID(id) {
		return grade.Grade{}, grade.ErrNotFound
	}
	var r gradeRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM grades WHERE id = $1`, id); err != nil {
		return grade.Grade{}, trapNoRows(err, grade.ErrNotFound, "finding grade")
	}
	return r.unboil(), nil
}

func (repo *gradeRepository) QueryGrades(ctx context.Context, filter grade.Filter) ([]grade.Grade, error) {
	var w where
	if filter.ClassID != "" {
		w.add("class_id::text = ?", filter.ClassID)
	}
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}

	var rows []gradeRow
	q := "SELECT * FROM grades" + w.String() + " ORDER BY graded_at"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]grade.Grade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, r.unboil())
	}
	return grades, nil
}

func (repo *gradeRepository) UpdateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	q := `UPDATE grades SET student_id = :student_id, assessment = :assessment, score = :score, max_score = :max_score,
		weight = :weight, graded_by = :graded_by, graded_at = :graded_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, gradeRow(g))
	if err = checkAffected(res, err, grade.ErrNotFound, "updating grade"); err != nil {
		return grade.Grade{}, err
	}
	return g, nil
}

func (repo *gradeRepository) DeleteGrade(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM grades WHERE id = $1`, id)
	return checkAffected(res, err, grade.ErrNotFound, "deleting grade")
}
