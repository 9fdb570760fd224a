package inmemdb

import (
	"context"

	"github.com/trezcool/campus/core/grade"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateGrade(_ context.Context, g grade.Grade) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.grades[g.ID] = &g
	return g, nil
}

func (repo *gradeRepository) GetGrade(_ context.Context, id string) (grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.grades[id]; ok {
		return *g, nil
	}
	return grade.Grade{}, grade.ErrNotFound
}

func (repo *gradeRepository) QueryGrades(_ context.Context, filter grade.Filter) ([]grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.grades, func(g grade.Grade) bool {
		return (filter.ClassID == "" || g.ClassID == filter.ClassID) && (filter.StudentID == "" || g.StudentID == filter.StudentID)
	}, func(a, b grade.Grade) bool {
		return a.GradedAt.Before(b.GradedAt)
	}), nil
}

func (repo *gradeRepository) UpdateGrade(_ context.Context, g grade.Grade) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.grades[g.ID]; !ok {
		return grade.Grade{}, grade.ErrNotFound
	}
	repo.db.grades[g.ID] = &g
	return g, nil
}

func (repo *gradeRepository) DeleteGrade(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.grades[id]; !ok {
		return grade.ErrNotFound
	}
	delete(repo.db.grades, id)
	return nil
}
