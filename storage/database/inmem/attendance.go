package inmemdb

import (
	"context"

	"github.com/trezcool/campus/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) UpsertRecords(_ context.Context, recs ...attendance.Record) ([]attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	saved := make([]attendance.Record, 0, len(recs))
	for _, rec := range recs {
		for _, existing := range repo.db.attendance {
			if existing.ClassID == rec.ClassID && existing.StudentID == rec.StudentID && existing.SessionDate.Equal(rec.SessionDate) {
				rec.ID = existing.ID
				break
			}
		}
		rec := rec
		repo.db.attendance[rec.ID] = &rec
		saved = append(saved, rec)
	}
	return saved, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.Filter) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.attendance, filter.Match, func(a, b attendance.Record) bool {
		return a.SessionDate.Before(b.SessionDate) || (a.SessionDate.Equal(b.SessionDate) && a.StudentID < b.StudentID)
	}), nil
}

func (repo *attendanceRepository) GetRecord(_ context.Context, id string) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.attendance[id]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) DeleteRecord(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.attendance[id]; !ok {
		return attendance.ErrNotFound
	}
	delete(repo.db.attendance, id)
	return nil
}
