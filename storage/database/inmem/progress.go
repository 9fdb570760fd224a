package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/campus/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) MarkLessonCompleted(_ context.Context, userID, lessonID, courseID string, at time.Time) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := lessonKey{userID: userID, lessonID: lessonID}
	if _, ok := repo.db.completions[key]; ok {
		return false, nil
	}
	repo.db.completions[key] = lessonCompletion{courseID: courseID, completedAt: at}
	return true, nil
}

func (repo *progressRepository) CompletedLessonIDs(_ context.Context, userID, courseID string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make([]string, 0)
	for key := range repo.db.completions {
		if key.userID != userID {
			continue
		}
		if lsn, ok := repo.db.lessons[key.lessonID]; ok && lsn.CourseID == courseID {
			ids = append(ids, key.lessonID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *progressRepository) CreateCertificate(_ context.Context, cert progress.Certificate) (progress.Certificate, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, c := range repo.db.certificates {
		if c.UserID == cert.UserID && c.CourseID == cert.CourseID {
			return progress.Certificate{}, progress.ErrCertificateExists
		}
	}
	repo.db.certificates[cert.ID] = &cert
	return cert, nil
}

func (repo *progressRepository) GetCertificate(_ context.Context, userID, courseID string) (progress.Certificate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, c := range repo.db.certificates {
		if c.UserID == userID && c.CourseID == courseID {
			return *c, nil
		}
	}
	return progress.Certificate{}, progress.ErrCertificateNotFound
}

func (repo *progressRepository) GetCertificateByCode(_ context.Context, code string) (progress.Certificate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, c := range repo.db.certificates {
		if c.Code == code {
			return *c, nil
		}
	}
	return progress.Certificate{}, progress.ErrCertificateNotFound
}

func (repo *progressRepository) QueryCertificates(_ context.Context, userID string) ([]progress.Certificate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.certificates,
		func(c progress.Certificate) bool { return userID == "" || c.UserID == userID },
		func(a, b progress.Certificate) bool { return a.IssuedAt.After(b.IssuedAt) }), nil
}
