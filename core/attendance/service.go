package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/user"
)

var ErrNotFound = errors.New("attendance record not found")

type (
	Repository interface {
		// UpsertRecords writes recs, replacing the status & note of existing (class, student, date) records.
		UpsertRecords(ctx context.Context, recs ...Record) ([]Record, error)
		QueryRecords(ctx context.Context, filter Filter) ([]Record, error)
		GetRecord(ctx context.Context, id string) (Record, error)
		DeleteRecord(ctx context.Context, id string) error
	}

	Service interface {
		RecordSession(ctx context.Context, by user.User, cls class.Class, ns NewSession) ([]Record, error)
		Query(ctx context.Context, filter Filter) ([]Record, error)
		Summary(ctx context.Context, classID, studentID string) (Summary, error)
		Delete(ctx context.Context, by user.User, cls class.Class, id string) error
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// CanRecord reports whether by may take the attendance of cls.
func CanRecord(by user.User, cls class.Class) bool {
	return by.IsAdmin() || (by.IsProfessor() && cls.ProfessorID == by.ID)
}

func (svc *service) RecordSession(ctx context.Context, by user.User, cls class.Class, ns NewSession) ([]Record, error) {
	if !CanRecord(by, cls) {
		return nil, core.ErrPermissionDenied
	}

	now := time.Now().UTC()
	recs := make([]Record, 0, len(ns.Entries))
	seen := make(map[string]struct{}, len(ns.Entries))
	for _, entry := range ns.Entries {
		if _, dup := seen[entry.StudentID]; dup {
			return nil, core.NewFieldError("entries", "duplicate student: "+entry.StudentID)
		}
		seen[entry.StudentID] = struct{}{}

		recs = append(recs, Record{
			ID:          uuid.New().String(),
			ClassID:     cls.ID,
			StudentID:   entry.StudentID,
			SessionDate: ns.date,
			Status:      entry.Status,
			Note:        entry.Note,
			RecordedBy:  by.ID,
			RecordedAt:  now,
		})
	}
	return svc.repo.UpsertRecords(ctx, recs...)
}

func (svc *service) Query(ctx context.Context, filter Filter) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter)
}

func (svc *service) Summary(ctx context.Context, classID, studentID string) (Summary, error) {
	recs, err := svc.repo.QueryRecords(ctx, Filter{ClassID: classID, StudentID: studentID})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(classID, studentID, recs), nil
}

func (svc *service) Delete(ctx context.Context, by user.User, cls class.Class, id string) error {
	if !CanRecord(by, cls) {
		return core.ErrPermissionDenied
	}
	rec, err := svc.repo.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if rec.ClassID != cls.ID {
		return ErrNotFound
	}
	return svc.repo.DeleteRecord(ctx, id)
}
