package course

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("course not found")
	ErrModuleNotFound = errors.New("module not found")
	ErrLessonNotFound = errors.New("lesson not found")
	ErrNotEditable    = errors.New("course cannot be edited in its current status")
	ErrInvalidStatus  = errors.New("invalid course status transition")
	ErrEmptyCourse    = errors.New("course has no lessons")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		// GetCourse loads the module/lesson tree when withTree.
		GetCourse(ctx context.Context, id string, withTree bool) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		// positions are 1-based; zero means "append"
		CreateModule(ctx context.Context, mod Module) (Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		UpdateModule(ctx context.Context, mod Module) (Module, error)
		DeleteModule(ctx context.Context, id string) error

		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		UpdateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		CountLessons(ctx context.Context, courseID string) (int, error)
	}

	Service interface {
		Create(ctx context.Context, by user.User, nc NewCourse) (Course, error)
		Query(ctx context.Context, viewer user.User, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		// Get returns ErrNotFound for courses the viewer may not see.
		Get(ctx context.Context, viewer user.User, id string) (Course, error)
		Update(ctx context.Context, by user.User, crs Course, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, by user.User, crs Course) error
		Submit(ctx context.Context, by user.User, crs Course) (Course, error)
		Approve(ctx context.Context, by user.User, crs Course) (Course, error)
		Reject(ctx context.Context, by user.User, crs Course, rc RejectCourse) (Course, error)

		AddModule(ctx context.Context, by user.User, crs Course, nm NewModule) (Module, error)
		UpdateModule(ctx context.Context, by user.User, crs Course, moduleID string, nm NewModule) (Module, error)
		DeleteModule(ctx context.Context, by user.User, crs Course, moduleID string) error
		AddLesson(ctx context.Context, by user.User, crs Course, moduleID string, nl NewLesson) (Lesson, error)
		UpdateLesson(ctx context.Context, by user.User, crs Course, lessonID string, nl NewLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, by user.User, crs Course, lessonID string) error
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func canView(viewer user.User, crs Course) bool {
	return crs.IsApproved() || viewer.IsAdmin() || (viewer.IsProfessor() && crs.ProfessorID == viewer.ID)
}

func canEdit(by user.User, crs Course) error {
	if !(by.IsAdmin() || (by.IsProfessor() && crs.ProfessorID == by.ID)) {
		return core.ErrPermissionDenied
	}
	if !crs.IsEditable() {
		return ErrNotEditable
	}
	return nil
}

func (svc *service) Create(ctx context.Context, by user.User, nc NewCourse) (Course, error) {
	if !(by.IsAdmin() || by.IsProfessor()) {
		return Course{}, core.ErrPermissionDenied
	}
	profID := by.ID
	if by.IsAdmin() && nc.ProfessorID != "" {
		profID = nc.ProfessorID
	}

	now := time.Now().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		ID:          uuid.New().String(),
		Title:       nc.Title,
		Description: nc.Description,
		ProfessorID: profID,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) Query(ctx context.Context, viewer user.User, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	filter.Clean()
	switch {
	case viewer.IsAdmin():
	case viewer.IsProfessor():
		filter.ApprovedOrOwnedBy = viewer.ID
	default:
		filter.Statuses = []string{StatusApproved}
	}
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *service) Get(ctx context.Context, viewer user.User, id string) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id, true)
	if err != nil {
		return Course{}, err
	}
	if !canView(viewer, crs) {
		return Course{}, ErrNotFound
	}
	return crs, nil
}

func (svc *service) Update(ctx context.Context, by user.User, crs Course, uc UpdateCourse) (Course, error) {
	if err := canEdit(by, crs); err != nil {
		return Course{}, err
	}
	crs.Title = uc.Title
	crs.Description = uc.Description
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) Delete(ctx context.Context, by user.User, crs Course) error {
	if !by.IsAdmin() {
		if err := canEdit(by, crs); err != nil {
			return err
		}
	}
	return svc.repo.DeleteCourse(ctx, crs.ID)
}

func (svc *service) Submit(ctx context.Context, by user.User, crs Course) (Course, error) {
	if err := canEdit(by, crs); err != nil {
		if err == ErrNotEditable {
			return Course{}, ErrInvalidStatus
		}
		return Course{}, err
	}
	n, err := svc.repo.CountLessons(ctx, crs.ID)
	if err != nil {
		return Course{}, err
	}
	if n == 0 {
		return Course{}, ErrEmptyCourse
	}
	return svc.setStatus(ctx, crs, StatusPending, "")
}

func (svc *service) Approve(ctx context.Context, by user.User, crs Course) (Course, error) {
	if !by.IsAdmin() {
		return Course{}, core.ErrPermissionDenied
	}
	if crs.Status != StatusPending {
		return Course{}, ErrInvalidStatus
	}
	return svc.setStatus(ctx, crs, StatusApproved, "")
}

func (svc *service) Reject(ctx context.Context, by user.User, crs Course, rc RejectCourse) (Course, error) {
	if !by.IsAdmin() {
		return Course{}, core.ErrPermissionDenied
	}
	if crs.Status != StatusPending {
		return Course{}, ErrInvalidStatus
	}
	return svc.setStatus(ctx, crs, StatusRejected, rc.Reason)
}

func (svc *service) setStatus(ctx context.Context, crs Course, status, reason string) (Course, error) {
	crs.Status = status
	crs.RejectionReason = reason
	crs.UpdatedAt = time.Now().UTC()
	crs.Modules = nil
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) getModule(ctx context.Context, crs Course, moduleID string) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, moduleID)
	if err != nil {
		return Module{}, err
	}
	if mod.CourseID != crs.ID {
		return Module{}, ErrModuleNotFound
	}
	return mod, nil
}

func (svc *service) getLesson(ctx context.Context, crs Course, lessonID string) (Lesson, error) {
	lsn, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Lesson{}, err
	}
	if lsn.CourseID != crs.ID {
		return Lesson{}, ErrLessonNotFound
	}
	return lsn, nil
}

func (svc *service) AddModule(ctx context.Context, by user.User, crs Course, nm NewModule) (Module, error) {
	if err := canEdit(by, crs); err != nil {
		return Module{}, err
	}
	return svc.repo.CreateModule(ctx, Module{
		ID:       uuid.New().String(),
		CourseID: crs.ID,
		Title:    nm.Title,
		Position: nm.Position,
		HasQuiz:  nm.HasQuiz,
		QuizData: nm.quizData(),
	})
}

func (svc *service) UpdateModule(ctx context.Context, by user.User, crs Course, moduleID string, nm NewModule) (Module, error) {
	if err := canEdit(by, crs); err != nil {
		return Module{}, err
	}
	mod, err := svc.getModule(ctx, crs, moduleID)
	if err != nil {
		return Module{}, err
	}
	mod.Title = nm.Title
	if nm.Position > 0 {
		mod.Position = nm.Position
	}
	mod.HasQuiz = nm.HasQuiz
	mod.QuizData = nm.quizData()
	mod.Lessons = nil
	return svc.repo.UpdateModule(ctx, mod)
}

func (svc *service) DeleteModule(ctx context.Context, by user.User, crs Course, moduleID string) error {
	if err := canEdit(by, crs); err != nil {
		return err
	}
	if _, err := svc.getModule(ctx, crs, moduleID); err != nil {
		return err
	}
	return svc.repo.DeleteModule(ctx, moduleID)
}

func (svc *service) AddLesson(ctx context.Context, by user.User, crs Course, moduleID string, nl NewLesson) (Lesson, error) {
	if err := canEdit(by, crs); err != nil {
		return Lesson{}, err
	}
	mod, err := svc.getModule(ctx, crs, moduleID)
	if err != nil {
		return Lesson{}, err
	}
	return svc.repo.CreateLesson(ctx, Lesson{
		ID:       uuid.New().String(),
		ModuleID: mod.ID,
		CourseID: crs.ID,
		Title:    nl.Title,
		Position: nl.Position,
		VideoURL: nl.VideoURL,
		Content:  nl.Content,
	})
}

func (svc *service) UpdateLesson(ctx context.Context, by user.User, crs Course, lessonID string, nl NewLesson) (Lesson, error) {
	if err := canEdit(by, crs); err != nil {
		return Lesson{}, err
	}
	lsn, err := svc.getLesson(ctx, crs, lessonID)
	if err != nil {
		return Lesson{}, err
	}
	lsn.Title = nl.Title
	if nl.Position > 0 {
		lsn.Position = nl.Position
	}
	lsn.VideoURL = nl.VideoURL
	lsn.Content = nl.Content
	return svc.repo.UpdateLesson(ctx, lsn)
}

func (svc *service) DeleteLesson(ctx context.Context, by user.User, crs Course, lessonID string) error {
	if err := canEdit(by, crs); err != nil {
		return err
	}
	if _, err := svc.getLesson(ctx, crs, lessonID); err != nil {
		return err
	}
	return svc.repo.DeleteLesson(ctx, lessonID)
}
