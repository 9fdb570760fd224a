package grade

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/user"
)

var ErrNotFound = errors.New("grade not found")

type Grade struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"class_id"`
	StudentID  string    `json:"student_id"`
	Assessment string    `json:"assessment"`
	Score      float64   `json:"score"`
	MaxScore   float64   `json:"max_score"`
	Weight     float64   `json:"weight"`
	GradedBy   string    `json:"graded_by"`
	GradedAt   time.Time `json:"graded_at"`
}

// NewGrade is also used for updates.
type NewGrade struct {
	StudentID  string  `json:"student_id" validate:"required,uuid"`
	Assessment string  `json:"assessment" validate:"required,max=255"`
	Score      float64 `json:"score" validate:"gte=0,ltefield=MaxScore"`
	MaxScore   float64 `json:"max_score" validate:"gt=0"`
	Weight     float64 `json:"weight" validate:"gte=0"` // 0 defaults to 1
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Assessment = core.CleanString(ng.Assessment)
	if ng.Weight == 0 {
		ng.Weight = 1
	}
	return validate.Struct(ng)
}

type Filter struct {
	ClassID   string `query:"class_id"`
	StudentID string `query:"student_id"`
}

type FinalGrade struct {
	ClassID   string  `json:"class_id"`
	StudentID string  `json:"student_id"`
	Grades    int     `json:"grades"`
	Value     float64 `json:"value"` // weighted percentage
}

// WeightedAverage returns Σ(score/max·weight) / Σweight · 100, rounded to 2 decimals. 0 without grades.
func WeightedAverage(grades []Grade) float64 {
	var sum, weights float64
	for _, g := range grades {
		if g.MaxScore <= 0 || g.Weight <= 0 {
			continue
		}
		sum += g.Score / g.MaxScore * g.Weight
		weights += g.Weight
	}
	if weights == 0 {
		return 0
	}
	return core.Round2(sum / weights * 100)
}

type (
	Repository interface {
		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		GetGrade(ctx context.Context, id string) (Grade, error)
		QueryGrades(ctx context.Context, filter Filter) ([]Grade, error)
		UpdateGrade(ctx context.Context, g Grade) (Grade, error)
		DeleteGrade(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, by user.User, cls class.Class, ng NewGrade) (Grade, error)
		Get(ctx context.Context, cls class.Class, id string) (Grade, error)
		Query(ctx context.Context, filter Filter) ([]Grade, error)
		Update(ctx context.Context, by user.User, cls class.Class, g Grade, ng NewGrade) (Grade, error)
		Delete(ctx context.Context, by user.User, cls class.Class, g Grade) error
		FinalGrade(ctx context.Context, classID, studentID string) (FinalGrade, error)
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func canGrade(by user.User, cls class.Class) bool {
	return by.IsAdmin() || (by.IsProfessor() && cls.ProfessorID == by.ID)
}

func (svc *service) Create(ctx context.Context, by user.User, cls class.Class, ng NewGrade) (Grade, error) {
	if !canGrade(by, cls) {
		return Grade{}, core.ErrPermissionDenied
	}
	return svc.repo.CreateGrade(ctx, Grade{
		ID:         uuid.New().String(),
		ClassID:    cls.ID,
		StudentID:  ng.StudentID,
		Assessment: ng.Assessment,
		Score:      ng.Score,
		MaxScore:   ng.MaxScore,
		Weight:     ng.Weight,
		GradedBy:   by.ID,
		GradedAt:   time.Now().UTC(),
	})
}

func (svc *service) Get(ctx context.Context, cls class.Class, id string) (Grade, error) {
	g, err := svc.repo.GetGrade(ctx, id)
	if err != nil {
		return Grade{}, err
	}
	if g.ClassID != cls.ID {
		return Grade{}, ErrNotFound
	}
	return g, nil
}

func (svc *service) Query(ctx context.Context, filter Filter) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, filter)
}

func (svc *service) Update(ctx context.Context, by user.User, cls class.Class, g Grade, ng NewGrade) (Grade, error) {
	if !canGrade(by, cls) {
		return Grade{}, core.ErrPermissionDenied
	}
	g.StudentID = ng.StudentID
	g.Assessment = ng.Assessment
	g.Score = ng.Score
	g.MaxScore = ng.MaxScore
	g.Weight = ng.Weight
	g.GradedBy = by.ID
	g.GradedAt = time.Now().UTC()
	return svc.repo.UpdateGrade(ctx, g)
}

func (svc *service) Delete(ctx context.Context, by user.User, cls class.Class, g Grade) error {
	if !canGrade(by, cls) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteGrade(ctx, g.ID)
}

func (svc *service) FinalGrade(ctx context.Context, classID, studentID string) (FinalGrade, error) {
	grades, err := svc.repo.QueryGrades(ctx, Filter{ClassID: classID, StudentID: studentID})
	if err != nil {
		return FinalGrade{}, err
	}
	return FinalGrade{
		ClassID:   classID,
		StudentID: studentID,
		Grades:    len(grades),
		Value:     WeightedAverage(grades),
	}, nil
}
