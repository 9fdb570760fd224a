package grade_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/grade"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/database/inmem"
)

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name   string
		grades []grade.Grade
		want   float64
	}{
		{name: "no grades"},
		{name: "single", grades: []grade.Grade{{Score: 15, MaxScore: 20, Weight: 1}}, want: 75},
		{
			name: "weighted",
			grades: []grade.Grade{
				{Score: 40, MaxScore: 50, Weight: 1},
				{Score: 90, MaxScore: 100, Weight: 2},
			},
			want: 86.67,
		},
		{
			name: "zero weights are ignored",
			grades: []grade.Grade{
				{Score: 10, MaxScore: 10, Weight: 0},
				{Score: 5, MaxScore: 10, Weight: 1},
			},
			want: 50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, grade.WeightedAverage(tt.grades))
		})
	}
}

func TestNewGrade_Validate(t *testing.T) {
	validate := validator.New()
	studentID := uuid.New().String()

	ng := grade.NewGrade{StudentID: studentID, Assessment: "  Quiz ", Score: 8, MaxScore: 10}
	require.NoError(t, ng.Validate(validate))
	assert.Equal(t, "Quiz", ng.Assessment)
	assert.Equal(t, float64(1), ng.Weight, "weight defaults to 1")

	ng = grade.NewGrade{StudentID: studentID, Assessment: "Quiz", Score: 11, MaxScore: 10}
	assert.Error(t, ng.Validate(validate), "score above max")

	ng = grade.NewGrade{StudentID: studentID, Assessment: "Quiz", Score: 0, MaxScore: 0}
	assert.Error(t, ng.Validate(validate), "max score is required")
}

func TestService(t *testing.T) {
	ctx := context.Background()
	svc := grade.NewService(inmemdb.NewGradeRepository(inmemdb.Open()))

	prof := user.User{ID: uuid.New().String(), Role: user.RoleProfessor}
	other := user.User{ID: uuid.New().String(), Role: user.RoleProfessor}
	admin := user.User{ID: uuid.New().String(), Role: user.RoleAdmin}
	student := uuid.New().String()
	cls := class.Class{ID: uuid.New().String(), ProfessorID: prof.ID}

	_, err := svc.Create(ctx, other, cls, grade.NewGrade{StudentID: student, Assessment: "Quiz", Score: 1, MaxScore: 2, Weight: 1})
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	midterm, err := svc.Create(ctx, prof, cls, grade.NewGrade{StudentID: student, Assessment: "Midterm", Score: 40, MaxScore: 50, Weight: 1})
	require.NoError(t, err)
	assert.Equal(t, prof.ID, midterm.GradedBy)
	_, err = svc.Create(ctx, admin, cls, grade.NewGrade{StudentID: student, Assessment: "Final", Score: 90, MaxScore: 100, Weight: 2})
	require.NoError(t, err)

	final, err := svc.FinalGrade(ctx, cls.ID, student)
	require.NoError(t, err)
	assert.Equal(t, grade.FinalGrade{ClassID: cls.ID, StudentID: student, Grades: 2, Value: 86.67}, final)

	_, err = svc.Get(ctx, class.Class{ID: uuid.New().String()}, midterm.ID)
	assert.ErrorIs(t, err, grade.ErrNotFound, "grades are scoped to their class")

	midterm, err = svc.Update(ctx, admin, cls, midterm, grade.NewGrade{StudentID: student, Assessment: "Midterm", Score: 50, MaxScore: 50, Weight: 1})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, midterm.GradedBy)

	final, err = svc.FinalGrade(ctx, cls.ID, student)
	require.NoError(t, err)
	assert.Equal(t, 93.33, final.Value)

	assert.ErrorIs(t, svc.Delete(ctx, other, cls, midterm), core.ErrPermissionDenied)
	require.NoError(t, svc.Delete(ctx, prof, cls, midterm))
	_, err = svc.Get(ctx, cls, midterm.ID)
	assert.ErrorIs(t, err, grade.ErrNotFound)
}
