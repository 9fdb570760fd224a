package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/progress"
	"github.com/trezcool/campus/core/user"
	emailsvc "github.com/trezcool/campus/services/email"
	"github.com/trezcool/campus/storage/database/inmem"
	"github.com/trezcool/campus/tests"
)

type userGetter struct{ repo user.Repository }

func (g userGetter) GetByID(ctx context.Context, id string) (user.User, error) {
	return g.repo.GetUser(ctx, user.GetFilter{ID: id})
}

// 2 modules of 2 lessons: lessons 1-3 give 75%, lesson 4 gives 100% & the certificate,
// completing lesson 4 again issues nothing.
func TestTracker_MarkLessonCompleted(t *testing.T) {
	ctx := context.Background()
	conf := testutil.NewConfig()
	logger := new(testutil.Logger)
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	courseRepo := inmemdb.NewCourseRepository(db)
	classRepo := inmemdb.NewClassRepository(db)
	classSvc := class.NewService(classRepo, courseRepo)
	mailSvc := emailsvc.NewConsoleMock(conf, inmemdb.NewEmailLogRepository(db), logger)
	tracker := progress.NewTracker(inmemdb.NewProgressRepository(db), courseRepo, classSvc, userGetter{usrRepo}, mailSvc, logger)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "pwd", user.RoleStudent, true)
	crs, err := courseRepo.CreateCourse(ctx, course.Course{ID: uuid.New().String(), Title: "Go", Status: course.StatusApproved})
	require.NoError(t, err)

	var lessons []course.Lesson
	for m := 1; m <= 2; m++ {
		mod, err := courseRepo.CreateModule(ctx, course.Module{ID: uuid.New().String(), CourseID: crs.ID, Title: "Module", Position: m})
		require.NoError(t, err)
		for l := 1; l <= 2; l++ {
			lsn, err := courseRepo.CreateLesson(ctx, course.Lesson{
				ID: uuid.New().String(), ModuleID: mod.ID, CourseID: crs.ID, Title: "Lesson", Position: l,
			})
			require.NoError(t, err)
			lessons = append(lessons, lsn)
		}
	}

	_, err = tracker.MarkLessonCompleted(ctx, student.ID, lessons[0].ID)
	assert.ErrorIs(t, err, class.ErrNotEnrolled)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	cls, err := classRepo.CreateClass(ctx, class.Class{
		ID: uuid.New().String(), CourseID: crs.ID, StartsOn: today, EndsOn: today.AddDate(0, 1, 0), IsActive: true,
	})
	require.NoError(t, err)
	enr, err := classSvc.Enroll(ctx, student, student, cls)
	require.NoError(t, err)

	for i, want := range []int{25, 50, 75} {
		res, err := tracker.MarkLessonCompleted(ctx, student.ID, lessons[i].ID)
		require.NoError(t, err)
		assert.Equal(t, want, res.Progress)
		assert.Nil(t, res.Certificate)
	}

	res, err := tracker.MarkLessonCompleted(ctx, student.ID, lessons[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Completed, "completions are idempotent")

	res, err = tracker.MarkLessonCompleted(ctx, student.ID, lessons[3].ID)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Progress)
	require.NotNil(t, res.Certificate)
	assert.True(t, res.CertificateIssued)
	assert.Equal(t, enr.ID, res.Certificate.EnrollmentID)
	code := res.Certificate.Code

	res, err = tracker.MarkLessonCompleted(ctx, student.ID, lessons[3].ID)
	require.NoError(t, err)
	assert.False(t, res.CertificateIssued)
	assert.Equal(t, code, res.Certificate.Code)

	certs, err := tracker.ListCertificates(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, certs, 1)

	cert, err := tracker.VerifyCertificate(ctx, " "+code+" ")
	require.NoError(t, err)
	assert.Equal(t, student.ID, cert.UserID)

	enr, err = classSvc.GetEnrollment(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, enr.Progress)

	assert.Eventually(t, func() bool {
		sent := mailSvc.SentMessages()
		return len(sent) == 1 && sent[0].TemplateName == "certificate_issued"
	}, time.Second, 10*time.Millisecond)
}

// lockingEnrollments has an admin lock the enrollment while a completion is being recorded.
type lockingEnrollments struct {
	class.Service
	admin user.User
}

func (e lockingEnrollments) ActiveEnrollment(ctx context.Context, userID, courseID string) (class.Enrollment, error) {
	enr, err := e.Service.ActiveEnrollment(ctx, userID, courseID)
	if err != nil {
		return enr, err
	}
	if _, err := e.Service.SetEnrollmentStatus(ctx, e.admin, enr, class.EnrollmentLocked); err != nil {
		return class.Enrollment{}, err
	}
	return enr, nil
}

func TestTracker_MarkLessonCompleted_onlySavesProgress(t *testing.T) {
	ctx := context.Background()
	logger := new(testutil.Logger)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	courseRepo := inmemdb.NewCourseRepository(db)
	classRepo := inmemdb.NewClassRepository(db)
	classSvc := class.NewService(classRepo, courseRepo)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "pwd", user.RoleAdmin, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "pwd", user.RoleStudent, true)
	enrollments := lockingEnrollments{Service: classSvc, admin: admin}
	tracker := progress.NewTracker(inmemdb.NewProgressRepository(db), courseRepo, enrollments, userGetter{usrRepo}, nil, logger)

	crs, err := courseRepo.CreateCourse(ctx, course.Course{ID: uuid.New().String(), Title: "Go", Status: course.StatusApproved})
	require.NoError(t, err)
	mod, err := courseRepo.CreateModule(ctx, course.Module{ID: uuid.New().String(), CourseID: crs.ID, Title: "Module", Position: 1})
	require.NoError(t, err)
	var lessons []course.Lesson
	for l := 1; l <= 2; l++ {
		lsn, err := courseRepo.CreateLesson(ctx, course.Lesson{
			ID: uuid.New().String(), ModuleID: mod.ID, CourseID: crs.ID, Title: "Lesson", Position: l,
		})
		require.NoError(t, err)
		lessons = append(lessons, lsn)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	cls, err := classRepo.CreateClass(ctx, class.Class{
		ID: uuid.New().String(), CourseID: crs.ID, StartsOn: today, EndsOn: today.AddDate(0, 1, 0), IsActive: true,
	})
	require.NoError(t, err)
	enr, err := classSvc.Enroll(ctx, student, student, cls)
	require.NoError(t, err)

	res, err := tracker.MarkLessonCompleted(ctx, student.ID, lessons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Progress)

	enr, err = classSvc.GetEnrollment(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, class.EnrollmentLocked, enr.Status, "the lock is kept")
	assert.Equal(t, 50, enr.Progress)

	t.Run("stale progress does not lower it", func(t *testing.T) {
		stale := enr
		stale.Progress = 0
		got, err := classSvc.SetProgress(ctx, stale, 25)
		require.NoError(t, err)
		assert.Equal(t, 50, got.Progress)
		assert.Equal(t, class.EnrollmentLocked, got.Status)
	})
}
