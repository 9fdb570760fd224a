package progress

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/user"
)

var (
	// errors
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrCertificateExists   = errors.New("certificate already issued")
)

type (
	Repository interface {
		// MarkLessonCompleted inserts the completion marker of (userID, lessonID) unless it exists.
		// reports whether it was inserted.
		MarkLessonCompleted(ctx context.Context, userID, lessonID, courseID string, at time.Time) (bool, error)
		// CompletedLessonIDs only lists the lessons still part of courseID.
		CompletedLessonIDs(ctx context.Context, userID, courseID string) ([]string, error)

		// CreateCertificate returns ErrCertificateExists when (UserID, CourseID) already holds one.
		CreateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		GetCertificate(ctx context.Context, userID, courseID string) (Certificate, error)
		GetCertificateByCode(ctx context.Context, code string) (Certificate, error)
		QueryCertificates(ctx context.Context, userID string) ([]Certificate, error)
	}

	// CourseReader is the part of the course repository the tracker relies on.
	CourseReader interface {
		GetCourse(ctx context.Context, id string, withTree bool) (course.Course, error)
		GetLesson(ctx context.Context, id string) (course.Lesson, error)
		CountLessons(ctx context.Context, courseID string) (int, error)
	}

	// Enrollments is the part of the class service the tracker relies on.
	Enrollments interface {
		ActiveEnrollment(ctx context.Context, userID, courseID string) (class.Enrollment, error)
		SetProgress(ctx context.Context, enr class.Enrollment, progress int) (class.Enrollment, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Tracker interface {
		MarkLessonCompleted(ctx context.Context, userID, lessonID string) (Result, error)
		GetCourseProgress(ctx context.Context, userID, courseID string) (CourseProgress, error)
		ListCertificates(ctx context.Context, userID string) ([]Certificate, error)
		VerifyCertificate(ctx context.Context, code string) (Certificate, error)
	}

	tracker struct {
		repo        Repository
		courses     CourseReader
		enrollments Enrollments
		users       UserGetter
		mailSvc     core.EmailService
		logger      core.Logger
		nowFunc     func() time.Time // mockable
		spawn       func(fn func())  // mockable
	}
)

func NewTracker(
	repo Repository,
	courses CourseReader,
	enrollments Enrollments,
	users UserGetter,
	mailSvc core.EmailService,
	logger core.Logger,
) Tracker {
	return &tracker{
		repo:        repo,
		courses:     courses,
		enrollments: enrollments,
		users:       users,
		mailSvc:     mailSvc,
		logger:      logger,
		nowFunc:     time.Now,
		spawn:       func(fn func()) { go fn() },
	}
}

func (t *tracker) MarkLessonCompleted(ctx context.Context, userID, lessonID string) (Result, error) {
	lsn, err := t.courses.GetLesson(ctx, lessonID)
	if err != nil {
		return Result{}, err
	}
	enr, err := t.enrollments.ActiveEnrollment(ctx, userID, lsn.CourseID)
	if err != nil {
		return Result{}, err
	}

	if _, err := t.repo.MarkLessonCompleted(ctx, userID, lsn.ID, lsn.CourseID, t.nowFunc().UTC()); err != nil {
		return Result{}, pkgerrors.Wrap(err, "marking lesson completed")
	}

	completed, total, err := t.counts(ctx, userID, lsn.CourseID)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		EnrollmentID: enr.ID,
		Progress:     ComputeProgress(len(completed), total),
		Completed:    len(completed),
		Total:        total,
	}

	if _, err := t.enrollments.SetProgress(ctx, enr, res.Progress); err != nil {
		return Result{}, pkgerrors.Wrap(err, "saving progress")
	}

	if res.Progress == 100 {
		cert, issued, err := t.issueCertificate(ctx, enr, lsn.CourseID)
		if err != nil {
			return Result{}, err
		}
		res.Certificate = &cert
		res.CertificateIssued = issued
		if issued {
			t.spawn(func() { t.sendCertificateMail(cert) })
		}
	}
	return res, nil
}

func (t *tracker) counts(ctx context.Context, userID, courseID string) ([]string, int, error) {
	completed, err := t.repo.CompletedLessonIDs(ctx, userID, courseID)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "listing completed lessons")
	}
	total, err := t.courses.CountLessons(ctx, courseID)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "counting lessons")
	}
	return completed, total, nil
}

// issueCertificate is idempotent per (user, course): an existing certificate is returned as is.
func (t *tracker) issueCertificate(ctx context.Context, enr class.Enrollment, courseID string) (Certificate, bool, error) {
	cert, err := t.repo.GetCertificate(ctx, enr.UserID, courseID)
	if err == nil {
		return cert, false, nil
	}
	if err != ErrCertificateNotFound {
		return Certificate{}, false, pkgerrors.Wrap(err, "getting certificate")
	}

	cert, err = t.repo.CreateCertificate(ctx, Certificate{
		ID:           uuid.New().String(),
		UserID:       enr.UserID,
		CourseID:     courseID,
		EnrollmentID: enr.ID,
		Code:         newCertificateCode(),
		IssuedAt:     t.nowFunc().UTC(),
	})
	if err == ErrCertificateExists {
		// lost a race against a concurrent completion
		cert, err = t.repo.GetCertificate(ctx, enr.UserID, courseID)
		return cert, false, err
	}
	if err != nil {
		return Certificate{}, false, pkgerrors.Wrap(err, "creating certificate")
	}
	return cert, true, nil
}

func newCertificateCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:16]
}

func (t *tracker) sendCertificateMail(cert Certificate) {
	ctx := context.Background()
	usr, err := t.users.GetByID(ctx, cert.UserID)
	if err != nil {
		t.logger.Error(fmt.Sprintf("progress.sendCertificateMail: %v", err), err)
		return
	}
	crs, err := t.courses.GetCourse(ctx, cert.CourseID, false)
	if err != nil {
		t.logger.Error(fmt.Sprintf("progress.sendCertificateMail: %v", err), err, usr)
		return
	}
	t.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.MailAddress()},
		Subject:      "Congratulations on completing " + crs.Title,
		TemplateName: "certificate_issued",
		TemplateData: map[string]string{
			"Name":        usr.Name,
			"CourseTitle": crs.Title,
			"Code":        cert.Code,
		},
	})
}

func (t *tracker) GetCourseProgress(ctx context.Context, userID, courseID string) (CourseProgress, error) {
	if _, err := t.courses.GetCourse(ctx, courseID, false); err != nil {
		return CourseProgress{}, err
	}
	completed, total, err := t.counts(ctx, userID, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	if completed == nil {
		completed = []string{}
	}
	return CourseProgress{
		CourseID:           courseID,
		CompletedLessonIDs: completed,
		Completed:          len(completed),
		Total:              total,
		Progress:           ComputeProgress(len(completed), total),
	}, nil
}

func (t *tracker) ListCertificates(ctx context.Context, userID string) ([]Certificate, error) {
	return t.repo.QueryCertificates(ctx, userID)
}

func (t *tracker) VerifyCertificate(ctx context.Context, code string) (Certificate, error) {
	code = strings.ToUpper(core.CleanString(code))
	if code == "" {
		return Certificate{}, ErrCertificateNotFound
	}
	return t.repo.GetCertificateByCode(ctx, code)
}
