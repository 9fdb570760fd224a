package request

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/user"
)

var (
	// errors
	ErrNotFound   = errors.New("request not found")
	ErrNotPending = errors.New("request is no longer pending")
)

type (
	Repository interface {
		CreateRequest(ctx context.Context, req Request) (Request, error)
		GetRequest(ctx context.Context, id string) (Request, error)
		QueryRequests(ctx context.Context, filter Filter) ([]Request, error)
		UpdateRequest(ctx context.Context, req Request) (Request, error)
	}

	// Enrollments is the part of the class service requests rely on.
	Enrollments interface {
		GetEnrollment(ctx context.Context, id string) (class.Enrollment, error)
		SetEnrollmentStatus(ctx context.Context, by user.User, enr class.Enrollment, status string) (class.Enrollment, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		Submit(ctx context.Context, by user.User, nr NewRequest) (Request, error)
		Query(ctx context.Context, viewer user.User, filter Filter) ([]Request, error)
		// Get returns ErrNotFound for requests the viewer may not see.
		Get(ctx context.Context, viewer user.User, id string) (Request, error)
		Cancel(ctx context.Context, by user.User, req Request) (Request, error)
		Approve(ctx context.Context, by user.User, req Request, rv Review) (Request, error)
		Reject(ctx context.Context, by user.User, req Request, rv Review) (Request, error)
	}

	service struct {
		repo        Repository
		enrollments Enrollments
		users       UserGetter
		mailSvc     core.EmailService
		logger      core.Logger
		spawn       func(fn func()) // mockable
	}
)

func NewService(repo Repository, enrollments Enrollments, users UserGetter, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:        repo,
		enrollments: enrollments,
		users:       users,
		mailSvc:     mailSvc,
		logger:      logger,
		spawn:       func(fn func()) { go fn() },
	}
}

func (svc *service) Submit(ctx context.Context, by user.User, nr NewRequest) (Request, error) {
	if nr.EnrollmentID != "" {
		enr, err := svc.enrollments.GetEnrollment(ctx, nr.EnrollmentID)
		if err != nil && err != class.ErrEnrollmentNotFound {
			return Request{}, err
		}
		if err != nil || enr.UserID != by.ID {
			return Request{}, core.NewFieldError("enrollment_id", class.ErrEnrollmentNotFound.Error())
		}
	}

	return svc.repo.CreateRequest(ctx, Request{
		ID:           uuid.New().String(),
		RequesterID:  by.ID,
		Kind:         nr.Kind,
		Subject:      nr.Subject,
		Details:      nr.Details,
		EnrollmentID: nr.EnrollmentID,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	})
}

func (svc *service) Query(ctx context.Context, viewer user.User, filter Filter) ([]Request, error) {
	if !viewer.IsAdmin() {
		filter.RequesterID = viewer.ID
	}
	return svc.repo.QueryRequests(ctx, filter)
}

func (svc *service) Get(ctx context.Context, viewer user.User, id string) (Request, error) {
	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !viewer.IsAdmin() && req.RequesterID != viewer.ID {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (svc *service) Cancel(ctx context.Context, by user.User, req Request) (Request, error) {
	if req.RequesterID != by.ID {
		return Request{}, core.ErrPermissionDenied
	}
	if !req.IsPending() {
		return Request{}, ErrNotPending
	}
	req.Status = StatusCancelled
	return svc.repo.UpdateRequest(ctx, req)
}

func (svc *service) Approve(ctx context.Context, by user.User, req Request, rv Review) (Request, error) {
	if err := svc.checkReview(by, req); err != nil {
		return Request{}, err
	}

	if req.Kind == KindWithdrawal && req.EnrollmentID != "" {
		enr, err := svc.enrollments.GetEnrollment(ctx, req.EnrollmentID)
		if err != nil {
			return Request{}, pkgerrors.Wrap(err, "getting enrollment")
		}
		if _, err := svc.enrollments.SetEnrollmentStatus(ctx, by, enr, class.EnrollmentWithdrawn); err != nil {
			if err == class.ErrInvalidTransition {
				return Request{}, core.NewFieldError("enrollment_id", "enrollment can no longer be withdrawn")
			}
			return Request{}, pkgerrors.Wrap(err, "withdrawing enrollment")
		}
	}
	return svc.review(ctx, by, req, StatusApproved, rv.Note)
}

func (svc *service) Reject(ctx context.Context, by user.User, req Request, rv Review) (Request, error) {
	if err := svc.checkReview(by, req); err != nil {
		return Request{}, err
	}
	return svc.review(ctx, by, req, StatusRejected, rv.Note)
}

func (svc *service) checkReview(by user.User, req Request) error {
	if !by.IsAdmin() {
		return core.ErrPermissionDenied
	}
	if !req.IsPending() {
		return ErrNotPending
	}
	return nil
}

func (svc *service) review(ctx context.Context, by user.User, req Request, status, note string) (Request, error) {
	req.Status = status
	req.ReviewerID = by.ID
	req.ReviewNote = note
	req.ReviewedAt = time.Now().UTC()
	req, err := svc.repo.UpdateRequest(ctx, req)
	if err != nil {
		return Request{}, err
	}
	svc.spawn(func() { svc.sendReviewMail(req) })
	return req, nil
}

func (svc *service) sendReviewMail(req Request) {
	usr, err := svc.users.GetByID(context.Background(), req.RequesterID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("request.sendReviewMail: %v", err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.MailAddress()},
		Subject:      fmt.Sprintf("Your request has been %s", req.Status),
		TemplateName: "request_reviewed",
		TemplateData: map[string]string{
			"Name":    usr.Name,
			"ID":      req.ID,
			"Kind":    req.Kind,
			"Subject": req.Subject,
			"Status":  req.Status,
			"Note":    req.ReviewNote,
		},
	})
}
