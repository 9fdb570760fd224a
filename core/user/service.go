package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrProfileNotFound = errors.New("professor profile not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrInvalidUID      = errors.New("invalid uid")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)

		GetProfessorProfile(ctx context.Context, userID string) (ProfessorProfile, error)
		// SaveProfessorProfile creates or replaces the profile of prof.UserID.
		SaveProfessorProfile(ctx context.Context, prof ProfessorProfile) (ProfessorProfile, error)
		DeleteProfessorProfile(ctx context.Context, userID string) error
	}

	Service interface {
		CheckEmailUniqueness(email string, excludedUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error)
		// EnsureCorrectRole reconciles the stored role of usr with the role allow-lists.
		EnsureCorrectRole(ctx context.Context, usr User) (User, error)
		GetProfessorProfile(ctx context.Context, usr User) (ProfessorProfile, error)
		UpdateProfessorProfile(ctx context.Context, usr User, up UpdateProfessorProfile) (ProfessorProfile, error)
	}

	service struct {
		repo    Repository
		roles   *RoleResolver
		mailSvc core.EmailService
		tokens  tokenGenerator
		logger  core.Logger
	}
)

func NewService(conf *core.Config, repo Repository, roles *RoleResolver, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:    repo,
		roles:   roles,
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		logger:  logger,
	}
}

func (svc *service) CheckEmailUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Email:     nu.Email,
		IsActive:  true,
		Role:      svc.roles.ResolveRole(nu.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	if usr.IsProfessor() {
		if err := svc.roles.syncProfile(ctx, usr); err != nil {
			return User{}, err
		}
	}
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	emailChanged := usr.Email != uu.Email

	usr.Name = uu.Name
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, pkgerrors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	if emailChanged {
		// the allow-lists are keyed by email: reconcile right away, bypassing the cooldown
		usr, _, err = svc.roles.reconcile(ctx, usr)
	}
	return usr, err
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids...)
	return err
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("user.sendPasswordResetMail: %v", err), err, usr)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.MailAddress()},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error) {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return User{}, ErrInvalidUID
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidUID
		}
		return User{}, err
	}
	if err := svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return User{}, err
	}
	if err := validatePasswordPolicy(rp.Password, usr.Name, usr.Email); err != nil {
		return User{}, err
	}

	if err := usr.SetPassword(rp.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) EnsureCorrectRole(ctx context.Context, usr User) (User, error) {
	usr, _, err := svc.roles.EnsureCorrectRole(ctx, usr)
	return usr, err
}

func (svc *service) GetProfessorProfile(ctx context.Context, usr User) (ProfessorProfile, error) {
	if !usr.IsProfessor() {
		return ProfessorProfile{}, ErrProfileNotFound
	}
	return svc.repo.GetProfessorProfile(ctx, usr.ID)
}

func (svc *service) UpdateProfessorProfile(ctx context.Context, usr User, up UpdateProfessorProfile) (ProfessorProfile, error) {
	prof, err := svc.GetProfessorProfile(ctx, usr)
	if err != nil {
		return ProfessorProfile{}, err
	}
	prof.Department = up.Department
	prof.Title = up.Title
	prof.Bio = up.Bio
	prof.UpdatedAt = time.Now().UTC()
	return svc.repo.SaveProfessorProfile(ctx, prof)
}
