package finance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/campus/core"
)

var (
	// errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrScholarshipNotFound = errors.New("scholarship not found")
	ErrNotPending          = errors.New("transaction is not pending")
)

type (
	Repository interface {
		CreateTransaction(ctx context.Context, t Transaction) (Transaction, error)
		GetTransaction(ctx context.Context, id string) (Transaction, error)
		QueryTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
		UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
		// SumTransactions reports the Totals of studentID in currency.
		SumTransactions(ctx context.Context, studentID, currency string) (Totals, error)

		CreateScholarship(ctx context.Context, s Scholarship) (Scholarship, error)
		GetScholarship(ctx context.Context, id string) (Scholarship, error)
		QueryScholarships(ctx context.Context, studentID string) ([]Scholarship, error)
		UpdateScholarship(ctx context.Context, s Scholarship) (Scholarship, error)
		DeleteScholarship(ctx context.Context, id string) error
	}

	Service interface {
		CreateTransaction(ctx context.Context, nt NewTransaction) (Transaction, error)
		GetTransaction(ctx context.Context, id string) (Transaction, error)
		QueryTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
		UpdateTransaction(ctx context.Context, t Transaction, nt NewTransaction) (Transaction, error)
		MarkPaid(ctx context.Context, t Transaction) (Transaction, error)
		CancelTransaction(ctx context.Context, t Transaction) (Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error

		CreateScholarship(ctx context.Context, ns NewScholarship) (Scholarship, error)
		GetScholarship(ctx context.Context, id string) (Scholarship, error)
		QueryScholarships(ctx context.Context, studentID string) ([]Scholarship, error)
		UpdateScholarship(ctx context.Context, s Scholarship, ns NewScholarship) (Scholarship, error)
		RevokeScholarship(ctx context.Context, s Scholarship) (Scholarship, error)
		DeleteScholarship(ctx context.Context, id string) error

		Balance(ctx context.Context, studentID, currency string) (Balance, error)
	}

	service struct {
		repo    Repository
		nowFunc func() time.Time // mockable
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo, nowFunc: time.Now}
}

func (svc *service) CreateTransaction(ctx context.Context, nt NewTransaction) (Transaction, error) {
	return svc.repo.CreateTransaction(ctx, Transaction{
		ID:          uuid.New().String(),
		StudentID:   nt.StudentID,
		Kind:        nt.Kind,
		Amount:      nt.cents,
		Currency:    nt.Currency,
		Status:      StatusPending,
		Description: nt.Description,
		DueOn:       nt.dueOn,
		CreatedAt:   svc.nowFunc().UTC(),
	})
}

func (svc *service) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	return svc.repo.GetTransaction(ctx, id)
}

func (svc *service) QueryTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	return svc.repo.QueryTransactions(ctx, filter)
}

func (svc *service) UpdateTransaction(ctx context.Context, t Transaction, nt NewTransaction) (Transaction, error) {
	if t.Status != StatusPending {
		return Transaction{}, ErrNotPending
	}
	if nt.StudentID != t.StudentID {
		return Transaction{}, core.NewFieldError("student_id", "the student of a transaction cannot change")
	}
	t.Kind = nt.Kind
	t.Amount = nt.cents
	t.Currency = nt.Currency
	t.Description = nt.Description
	t.DueOn = nt.dueOn
	return svc.repo.UpdateTransaction(ctx, t)
}

func (svc *service) MarkPaid(ctx context.Context, t Transaction) (Transaction, error) {
	if t.Status != StatusPending {
		return Transaction{}, ErrNotPending
	}
	t.Status = StatusPaid
	t.PaidAt = svc.nowFunc().UTC()
	return svc.repo.UpdateTransaction(ctx, t)
}

func (svc *service) CancelTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if t.Status != StatusPending {
		return Transaction{}, ErrNotPending
	}
	t.Status = StatusCancelled
	return svc.repo.UpdateTransaction(ctx, t)
}

func (svc *service) DeleteTransaction(ctx context.Context, id string) error {
	return svc.repo.DeleteTransaction(ctx, id)
}

func (svc *service) CreateScholarship(ctx context.Context, ns NewScholarship) (Scholarship, error) {
	return svc.repo.CreateScholarship(ctx, Scholarship{
		ID:         uuid.New().String(),
		StudentID:  ns.StudentID,
		Name:       ns.Name,
		Percentage: ns.Percentage,
		Amount:     ns.cents,
		Currency:   ns.Currency,
		StartsOn:   ns.startsOn,
		EndsOn:     ns.endsOn,
		Status:     ScholarshipActive,
		CreatedAt:  svc.nowFunc().UTC(),
	})
}

func (svc *service) GetScholarship(ctx context.Context, id string) (Scholarship, error) {
	return svc.repo.GetScholarship(ctx, id)
}

func (svc *service) QueryScholarships(ctx context.Context, studentID string) ([]Scholarship, error) {
	return svc.repo.QueryScholarships(ctx, studentID)
}

func (svc *service) UpdateScholarship(ctx context.Context, s Scholarship, ns NewScholarship) (Scholarship, error) {
	if ns.StudentID != s.StudentID {
		return Scholarship{}, core.NewFieldError("student_id", "the student of a scholarship cannot change")
	}
	s.Name = ns.Name
	s.Percentage = ns.Percentage
	s.Amount = ns.cents
	s.Currency = ns.Currency
	s.StartsOn = ns.startsOn
	s.EndsOn = ns.endsOn
	return svc.repo.UpdateScholarship(ctx, s)
}

func (svc *service) RevokeScholarship(ctx context.Context, s Scholarship) (Scholarship, error) {
	s.Status = ScholarshipRevoked
	return svc.repo.UpdateScholarship(ctx, s)
}

func (svc *service) DeleteScholarship(ctx context.Context, id string) error {
	return svc.repo.DeleteScholarship(ctx, id)
}

func (svc *service) Balance(ctx context.Context, studentID, currency string) (Balance, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	tot, err := svc.repo.SumTransactions(ctx, studentID, currency)
	if err != nil {
		return Balance{}, err
	}
	scholarships, err := svc.repo.QueryScholarships(ctx, studentID)
	if err != nil {
		return Balance{}, err
	}
	return ComputeBalance(studentID, currency, tot, scholarships, svc.nowFunc()), nil
}
