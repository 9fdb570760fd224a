package inmemdb

import (
	"context"

	"github.com/trezcool/campus/core/finance"
)

type financeRepository struct {
	db *DB
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *DB) finance.Repository {
	return &financeRepository{db: db}
}

func (repo *financeRepository) CreateTransaction(_ context.Context, t finance.Transaction) (finance.Transaction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.transactions[t.ID] = &t
	return t, nil
}

func (repo *financeRepository) GetTransaction(_ context.Context, id string) (finance.Transaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.transactions[id]; ok {
		return *t, nil
	}
	return finance.Transaction{}, finance.ErrTransactionNotFound
}

func (repo *financeRepository) QueryTransactions(_ context.Context, filter finance.TransactionFilter) ([]finance.Transaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.transactions, filter.Match,
		func(a, b finance.Transaction) bool { return a.CreatedAt.After(b.CreatedAt) }), nil
}

func (repo *financeRepository) UpdateTransaction(_ context.Context, t finance.Transaction) (finance.Transaction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.transactions[t.ID]; !ok {
		return finance.Transaction{}, finance.ErrTransactionNotFound
	}
	repo.db.transactions[t.ID] = &t
	return t, nil
}

func (repo *financeRepository) DeleteTransaction(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.transactions[id]; !ok {
		return finance.ErrTransactionNotFound
	}
	delete(repo.db.transactions, id)
	return nil
}

func (repo *financeRepository) SumTransactions(ctx context.Context, studentID, currency string) (finance.Totals, error) {
	txs, err := repo.QueryTransactions(ctx, finance.TransactionFilter{StudentID: studentID, Currency: currency})
	if err != nil {
		return finance.Totals{}, err
	}
	return finance.SumTransactions(txs), nil
}

func (repo *financeRepository) CreateScholarship(_ context.Context, s finance.Scholarship) (finance.Scholarship, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.scholarships[s.ID] = &s
	return s, nil
}

func (repo *financeRepository) GetScholarship(_ context.Context, id string) (finance.Scholarship, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.scholarships[id]; ok {
		return *s, nil
	}
	return finance.Scholarship{}, finance.ErrScholarshipNotFound
}

func (repo *financeRepository) QueryScholarships(_ context.Context, studentID string) ([]finance.Scholarship, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.scholarships,
		func(s finance.Scholarship) bool { return studentID == "" || s.StudentID == studentID },
		func(a, b finance.Scholarship) bool { return a.StartsOn.Before(b.StartsOn) }), nil
}

func (repo *financeRepository) UpdateScholarship(_ context.Context, s finance.Scholarship) (finance.Scholarship, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.scholarships[s.ID]; !ok {
		return finance.Scholarship{}, finance.ErrScholarshipNotFound
	}
	repo.db.scholarships[s.ID] = &s
	return s, nil
}

func (repo *financeRepository) DeleteScholarship(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.scholarships[id]; !ok {
		return finance.ErrScholarshipNotFound
	}
	delete(repo.db.scholarships, id)
	return nil
}
