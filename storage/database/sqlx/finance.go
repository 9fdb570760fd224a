package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/campus/core/finance"
)

type (
	transactionRow struct {
		ID          string    `db:"id"`
		StudentID   string    `db:"student_id"`
		Kind        string    `db:"kind"`
		Amount      int64     `db:"amount"`
		Currency    string    `db:"currency"`
		Status      string    `db:"status"`
		Description string    `db:"description"`
		DueOn       null.Time `db:"due_on"`
		PaidAt      null.Time `db:"paid_at"`
		CreatedAt   time.Time `db:"created_at"`
	}

	scholarshipRow struct {
		ID         string    `db:"id"`
		StudentID  string    `db:"student_id"`
		Name       string    `db:"name"`
		Percentage int       `db:"percentage"`
		Amount     int64     `db:"amount"`
		Currency   string    `db:"currency"`
		StartsOn   time.Time `db:"starts_on"`
		EndsOn     null.Time `db:"ends_on"`
		Status     string    `db:"status"`
		CreatedAt  time.Time `db:"created_at"`
	}

	financeRepository struct {
		db *sqlx.DB
	}
)

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *sqlx.DB) finance.Repository {
	return &financeRepository{db: db}
}

func nullDate(t time.Time) null.Time {
	if t.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(dateOf(t))
}

func boilTransaction(t finance.Transaction) transactionRow {
	return transactionRow{
		ID:          t.ID,
		StudentID:   t.StudentID,
		Kind:        t.Kind,
		Amount:      t.Amount,
		Currency:    t.Currency,
		Status:      t.Status,
		Description: t.Description,
		DueOn:       nullDate(t.DueOn),
		PaidAt:      nullTime(t.PaidAt),
		CreatedAt:   t.CreatedAt.UTC(),
	}
}

func (r transactionRow) unboil() finance.Transaction {
	t := finance.Transaction{
		ID:          r.ID,
		StudentID:   r.StudentID,
		Kind:        r.Kind,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Status:      r.Status,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.DueOn.Valid {
		t.DueOn = dateOf(r.DueOn.Time)
	}
	if r.PaidAt.Valid {
		t.PaidAt = r.PaidAt.Time.UTC()
	}
	return t
}

func boilScholarship(s finance.Scholarship) scholarshipRow {
	return scholarshipRow{
		ID:         s.ID,
		StudentID:  s.StudentID,
		Name:       s.Name,
		Percentage: s.Percentage,
		Amount:     s.Amount,
		Currency:   s.Currency,
		StartsOn:   dateOf(s.StartsOn),
		EndsOn:     nullDate(s.EndsOn),
		Status:     s.Status,
		CreatedAt:  s.CreatedAt.UTC(),
	}
}

func (r scholarshipRow) unboil() finance.Scholarship {
	s := finance.Scholarship{
		ID:         r.ID,
		StudentID:  r.StudentID,
		Name:       r.Name,
		Percentage: r.Percentage,
		Amount:     r.Amount,
		Currency:   r.Currency,
		StartsOn:   dateOf(r.StartsOn),
		Status:     r.Status,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if r.EndsOn.Valid {
		s.EndsOn = dateOf(r.EndsOn.Time)
	}
	return s
}

func (repo *financeRepository) CreateTransaction(ctx context.Context, t finance.Transaction) (finance.Transaction, error) {
	q := `INSERT INTO transactions (id, student_id, kind, amount, currency, status, description, due_on, paid_at, created_at)
		VALUES (:id, :student_id, :kind, :amount, :currency, :status, :description, :due_on, :paid_at, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, boilTransaction(t)); err != nil {
		return finance.Transaction{}, errors.Wrap(err, "inserting transaction")
	}
	return t, nil
}

func (repo *financeRepository) GetTransaction(ctx context.Context, id string) (finance.Transaction, error) {
	if !isUUID(id) {
		return finance.Transaction{}, finance.ErrTransactionNotFound
	}
	var r transactionRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM transactions WHERE id = $1`, id); err != nil {
		return finance.Transaction{}, trapNoRows(err, finance.ErrTransactionNotFound, "finding transaction")
	}
	return r.unboil(), nil
}

func (repo *financeRepository) QueryTransactions(ctx context.Context, filter finance.TransactionFilter) ([]finance.Transaction, error) {
	var w where
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if filter.Currency != "" {
		w.add("currency = ?", filter.Currency)
	}
	if len(filter.Kinds) > 0 {
		w.add("kind = ANY(?)", pq.Array(filter.Kinds))
	}
	if len(filter.Statuses) > 0 {
		w.add("status = ANY(?)", pq.Array(filter.Statuses))
	}

	var rows []transactionRow
	q := "SELECT * FROM transactions" + w.String() + " ORDER BY created_at DESC"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}
	txs := make([]finance.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, r.unboil())
	}
	return txs, nil
}

func (repo *financeRepository) UpdateTransaction(ctx context.Context, t finance.Transaction) (finance.Transaction, error) {
	q := `UPDATE transactions SET kind = :kind, amount = :amount, currency = :currency, status = :status,
		description = :description, due_on = :due_on, paid_at = :paid_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, boilTransaction(t))
	if err = checkAffected(res, err, finance.ErrTransactionNotFound, "updating transaction"); err != nil {
		return finance.Transaction{}, err
	}
	return t, nil
}

func (repo *financeRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return checkAffected(res, err, finance.ErrTransactionNotFound, "deleting transaction")
}

const sumTransactionsQuery = `SELECT
	COALESCE(SUM(amount) FILTER (WHERE kind = 'tuition' AND status <> 'cancelled'), 0)::bigint AS tuition,
	COALESCE(SUM(amount) FILTER (WHERE kind = 'fee' AND status <> 'cancelled'), 0)::bigint AS fees,
	COALESCE(SUM(amount) FILTER (WHERE kind = 'payment' AND status = 'paid'), 0)::bigint AS payments,
	COALESCE(SUM(amount) FILTER (WHERE kind = 'refund' AND status = 'paid'), 0)::bigint AS refunds
	FROM transactions WHERE student_id = $1 AND currency = $2`

func (repo *financeRepository) SumTransactions(ctx context.Context, studentID, currency string) (finance.Totals, error) {
	var tot finance.Totals
	if err := queries.Raw(sumTransactionsQuery, studentID, currency).Bind(ctx, repo.db, &tot); err != nil {
		return finance.Totals{}, errors.Wrap(err, "summing transactions")
	}
	return tot, nil
}

func (repo *financeRepository) CreateScholarship(ctx context.Context, s finance.Scholarship) (finance.Scholarship, error) {
	q := `INSERT INTO scholarships (id, student_id, name, percentage, amount, currency, starts_on, ends_on, status, created_at)
		VALUES (:id, :student_id, :name, :percentage, :amount, :currency, :starts_on, :ends_on, :status, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, boilScholarship(s)); err != nil {
		return finance.Scholarship{}, errors.Wrap(err, "inserting scholarship")
	}
	return s, nil
}

func (repo *financeRepository) GetScholarship(ctx context.Context, id string) (finance.Scholarship, error) {
	if !isUUID(id) {
		return finance.Scholarship{}, finance.ErrScholarshipNotFound
	}
	var r scholarshipRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM scholarships WHERE id = $1`, id); err != nil {
		return finance.Scholarship{}, trapNoRows(err, finance.ErrScholarshipNotFound, "finding scholarship")
	}
	return r.unboil(), nil
}

func (repo *financeRepository) QueryScholarships(ctx context.Context, studentID string) ([]finance.Scholarship, error) {
	var w where
	if studentID != "" {
		w.add("student_id::text = ?", studentID)
	}
	var rows []scholarshipRow
	q := "SELECT * FROM scholarships" + w.String() + " ORDER BY starts_on"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying scholarships")
	}
	list := make([]finance.Scholarship, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.unboil())
	}
	return list, nil
}

func (repo *financeRepository) UpdateScholarship(ctx context.Context, s finance.Scholarship) (finance.Scholarship, error) {
	q := `UPDATE scholarships SET name = :name, percentage = :percentage, amount = :amount, currency = :currency,
		starts_on = :starts_on, ends_on = :ends_on, status = :status
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, boilScholarship(s))
	if err = checkAffected(res, err, finance.ErrScholarshipNotFound, "updating scholarship"); err != nil {
		return finance.Scholarship{}, err
	}
	return s, nil
}

func (repo *financeRepository) DeleteScholarship(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM scholarships WHERE id = $1`, id)
	return checkAffected(res, err, finance.ErrScholarshipNotFound, "deleting scholarship")
}
