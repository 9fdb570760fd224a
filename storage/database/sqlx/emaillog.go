package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

type (
	emailLogRow struct {
		ID        string    `db:"id"`
		Recipient string    `db:"recipient"`
		Subject   string    `db:"subject"`
		Template  string    `db:"template"`
		Provider  string    `db:"provider"`
		Status    string    `db:"status"`
		Error     string    `db:"error"`
		CreatedAt time.Time `db:"created_at"`
	}

	emailLogRepository struct {
		db *sqlx.DB
	}
)

var _ core.EmailLogRepository = (*emailLogRepository)(nil) // interface compliance check

func NewEmailLogRepository(db *sqlx.DB) core.EmailLogRepository {
	return &emailLogRepository{db: db}
}

func (repo *emailLogRepository) CreateEmailLogs(ctx context.Context, logs ...core.EmailLog) error {
	if len(logs) == 0 {
		return nil
	}
	rows := make([]emailLogRow, 0, len(logs))
	for _, l := range logs {
		row := emailLogRow(l)
		row.CreatedAt = l.CreatedAt.UTC()
		rows = append(rows, row)
	}
	q := `INSERT INTO email_logs (id, recipient, subject, template, provider, status, error, created_at)
		VALUES (:id, :recipient, :subject, :template, :provider, :status, :error, :created_at)`
	_, err := repo.db.NamedExecContext(ctx, q, rows)
	return errors.Wrap(err, "inserting email logs")
}

func (repo *emailLogRepository) QueryEmailLogs(ctx context.Context, filter core.EmailLogFilter) ([]core.EmailLog, error) {
	var w where
	if filter.Recipient != "" {
		w.add("recipient = ?", filter.Recipient)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		w.add("created_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		w.add("created_at <= ?", filter.To.UTC())
	}

	var rows []emailLogRow
	q := "SELECT * FROM email_logs" + w.String() + " ORDER BY created_at DESC"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying email logs")
	}
	logs := make([]core.EmailLog, 0, len(rows))
	for _, r := range rows {
		l := core.EmailLog(r)
		l.CreatedAt = r.CreatedAt.UTC()
		logs = append(logs, l)
	}
	return logs, nil
}
