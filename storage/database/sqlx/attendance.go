package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/attendance"
)

type (
	attendanceRow struct {
		ID          string    `db:"id"`
		ClassID     string    `db:"class_id"`
		StudentID   string    `db:"student_id"`
		SessionDate time.Time `db:"session_date"`
		Status      string    `db:"status"`
		Note        string    `db:"note"`
		RecordedBy  string    `db:"recorded_by"`
		RecordedAt  time.Time `db:"recorded_at"`
	}

	attendanceRepository struct {
		db *sqlx.DB
	}
)

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (r attendanceRow) unboil() attendance.Record {
	rec := attendance.Record(r)
	rec.SessionDate = dateOf(r.SessionDate)
	rec.RecordedAt = r.RecordedAt.UTC()
	return rec
}

// UpsertRecords keeps the id of the records already taken for a (class, student, date).
func (repo *attendanceRepository) UpsertRecords(ctx context.Context, recs ...attendance.Record) ([]attendance.Record, error) {
	q := `INSERT INTO attendance_records (id, class_id, student_id, session_date, status, note, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (class_id, student_id, session_date) DO UPDATE
		SET status = EXCLUDED.status, note = EXCLUDED.note, recorded_by = EXCLUDED.recorded_by, recorded_at = EXCLUDED.recorded_at
		RETURNING id`

	saved := make([]attendance.Record, 0, len(recs))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, rec := range recs {
			rec.SessionDate = dateOf(rec.SessionDate)
			err := tx.GetContext(ctx, &rec.ID, q,
				rec.ID, rec.ClassID, rec.StudentID, rec.SessionDate, rec.Status, rec.Note, rec.RecordedBy, rec.RecordedAt.UTC())
			if err != nil {
				return errors.Wrap(err, "upserting attendance record")
			}
			saved = append(saved, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter attendance.Filter) ([]attendance.Record, error) {
	var w where
	if filter.ClassID != "" {
		w.add("class_id::text = ?", filter.ClassID)
	}
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if !filter.From.IsZero() {
		w.add("session_date >= ?", dateOf(filter.From))
	}
	if !filter.To.IsZero() {
		w.add("session_date <= ?", dateOf(filter.To))
	}

	var rows []attendanceRow
	q := "SELECT * FROM attendance_records" + w.String() + " ORDER BY session_date, student_id"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	recs := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.unboil())
	}
	return recs, nil
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, id string) (attendance.Record, error) {
	if !isUUID(id) {
		return attendance.Record{}, attendance.ErrNotFound
	}
	var r attendanceRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM attendance_records WHERE id = $1`, id); err != nil {
		return attendance.Record{}, trapNoRows(err, attendance.ErrNotFound, "finding attendance record")
	}
	return r.unboil(), nil
}

func (repo *attendanceRepository) DeleteRecord(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	return checkAffected(res, err, attendance.ErrNotFound, "deleting attendance record")
}
