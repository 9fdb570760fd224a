package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core/request"
)

type (
	requestRow struct {
		ID           string      `db:"id"`
		RequesterID  string      `db:"requester_id"`
		Kind         string      `db:"kind"`
		Subject      string      `db:"subject"`
		Details      string      `db:"details"`
		EnrollmentID null.String `db:"enrollment_id"`
		Status       string      `db:"status"`
		ReviewerID   null.String `db:"reviewer_id"`
		ReviewNote   string      `db:"review_note"`
		ReviewedAt   null.Time   `db:"reviewed_at"`
		CreatedAt    time.Time   `db:"created_at"`
	}

	requestRepository struct {
		db *sqlx.DB
	}
)

var _ request.Repository = (*requestRepository)(nil) // interface compliance check

func NewRequestRepository(db *sqlx.DB) request.Repository {
	return &requestRepository{db: db}
}

func boilRequest(req request.Request) requestRow {
	return requestRow{
		ID:           req.ID,
		RequesterID:  req.RequesterID,
		Kind:         req.Kind,
		Subject:      req.Subject,
		Details:      req.Details,
		EnrollmentID: nullString(req.EnrollmentID),
		Status:       req.Status,
		ReviewerID:   nullString(req.ReviewerID),
		ReviewNote:   req.ReviewNote,
		ReviewedAt:   nullTime(req.ReviewedAt),
		CreatedAt:    req.CreatedAt.UTC(),
	}
}

func (r requestRow) unboil() request.Request {
	req := request.Request{
		ID:           r.ID,
		RequesterID:  r.RequesterID,
		Kind:         r.Kind,
		Subject:      r.Subject,
		Details:      r.Details,
		EnrollmentID: r.EnrollmentID.String,
		Status:       r.Status,
		ReviewerID:   r.ReviewerID.String,
		ReviewNote:   r.ReviewNote,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.ReviewedAt.Valid {
		req.ReviewedAt = r.ReviewedAt.Time.UTC()
	}
	return req
}

func (repo *requestRepository) CreateRequest(ctx context.Context, req request.Request) (request.Request, error) {
	q := `INSERT INTO requests (id, requester_id, kind, subject, details, enrollment_id, status, reviewer_id, review_note, reviewed_at, created_at)
		VALUES (:id, :requester_id, :kind, :subject, :details, :enrollment_id, :status, :reviewer_id, :review_note, :reviewed_at, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, boilRequest(req)); err != nil {
		return request.Request{}, errors.Wrap(err, "inserting request")
	}
	return req, nil
}

func (repo *requestRepository) GetRequest(ctx context.Context, id string) (request.Request, error) {
	if !isUUID(id) {
		return request.Request{}, request.ErrNotFound
	}
	var r requestRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM requests WHERE id = $1`, id); err != nil {
		return request.Request{}, trapNoRows(err, request.ErrNotFound, "finding request")
	}
	return r.unboil(), nil
}

func (repo *requestRepository) QueryRequests(ctx context.Context, filter request.Filter) ([]request.Request, error) {
	var w where
	if filter.RequesterID != "" {
		w.add("requester_id::text = ?", filter.RequesterID)
	}
	if len(filter.Statuses) > 0 {
		w.add("status = ANY(?)", pq.Array(filter.Statuses))
	}
	if len(filter.Kinds) > 0 {
		w.add("kind = ANY(?)", pq.Array(filter.Kinds))
	}

	var rows []requestRow
	q := "SELECT * FROM requests" + w.String() + " ORDER BY created_at DESC"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying requests")
	}
	reqs := make([]request.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.unboil())
	}
	return reqs, nil
}

func (repo *requestRepository) UpdateRequest(ctx context.Context, req request.Request) (request.Request, error) {
	q := `UPDATE requests SET subject = :subject, details = :details, status = :status, reviewer_id = :reviewer_id,
		review_note = :review_note, reviewed_at = :reviewed_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, boilRequest(req))
	if err = checkAffected(res, err, request.ErrNotFound, "updating request"); err != nil {
		return request.Request{}, err
	}
	return req, nil
}
