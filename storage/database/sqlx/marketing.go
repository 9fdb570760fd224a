package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/campus/core/marketing"
)

type (
	leadRow struct {
		ID          string      `db:"id"`
		Name        string      `db:"name"`
		Email       string      `db:"email"`
		Phone       string      `db:"phone"`
		Source      string      `db:"source"`
		Status      string      `db:"status"`
		CompanyData null.String `db:"company_data"`
		Score       int         `db:"score"`
		Notes       string      `db:"notes"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	activityRow struct {
		ID         string    `db:"id"`
		LeadID     string    `db:"lead_id"`
		Kind       string    `db:"kind"`
		OccurredAt time.Time `db:"occurred_at"`
	}

	campaignRow struct {
		ID              string    `db:"id"`
		Name            string    `db:"name"`
		Subject         string    `db:"subject"`
		Body            string    `db:"body"`
		Status          string    `db:"status"`
		SentAt          null.Time `db:"sent_at"`
		RecipientsCount int       `db:"recipients_count"`
		CreatedAt       time.Time `db:"created_at"`
	}

	marketingRepository struct {
		db *sqlx.DB
	}
)

var _ marketing.Repository = (*marketingRepository)(nil) // interface compliance check

func NewMarketingRepository(db *sqlx.DB) marketing.Repository {
	return &marketingRepository{db: db}
}

func boilLead(lead marketing.Lead) leadRow {
	return leadRow{
		ID:          lead.ID,
		Name:        lead.Name,
		Email:       lead.Email,
		Phone:       lead.Phone,
		Source:      lead.Source,
		Status:      lead.Status,
		CompanyData: nullJSON(lead.CompanyData),
		Score:       lead.Score,
		Notes:       lead.Notes,
		CreatedAt:   lead.CreatedAt.UTC(),
		UpdatedAt:   lead.UpdatedAt.UTC(),
	}
}

func (r leadRow) unboil() marketing.Lead {
	return marketing.Lead{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		Phone:       r.Phone,
		Source:      r.Source,
		Status:      r.Status,
		CompanyData: json.RawMessage(jsonOf(r.CompanyData)),
		Score:       r.Score,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func boilCampaign(camp marketing.Campaign) campaignRow {
	return campaignRow{
		ID:              camp.ID,
		Name:            camp.Name,
		Subject:         camp.Subject,
		Body:            camp.Body,
		Status:          camp.Status,
		SentAt:          nullTime(camp.SentAt),
		RecipientsCount: camp.RecipientsCount,
		CreatedAt:       camp.CreatedAt.UTC(),
	}
}

func (r campaignRow) unboil() marketing.Campaign {
	camp := marketing.Campaign{
		ID:              r.ID,
		Name:            r.Name,
		Subject:         r.Subject,
		Body:            r.Body,
		Status:          r.Status,
		RecipientsCount: r.RecipientsCount,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.SentAt.Valid {
		camp.SentAt = r.SentAt.Time.UTC()
	}
	return camp
}

func (repo *marketingRepository) CreateLead(ctx context.Context, lead marketing.Lead) (marketing.Lead, error) {
	q := `INSERT INTO leads (id, name, email, phone, source, status, company_data, score, notes, created_at, updated_at)
		VALUES (:id, :name, :email, :phone, :source, :status, CAST(:company_data AS jsonb), :score, :notes, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, boilLead(lead)); err != nil {
		return marketing.Lead{}, errors.Wrap(err, "inserting lead")
	}
	return lead, nil
}

func (repo *marketingRepository) GetLead(ctx context.Context, id string) (marketing.Lead, error) {
	if !isUUID(id) {
		return marketing.Lead{}, marketing.ErrLeadNotFound
	}
	var r leadRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM leads WHERE id = $1`, id); err != nil {
		return marketing.Lead{}, trapNoRows(err, marketing.ErrLeadNotFound, "finding lead")
	}
	return r.unboil(), nil
}

func (repo *marketingRepository) QueryLeads(ctx context.Context, filter marketing.LeadFilter) ([]marketing.Lead, error) {
	var w where
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR email ILIKE ?)", val, val)
	}
	if len(filter.Statuses) > 0 {
		w.add("status = ANY(?)", pq.Array(filter.Statuses))
	}
	if len(filter.Sources) > 0 {
		w.add("source = ANY(?)", pq.Array(filter.Sources))
	}

	var rows []leadRow
	q := "SELECT * FROM leads" + w.String() + " ORDER BY score DESC, created_at"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying leads")
	}
	leads := make([]marketing.Lead, 0, len(rows))
	for _, r := range rows {
		leads = append(leads, r.unboil())
	}
	return leads, nil
}

func (repo *marketingRepository) UpdateLead(ctx context.Context, lead marketing.Lead) (marketing.Lead, error) {
	q := `UPDATE leads SET name = :name, email = :email, phone = :phone, source = :source, status = :status,
		company_data = CAST(:company_data AS jsonb), score = :score, notes = :notes, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, boilLead(lead))
	if err = checkAffected(res, err, marketing.ErrLeadNotFound, "updating lead"); err != nil {
		return marketing.Lead{}, err
	}
	return lead, nil
}

func (repo *marketingRepository) DeleteLead(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	return checkAffected(res, err, marketing.ErrLeadNotFound, "deleting lead")
}

func (repo *marketingRepository) CreateActivity(ctx context.Context, act marketing.Activity) (marketing.Activity, error) {
	q := `INSERT INTO lead_activities (id, lead_id, kind, occurred_at) VALUES (:id, :lead_id, :kind, :occurred_at)`
	row := activityRow(act)
	row.OccurredAt = act.OccurredAt.UTC()
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if pgCode(err) == foreignKeyViolation {
			return marketing.Activity{}, marketing.ErrLeadNotFound
		}
		return marketing.Activity{}, errors.Wrap(err, "inserting lead activity")
	}
	return act, nil
}

func (repo *marketingRepository) QueryActivities(ctx context.Context, leadID string) ([]marketing.Activity, error) {
	var rows []activityRow
	q := `SELECT * FROM lead_activities WHERE lead_id::text = $1 ORDER BY occurred_at`
	if err := repo.db.SelectContext(ctx, &rows, q, leadID); err != nil {
		return nil, errors.Wrap(err, "querying lead activities")
	}
	acts := make([]marketing.Activity, 0, len(rows))
	for _, r := range rows {
		act := marketing.Activity(r)
		act.OccurredAt = r.OccurredAt.UTC()
		acts = append(acts, act)
	}
	return acts, nil
}

func (repo *marketingRepository) ConversionStats(ctx context.Context) ([]marketing.ConversionStat, error) {
	q := `SELECT source, COUNT(*) AS total, COUNT(*) FILTER (WHERE status = 'converted') AS converted
		FROM leads GROUP BY source ORDER BY source`
	stats := make([]marketing.ConversionStat, 0)
	if err := queries.Raw(q).Bind(ctx, repo.db, &stats); err != nil {
		return nil, errors.Wrap(err, "computing conversion stats")
	}
	return stats, nil
}

func (repo *marketingRepository) CreateCampaign(ctx context.Context, camp marketing.Campaign) (marketing.Campaign, error) {
	q := `INSERT INTO campaigns (id, name, subject, body, status, sent_at, recipients_count, created_at)
		VALUES (:id, :name, :subject, :body, :status, :sent_at, :recipients_count, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, boilCampaign(camp)); err != nil {
		return marketing.Campaign{}, errors.Wrap(err, "inserting campaign")
	}
	return camp, nil
}

func (repo *marketingRepository) GetCampaign(ctx context.Context, id string) (marketing.Campaign, error) {
	if !isUUID(id) {
		return marketing.Campaign{}, marketing.ErrCampaignNotFound
	}
	var r campaignRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM campaigns WHERE id = $1`, id); err != nil {
		return marketing.Campaign{}, trapNoRows(err, marketing.ErrCampaignNotFound, "finding campaign")
	}
	return r.unboil(), nil
}

func (repo *marketingRepository) QueryCampaigns(ctx context.Context) ([]marketing.Campaign, error) {
	var rows []campaignRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM campaigns ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying campaigns")
	}
	camps := make([]marketing.Campaign, 0, len(rows))
	for _, r := range rows {
		camps = append(camps, r.unboil())
	}
	return camps, nil
}

func (repo *marketingRepository) UpdateCampaign(ctx context.Context, camp marketing.Campaign) (marketing.Campaign, error) {
	q := `UPDATE campaigns SET name = :name, subject = :subject, body = :body, status = :status, sent_at = :sent_at,
		recipients_count = :recipients_count
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, boilCampaign(camp))
	if err = checkAffected(res, err, marketing.ErrCampaignNotFound, "updating campaign"); err != nil {
		return marketing.Campaign{}, err
	}
	return camp, nil
}

func (repo *marketingRepository) DeleteCampaign(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	return checkAffected(res, err, marketing.ErrCampaignNotFound, "deleting campaign")
}
