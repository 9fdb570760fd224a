package marketing

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

var (
	// errors
	ErrLeadNotFound     = errors.New("lead not found")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrCampaignSent     = errors.New("campaign has already been sent")
	ErrNoRecipients     = errors.New("no lead with an email address matches this segment")
)

type (
	Repository interface {
		CreateLead(ctx context.Context, lead Lead) (Lead, error)
		GetLead(ctx context.Context, id string) (Lead, error)
		QueryLeads(ctx context.Context, filter LeadFilter) ([]Lead, error)
		UpdateLead(ctx context.Context, lead Lead) (Lead, error)
		DeleteLead(ctx context.Context, id string) error

		CreateActivity(ctx context.Context, act Activity) (Activity, error)
		QueryActivities(ctx context.Context, leadID string) ([]Activity, error)

		// ConversionStats reports total & converted leads per source, sorted by source. rates are left out.
		ConversionStats(ctx context.Context) ([]ConversionStat, error)

		CreateCampaign(ctx context.Context, camp Campaign) (Campaign, error)
		GetCampaign(ctx context.Context, id string) (Campaign, error)
		QueryCampaigns(ctx context.Context) ([]Campaign, error)
		UpdateCampaign(ctx context.Context, camp Campaign) (Campaign, error)
		DeleteCampaign(ctx context.Context, id string) error
	}

	Service interface {
		CreateLead(ctx context.Context, nl NewLead) (Lead, error)
		GetLead(ctx context.Context, id string) (Lead, error)
		QueryLeads(ctx context.Context, filter LeadFilter) ([]Lead, error)
		UpdateLead(ctx context.Context, lead Lead, nl NewLead) (Lead, error)
		DeleteLead(ctx context.Context, id string) error
		AddActivity(ctx context.Context, lead Lead, na NewActivity) (Activity, error)
		QueryActivities(ctx context.Context, leadID string) ([]Activity, error)
		// RescoreLead recomputes & persists the score of lead.
		RescoreLead(ctx context.Context, lead Lead) (Lead, error)
		ConversionStats(ctx context.Context) ([]ConversionStat, error)

		CreateCampaign(ctx context.Context, nc NewCampaign) (Campaign, error)
		GetCampaign(ctx context.Context, id string) (Campaign, error)
		QueryCampaigns(ctx context.Context) ([]Campaign, error)
		UpdateCampaign(ctx context.Context, camp Campaign, nc NewCampaign) (Campaign, error)
		DeleteCampaign(ctx context.Context, camp Campaign) error
		// SendCampaign emails every lead of seg once. returns the campaign with the number of accepted recipients.
		SendCampaign(ctx context.Context, camp Campaign, seg Segment) (Campaign, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		nowFunc func() time.Time // mockable
	}
)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{repo: repo, mailSvc: mailSvc, nowFunc: time.Now}
}

func (svc *service) CreateLead(ctx context.Context, nl NewLead) (Lead, error) {
	now := svc.nowFunc().UTC()
	lead := Lead{
		ID:          uuid.New().String(),
		Name:        nl.Name,
		Email:       nl.Email,
		Phone:       nl.Phone,
		Source:      nl.Source,
		Status:      nl.Status,
		CompanyData: nl.companyData(),
		Notes:       nl.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	lead.Score = Score(lead, nil)
	return svc.repo.CreateLead(ctx, lead)
}

func (svc *service) GetLead(ctx context.Context, id string) (Lead, error) {
	return svc.repo.GetLead(ctx, id)
}

func (svc *service) QueryLeads(ctx context.Context, filter LeadFilter) ([]Lead, error) {
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryLeads(ctx, filter)
}

func (svc *service) UpdateLead(ctx context.Context, lead Lead, nl NewLead) (Lead, error) {
	lead.Name = nl.Name
	lead.Email = nl.Email
	lead.Phone = nl.Phone
	lead.Source = nl.Source
	lead.Status = nl.Status
	lead.CompanyData = nl.companyData()
	lead.Notes = nl.Notes
	return svc.RescoreLead(ctx, lead)
}

func (svc *service) DeleteLead(ctx context.Context, id string) error {
	return svc.repo.DeleteLead(ctx, id)
}

func (svc *service) AddActivity(ctx context.Context, lead Lead, na NewActivity) (Activity, error) {
	occurred := na.OccurredAt
	if occurred.IsZero() {
		occurred = svc.nowFunc()
	}
	act, err := svc.repo.CreateActivity(ctx, Activity{
		ID:         uuid.New().String(),
		LeadID:     lead.ID,
		Kind:       na.Kind,
		OccurredAt: occurred.UTC(),
	})
	if err != nil {
		return Activity{}, err
	}
	if _, err := svc.RescoreLead(ctx, lead); err != nil {
		return Activity{}, pkgerrors.Wrap(err, "rescoring lead")
	}
	return act, nil
}

func (svc *service) QueryActivities(ctx context.Context, leadID string) ([]Activity, error) {
	return svc.repo.QueryActivities(ctx, leadID)
}

func (svc *service) RescoreLead(ctx context.Context, lead Lead) (Lead, error) {
	acts, err := svc.repo.QueryActivities(ctx, lead.ID)
	if err != nil {
		return Lead{}, err
	}
	lead.Score = Score(lead, acts)
	lead.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.UpdateLead(ctx, lead)
}

func (svc *service) ConversionStats(ctx context.Context) ([]ConversionStat, error) {
	stats, err := svc.repo.ConversionStats(ctx)
	if err != nil {
		return nil, err
	}
	return WithRates(stats), nil
}

func (svc *service) CreateCampaign(ctx context.Context, nc NewCampaign) (Campaign, error) {
	return svc.repo.CreateCampaign(ctx, Campaign{
		ID:        uuid.New().String(),
		Name:      nc.Name,
		Subject:   nc.Subject,
		Body:      nc.Body,
		Status:    CampaignDraft,
		CreatedAt: svc.nowFunc().UTC(),
	})
}

func (svc *service) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	return svc.repo.GetCampaign(ctx, id)
}

func (svc *service) QueryCampaigns(ctx context.Context) ([]Campaign, error) {
	return svc.repo.QueryCampaigns(ctx)
}

func (svc *service) UpdateCampaign(ctx context.Context, camp Campaign, nc NewCampaign) (Campaign, error) {
	if camp.Status != CampaignDraft {
		return Campaign{}, ErrCampaignSent
	}
	camp.Name = nc.Name
	camp.Subject = nc.Subject
	camp.Body = nc.Body
	return svc.repo.UpdateCampaign(ctx, camp)
}

func (svc *service) DeleteCampaign(ctx context.Context, camp Campaign) error {
	if camp.Status != CampaignDraft {
		return ErrCampaignSent
	}
	return svc.repo.DeleteCampaign(ctx, camp.ID)
}

func (svc *service) SendCampaign(ctx context.Context, camp Campaign, seg Segment) (Campaign, error) {
	if camp.Status != CampaignDraft {
		return Campaign{}, ErrCampaignSent
	}

	leads, err := svc.repo.QueryLeads(ctx, LeadFilter{Statuses: seg.Statuses, Sources: seg.Sources})
	if err != nil {
		return Campaign{}, pkgerrors.Wrap(err, "querying leads")
	}
	recipients := segmentRecipients(leads, len(seg.Statuses) == 0)
	if len(recipients) == 0 {
		return Campaign{}, core.NewValidationError(ErrNoRecipients, core.FieldError{Field: "segment", Error: ErrNoRecipients.Error()})
	}

	msg := &core.EmailMessage{
		Subject:      camp.Subject,
		TemplateName: "campaign",
		TemplateData: map[string]interface{}{
			"Body":       camp.Body,
			"Paragraphs": paragraphs(camp.Body),
		},
	}
	sent, err := svc.mailSvc.SendBulk(ctx, msg, recipients)
	if err != nil && sent == 0 {
		return Campaign{}, pkgerrors.Wrap(err, "sending campaign")
	}

	camp.Status = CampaignSent
	camp.SentAt = svc.nowFunc().UTC()
	camp.RecipientsCount = sent
	return svc.repo.UpdateCampaign(ctx, camp)
}

// segmentRecipients dedupes the lead emails. lost leads are skipped unless explicitly selected.
func segmentRecipients(leads []Lead, skipLost bool) []mail.Address {
	seen := make(map[string]struct{}, len(leads))
	recipients := make([]mail.Address, 0, len(leads))
	for _, lead := range leads {
		if lead.Email == "" || (skipLost && lead.Status == StatusLost) {
			continue
		}
		if _, dup := seen[lead.Email]; dup {
			continue
		}
		seen[lead.Email] = struct{}{}
		recipients = append(recipients, mail.Address{Name: lead.Name, Address: lead.Email})
	}
	return recipients
}

func paragraphs(body string) []string {
	paras := make([]string, 0)
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}
