package marketing

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

// Lead statuses
const (
	StatusNew       = "new"
	StatusContacted = "contacted"
	StatusQualified = "qualified"
	StatusConverted = "converted"
	StatusLost      = "lost"
)

// Lead activity kinds
const (
	ActivityEmailOpen  = "email_open"
	ActivityEmailClick = "email_click"
	ActivityCall       = "call"
	ActivityMeeting    = "meeting"
	ActivityForm       = "form"
)

// Campaign statuses
const (
	CampaignDraft = "draft"
	CampaignSent  = "sent"
)

type Lead struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Source      string          `json:"source"`
	Status      string          `json:"status"`
	CompanyData json.RawMessage `json:"company_data,omitempty"`
	Score       int             `json:"score"`
	Notes       string          `json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Activity struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"lead_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Campaign struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Subject         string    `json:"subject"`
	Body            string    `json:"body"`
	Status          string    `json:"status"`
	SentAt          time.Time `json:"sent_at,omitempty"`
	RecipientsCount int       `json:"recipients_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// ConversionStat is the performance of one lead source.
type ConversionStat struct {
	Source    string  `boil:"source" json:"source"`
	Total     int     `boil:"total" json:"total"`
	Converted int     `boil:"converted" json:"converted"`
	Rate      float64 `boil:"-" json:"rate"` // percentage
}

// NewLead is also used for updates.
type NewLead struct {
	Name        string `json:"name" validate:"required,max=255"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"max=40"`
	Source      string `json:"source" validate:"omitempty,max=60,alphanum_"`
	Status      string `json:"status" validate:"omitempty,oneof=new contacted qualified converted lost"`
	CompanyData string `json:"company_data" validate:"jsonobject"`
	Notes       string `json:"notes" validate:"max=5000"`
}

func (nl *NewLead) Validate(validate *validator.Validate) error {
	nl.Name = core.CleanString(nl.Name)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	nl.Phone = core.CleanString(nl.Phone)
	nl.Source = core.CleanString(nl.Source, true /* lower */)
	if nl.Source == "" {
		nl.Source = "other"
	}
	nl.Status = core.CleanString(nl.Status, true /* lower */)
	if nl.Status == "" {
		nl.Status = StatusNew
	}
	nl.CompanyData = core.CleanString(nl.CompanyData)
	nl.Notes = core.CleanString(nl.Notes)
	return validate.Struct(nl)
}

func (nl NewLead) companyData() json.RawMessage {
	if nl.CompanyData == "" {
		return nil
	}
	return json.RawMessage(nl.CompanyData)
}

type NewActivity struct {
	Kind       string    `json:"kind" validate:"required,oneof=email_open email_click call meeting form"`
	OccurredAt time.Time `json:"occurred_at"` // defaults to now
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.Kind = core.CleanString(na.Kind, true /* lower */)
	return validate.Struct(na)
}

type LeadFilter struct {
	Search   string   `query:"search"`
	Statuses []string `query:"status"`
	Sources  []string `query:"source"`
}

// NewCampaign is also used for updates of draft campaigns.
type NewCampaign struct {
	Name    string `json:"name" validate:"required,max=255"`
	Subject string `json:"subject" validate:"required,max=255"`
	Body    string `json:"body" validate:"required,notblank"`
}

func (nc *NewCampaign) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Body = core.CleanString(nc.Body)
	return validate.Struct(nc)
}

// Segment selects the leads a campaign is sent to. empty lists select everything but lost leads.
type Segment struct {
	Statuses []string `json:"statuses" validate:"dive,oneof=new contacted qualified converted lost"`
	Sources  []string `json:"sources"`
}

func (s *Segment) Validate(validate *validator.Validate) error {
	for i := range s.Sources {
		s.Sources[i] = core.CleanString(s.Sources[i], true /* lower */)
	}
	return validate.Struct(s)
}
