package request

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

// Request kinds
const (
	KindDocument   = "document"
	KindWithdrawal = "withdrawal"
	KindTransfer   = "transfer"
	KindOther      = "other"
)

// Request statuses
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

type Request struct {
	ID           string    `json:"id"`
	RequesterID  string    `json:"requester_id"`
	Kind         string    `json:"kind"`
	Subject      string    `json:"subject"`
	Details      string    `json:"details"`
	EnrollmentID string    `json:"enrollment_id,omitempty"`
	Status       string    `json:"status"`
	ReviewerID   string    `json:"reviewer_id,omitempty"`
	ReviewNote   string    `json:"review_note,omitempty"`
	ReviewedAt   time.Time `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r Request) IsPending() bool { return r.Status == StatusPending }

type NewRequest struct {
	Kind         string `json:"kind" validate:"required,oneof=document withdrawal transfer other"`
	Subject      string `json:"subject" validate:"required,max=255"`
	Details      string `json:"details" validate:"max=5000"`
	EnrollmentID string `json:"enrollment_id" validate:"required_if=Kind withdrawal,omitempty,uuid"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.Kind = core.CleanString(nr.Kind, true /* lower */)
	nr.Subject = core.CleanString(nr.Subject)
	nr.Details = core.CleanString(nr.Details)
	nr.EnrollmentID = core.CleanString(nr.EnrollmentID)
	return validate.Struct(nr)
}

type Review struct {
	Note string `json:"note" validate:"max=2000"`
}

func (rv *Review) Validate(validate *validator.Validate) error {
	rv.Note = core.CleanString(rv.Note)
	return validate.Struct(rv)
}

type Filter struct {
	RequesterID string   `query:"requester_id"`
	Statuses    []string `query:"status"`
	Kinds       []string `query:"kind"`
}

func (f Filter) Match(req Request) bool {
	if f.RequesterID != "" && req.RequesterID != f.RequesterID {
		return false
	}
	return inOrEmpty(req.Status, f.Statuses) && inOrEmpty(req.Kind, f.Kinds)
}

func inOrEmpty(val string, list []string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
