package finance

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

// Transaction kinds
const (
	KindTuition = "tuition"
	KindFee     = "fee"
	KindPayment = "payment"
	KindRefund  = "refund"
)

// Transaction statuses
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Scholarship statuses
const (
	ScholarshipActive  = "active"
	ScholarshipRevoked = "revoked"
)

const (
	DefaultCurrency = "USD"
	dateLayout      = "2006-01-02"
)

type Transaction struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	Kind        string    `json:"kind"`
	Amount      int64     `json:"amount"` // cents
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	DueOn       time.Time `json:"due_on,omitempty"`
	PaidAt      time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (t Transaction) IsCharge() bool { return t.Kind == KindTuition || t.Kind == KindFee }

type Scholarship struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Name       string    `json:"name"`
	Percentage int       `json:"percentage"` // of tuition charges
	Amount     int64     `json:"amount"`     // cents, fixed discount in Currency
	Currency   string    `json:"currency"`
	StartsOn   time.Time `json:"starts_on"`
	EndsOn     time.Time `json:"ends_on,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsActiveOn reports whether the scholarship applies on the day of t.
func (s Scholarship) IsActiveOn(t time.Time) bool {
	if s.Status != ScholarshipActive {
		return false
	}
	day := dateOf(t)
	if day.Before(dateOf(s.StartsOn)) {
		return false
	}
	return s.EndsOn.IsZero() || !day.After(dateOf(s.EndsOn))
}

// dateOf returns the UTC midnight of t.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewTransaction is also used for updates of pending transactions.
type NewTransaction struct {
	StudentID   string `json:"student_id" validate:"required,uuid"`
	Kind        string `json:"kind" validate:"required,oneof=tuition fee payment refund"`
	Amount      string `json:"amount" validate:"required"`
	Currency    string `json:"currency" validate:"omitempty,len=3,alpha"`
	Description string `json:"description" validate:"max=1000"`
	DueOn       string `json:"due_on" validate:"omitempty,datetime=2006-01-02"`

	cents int64
	dueOn time.Time
}

func (nt *NewTransaction) Validate(validate *validator.Validate) error {
	nt.Kind = core.CleanString(nt.Kind, true /* lower */)
	nt.Currency = strings.ToUpper(core.CleanString(nt.Currency))
	if nt.Currency == "" {
		nt.Currency = DefaultCurrency
	}
	nt.Description = core.CleanString(nt.Description)
	if err := validate.Struct(nt); err != nil {
		return err
	}

	cents, err := ParseAmount(nt.Amount)
	if err != nil {
		return core.NewFieldError("amount", err.Error())
	}
	if cents <= 0 {
		return core.NewFieldError("amount", "amount must be greater than 0")
	}
	nt.cents = cents
	if nt.DueOn != "" {
		nt.dueOn, _ = time.Parse(dateLayout, nt.DueOn)
	}
	return nil
}

// NewScholarship is also used for updates.
type NewScholarship struct {
	StudentID  string `json:"student_id" validate:"required,uuid"`
	Name       string `json:"name" validate:"required,max=255"`
	Percentage int    `json:"percentage" validate:"min=0,max=100"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency" validate:"omitempty,len=3,alpha"`
	StartsOn   string `json:"starts_on" validate:"required,datetime=2006-01-02"`
	EndsOn     string `json:"ends_on" validate:"omitempty,datetime=2006-01-02"`

	cents            int64
	startsOn, endsOn time.Time
}

func (ns *NewScholarship) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Currency = strings.ToUpper(core.CleanString(ns.Currency))
	if ns.Currency == "" {
		ns.Currency = DefaultCurrency
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}

	if ns.Amount = core.CleanString(ns.Amount); ns.Amount != "" {
		cents, err := ParseAmount(ns.Amount)
		if err != nil {
			return core.NewFieldError("amount", err.Error())
		}
		ns.cents = cents
	}
	if ns.Percentage == 0 && ns.cents == 0 {
		return core.NewFieldError("percentage", "one of percentage or amount is required")
	}

	ns.startsOn, _ = time.Parse(dateLayout, ns.StartsOn)
	if ns.EndsOn != "" {
		ns.endsOn, _ = time.Parse(dateLayout, ns.EndsOn)
		if ns.endsOn.Before(ns.startsOn) {
			return core.NewFieldError("ends_on", "must not be before starts_on")
		}
	}
	return nil
}

type TransactionFilter struct {
	StudentID string   `query:"student_id"`
	Kinds     []string `query:"kind"`
	Statuses  []string `query:"status"`
	Currency  string   `query:"currency"`
}

func (f TransactionFilter) Match(t Transaction) bool {
	if f.StudentID != "" && t.StudentID != f.StudentID {
		return false
	}
	if f.Currency != "" && t.Currency != f.Currency {
		return false
	}
	return inOrEmpty(t.Kind, f.Kinds) && inOrEmpty(t.Status, f.Statuses)
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

// Totals sums the transactions of a student in one currency.
type Totals struct {
	Tuition  int64 `boil:"tuition" json:"tuition"`   // non cancelled
	Fees     int64 `boil:"fees" json:"fees"`         // non cancelled
	Payments int64 `boil:"payments" json:"payments"` // paid
	Refunds  int64 `boil:"refunds" json:"refunds"`   // paid
}

// SumTransactions computes Totals the way the SQL report does.
func SumTransactions(txs []Transaction) Totals {
	var tot Totals
	for _, t := range txs {
		switch {
		case t.Kind == KindTuition && t.Status != StatusCancelled:
			tot.Tuition += t.Amount
		case t.Kind == KindFee && t.Status != StatusCancelled:
			tot.Fees += t.Amount
		case t.Kind == KindPayment && t.Status == StatusPaid:
			tot.Payments += t.Amount
		case t.Kind == KindRefund && t.Status == StatusPaid:
			tot.Refunds += t.Amount
		}
	}
	return tot
}

type Balance struct {
	StudentID string `json:"student_id"`
	Currency  string `json:"currency"`
	Totals
	Charges  int64  `json:"charges"`
	Discount int64  `json:"discount"`
	Balance  int64  `json:"balance"` // amount due; negative means credit
	Display  string `json:"display"`
}

// ComputeBalance applies the active scholarships of `on` to tot.
// the discount never exceeds the charges.
func ComputeBalance(studentID, currency string, tot Totals, scholarships []Scholarship, on time.Time) Balance {
	charges := tot.Tuition + tot.Fees
	var discount int64
	for _, s := range scholarships {
		if !s.IsActiveOn(on) {
			continue
		}
		discount += tot.Tuition * int64(s.Percentage) / 100
		if s.Currency == currency {
			discount += s.Amount
		}
	}
	if discount > charges {
		discount = charges
	}
	bal := charges - discount - tot.Payments + tot.Refunds
	return Balance{
		StudentID: studentID,
		Currency:  currency,
		Totals:    tot,
		Charges:   charges,
		Discount:  discount,
		Balance:   bal,
		Display:   FormatAmount(bal) + " " + currency,
	}
}
