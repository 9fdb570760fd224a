package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

// Attendance statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

const dateLayout = "2006-01-02"

type Record struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	StudentID   string    `json:"student_id"`
	SessionDate time.Time `json:"session_date"`
	Status      string    `json:"status"`
	Note        string    `json:"note"`
	RecordedBy  string    `json:"recorded_by"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type Entry struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Note      string `json:"note" validate:"max=1000"`
}

// NewSession records the attendance of one or many students for one class session.
type NewSession struct {
	SessionDate string  `json:"session_date" validate:"required,datetime=2006-01-02"`
	Entries     []Entry `json:"entries" validate:"required,min=1,dive"`

	date time.Time
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	for i := range ns.Entries {
		ns.Entries[i].Status = core.CleanString(ns.Entries[i].Status, true /* lower */)
		ns.Entries[i].Note = core.CleanString(ns.Entries[i].Note)
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}
	ns.date, _ = time.Parse(dateLayout, ns.SessionDate)
	return nil
}

type Filter struct {
	ClassID   string    `query:"class_id"`
	StudentID string    `query:"student_id"`
	From      time.Time `query:"-"` // inclusive
	To        time.Time `query:"-"` // inclusive
}

func (f Filter) Match(rec Record) bool {
	if f.ClassID != "" && rec.ClassID != f.ClassID {
		return false
	}
	if f.StudentID != "" && rec.StudentID != f.StudentID {
		return false
	}
	if !f.From.IsZero() && rec.SessionDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && rec.SessionDate.After(f.To) {
		return false
	}
	return true
}

type Summary struct {
	ClassID   string  `json:"class_id"`
	StudentID string  `json:"student_id"`
	Total     int     `json:"total"`
	Present   int     `json:"present"`
	Absent    int     `json:"absent"`
	Late      int     `json:"late"`
	Excused   int     `json:"excused"`
	Rate      float64 `json:"rate"` // percentage of sessions attended (present or late)
}

// Summarize counts records per status. late counts as attended.
func Summarize(classID, studentID string, records []Record) Summary {
	sum := Summary{ClassID: classID, StudentID: studentID}
	for _, rec := range records {
		sum.Total++
		switch rec.Status {
		case StatusPresent:
			sum.Present++
		case StatusAbsent:
			sum.Absent++
		case StatusLate:
			sum.Late++
		case StatusExcused:
			sum.Excused++
		}
	}
	sum.Rate = core.Percentage(sum.Present+sum.Late, sum.Total)
	return sum
}
