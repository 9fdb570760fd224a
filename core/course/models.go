package course

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

// Course statuses
const (
	StatusDraft    = "draft"
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var AllStatuses = []string{StatusDraft, StatusPending, StatusApproved, StatusRejected}

type Course struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ProfessorID     string    `json:"professor_id"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Modules         []Module  `json:"modules,omitempty"`
}

// IsEditable reports whether the content of the course may still change.
func (c Course) IsEditable() bool {
	return c.Status == StatusDraft || c.Status == StatusRejected
}

func (c Course) IsApproved() bool { return c.Status == StatusApproved }

// LessonIDs lists the lessons of the loaded module tree, in order.
func (c Course) LessonIDs() []string {
	ids := make([]string, 0)
	for _, mod := range c.Modules {
		for _, lsn := range mod.Lessons {
			ids = append(ids, lsn.ID)
		}
	}
	return ids
}

type Module struct {
	ID       string          `json:"id"`
	CourseID string          `json:"course_id"`
	Title    string          `json:"title"`
	Position int             `json:"position"`
	HasQuiz  bool            `json:"has_quiz"`
	QuizData json.RawMessage `json:"quiz_data,omitempty"`
	Lessons  []Lesson        `json:"lessons,omitempty"`
}

type Lesson struct {
	ID       string `json:"id"`
	ModuleID string `json:"module_id"`
	CourseID string `json:"course_id"` // denormalized from the module
	Title    string `json:"title"`
	Position int    `json:"position"`
	VideoURL string `json:"video_url,omitempty"`
	Content  string `json:"content,omitempty"`
}

type NewCourse struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
	// only honored for admins; professors always own the courses they create
	ProfessorID string `json:"professor_id" validate:"omitempty,uuid"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate) error {
	if title := core.CleanString(uc.Title); title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	uc.Description = core.CleanString(uc.Description)
	return validate.Struct(uc)
}

type RejectCourse struct {
	Reason string `json:"reason" validate:"required,notblank"`
}

func (rc *RejectCourse) Validate(validate *validator.Validate) error {
	rc.Reason = core.CleanString(rc.Reason)
	return validate.Struct(rc)
}

// NewModule is also used for updates. a zero Position appends the module.
type NewModule struct {
	Title    string `json:"title" validate:"required,max=255"`
	Position int    `json:"position" validate:"min=0"`
	HasQuiz  bool   `json:"has_quiz"`
	QuizData string `json:"quiz_data" validate:"jsonobject"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.QuizData = core.CleanString(nm.QuizData)
	return validate.Struct(nm)
}

func (nm NewModule) quizData() json.RawMessage {
	if nm.QuizData == "" {
		return nil
	}
	return json.RawMessage(nm.QuizData)
}

// NewLesson is also used for updates. a zero Position appends the lesson.
type NewLesson struct {
	Title    string `json:"title" validate:"required,max=255"`
	Position int    `json:"position" validate:"min=0"`
	VideoURL string `json:"video_url" validate:"omitempty,url"`
	Content  string `json:"content"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.VideoURL = core.CleanString(nl.VideoURL)
	return validate.Struct(nl)
}

type QueryFilter struct {
	Search      string   `query:"search"`
	Statuses    []string `query:"status"`
	ProfessorID string   `query:"professor_id"`
	// ApprovedOrOwnedBy restricts the results to approved courses and the courses of this professor.
	ApprovedOrOwnedBy string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ProfessorID = core.CleanString(qf.ProfessorID)
}
