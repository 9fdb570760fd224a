package progress

import (
	"math"
	"time"
)

type Certificate struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CourseID     string    `json:"course_id"`
	EnrollmentID string    `json:"enrollment_id"`
	Code         string    `json:"code"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Result is the outcome of a lesson completion.
type Result struct {
	EnrollmentID      string       `json:"enrollment_id"`
	Progress          int          `json:"progress"`
	Completed         int          `json:"completed"`
	Total             int          `json:"total"`
	Certificate       *Certificate `json:"certificate,omitempty"`
	CertificateIssued bool         `json:"certificate_issued"`
}

type CourseProgress struct {
	CourseID           string   `json:"course_id"`
	CompletedLessonIDs []string `json:"completed_lesson_ids"`
	Completed          int      `json:"completed"`
	Total              int      `json:"total"`
	Progress           int      `json:"progress"`
}

// ComputeProgress returns the rounded completion percentage, 0 when the course has no lessons.
func ComputeProgress(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
