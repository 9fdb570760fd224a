package inmemdb

import (
	"sort"
	"sync"
	"time"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/calendar"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/finance"
	"github.com/trezcool/campus/core/grade"
	"github.com/trezcool/campus/core/marketing"
	"github.com/trezcool/campus/core/progress"
	"github.com/trezcool/campus/core/request"
	"github.com/trezcool/campus/core/user"
)

type lessonKey struct {
	userID, lessonID string
}

type lessonCompletion struct {
	courseID    string
	completedAt time.Time
}

// DB keeps every table in memory behind a single lock, so that multi-table writes are atomic.
// it backs the tests and the debug runs of the API.
type DB struct {
	sync.RWMutex

	users        map[string]*user.User
	profiles     map[string]*user.ProfessorProfile
	courses      map[string]*course.Course // without modules
	modules      map[string]*course.Module // without lessons
	lessons      map[string]*course.Lesson
	classes      map[string]*class.Class
	enrollments  map[string]*class.Enrollment
	completions  map[lessonKey]lessonCompletion
	certificates map[string]*progress.Certificate
	rooms        map[string]*calendar.Room
	events       map[string]*calendar.Event
	attendance   map[string]*attendance.Record
	grades       map[string]*grade.Grade
	requests     map[string]*request.Request
	transactions map[string]*finance.Transaction
	scholarships map[string]*finance.Scholarship
	leads        map[string]*marketing.Lead
	activities   map[string]*marketing.Activity
	campaigns    map[string]*marketing.Campaign
	emailLogs    []core.EmailLog
}

func Open() *DB {
	return &DB{
		users:        make(map[string]*user.User),
		profiles:     make(map[string]*user.ProfessorProfile),
		courses:      make(map[string]*course.Course),
		modules:      make(map[string]*course.Module),
		lessons:      make(map[string]*course.Lesson),
		classes:      make(map[string]*class.Class),
		enrollments:  make(map[string]*class.Enrollment),
		completions:  make(map[lessonKey]lessonCompletion),
		certificates: make(map[string]*progress.Certificate),
		rooms:        make(map[string]*calendar.Room),
		events:       make(map[string]*calendar.Event),
		attendance:   make(map[string]*attendance.Record),
		grades:       make(map[string]*grade.Grade),
		requests:     make(map[string]*request.Request),
		transactions: make(map[string]*finance.Transaction),
		scholarships: make(map[string]*finance.Scholarship),
		leads:        make(map[string]*marketing.Lead),
		activities:   make(map[string]*marketing.Activity),
		campaigns:    make(map[string]*marketing.Campaign),
	}
}

// values copies the rows of a table, sorted with less.
func values[T any](table map[string]*T, keep func(T) bool, less func(a, b T) bool) []T {
	rows := make([]T, 0, len(table))
	for _, row := range table {
		if keep == nil || keep(*row) {
			rows = append(rows, *row)
		}
	}
	if less != nil {
		sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	}
	return rows
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
