package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/course"
)

var courseOrderFields = []string{"title", "status", "created_at", "updated_at"}

type (
	courseRow struct {
		ID              string    `db:"id"`
		Title           string    `db:"title"`
		Description     string    `db:"description"`
		ProfessorID     string    `db:"professor_id"`
		Status          string    `db:"status"`
		RejectionReason string    `db:"rejection_reason"`
		CreatedAt       time.Time `db:"created_at"`
		UpdatedAt       time.Time `db:"updated_at"`
	}

	moduleRow struct {
		ID       string      `db:"id"`
		CourseID string      `db:"course_id"`
		Title    string      `db:"title"`
		Position int         `db:"position"`
		HasQuiz  bool        `db:"has_quiz"`
		QuizData null.String `db:"quiz_data"`
	}

	lessonRow struct {
		ID       string      `db:"id"`
		ModuleID string      `db:"module_id"`
		CourseID string      `db:"course_id"` // joined from modules
		Title    string      `db:"title"`
		Position int         `db:"position"`
		VideoURL null.String `db:"video_url"`
		Content  null.String `db:"content"`
	}

	courseRepository struct {
		db *sqlx.DB
	}
)

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func boilCourse(crs course.Course) courseRow {
	return courseRow{
		ID:              crs.ID,
		Title:           crs.Title,
		Description:     crs.Description,
		ProfessorID:     crs.ProfessorID,
		Status:          crs.Status,
		RejectionReason: crs.RejectionReason,
		CreatedAt:       crs.CreatedAt.UTC(),
		UpdatedAt:       crs.UpdatedAt.UTC(),
	}
}

func (r courseRow) unboil() course.Course {
	return course.Course{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		ProfessorID:     r.ProfessorID,
		Status:          r.Status,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func (r moduleRow) unboil() course.Module {
	return course.Module{
		ID:       r.ID,
		CourseID: r.CourseID,
		Title:    r.Title,
		Position: r.Position,
		HasQuiz:  r.HasQuiz,
		QuizData: jsonOf(r.QuizData),
	}
}

func (r lessonRow) unboil() course.Lesson {
	return course.Lesson{
		ID:       r.ID,
		ModuleID: r.ModuleID,
		CourseID: r.CourseID,
		Title:    r.Title,
		Position: r.Position,
		VideoURL: r.VideoURL.String,
		Content:  r.Content.String,
	}
}

const selectLessons = `SELECT l.id, l.module_id, m.course_id, l.title, l.position, l.video_url, l.content
	FROM lessons l JOIN modules m ON m.id = l.module_id`

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `INSERT INTO courses (id, title, description, professor_id, status, rejection_reason, created_at, updated_at)
		VALUES (:id, :title, :description, :professor_id, :status, :rejection_reason, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, boilCourse(crs)); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	crs.Modules = nil
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	var w where
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(title ILIKE ? OR description ILIKE ?)", val, val)
	}
	if len(filter.Statuses) > 0 {
		w.add("status = ANY(?)", pq.Array(filter.Statuses))
	}
	if filter.ProfessorID != "" {
		w.add("professor_id::text = ?", filter.ProfessorID)
	}
	if filter.ApprovedOrOwnedBy != "" {
		w.add("(status = ? OR professor_id::text = ?)", course.StatusApproved, filter.ApprovedOrOwnedBy)
	}

	q := "SELECT * FROM courses" + w.String() + " ORDER BY " + core.OrderByClause(ordering, courseOrderFields, `"created_at" DESC`)
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.unboil())
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string, withTree bool) (course.Course, error) {
	if !isUUID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var r courseRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM courses WHERE id = $1`, id); err != nil {
		return course.Course{}, trapNoRows(err, course.ErrNotFound, "finding course")
	}
	crs := r.unboil()
	if !withTree {
		return crs, nil
	}

	var mods []moduleRow
	if err := repo.db.SelectContext(ctx, &mods, `SELECT * FROM modules WHERE course_id = $1 ORDER BY position, id`, id); err != nil {
		return course.Course{}, errors.Wrap(err, "querying modules")
	}
	var lsns []lessonRow
	if err := repo.db.SelectContext(ctx, &lsns, selectLessons+` WHERE m.course_id = $1 ORDER BY l.position, l.id`, id); err != nil {
		return course.Course{}, errors.Wrap(err, "querying lessons")
	}

	byModule := make(map[string][]course.Lesson, len(mods))
	for _, l := range lsns {
		byModule[l.ModuleID] = append(byModule[l.ModuleID], l.unboil())
	}
	crs.Modules = make([]course.Module, 0, len(mods))
	for _, m := range mods {
		mod := m.unboil()
		mod.Lessons = byModule[m.ID]
		crs.Modules = append(crs.Modules, mod)
	}
	return crs, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `UPDATE courses SET title = :title, description = :description, professor_id = :professor_id,
		status = :status, rejection_reason = :rejection_reason, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, boilCourse(crs))
	if err = checkAffected(res, err, course.ErrNotFound, "updating course"); err != nil {
		return course.Course{}, err
	}
	crs.Modules = nil
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	return checkAffected(res, err, course.ErrNotFound, "deleting course")
}

func (repo *courseRepository) CreateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	q := `INSERT INTO modules (id, course_id, title, position, has_quiz, quiz_data)
		SELECT $1::uuid, $2::uuid, $3::text, COALESCE(NULLIF($4::int, 0), (SELECT COALESCE(MAX(position), 0) + 1 FROM modules WHERE course_id = $2::uuid)), $5::boolean, $6::jsonb
		RETURNING position`
	err := repo.db.GetContext(ctx, &mod.Position, q,
		mod.ID, mod.CourseID, mod.Title, mod.Position, mod.HasQuiz, nullJSON(mod.QuizData))
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return course.Module{}, course.ErrNotFound
		}
		return course.Module{}, errors.Wrap(err, "inserting module")
	}
	mod.Lessons = nil
	return mod, nil
}

func (repo *courseRepository) GetModule(ctx context.Context, id string) (course.Module, error) {
	if !isUUID(id) {
		return course.Module{}, course.ErrModuleNotFound
	}
	var r moduleRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM modules WHERE id = $1`, id); err != nil {
		return course.Module{}, trapNoRows(err, course.ErrModuleNotFound, "finding module")
	}
	return r.unboil(), nil
}

func (repo *courseRepository) UpdateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE modules SET title = $2, position = $3, has_quiz = $4, quiz_data = $5 WHERE id = $1`,
		mod.ID, mod.Title, mod.Position, mod.HasQuiz, nullJSON(mod.QuizData))
	if err = checkAffected(res, err, course.ErrModuleNotFound, "updating module"); err != nil {
		return course.Module{}, err
	}
	mod.Lessons = nil
	return mod, nil
}

func (repo *courseRepository) DeleteModule(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM modules WHERE id = $1`, id)
	return checkAffected(res, err, course.ErrModuleNotFound, "deleting module")
}

func (repo *courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	q := `INSERT INTO lessons (id, module_id, title, position, video_url, content)
		SELECT $1::uuid, $2::uuid, $3::text, COALESCE(NULLIF($4::int, 0), (SELECT COALESCE(MAX(position), 0) + 1 FROM lessons WHERE module_id = $2::uuid)), $5::text, $6::text
		RETURNING position`
	err := repo.db.GetContext(ctx, &lsn.Position, q,
		lsn.ID, lsn.ModuleID, lsn.Title, lsn.Position, nullString(lsn.VideoURL), nullString(lsn.Content))
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return course.Lesson{}, course.ErrModuleNotFound
		}
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return lsn, nil
}

func (repo *courseRepository) GetLesson(ctx context.Context, id string) (course.Lesson, error) {
	if !isUUID(id) {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	var r lessonRow
	if err := repo.db.GetContext(ctx, &r, selectLessons+` WHERE l.id = $1`, id); err != nil {
		return course.Lesson{}, trapNoRows(err, course.ErrLessonNotFound, "finding lesson")
	}
	return r.unboil(), nil
}

func (repo *courseRepository) UpdateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE lessons SET title = $2, position = $3, video_url = $4, content = $5 WHERE id = $1`,
		lsn.ID, lsn.Title, lsn.Position, nullString(lsn.VideoURL), nullString(lsn.Content))
	if err = checkAffected(res, err, course.ErrLessonNotFound, "updating lesson"); err != nil {
		return course.Lesson{}, err
	}
	return lsn, nil
}

func (repo *courseRepository) DeleteLesson(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	return checkAffected(res, err, course.ErrLessonNotFound, "deleting lesson")
}

func (repo *courseRepository) CountLessons(ctx context.Context, courseID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM lessons l JOIN modules m ON m.id = l.module_id WHERE m.course_id = $1`, courseID)
	return n, errors.Wrap(err, "counting lessons")
}
