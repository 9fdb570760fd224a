package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs.Modules = nil
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	return values(repo.db.courses, func(crs course.Course) bool {
		if search != "" &&
			!strings.Contains(strings.ToLower(crs.Title), search) &&
			!strings.Contains(strings.ToLower(crs.Description), search) {
			return false
		}
		if filter.ProfessorID != "" && crs.ProfessorID != filter.ProfessorID {
			return false
		}
		if filter.ApprovedOrOwnedBy != "" && !crs.IsApproved() && crs.ProfessorID != filter.ApprovedOrOwnedBy {
			return false
		}
		return inOrEmpty(crs.Status, filter.Statuses)
	}, func(a, b course.Course) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "title":
				cmp = strings.Compare(a.Title, b.Title)
			case "status":
				cmp = strings.Compare(a.Status, b.Status)
			case "created_at":
				cmp = a.CreatedAt.Compare(b.CreatedAt)
			case "updated_at":
				cmp = a.UpdatedAt.Compare(b.UpdatedAt)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	}), nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, withTree bool) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	res := *crs
	if withTree {
		res.Modules = repo.tree(id)
	}
	return res, nil
}

// tree loads the ordered modules of courseID with their ordered lessons.
func (repo *courseRepository) tree(courseID string) []course.Module {
	mods := values(repo.db.modules,
		func(mod course.Module) bool { return mod.CourseID == courseID },
		func(a, b course.Module) bool { return a.Position < b.Position })
	for i := range mods {
		modID := mods[i].ID
		mods[i].Lessons = values(repo.db.lessons,
			func(lsn course.Lesson) bool { return lsn.ModuleID == modID },
			func(a, b course.Lesson) bool { return a.Position < b.Position })
	}
	return mods
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	crs.Modules = nil
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	for modID, mod := range repo.db.modules {
		if mod.CourseID == id {
			delete(repo.db.modules, modID)
		}
	}
	for lsnID, lsn := range repo.db.lessons {
		if lsn.CourseID == id {
			delete(repo.db.lessons, lsnID)
		}
	}
	return nil
}

func (repo *courseRepository) CreateModule(_ context.Context, mod course.Module) (course.Module, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[mod.CourseID]; !ok {
		return course.Module{}, course.ErrNotFound
	}
	if mod.Position <= 0 {
		mod.Position = 1
		for _, m := range repo.db.modules {
			if m.CourseID == mod.CourseID && m.Position >= mod.Position {
				mod.Position = m.Position + 1
			}
		}
	}
	mod.Lessons = nil
	repo.db.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *courseRepository) GetModule(_ context.Context, id string) (course.Module, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if mod, ok := repo.db.modules[id]; ok {
		return *mod, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) UpdateModule(_ context.Context, mod course.Module) (course.Module, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.modules[mod.ID]; !ok {
		return course.Module{}, course.ErrModuleNotFound
	}
	mod.Lessons = nil
	repo.db.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *courseRepository) DeleteModule(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.modules[id]; !ok {
		return course.ErrModuleNotFound
	}
	delete(repo.db.modules, id)
	for lsnID, lsn := range repo.db.lessons {
		if lsn.ModuleID == id {
			delete(repo.db.lessons, lsnID)
		}
	}
	return nil
}

func (repo *courseRepository) CreateLesson(_ context.Context, lsn course.Lesson) (course.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.modules[lsn.ModuleID]; !ok {
		return course.Lesson{}, course.ErrModuleNotFound
	}
	if lsn.Position <= 0 {
		lsn.Position = 1
		for _, l := range repo.db.lessons {
			if l.ModuleID == lsn.ModuleID && l.Position >= lsn.Position {
				lsn.Position = l.Position + 1
			}
		}
	}
	repo.db.lessons[lsn.ID] = &lsn
	return lsn, nil
}

func (repo *courseRepository) GetLesson(_ context.Context, id string) (course.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lsn, ok := repo.db.lessons[id]; ok {
		return *lsn, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) UpdateLesson(_ context.Context, lsn course.Lesson) (course.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lessons[lsn.ID]; !ok {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	repo.db.lessons[lsn.ID] = &lsn
	return lsn, nil
}

func (repo *courseRepository) DeleteLesson(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lessons[id]; !ok {
		return course.ErrLessonNotFound
	}
	delete(repo.db.lessons, id)
	return nil
}

func (repo *courseRepository) CountLessons(_ context.Context, courseID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, lsn := range repo.db.lessons {
		if lsn.CourseID == courseID {
			n++
		}
	}
	return n, nil
}
