package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]struct{}, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = struct{}{}
	}
	for _, usr := range repo.db.users {
		if _, ok := excluded[usr.ID]; !ok && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckEmailUniqueness(ctx, usr.Email); err != nil {
		return user.User{}, err
	}

	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := values(repo.db.users, func(usr user.User) bool {
		return filter == nil || matchUser(usr, filter)
	}, func(a, b user.User) bool {
		return lessUser(a, b, ordering)
	})
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), search) && !strings.Contains(usr.Email, search) {
			return false
		}
	}
	if !inOrEmpty(usr.Role, filter.Roles) {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

// lessUser sorts by the first differing ordering field, then by name.
func lessUser(a, b user.User, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var cmp int
		switch ord.Field {
		case "name":
			cmp = strings.Compare(a.Name, b.Name)
		case "email":
			cmp = strings.Compare(a.Email, b.Email)
		case "role":
			cmp = user.RolePriority(a.Role) - user.RolePriority(b.Role)
		case "created_at":
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		case "last_login":
			cmp = a.LastLogin.Compare(b.LastLogin)
		}
		if cmp != 0 {
			return (cmp < 0) == ord.Ascending
		}
	}
	return a.Name < b.Name
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.db.users {
			if usr.Email == filter.Email {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckEmailUniqueness(ctx, usr.Email, usr); err != nil {
		return user.User{}, err
	}

	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			delete(repo.db.profiles, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *userRepository) GetProfessorProfile(_ context.Context, userID string) (user.ProfessorProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if prof, ok := repo.db.profiles[userID]; ok {
		return *prof, nil
	}
	return user.ProfessorProfile{}, user.ErrProfileNotFound
}

func (repo *userRepository) SaveProfessorProfile(_ context.Context, prof user.ProfessorProfile) (user.ProfessorProfile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[prof.UserID]; !ok {
		return user.ProfessorProfile{}, user.ErrNotFound
	}
	repo.db.profiles[prof.UserID] = &prof
	return prof, nil
}

func (repo *userRepository) DeleteProfessorProfile(_ context.Context, userID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.profiles, userID)
	return nil
}
