package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

var userOrderFields = []string{"name", "email", "role", "created_at", "updated_at", "last_login"}

type (
	userRow struct {
		ID           string    `db:"id"`
		Name         string    `db:"name"`
		Email        string    `db:"email"`
		IsActive     bool      `db:"is_active"`
		Role         string    `db:"role"`
		PasswordHash []byte    `db:"password_hash"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
		LastLogin    null.Time `db:"last_login"`
	}

	profileRow struct {
		UserID     string    `db:"user_id"`
		Department string    `db:"department"`
		Title      string    `db:"title"`
		Bio        string    `db:"bio"`
		CreatedAt  time.Time `db:"created_at"`
		UpdatedAt  time.Time `db:"updated_at"`
	}

	userRepository struct {
		db *sqlx.DB
	}
)

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func boilUser(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Role:         usr.Role,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    nullTime(usr.LastLogin),
	}
}

func (r userRow) unboil() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Role:         r.Role,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

// trapEmailExists maps the unique violation of users.email to user.ErrEmailExists.
func trapEmailExists(err error, msg string) error {
	if pgCode(err) == uniqueViolation {
		return user.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		ids = append(ids, usr.ID)
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND NOT (id::text = ANY($2)))`
	if err := repo.db.GetContext(ctx, &exists, q, email, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO users (id, name, email, is_active, role, password_hash, created_at, updated_at, last_login)
		VALUES (:id, :name, :email, :is_active, :role, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, boilUser(usr)); err != nil {
		return user.User{}, trapEmailExists(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil {
		// users with Name or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR email ILIKE ?)", val, val)
		}
		if len(filter.Roles) > 0 {
			w.add("role = ANY(?)", pq.Array(filter.Roles))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	q := "SELECT * FROM users" + w.String() + " ORDER BY " + core.OrderByClause(ordering, userOrderFields, `"name" ASC`)
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.unboil())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		r   userRow
		err error
	)
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &r, `SELECT * FROM users WHERE id = $1`, filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &r, `SELECT * FROM users WHERE email = $1`, filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "finding user")
	}
	return r.unboil(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET name = :name, email = :email, is_active = :is_active, role = :role,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, boilUser(usr))
	if err != nil {
		return user.User{}, trapEmailExists(err, "updating user")
	}
	if err = checkAffected(res, nil, user.ErrNotFound, "updating user"); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id::text = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting users")
}

func (repo *userRepository) GetProfessorProfile(ctx context.Context, userID string) (user.ProfessorProfile, error) {
	var r profileRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM professor_profiles WHERE user_id = $1`, userID); err != nil {
		return user.ProfessorProfile{}, trapNoRows(err, user.ErrProfileNotFound, "finding professor profile")
	}
	return user.ProfessorProfile{
		UserID:     r.UserID,
		Department: r.Department,
		Title:      r.Title,
		Bio:        r.Bio,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}, nil
}

func (repo *userRepository) SaveProfessorProfile(ctx context.Context, prof user.ProfessorProfile) (user.ProfessorProfile, error) {
	q := `INSERT INTO professor_profiles (user_id, department, title, bio, created_at, updated_at)
		VALUES (:user_id, :department, :title, :bio, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE
		SET department = EXCLUDED.department, title = EXCLUDED.title, bio = EXCLUDED.bio, updated_at = EXCLUDED.updated_at`
	_, err := repo.db.NamedExecContext(ctx, q, profileRow{
		UserID:     prof.UserID,
		Department: prof.Department,
		Title:      prof.Title,
		Bio:        prof.Bio,
		CreatedAt:  prof.CreatedAt.UTC(),
		UpdatedAt:  prof.UpdatedAt.UTC(),
	})
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return user.ProfessorProfile{}, user.ErrNotFound
		}
		return user.ProfessorProfile{}, errors.Wrap(err, "saving professor profile")
	}
	return prof, nil
}

func (repo *userRepository) DeleteProfessorProfile(ctx context.Context, userID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM professor_profiles WHERE user_id = $1`, userID)
	return errors.Wrap(err, "deleting professor profile")
}
