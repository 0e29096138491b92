package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/user"
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	PushToken    string         `db:"push_token"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

func (r userRow) user() user.User {
	u := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		PushToken:    r.PushToken,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastLogin.Valid {
		u.LastLogin = r.LastLogin.Time
	}
	return u
}

const userCols = "id, name, username, email, is_active, roles, password_hash, push_token, created_at, updated_at, last_login"

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	excluded := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}

	var rows []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT username, email FROM users
		 WHERE (lower(username) = lower($1) OR lower(email) = lower($2)) AND NOT (id = ANY($3))`,
		username, email, pq.Array(excluded),
	)
	if err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	for _, r := range rows {
		if strings.EqualFold(r.Username, username) {
			return user.ErrUsernameExists
		}
		if strings.EqualFold(r.Email, email) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO users (id, name, username, email, is_active, roles, password_hash, push_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		usr.ID, usr.Name, usr.Username, usr.Email, usr.IsActive, pq.Array(usr.Roles),
		usr.PasswordHash, usr.PushToken, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, uniqueErr(err, map[string]error{
			"users_username_key": user.ErrUsernameExists,
			"users_email_key":    user.ErrEmailExists,
		}, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows, "SELECT "+userCols+" FROM users ORDER BY created_at")
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) getUser(ctx context.Context, where string, args ...interface{}) (user.User, error) {
	var r userRow
	err := repo.db.GetContext(ctx, &r, "SELECT "+userCols+" FROM users WHERE "+where, args...)
	if err != nil {
		return user.User{}, notFoundErr(err, user.ErrNotFound, "getting user")
	}
	return r.user(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, "id = $1", id)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, "lower(username) = lower($1)", username)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "lower(email) = lower($1)", email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, "lower(username) = lower($1) OR lower(email) = lower($1)", username)
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	where := []string{"true"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf("(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", p))
	}
	if filter.Roles != nil {
		where = append(where, fmt.Sprintf("roles && %s", arg(pq.Array(filter.Roles))))
	}
	if filter.IsActive != nil {
		where = append(where, fmt.Sprintf("is_active = %s", arg(*filter.IsActive)))
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, fmt.Sprintf("created_at >= %s", arg(filter.CreatedFrom)))
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, fmt.Sprintf("created_at <= %s", arg(filter.CreatedTo)))
	}

	orderBy := "created_at"
	if len(ordering) > 0 {
		parts := make([]string, 0, len(ordering))
		for _, o := range ordering {
			parts = append(parts, o.String())
		}
		orderBy = strings.Join(parts, ", ")
	}

	var rows []userRow
	q := "SELECT " + userCols + " FROM users WHERE " + strings.Join(where, " AND ") + " ORDER BY " + orderBy
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	active := usr.IsActive
	if isActive != nil {
		active = *isActive
	}
	_, err := repo.db.ExecContext(ctx,
		`UPDATE users
		 SET name = $2, username = $3, email = $4, is_active = $5, roles = $6,
		     password_hash = $7, push_token = $8, updated_at = $9
		 WHERE id = $1`,
		usr.ID, usr.Name, usr.Username, usr.Email, active, pq.Array(usr.Roles),
		usr.PasswordHash, usr.PushToken, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, uniqueErr(err, map[string]error{
			"users_username_key": user.ErrUsernameExists,
			"users_email_key":    user.ErrEmailExists,
		}, "updating user")
	}
	usr.IsActive = active
	return usr, nil
}

func (repo *userRepository) SetUserLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := repo.db.ExecContext(ctx, "UPDATE users SET last_login = $2 WHERE id = $1", id, at)
	return errors.Wrap(err, "setting last login")
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, "DELETE FROM users WHERE id = ANY($1)", pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}
