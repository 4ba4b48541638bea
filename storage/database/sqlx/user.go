package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/William-Pardo/tudojang-sub002/core/user"
)

type userRow struct {
	ID           string    `db:"id"`
	TenantID     string    `db:"tenant_id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Roles        string    `db:"roles"` // comma separated
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) user() user.User {
	var roles []string
	if r.Roles != "" {
		roles = strings.Split(r.Roles, ",")
	}
	return user.User{
		ID:           r.ID,
		TenantID:     r.TenantID,
		Name:         r.Name,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func lastLogin(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

const userColumns = "id, tenant_id, name, email, roles, is_active, password_hash, created_at, updated_at, last_login"

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{repository{db: db}}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.exec(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		usr.ID, usr.TenantID, usr.Name, usr.Email, strings.Join(usr.Roles, ","), usr.IsActive, usr.PasswordHash,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), lastLogin(usr.LastLogin),
	)
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := repo.get(ctx, &row, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, tenantID, email string) (user.User, error) {
	var row userRow
	err := repo.get(ctx, &row,
		"SELECT "+userColumns+" FROM users WHERE tenant_id = ? AND LOWER(email) = ?",
		tenantID, strings.ToLower(email),
	)
	if err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return row.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, tenantID string, filter user.QueryFilter) ([]user.User, error) {
	var w where
	w.add("tenant_id = ?", tenantID)
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		w.add("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", like, like)
	}
	if len(filter.Roles) > 0 {
		// exact match in the comma separated list: "admin:" must not match "admin:owner"
		conds := make([]string, 0, len(filter.Roles))
		args := make([]interface{}, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			conds = append(conds, "(',' || roles || ',') LIKE ?")
			args = append(args, "%,"+role+",%")
		}
		w.add("("+strings.Join(conds, " OR ")+")", args...)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	var rows []userRow
	if err := repo.selectAll(ctx, &rows, "SELECT "+userColumns+" FROM users"+w.String()+" ORDER BY name, id", w.args...); err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	n, err := repo.exec(ctx,
		`UPDATE users SET name = ?, email = ?, roles = ?, is_active = ?, password_hash = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		usr.Name, usr.Email, strings.Join(usr.Roles, ","), usr.IsActive, usr.PasswordHash, usr.UpdatedAt.UTC(),
		usr.ID, usr.TenantID,
	)
	if err != nil {
		return user.User{}, err
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	n, err := repo.exec(ctx, "UPDATE users SET last_login = ? WHERE id = ?", lastLogin(at), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, tenantID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM users WHERE tenant_id = ? AND id IN (?)", tenantID, ids)
	if err != nil {
		return err
	}
	_, err = repo.exec(ctx, query, args...)
	return err
}
