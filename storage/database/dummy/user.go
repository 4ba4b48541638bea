package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/William-Pardo/tudojang-sub002/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func copyUser(u *user.User) user.User {
	cp := *u
	cp.Roles = append([]string(nil), u.Roles...)
	return cp
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.users {
		if u.TenantID == usr.TenantID && u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.Roles = append([]string(nil), usr.Roles...)
	repo.db.users[usr.ID] = &usr
	return copyUser(&usr), nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return copyUser(usr), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, tenantID, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.users {
		if usr.TenantID == tenantID && usr.Email == email {
			return copyUser(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, tenantID string, filter user.QueryFilter) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0)
	for _, usr := range repo.db.users {
		if usr.TenantID != tenantID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(strings.ToLower(usr.Email), search) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		if len(filter.Roles) > 0 && !hasAnyRole(usr.Roles, filter.Roles) {
			continue
		}
		users = append(users, copyUser(usr))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func hasAnyRole(roles, wanted []string) bool {
	for _, r := range roles {
		if contains(wanted, r) {
			return true
		}
	}
	return false
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.CreatedAt = orig.CreatedAt
	usr.Roles = append([]string(nil), usr.Roles...)
	*orig = usr
	return copyUser(orig), nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = at
	return nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, tenantID string, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		if usr, ok := repo.db.users[id]; ok && usr.TenantID == tenantID {
			delete(repo.db.users, id)
		}
	}
	return nil
}
