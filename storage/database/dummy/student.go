package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

// getStudent must be called with the lock held.
func (db *DB) getStudent(tenantID, id string) (*student.Student, error) {
	s, ok := db.students[id]
	if !ok || s.TenantID != tenantID || s.IsDeleted() {
		return nil, student.ErrNotFound
	}
	return s, nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.students[s.ID] = &s
	return s, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, tenantID, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	s, err := repo.db.getStudent(tenantID, id)
	if err != nil {
		return student.Student{}, err
	}
	return *s, nil
}

func (repo *studentRepository) QueryStudents(
	_ context.Context,
	tenantID string,
	filter student.QueryFilter,
	ordering ...core.DBOrdering,
) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	students := make([]student.Student, 0)
	for _, s := range repo.db.students {
		if s.TenantID != tenantID || s.IsDeleted() {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(s.Name), search) &&
			!strings.Contains(strings.ToLower(s.Email), search) &&
			!strings.Contains(strings.ToLower(s.GuardianName), search) {
			continue
		}
		if filter.SiteID != "" && s.SiteID != filter.SiteID {
			continue
		}
		if len(filter.Status) > 0 && !contains(filter.Status, s.PaymentStatus.String()) {
			continue
		}
		if filter.Debtor != nil && s.Balance.IsPositive() != *filter.Debtor {
			continue
		}
		students = append(students, *s)
	}

	sortStudents(students, ordering)
	return students, nil
}

func sortStudents(students []student.Student, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	cmp := func(a, b student.Student, field string) int {
		switch field {
		case "saldo_deudor", "balance":
			return a.Balance.Cmp(b.Balance)
		case "created_at":
			return compareTime(a.CreatedAt, b.CreatedAt)
		default:
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}
	sort.SliceStable(students, func(i, j int) bool {
		for _, o := range ordering {
			c := cmp(students[i], students[j], o.Field)
			if c == 0 {
				continue
			}
			if o.Ascending {
				return c < 0
			}
			return c > 0
		}
		return students[i].ID < students[j].ID
	})
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, err := repo.db.getStudent(s.TenantID, s.ID)
	if err != nil {
		return student.Student{}, err
	}
	s.Balance = orig.Balance
	s.PaymentStatus = orig.PaymentStatus
	s.CreatedAt = orig.CreatedAt
	*orig = s
	return s, nil
}

func (repo *studentRepository) SetOverdue(_ context.Context, tenantID, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, err := repo.db.getStudent(tenantID, id)
	if err != nil {
		return err
	}
	if s.Balance.IsPositive() {
		s.PaymentStatus = student.StatusOverdue
		s.UpdatedAt = at
	}
	return nil
}

func (repo *studentRepository) SoftDeleteStudent(_ context.Context, tenantID, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, err := repo.db.getStudent(tenantID, id)
	if err != nil {
		return err
	}
	s.DeletedAt = &at
	s.UpdatedAt = at
	return nil
}

func contains(values []string, v string) bool {
	for _, val := range values {
		if val == v {
			return true
		}
	}
	return false
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
