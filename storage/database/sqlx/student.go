package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

type studentRow struct {
	ID            string                `db:"id"`
	TenantID      string                `db:"tenant_id"`
	SiteID        null.String           `db:"site_id"`
	Name          string                `db:"name"`
	Email         string                `db:"email"`
	Phone         string                `db:"phone"`
	GuardianName  string                `db:"guardian_name"`
	GuardianPhone string                `db:"guardian_phone"`
	GuardianEmail string                `db:"guardian_email"`
	Balance       decimal.Decimal       `db:"balance"`
	PaymentStatus student.PaymentStatus `db:"payment_status"`
	CreatedAt     time.Time             `db:"created_at"`
	UpdatedAt     time.Time             `db:"updated_at"`
	DeletedAt     null.Time             `db:"deleted_at"`
}

func (r studentRow) student() student.Student {
	return student.Student{
		ID:            r.ID,
		TenantID:      r.TenantID,
		SiteID:        r.SiteID.String,
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		GuardianName:  r.GuardianName,
		GuardianPhone: r.GuardianPhone,
		GuardianEmail: r.GuardianEmail,
		Balance:       r.Balance,
		PaymentStatus: r.PaymentStatus,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		DeletedAt:     timePtr(r.DeletedAt),
	}
}

const studentColumns = "id, tenant_id, site_id, name, email, phone, guardian_name, guardian_phone, guardian_email, " +
	"balance, payment_status, created_at, updated_at, deleted_at"

var studentOrderings = map[string]string{
	"name":         "name",
	"saldo_deudor": "balance",
	"balance":      "balance",
	"created_at":   "created_at",
}

type studentRepository struct {
	repository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{repository{db: db}}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	_, err := repo.exec(ctx,
		"INSERT INTO students ("+studentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.TenantID, nullString(s.SiteID), s.Name, s.Email, s.Phone, s.GuardianName, s.GuardianPhone, s.GuardianEmail,
		s.Balance, s.PaymentStatus, s.CreatedAt.UTC(), s.UpdatedAt.UTC(), nullTime(s.DeletedAt),
	)
	if err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, tenantID, id string) (student.Student, error) {
	var row studentRow
	err := repo.get(ctx, &row,
		"SELECT "+studentColumns+" FROM students WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL",
		id, tenantID,
	)
	if err != nil {
		return student.Student{}, notFound(err, student.ErrNotFound)
	}
	return row.student(), nil
}

func (repo *studentRepository) QueryStudents(
	ctx context.Context,
	tenantID string,
	filter student.QueryFilter,
	ordering ...core.DBOrdering,
) ([]student.Student, error) {
	var w where
	w.add("tenant_id = ?", tenantID)
	w.add("deleted_at IS NULL")
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		w.add("(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(guardian_name) LIKE ?)", like, like, like)
	}
	if filter.SiteID != "" {
		w.add("site_id = ?", filter.SiteID)
	}
	if len(filter.Status) > 0 {
		w.add("payment_status IN (?)", filter.Status)
	}
	if filter.Debtor != nil {
		if *filter.Debtor {
			w.add("balance > 0")
		} else {
			w.add("balance = 0")
		}
	}

	orderBy := " ORDER BY name ASC"
	if allowed := core.AllowedOrderings(ordering, studentOrderings); len(allowed) > 0 {
		cols := make([]string, 0, len(allowed))
		for _, o := range allowed {
			cols = append(cols, o.String())
		}
		orderBy = " ORDER BY " + strings.Join(cols, ", ")
	}

	query, args, err := sqlx.In("SELECT "+studentColumns+" FROM students"+w.String()+orderBy+", id", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []studentRow
	if err := repo.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	n, err := repo.exec(ctx,
		`UPDATE students SET site_id = ?, name = ?, email = ?, phone = ?, guardian_name = ?, guardian_phone = ?,
		guardian_email = ?, updated_at = ? WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL`,
		nullString(s.SiteID), s.Name, s.Email, s.Phone, s.GuardianName, s.GuardianPhone,
		s.GuardianEmail, s.UpdatedAt.UTC(), s.ID, s.TenantID,
	)
	if err != nil {
		return student.Student{}, err
	}
	if n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudent(ctx, s.TenantID, s.ID)
}

func (repo *studentRepository) SetOverdue(ctx context.Context, tenantID, id string, at time.Time) error {
	_, err := repo.exec(ctx,
		"UPDATE students SET payment_status = ?, updated_at = ? WHERE id = ? AND tenant_id = ? AND balance > 0 AND deleted_at IS NULL",
		student.StatusOverdue, at.UTC(), id, tenantID,
	)
	return err
}

func (repo *studentRepository) SoftDeleteStudent(ctx context.Context, tenantID, id string, at time.Time) error {
	n, err := repo.exec(ctx,
		"UPDATE students SET deleted_at = ?, updated_at = ? WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL",
		at.UTC(), at.UTC(), id, tenantID,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return student.ErrNotFound
	}
	return nil
}
