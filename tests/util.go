// Package testutil holds the fixtures shared by the tests of every package.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/student"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
	"github.com/William-Pardo/tudojang-sub002/core/user"
	"github.com/William-Pardo/tudojang-sub002/storage/database"
)

const (
	RootDomain    = "tudojang.test"
	DefaultTenant = "demo"
)

// NewConfig returns the configuration tests run with: TEST env, in-memory storage, no external services.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:         "Tudojang",
		Env:             "TEST",
		Build:           "test",
		TestMode:        true,
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://localhost:3000",
		DefaultFromName: "Tudojang",
		DefaultFromAddr: "noreply@tudojang.test",
		Server: core.ServerConfig{
			Host:                      "localhost",
			Address:                   ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
		Database: core.DatabaseConfig{Engine: core.EngineMemory},
		Tenancy:  core.TenancyConfig{RootDomain: RootDomain, DefaultTenant: DefaultTenant},
		Notify:   core.NotifyConfig{ChatBaseURL: "https://api.whatsapp.com", DefaultCountryCode: "57"},
	}
}

// Entry is a message logged through a Logger.
type Entry struct {
	Level   string
	Message string
}

// Logger records what is logged, for assertions.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger { return &Logger{} }

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Message: msg})
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// Messages returns the messages logged at `level`.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.entries {
		if e.Level == level {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// PrepareSQLite opens a migrated in-memory sqlite database, closed with the test.
func PrepareSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := NewConfig()
	conf.Database.Engine = core.EngineSQLite
	conf.Database.Name = ":memory:"

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareSQLite() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db, conf.Database.Engine); err != nil {
		t.Fatalf("PrepareSQLite() failed: %v", err)
	}
	return db
}

func CreateTenant(t *testing.T, repo tenant.Repository, slug, name string) tenant.Tenant {
	t.Helper()
	tnt, err := repo.CreateTenant(context.Background(), tenant.Tenant{
		ID:        uuid.NewString(),
		Slug:      slug,
		Name:      name,
		Branding:  tenant.Branding{PrimaryColor: "#1f3a93", SecondaryColor: "#c62828"},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}
	return tnt
}

func CreateSite(t *testing.T, repo tenant.Repository, tenantID, name string, createdAt time.Time) tenant.Site {
	t.Helper()
	site, err := repo.CreateSite(context.Background(), tenant.Site{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: createdAt.UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSite() failed: %v", err)
	}
	return site
}

// CreateStudent creates a student owing `balance` (a decimal string).
func CreateStudent(t *testing.T, repo student.Repository, tenantID, name, balance string) student.Student {
	t.Helper()
	bal := decimal.RequireFromString(balance)
	now := time.Now().UTC()
	s, err := repo.CreateStudent(context.Background(), student.Student{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Name:          name,
		Email:         strings.ToLower(fmt.Sprintf("%s@tudojang.test", core.Underscored(name))),
		GuardianName:  "Acudiente de " + name,
		GuardianPhone: "3001234567",
		Balance:       bal,
		PaymentStatus: student.StatusForBalance(bal),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	tenantID, name, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
