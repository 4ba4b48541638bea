// Package dummydb is an in-process storage engine for development & tests.
// All tables share one lock, so a multi-table write is applied as a whole or not at all.
package dummydb

import (
	"sync"

	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/notify"
	"github.com/William-Pardo/tudojang-sub002/core/student"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
	"github.com/William-Pardo/tudojang-sub002/core/user"
)

type DB struct {
	sync.RWMutex

	tenants       map[string]*tenant.Tenant
	sites         map[string]*tenant.Site
	users         map[string]*user.User
	students      map[string]*student.Student
	storeRequests map[string]*billing.StoreRequest
	events        map[string]*billing.Event
	registrations map[string]*billing.EventRegistration
	payments      map[string]*billing.Payment
	ledger        []billing.LedgerEntry
	messages      []notify.Message

	// Stats counts calls by name, tests use it to assert batching.
	stats map[string]int
}

func Open() (*DB, error) {
	db := &DB{
		tenants:       make(map[string]*tenant.Tenant),
		sites:         make(map[string]*tenant.Site),
		users:         make(map[string]*user.User),
		students:      make(map[string]*student.Student),
		storeRequests: make(map[string]*billing.StoreRequest),
		events:        make(map[string]*billing.Event),
		registrations: make(map[string]*billing.EventRegistration),
		payments:      make(map[string]*billing.Payment),
		stats:         make(map[string]int),
	}
	return db, nil
}

// Calls returns how many times the named repository method ran.
func (db *DB) Calls(name string) int {
	db.RLock()
	defer db.RUnlock()
	return db.stats[name]
}

// count must be called with the lock held.
func (db *DB) count(name string) {
	db.stats[name]++
}
