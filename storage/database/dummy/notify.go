package dummydb

import (
	"context"

	"github.com/William-Pardo/tudojang-sub002/core/notify"
)

type notifyRepository struct {
	db *DB
}

var _ notify.Repository = (*notifyRepository)(nil) // interface compliance check

func NewNotifyRepository(db *DB) notify.Repository {
	return &notifyRepository{db: db}
}

func (repo *notifyRepository) CreateMessage(_ context.Context, msg notify.Message) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.messages = append(repo.db.messages, msg)
	return nil
}

func (repo *notifyRepository) QueryMessages(_ context.Context, tenantID, receiptID string) ([]notify.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]notify.Message, 0)
	for _, m := range repo.db.messages {
		if m.TenantID == tenantID && (receiptID == "" || m.ReceiptID == receiptID) {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}
