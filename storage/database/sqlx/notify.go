package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/William-Pardo/tudojang-sub002/core/notify"
)

type messageRow struct {
	ID        string      `db:"id"`
	TenantID  string      `db:"tenant_id"`
	StudentID null.String `db:"student_id"`
	ReceiptID null.String `db:"receipt_id"`
	Channel   string      `db:"channel"`
	Recipient string      `db:"recipient"`
	Body      string      `db:"body"`
	Status    string      `db:"status"`
	Error     string      `db:"error"`
	CreatedAt time.Time   `db:"created_at"`
}

const messageColumns = "id, tenant_id, student_id, receipt_id, channel, recipient, body, status, error, created_at"

type notifyRepository struct {
	repository
}

var _ notify.Repository = (*notifyRepository)(nil) // interface compliance check

func NewNotifyRepository(db *sqlx.DB) notify.Repository {
	return &notifyRepository{repository{db: db}}
}

func (repo *notifyRepository) CreateMessage(ctx context.Context, msg notify.Message) error {
	_, err := repo.exec(ctx,
		"INSERT INTO notifications ("+messageColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.TenantID, nullString(msg.StudentID), nullString(msg.ReceiptID), msg.Channel,
		msg.Recipient, msg.Body, msg.Status, msg.Error, msg.CreatedAt.UTC(),
	)
	return err
}

// QueryMessages lists the audit trail of a tenant, oldest first; an empty receiptID matches all.
func (repo *notifyRepository) QueryMessages(ctx context.Context, tenantID, receiptID string) ([]notify.Message, error) {
	var w where
	w.add("tenant_id = ?", tenantID)
	if receiptID != "" {
		w.add("receipt_id = ?", receiptID)
	}

	var rows []messageRow
	if err := repo.selectAll(ctx, &rows, "SELECT "+messageColumns+" FROM notifications"+w.String()+" ORDER BY created_at, id", w.args...); err != nil {
		return nil, err
	}
	msgs := make([]notify.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, notify.Message{
			ID:        r.ID,
			TenantID:  r.TenantID,
			StudentID: r.StudentID.String,
			ReceiptID: r.ReceiptID.String,
			Channel:   r.Channel,
			Recipient: r.Recipient,
			Body:      r.Body,
			Status:    r.Status,
			Error:     r.Error,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return msgs, nil
}
