package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
)

// Mode is how a receipt reaches the student.
type Mode int

const (
	// ModeDownloadThenChat exposes the image for download & opens a pre-filled chat,
	// chat deep links cannot carry attachments.
	ModeDownloadThenChat Mode = iota + 1
	// ModeSilent sends the message server-side with no user interaction.
	ModeSilent
)

var ErrUnknownMode = errors.New("unknown notification mode")

func (m Mode) String() string {
	switch m {
	case ModeDownloadThenChat:
		return "chat"
	case ModeSilent:
		return "silent"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(core.CleanString(s)) {
	case "", "chat":
		return ModeDownloadThenChat, nil
	case "silent":
		return ModeSilent, nil
	}
	return 0, ErrUnknownMode
}

const (
	ChannelChat  = "chat"
	ChannelEmail = "email"

	// StatusQueued means the message was handed to the mail service, which delivers it asynchronously.
	StatusQueued = "queued"
	StatusFailed = "failed"
)

// Message is an audit record of a silent dispatch attempt.
type Message struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	StudentID string    `json:"student_id"`
	ReceiptID string    `json:"recibo_id,omitempty"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type (
	Request struct {
		Mode      Mode
		TenantID  string
		StudentID string
		ReceiptID string
		Name      string // recipient's name
		Phone     string
		Email     string
		Subject   string
		Text      string

		// receipt image, optional
		Image       []byte
		Filename    string
		DownloadURL string
	}

	// Delivery is the outcome of a dispatch. A Warning never undoes what led to the dispatch.
	Delivery struct {
		Mode        string `json:"modo"`
		Channel     string `json:"canal,omitempty"`
		ChatURL     string `json:"chatUrl,omitempty"`
		DownloadURL string `json:"descargaUrl,omitempty"`
		Sent        bool   `json:"enviado"` // handed to the mail service
		Warning     string `json:"advertencia,omitempty"`
	}
)
