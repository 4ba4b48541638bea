package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core"
)

var (
	ErrNoPhone     = errors.New("no phone number to chat with")
	ErrNoRecipient = errors.New("no email address to send to")
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) error
		QueryMessages(ctx context.Context, tenantID, receiptID string) ([]Message, error)
	}

	Observer interface {
		NotificationDispatched(mode Mode, ok bool)
	}

	Option func(svc *Service)

	Service struct {
		repo            Repository
		mailSvc         core.EmailService
		logger          core.Logger
		observer        Observer
		chatBaseURL     string
		countryCode     string
		frontendBaseURL string
		now             func() time.Time
	}
)

func WithObserver(o Observer) Option {
	return func(svc *Service) { svc.observer = o }
}

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config, opts ...Option) *Service {
	svc := &Service{
		repo:            repo,
		mailSvc:         mailSvc,
		logger:          logger,
		chatBaseURL:     conf.Notify.ChatBaseURL,
		countryCode:     core.DigitsOnly(conf.Notify.DefaultCountryCode),
		frontendBaseURL: conf.FrontendBaseURL,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// DeepLink builds a pre-filled chat link: <base>/send?phone=<digits>&text=<text>.
func DeepLink(base, phone, text string) (string, error) {
	digits := core.DigitsOnly(phone)
	if digits == "" {
		return "", core.NewValidationError(ErrNoPhone, core.FieldError{Field: "phone", Error: ErrNoPhone.Error()})
	}
	q := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return strings.TrimRight(base, "/") + "/send?phone=" + digits + "&text=" + q, nil
}

// InternationalPhone prefixes local 10-digit numbers with the default country code.
func (svc *Service) InternationalPhone(phone string) string {
	digits := core.DigitsOnly(phone)
	if len(digits) == 10 && svc.countryCode != "" {
		return svc.countryCode + digits
	}
	return digits
}

// Dispatch delivers a receipt or a transactional message. It never fails:
// problems are logged & reported as a Delivery warning.
func (svc *Service) Dispatch(ctx context.Context, req Request) Delivery {
	var d Delivery
	switch req.Mode {
	case ModeDownloadThenChat:
		d = svc.chat(req)
	case ModeSilent:
		d = svc.silent(ctx, req)
	default:
		d = Delivery{Mode: req.Mode.String(), Warning: ErrUnknownMode.Error()}
		svc.logger.Warn(fmt.Sprintf("notification for %s not sent: %v", req.ReceiptID, ErrUnknownMode))
	}
	if svc.observer != nil {
		svc.observer.NotificationDispatched(req.Mode, d.Warning == "")
	}
	return d
}

func (svc *Service) chat(req Request) Delivery {
	d := Delivery{Mode: req.Mode.String(), Channel: ChannelChat, DownloadURL: req.DownloadURL}
	link, err := DeepLink(svc.chatBaseURL, svc.InternationalPhone(req.Phone), req.Text)
	if err != nil {
		d.Warning = errorMessage(err)
		svc.logger.Warn(fmt.Sprintf("no chat link for %s: %v", req.ReceiptID, err))
		return d
	}
	d.ChatURL = link
	return d
}

func (svc *Service) silent(ctx context.Context, req Request) Delivery {
	d := Delivery{Mode: req.Mode.String(), Channel: ChannelEmail}
	audit := Message{
		ID:        uuid.NewString(),
		TenantID:  req.TenantID,
		StudentID: req.StudentID,
		ReceiptID: req.ReceiptID,
		Channel:   ChannelEmail,
		Recipient: core.CleanString(req.Email, true /* lower */),
		Body:      req.Text,
		CreatedAt: svc.now(),
	}

	err := svc.send(req, audit.Recipient)
	if err != nil {
		audit.Status = StatusFailed
		audit.Error = err.Error()
		d.Warning = errorMessage(err)
		svc.logger.Warn(fmt.Sprintf("notification for %s not sent: %v", req.ReceiptID, err))
	} else {
		audit.Status = StatusQueued
		d.Sent = true
		svc.logger.Info(fmt.Sprintf("notification for %s queued for %s", req.ReceiptID, audit.Recipient))
	}

	if err := svc.repo.CreateMessage(ctx, audit); err != nil {
		svc.logger.Error(fmt.Sprintf("saving notification audit for %s: %v", req.ReceiptID, err), err)
	}
	return d
}

func (svc *Service) send(req Request, recipient string) error {
	if recipient == "" {
		return ErrNoRecipient
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: req.Name, Address: recipient}},
		Subject:      req.Subject,
		TemplateName: "notification",
		TemplateData: map[string]interface{}{
			"Title":         req.Subject,
			"Message":       req.Text,
			"HasAttachment": len(req.Image) > 0,
		},
	}
	if len(req.Image) > 0 {
		if err := msg.Attach(bytes.NewReader(req.Image), req.Filename, "image/png"); err != nil {
			return errors.Wrap(err, "attaching receipt")
		}
	}
	if err := msg.Render(svc.frontendBaseURL); err != nil {
		return core.NewExternalServiceError("email", errors.Wrap(err, "rendering message"))
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

// History lists the audit records of a receipt.
func (svc *Service) History(ctx context.Context, tenantID, receiptID string) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, tenantID, receiptID)
}

// ChargeApprovedText is the transactional message sent when a store/event request is approved.
func ChargeApprovedText(clubName, studentName, item string, amount decimal.Decimal) string {
	return fmt.Sprintf("%s: la solicitud de %s (%s) por %s fue aprobada y se sumó a su saldo.",
		clubName, studentName, item, core.FormatCOP(amount))
}

// ChargeRejectedText is the transactional message sent when a store/event request is rejected.
func ChargeRejectedText(clubName, studentName, item string) string {
	return fmt.Sprintf("%s: la solicitud de %s (%s) fue rechazada.", clubName, studentName, item)
}

func errorMessage(err error) string {
	if verr, ok := errors.Cause(err).(*core.ValidationError); ok && verr.Err != nil {
		return verr.Err.Error()
	}
	return err.Error()
}
