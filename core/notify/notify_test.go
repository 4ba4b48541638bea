package notify_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/notify"
	emailsvc "github.com/William-Pardo/tudojang-sub002/services/email"
	dummydb "github.com/William-Pardo/tudojang-sub002/storage/database/dummy"
	testutil "github.com/William-Pardo/tudojang-sub002/tests"
)

type dispatches struct {
	ok, failed int
}

func (d *dispatches) NotificationDispatched(_ notify.Mode, ok bool) {
	if ok {
		d.ok++
	} else {
		d.failed++
	}
}

func setup(t *testing.T) (*notify.Service, *emailsvc.ConsoleServiceMock, *dispatches) {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	db, _ := dummydb.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	obs := new(dispatches)
	svc := notify.NewService(dummydb.NewNotifyRepository(db), mailSvc, logger, conf, notify.WithObserver(obs))
	return svc, mailSvc, obs
}

func TestDeepLink(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		phone   string
		text    string
		want    string
		wantErr error
	}{
		{
			name: "escapes the text", base: "https://api.whatsapp.com/", phone: "+57 300 123-4567", text: "Hola mundo & más +1",
			want: "https://api.whatsapp.com/send?phone=573001234567&text=Hola%20mundo%20%26%20m%C3%A1s%20%2B1",
		},
		{
			name: "multiline", base: "https://wa.example", phone: "3001234567", text: "a\nb",
			want: "https://wa.example/send?phone=3001234567&text=a%0Ab",
		},
		{name: "no phone", base: "https://wa.example", phone: " - ", text: "hola", wantErr: notify.ErrNoPhone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := notify.DeepLink(tt.base, tt.phone, tt.text)
			if tt.wantErr != nil {
				var vErr *core.ValidationError
				if !errors.As(err, &vErr) || vErr.Err != tt.wantErr {
					t.Errorf("DeepLink() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_InternationalPhone(t *testing.T) {
	svc, _, _ := setup(t)
	assert.Equal(t, "573001234567", svc.InternationalPhone("300 123 4567"))
	assert.Equal(t, "573001234567", svc.InternationalPhone("+57 300 123 4567"))
	assert.Equal(t, "6012345", svc.InternationalPhone("601-2345"))
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    notify.Mode
		wantErr bool
	}{
		{in: "", want: notify.ModeDownloadThenChat},
		{in: "chat", want: notify.ModeDownloadThenChat},
		{in: " Silent ", want: notify.ModeSilent},
		{in: "sms", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := notify.ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_Dispatch_chat(t *testing.T) {
	ctx := context.Background()
	svc, mailSvc, obs := setup(t)

	d := svc.Dispatch(ctx, notify.Request{
		Mode:        notify.ModeDownloadThenChat,
		TenantID:    "t1",
		ReceiptID:   "REC-2024-0001",
		Phone:       "300 123 4567",
		Text:        "Recibo de pago REC-2024-0001",
		DownloadURL: "https://demo.tudojang.test/v1/receipts/REC-2024-0001/image",
	})
	assert.Equal(t, "chat", d.Mode)
	assert.Equal(t, notify.ChannelChat, d.Channel)
	assert.Empty(t, d.Warning)
	assert.False(t, d.Sent, "the user sends the chat message")
	assert.True(t, strings.HasPrefix(d.ChatURL, "https://api.whatsapp.com/send?phone=573001234567&text=Recibo%20de%20pago"))
	assert.Equal(t, "https://demo.tudojang.test/v1/receipts/REC-2024-0001/image", d.DownloadURL)
	assert.Empty(t, mailSvc.SentMessages())

	history, err := svc.History(ctx, "t1", "REC-2024-0001")
	require.NoError(t, err)
	assert.Empty(t, history, "chat links are not audited")

	// no phone: soft warning
	d = svc.Dispatch(ctx, notify.Request{Mode: notify.ModeDownloadThenChat, TenantID: "t1", Text: "hola"})
	assert.Empty(t, d.ChatURL)
	assert.Equal(t, notify.ErrNoPhone.Error(), d.Warning)

	assert.Equal(t, 1, obs.ok)
	assert.Equal(t, 1, obs.failed)
}

func TestService_Dispatch_silent(t *testing.T) {
	ctx := context.Background()
	svc, mailSvc, obs := setup(t)

	d := svc.Dispatch(ctx, notify.Request{
		Mode:      notify.ModeSilent,
		TenantID:  "t1",
		StudentID: "s1",
		ReceiptID: "REC-2024-0001",
		Name:      "Marta Gómez",
		Email:     " Marta@Test.co ",
		Subject:   "Club Demo - Recibo REC-2024-0001",
		Text:      "Recibo de pago REC-2024-0001",
		Image:     []byte("\x89PNG fake"),
		Filename:  "Recibo-REC-2024-0001-Ana.png",
	})
	assert.True(t, d.Sent)
	assert.Equal(t, "silent", d.Mode)
	assert.Equal(t, notify.ChannelEmail, d.Channel)
	assert.Empty(t, d.Warning)

	sent := mailSvc.SentMessages()
	if assert.Len(t, sent, 1) {
		msg := sent[0]
		assert.Equal(t, "marta@test.co", msg.To[0].Address)
		assert.Equal(t, "Club Demo - Recibo REC-2024-0001", msg.Subject)
		assert.Contains(t, msg.TextContent, "Recibo de pago REC-2024-0001")
		assert.Contains(t, msg.HTMLContent, "Adjuntamos tu recibo")
		if assert.Len(t, msg.Attachments, 1) {
			assert.Equal(t, "image/png", msg.Attachments[0].ContentType)
			assert.Equal(t, "Recibo-REC-2024-0001-Ana.png", msg.Attachments[0].Filename)
		}
	}

	// no address: audited as failed, never an error
	d = svc.Dispatch(ctx, notify.Request{Mode: notify.ModeSilent, TenantID: "t1", ReceiptID: "REC-2024-0001", Text: "hola"})
	assert.False(t, d.Sent)
	assert.Equal(t, notify.ErrNoRecipient.Error(), d.Warning)

	history, err := svc.History(ctx, "t1", "REC-2024-0001")
	require.NoError(t, err)
	if assert.Len(t, history, 2) {
		// delivery is asynchronous, only the hand-off is known here
		assert.Equal(t, "queued", history[0].Status)
		assert.Equal(t, "marta@test.co", history[0].Recipient)
		assert.Equal(t, notify.StatusFailed, history[1].Status)
		assert.Equal(t, notify.ErrNoRecipient.Error(), history[1].Error)
	}
	other, err := svc.History(ctx, "t2", "REC-2024-0001")
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.Equal(t, 1, obs.ok)
	assert.Equal(t, 1, obs.failed)
}

func TestService_Dispatch_unknownMode(t *testing.T) {
	svc, _, obs := setup(t)
	d := svc.Dispatch(context.Background(), notify.Request{Mode: notify.Mode(9)})
	assert.Equal(t, notify.ErrUnknownMode.Error(), d.Warning)
	assert.Equal(t, "Mode(9)", d.Mode)
	assert.Equal(t, 1, obs.failed)
}

func TestTexts(t *testing.T) {
	assert.Equal(t,
		"Club Demo: la solicitud de Ana (Dobok) por $140.000 fue aprobada y se sumó a su saldo.",
		notify.ChargeApprovedText("Club Demo", "Ana", "Dobok", decimal.NewFromInt(140000)),
	)
	assert.Equal(t, "Club Demo: la solicitud de Ana (Torneo) fue rechazada.", notify.ChargeRejectedText("Club Demo", "Ana", "Torneo"))
}
