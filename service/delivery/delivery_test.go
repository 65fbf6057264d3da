package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/khaledhikmat/scanbill-go/billing"
	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/config"
)

func testBill(t *testing.T) model.Bill {
	t.Helper()
	bill, err := billing.Build([]model.CartLine{
		{ID: "a", Name: "Apple", UnitPrice: decimal.RequireFromString("1.99"), Quantity: 2},
	}, decimal.RequireFromString("0.1"))
	require.NoError(t, err)
	return bill
}

func TestValidateAddress(t *testing.T) {
	valid := []string{"jane@example.com", "a.b+c@mail.example.org", " x@y.io "}
	for _, addr := range valid {
		assert.NoError(t, ValidateAddress(addr), addr)
	}

	invalid := []string{"", "jane", "jane@", "@example.com", "jane@example", "jane@.com", "jane@example.", "ja ne@example.com", "a@b@c.com"}
	for _, addr := range invalid {
		assert.ErrorIs(t, ValidateAddress(addr), ErrInvalidAddress, addr)
	}
}

func TestFakeSendAndFail(t *testing.T) {
	svc := NewFake(0)
	bill := testBill(t)

	require.NoError(t, svc.Send(context.Background(), "jane@example.com", bill))
	assert.Equal(t, []Sent{{Address: "jane@example.com", BillID: bill.ID}}, svc.Sent())

	boom := errors.New("mailbox full")
	svc.Fail(boom)
	assert.ErrorIs(t, svc.Send(context.Background(), "jane@example.com", bill), boom)
	assert.Len(t, svc.Sent(), 1)
}

func TestFakeHonorsContext(t *testing.T) {
	svc := NewFake(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Send(ctx, "jane@example.com", testBill(t)), context.Canceled)
}

func TestSMTPSend(t *testing.T) {
	t.Setenv("SCANBILL_SMTP_HOST", "mail.example.com")
	t.Setenv("SCANBILL_SMTP_USERNAME", "lane1")
	t.Setenv("SCANBILL_SMTP_FROM", "receipts@example.com")

	svc := NewSMTP(config.NewEnvVars()).(*smtpService)
	bill := testBill(t)

	var sent *mail.Msg
	svc.send = func(_ context.Context, msg *mail.Msg) error {
		sent = msg
		return nil
	}

	require.NoError(t, svc.Send(context.Background(), "jane@example.com", bill))
	require.NotNil(t, sent)

	rcpts, err := sent.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"jane@example.com"}, rcpts)
	require.Len(t, sent.GetFrom(), 1)
	assert.Equal(t, "receipts@example.com", sent.GetFrom()[0].Address)
	assert.Equal(t, []string{"Your Receipt - Order #" + bill.ID}, sent.GetGenHeader(mail.HeaderSubject))

	var buf bytes.Buffer
	_, err = sent.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")

	assert.ErrorIs(t, svc.Send(context.Background(), "not-an-address", bill), ErrInvalidAddress)

	svc.send = func(context.Context, *mail.Msg) error {
		return errors.New("connection refused")
	}
	assert.ErrorContains(t, svc.Send(context.Background(), "jane@example.com", bill), "connection refused")
}

func TestSMTPSendHonorsCancellation(t *testing.T) {
	t.Setenv("SCANBILL_SMTP_HOST", "127.0.0.1")

	svc := NewSMTP(config.NewEnvVars())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.Error(t, svc.Send(ctx, "jane@example.com", testBill(t)))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWebhookPostsReceipt(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	t.Setenv("SCANBILL_WEBHOOK_URL", srv.URL)
	svc := NewWebhook(config.NewEnvVars())
	bill := testBill(t)

	require.NoError(t, svc.Send(context.Background(), "jane@example.com", bill))
	assert.Equal(t, "jane@example.com", got.Address)
	assert.Equal(t, bill.ID, got.Bill.ID)
	assert.Equal(t, "$4.38", got.GrandTotal)
	assert.Contains(t, got.ReceiptHTML, "Apple")
}

func TestWebhookFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	t.Setenv("SCANBILL_WEBHOOK_URL", srv.URL)
	svc := NewWebhook(config.NewEnvVars())

	err := svc.Send(context.Background(), "jane@example.com", testBill(t))
	assert.ErrorContains(t, err, "502")
}
