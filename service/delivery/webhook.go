package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/khaledhikmat/scanbill-go/billing"
	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/config"
)

type webhookService struct {
	url    string
	client *http.Client
}

// NewWebhook posts receipts to the configured URL so another system (a
// mailer, a POS) can deliver them.
func NewWebhook(cfgSvc config.IService) IService {
	return &webhookService{
		url:    cfgSvc.GetDeliveryParameters().WebhookURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Address     string     `json:"address"`
	Subject     string     `json:"subject"`
	Bill        model.Bill `json:"bill"`
	GrandTotal  string     `json:"grandTotal"`
	ReceiptHTML string     `json:"receiptHtml"`
	Timestamp   string     `json:"timestamp"`
}

func (svc *webhookService) Send(ctx context.Context, address string, bill model.Bill) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}

	receipt, err := billing.RenderHTML(bill)
	if err != nil {
		return err
	}

	body, err := json.Marshal(webhookPayload{
		Address:     address,
		Subject:     billing.Subject(bill),
		Bill:        bill,
		GrandTotal:  billing.FormatCurrency(bill.GrandTotal),
		ReceiptHTML: receipt,
		Timestamp:   time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := svc.client.Do(req)
	if err != nil {
		return fmt.Errorf("error posting receipt webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("receipt webhook returned %s", resp.Status)
	}
	return nil
}
