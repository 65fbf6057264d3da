package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/khaledhikmat/scanbill-go/billing"
	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/config"
)

const smtpTimeout = 15 * time.Second

type smtpService struct {
	params config.DeliveryParameters
	send   func(ctx context.Context, msg *mail.Msg) error
}

func NewSMTP(cfgSvc config.IService) IService {
	svc := &smtpService{
		params: cfgSvc.GetDeliveryParameters(),
	}
	svc.send = svc.dialAndSend
	return svc
}

func (svc *smtpService) Send(ctx context.Context, address string, bill model.Bill) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}

	msg, err := composeMessage(svc.params.From, address, bill)
	if err != nil {
		return err
	}

	if err := svc.send(ctx, msg); err != nil {
		return fmt.Errorf("error sending receipt to %s: %w", address, err)
	}
	return nil
}

func (svc *smtpService) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(svc.params.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(smtpTimeout),
	}
	if svc.params.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(svc.params.Username),
			mail.WithPassword(svc.params.Password),
		)
	}

	client, err := mail.NewClient(svc.params.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("error creating smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func composeMessage(from, to string, bill model.Bill) (*mail.Msg, error) {
	body, err := billing.RenderHTML(bill)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(billing.Subject(bill))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}
