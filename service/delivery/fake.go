package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

type Sent struct {
	Address string
	BillID  string
}

// FakeService pretends to send receipts after a delay. Fail makes the next
// sends return the given error.
type FakeService struct {
	delay time.Duration

	mu   sync.Mutex
	sent []Sent
	fail error
}

func NewFake(delay time.Duration) *FakeService {
	return &FakeService{delay: delay}
}

func (svc *FakeService) Send(ctx context.Context, address string, bill model.Bill) error {
	if svc.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(svc.delay):
		}
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.fail != nil {
		return svc.fail
	}

	svc.sent = append(svc.sent, Sent{Address: address, BillID: bill.ID})
	lgr.Logger.Info("bill sent",
		slog.String("to", address),
		slog.String("billID", bill.ID),
	)
	return nil
}

func (svc *FakeService) Fail(err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.fail = err
}

func (svc *FakeService) Sent() []Sent {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]Sent{}, svc.sent...)
}
