package mode

import (
	"context"
	"io"
	"time"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/pipeline"
	"github.com/khaledhikmat/scanbill-go/service/presenter"
)

const (
	demoScanPeriod = 12 * time.Second
	demoSendPause  = 2 * time.Second
	demoCustomer   = "demo@scanbill.example"
)

// Demo scans for a while, bills the cart, mails the receipt and quits. The
// caller is expected to wire synthetic capture and detection.
func Demo(canxCtx context.Context,
	svcs pipeline.ServicesFactory,
	source model.Source,
	presenterSvc presenter.IService,
	_ io.Reader) error {
	commands := make(chan string)
	go demoScript(canxCtx, commands)

	return runSession(canxCtx, svcs, source, presenterSvc, commands)
}

func demoScript(canxCtx context.Context, out chan<- string) {
	steps := []struct {
		wait    time.Duration
		command string
	}{
		{demoScanPeriod, "cart"},
		{0, "stop"},
		{0, "bill"},
		{0, "send " + demoCustomer},
		{demoSendPause, "stats"},
		{0, "quit"},
	}

	for _, step := range steps {
		select {
		case <-canxCtx.Done():
			return
		case <-time.After(step.wait):
		}

		select {
		case <-canxCtx.Done():
			return
		case out <- step.command:
		}
	}
}
