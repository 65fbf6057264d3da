package mode

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/pipeline"
	"github.com/khaledhikmat/scanbill-go/service/catalog"
	"github.com/khaledhikmat/scanbill-go/service/config"
	"github.com/khaledhikmat/scanbill-go/service/data"
	"github.com/khaledhikmat/scanbill-go/service/delivery"
	"github.com/khaledhikmat/scanbill-go/service/inference"
)

type recordingPresenter struct {
	mu     sync.Mutex
	events []model.Event
	carts  int
}

func (p *recordingPresenter) Event(event model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPresenter) Cart(_ []model.CartLine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.carts++
}

func (p *recordingPresenter) Bills(_ []model.Bill) {}

func (p *recordingPresenter) Catalog(_ map[string]model.Product) {}

func (p *recordingPresenter) seen(eventType model.EventType) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ev := range p.events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

func TestSessionScanBillAndSend(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCANBILL_INPUT_FOLDER", dir)
	t.Setenv("SCANBILL_DETECTION_LOG_FILE", filepath.Join(dir, "detections.log"))
	cfg := config.NewEnvVars(config.WithSampleIntervalMs(10))

	dataSvc := data.NewFilesDB(cfg)
	deliverySvc := delivery.NewFake(0)
	svcs := pipeline.ServicesFactory{
		CfgSvc: cfg,
		DetectorSvc: inference.NewScripted(inference.Step{Detections: []model.Detection{{
			ID:         "d1",
			Label:      "apple",
			Confidence: 0.92,
			Box:        model.Box{X1: 0.1, Y1: 0.1, X2: 0.4, Y2: 0.4},
		}}}),
		CatalogSvc:  catalog.NewStatic(cfg.GetDefaultPrice()),
		DeliverySvc: deliverySvc,
		DataSvc:     dataSvc,
	}
	source := model.Source{Name: "lane-1", FramerType: "random", Width: 8, Height: 8, FPS: 50}

	presenterSvc := &recordingPresenter{}
	commands := make(chan string)
	result := make(chan error, 1)
	go func() {
		result <- runSession(context.Background(), svcs, source, presenterSvc, commands)
	}()

	require.Eventually(t, func() bool { return presenterSvc.seen(model.LineAdded) }, 5*time.Second, 20*time.Millisecond)

	commands <- "cart"
	commands <- "bill"
	require.Eventually(t, func() bool { return presenterSvc.seen(model.BillCreated) }, 5*time.Second, 20*time.Millisecond)

	commands <- "send jane@example.com"
	require.Eventually(t, func() bool { return presenterSvc.seen(model.CartCleared) }, 5*time.Second, 20*time.Millisecond)

	commands <- "quit"
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("session did not end")
	}

	assert.Len(t, deliverySvc.Sent(), 1)
	bills, err := dataSvc.RetrieveBills(0)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, "jane@example.com", bills[0].CustomerEmail)
	assert.Equal(t, 1, presenterSvc.carts)
}

func TestSessionUnknownFramer(t *testing.T) {
	svcs := pipeline.ServicesFactory{CfgSvc: config.NewHardCoded()}
	err := runSession(context.Background(), svcs, model.Source{FramerType: "nope"}, &recordingPresenter{}, nil)
	assert.Error(t, err)
}
