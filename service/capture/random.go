package capture

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

var ErrAlreadyStarted = xerrors.New("capture already started")

// maxRandomFPS keeps the frame period well above zero.
const maxRandomFPS = 1000

type randomService struct {
	source      model.Source
	statsStream chan interface{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRandom generates noise frames at the source's FPS. It needs no camera.
func NewRandom(source model.Source, statsStream chan interface{}) IService {
	if source.Width <= 0 {
		source.Width = 640
	}
	if source.Height <= 0 {
		source.Height = 480
	}
	if source.FPS <= 0 {
		source.FPS = 30
	}
	if source.FPS > maxRandomFPS {
		lgr.Logger.Warn("random capture fps too high, clamping",
			slog.String("source", source.Name),
			slog.Int("fps", source.FPS),
			slog.Int("max", maxRandomFPS),
		)
		source.FPS = maxRandomFPS
	}

	return &randomService{
		source:      source,
		statsStream: statsStream,
	}
}

func (svc *randomService) Start(ctx context.Context) (<-chan model.Frame, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.cancel != nil {
		return nil, ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	svc.cancel = cancel
	svc.done = make(chan struct{})

	out := make(chan model.Frame, 1)
	go svc.run(runCtx, out, svc.done)
	return out, nil
}

func (svc *randomService) run(ctx context.Context, out chan model.Frame, done chan struct{}) {
	defer close(done)
	defer close(out)

	var startTime = time.Now()
	var frames = 0

	defer func() {
		uptime := int64(time.Since(startTime).Seconds())
		fps := 0
		if uptime > 0 {
			fps = int(int64(frames) / uptime)
		}
		stats := model.CaptureStats{
			Name:   "randomCapture",
			Source: svc.source.Name,
			Frames: frames,
			Uptime: uptime,
			FPS:    fps,
		}
		if svc.statsStream == nil {
			return
		}
		select {
		case svc.statsStream <- stats:
		default:
			lgr.Logger.Warn("statsStream full, dropping capture stats")
		}
	}()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(time.Second / time.Duration(svc.source.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Info("random capture context cancelled", slog.String("source", svc.source.Name))
			return

		case ts := <-ticker.C:
			data := make([]byte, svc.source.Width*svc.source.Height*3)
			rnd.Read(data)
			frames++

			select {
			case <-ctx.Done():
				return
			case out <- model.Frame{
				Seq:       uint64(frames),
				Data:      data,
				Width:     svc.source.Width,
				Height:    svc.source.Height,
				Timestamp: ts,
			}:
			}
		}
	}
}

func (svc *randomService) Stop() error {
	svc.mu.Lock()
	cancel, done := svc.cancel, svc.done
	svc.cancel, svc.done = nil, nil
	svc.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (svc *randomService) Err() error {
	return nil
}
