// Package cv captures frames from webcams, RTSP streams and video files through OpenCV.
package cv

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/capture"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

// maxConsecutiveErrors ends the capture when the device keeps failing.
const maxConsecutiveErrors = 100

type service struct {
	source      model.Source
	statsStream chan interface{}
	errorStream chan interface{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func New(source model.Source, errorStream chan interface{}, statsStream chan interface{}) capture.IService {
	return &service{
		source:      source,
		errorStream: errorStream,
		statsStream: statsStream,
	}
}

func (svc *service) Start(ctx context.Context) (<-chan model.Frame, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.cancel != nil {
		return nil, capture.ErrAlreadyStarted
	}

	webcam, err := open(svc.source.URL)
	if err != nil {
		return nil, fmt.Errorf("error opening video source %s: %w", svc.source.URL, err)
	}

	if svc.source.Width > 0 && svc.source.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(svc.source.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(svc.source.Height))
	}

	runCtx, cancel := context.WithCancel(ctx)
	svc.cancel = cancel
	svc.done = make(chan struct{})
	svc.err = nil

	out := make(chan model.Frame, 1)
	go svc.run(runCtx, webcam, out, svc.done)
	return out, nil
}

// open treats a purely numeric URL as a local device index.
func open(url string) (*gocv.VideoCapture, error) {
	if id, err := strconv.Atoi(url); err == nil {
		return gocv.OpenVideoCapture(id)
	}
	return gocv.OpenVideoCapture(url)
}

func (svc *service) run(ctx context.Context, webcam *gocv.VideoCapture, out chan model.Frame, done chan struct{}) {
	defer close(done)
	defer close(out)
	defer webcam.Close()

	var startTime = time.Now()
	var frames = 0
	var errors = 0
	var consecutive = 0

	defer func() {
		uptime := int64(time.Since(startTime).Seconds())
		fps := 0
		if uptime > 0 {
			fps = int(int64(frames) / uptime)
		}
		select {
		case svc.statsStream <- model.CaptureStats{
			Name:   "cvCapture",
			Source: svc.source.Name,
			Frames: frames,
			Errors: errors,
			Uptime: uptime,
			FPS:    fps,
		}:
		default:
		}
	}()

	img := gocv.NewMat()
	defer img.Close() // Crucial to close the image to avoid memory leaks

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Info("cv capture context cancelled", slog.String("source", svc.source.Name))
			return

		default:
			if ok := webcam.Read(&img); !ok || img.Empty() {
				errors++
				consecutive++
				if consecutive >= maxConsecutiveErrors {
					svc.fail(fmt.Errorf("video source %s stopped producing frames", svc.source.Name))
					return
				}
				continue
			}
			consecutive = 0
			frames++

			frame := model.Frame{
				Seq:       uint64(frames),
				Data:      img.ToBytes(),
				Width:     img.Cols(),
				Height:    img.Rows(),
				Timestamp: time.Now(),
			}

			select {
			case <-ctx.Done():
				return
			case out <- frame:
			default:
				// The scanner is busy; the next frame is fresher anyway.
			}
		}
	}
}

func (svc *service) fail(err error) {
	svc.mu.Lock()
	svc.err = err
	svc.mu.Unlock()

	select {
	case svc.errorStream <- model.GenError("capture_cv", err, map[string]interface{}{"source": svc.source.Name}, "capture failed"):
	default:
		lgr.Logger.Error("capture failed", slog.Any("error", err))
	}
}

func (svc *service) Stop() error {
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

func (svc *service) Err() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.err
}
