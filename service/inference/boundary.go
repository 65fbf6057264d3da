package inference

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

// Sanitize clamps boxes into [0,1] and drops detections that are malformed:
// empty labels, confidence outside [0,1], or boxes without area after clamping.
// It returns the kept detections and the number rejected.
func Sanitize(dets []model.Detection) ([]model.Detection, int) {
	kept := make([]model.Detection, 0, len(dets))
	rejected := 0
	for _, d := range dets {
		if strings.TrimSpace(d.Label) == "" ||
			math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
			rejected++
			continue
		}

		d.Box = d.Box.Clamp()
		if !d.Box.Valid() {
			rejected++
			continue
		}
		kept = append(kept, d)
	}
	return kept, rejected
}

type boundaryService struct {
	inner    IService
	rejected atomic.Uint64
}

// NewBoundary wraps a detector so everything it returns has passed Sanitize.
func NewBoundary(inner IService) IService {
	return &boundaryService{inner: inner}
}

func (svc *boundaryService) Name() string {
	return svc.inner.Name()
}

func (svc *boundaryService) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	dets, err := svc.inner.Detect(ctx, frame)
	if err != nil {
		return nil, err
	}

	kept, rejected := Sanitize(dets)
	if rejected > 0 {
		total := svc.rejected.Add(uint64(rejected))
		lgr.Logger.Debug(
			"detector returned malformed detections",
			slog.String("detector", svc.inner.Name()),
			slog.Int("rejected", rejected),
			slog.Uint64("totalRejected", total),
		)
	}
	return kept, nil
}

func (svc *boundaryService) Close() error {
	return svc.inner.Close()
}
