package inference

import (
	"context"

	"github.com/khaledhikmat/scanbill-go/model"
)

// IService turns one frame into zero or more detections. An error means the
// detector could not run this cycle; callers treat it as "no detections".
type IService interface {
	Name() string
	Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error)
	Close() error
}
