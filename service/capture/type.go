package capture

import (
	"context"

	"github.com/khaledhikmat/scanbill-go/model"
)

// IService supplies frames from a camera-like source. Start returns a channel
// that is closed when the source stops, fails, or ctx is cancelled; Err reports
// why a source ended abnormally.
type IService interface {
	Start(ctx context.Context) (<-chan model.Frame, error)
	Stop() error
	Err() error
}
