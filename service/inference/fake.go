package inference

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/khaledhikmat/scanbill-go/model"
)

var simulatedLabels = []string{"apple", "banana", "orange", "milk", "bread"}

type fakeService struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	delay time.Duration
}

// NewFake simulates a detector: each call reports one random product with a
// confidence in [0.7, 1.0) after delay.
func NewFake(seed int64, delay time.Duration) IService {
	return &fakeService{
		rnd:   rand.New(rand.NewSource(seed)),
		delay: delay,
	}
}

func (svc *fakeService) Name() string {
	return "fake"
}

func (svc *fakeService) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	if svc.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(svc.delay):
		}
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	return []model.Detection{{
		ID:         fmt.Sprintf("%d-%d", frame.Seq, frame.Timestamp.UnixMilli()),
		Label:      simulatedLabels[svc.rnd.Intn(len(simulatedLabels))],
		Confidence: 0.7 + svc.rnd.Float64()*0.3,
		Box: model.Box{
			X1: svc.rnd.Float64() * 0.4,
			Y1: svc.rnd.Float64() * 0.4,
			X2: 0.6 + svc.rnd.Float64()*0.4,
			Y2: 0.6 + svc.rnd.Float64()*0.4,
		},
	}}, nil
}

func (svc *fakeService) Close() error {
	return nil
}

// Step is one scripted detector response.
type Step struct {
	Detections []model.Detection
	Err        error
}

type scriptedService struct {
	mu    sync.Mutex
	steps []Step
	calls int
}

// NewScripted replays steps in order, one per Detect call, and returns no
// detections once the script is exhausted.
func NewScripted(steps ...Step) IService {
	return &scriptedService{steps: steps}
}

func (svc *scriptedService) Name() string {
	return "scripted"
}

func (svc *scriptedService) Detect(ctx context.Context, _ model.Frame) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.calls >= len(svc.steps) {
		svc.calls++
		return nil, nil
	}
	step := svc.steps[svc.calls]
	svc.calls++
	return step.Detections, step.Err
}

func (svc *scriptedService) Close() error {
	return nil
}
