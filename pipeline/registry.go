package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/capture"
	"github.com/khaledhikmat/scanbill-go/service/config"
	"github.com/khaledhikmat/scanbill-go/service/inference"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

// CaptureFactory builds a capture service for a source's framer type.
type CaptureFactory func(source model.Source, errorStream chan interface{}, statsStream chan interface{}) capture.IService

// DetectorFactory builds a detector from configuration.
type DetectorFactory func(cfgSvc config.IService) (inference.IService, error)

var (
	registryMu       sync.RWMutex
	captureFactories = map[string]CaptureFactory{
		"random": func(source model.Source, _ chan interface{}, statsStream chan interface{}) capture.IService {
			return capture.NewRandom(source, statsStream)
		},
	}
	detectorFactories = map[string]DetectorFactory{
		config.FakeDetectorName: func(_ config.IService) (inference.IService, error) {
			return inference.NewFake(time.Now().UnixNano(), 150*time.Millisecond), nil
		},
		config.RemoteDetectorName: func(cfgSvc config.IService) (inference.IService, error) {
			return inference.NewRemote(cfgSvc), nil
		},
	}
)

// RegisterCapture makes a framer type available. cgo-backed captures are
// registered by the binary so that this package stays cgo-free.
func RegisterCapture(framerType string, factory CaptureFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := captureFactories[framerType]; ok {
		lgr.Logger.Warn("capture already registered", slog.String("framerType", framerType))
		return
	}
	captureFactories[framerType] = factory
}

func RegisterDetector(name string, factory DetectorFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := detectorFactories[name]; ok {
		lgr.Logger.Warn("detector already registered", slog.String("name", name))
		return
	}
	detectorFactories[name] = factory
}

func NewCapture(source model.Source, errorStream chan interface{}, statsStream chan interface{}) (capture.IService, error) {
	registryMu.RLock()
	factory, ok := captureFactories[source.FramerType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("framer type %q not found", source.FramerType)
	}
	return factory(source, errorStream, statsStream), nil
}

func NewDetector(cfgSvc config.IService) (inference.IService, error) {
	name := cfgSvc.GetDetectorName()

	registryMu.RLock()
	factory, ok := detectorFactories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("detector %s not found", name)
	}
	return factory(cfgSvc)
}
