package mode

import (
	"context"
	"io"
	"log/slog"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/pipeline"
	"github.com/khaledhikmat/scanbill-go/service/data"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
	"github.com/khaledhikmat/scanbill-go/service/presenter"
)

type Processor func(canxCtx context.Context,
	svcs pipeline.ServicesFactory,
	source model.Source,
	presenterSvc presenter.IService,
	input io.Reader) error

func procStats(datasvc data.IService, stats interface{}) {
	switch stats := stats.(type) {
	case model.ScannerStats:
		procScannerStats(datasvc, stats)
	case model.CaptureStats:
		procCaptureStats(datasvc, stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procScannerStats(datasvc data.IService, stats model.ScannerStats) {
	lgr.Logger.Info(
		"scanner stats",
		slog.String("session", stats.Session),
		slog.Int("frames", stats.Frames),
		slog.Int("dispatched", stats.Dispatched),
		slog.Int("accepted", stats.Accepted),
		slog.Float64("p95InferenceMs", stats.P95InferenceMs),
	)

	if datasvc == nil {
		return
	}
	err := datasvc.NewScannerStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store scanner stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procCaptureStats(datasvc data.IService, stats model.CaptureStats) {
	if datasvc == nil {
		return
	}
	err := datasvc.NewCaptureStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store capture stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	lgr.Logger.Warn(
		"processor error",
		slog.Any("error", err),
	)

	if datasvc == nil {
		return
	}
	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}
