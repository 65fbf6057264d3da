package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/pipeline"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
	"github.com/khaledhikmat/scanbill-go/service/presenter"
)

// runSession drives one checkout lane: it runs the scanner, presents its
// events, executes cashier commands and persists stats and errors.
func runSession(canxCtx context.Context,
	svcs pipeline.ServicesFactory,
	source model.Source,
	presenterSvc presenter.IService,
	commands <-chan string) error {
	errorStream := make(chan interface{}, 64)
	statsStream := make(chan interface{}, 64)

	if svcs.CaptureSvc == nil {
		captureSvc, err := pipeline.NewCapture(source, errorStream, statsStream)
		if err != nil {
			return err
		}
		svcs.CaptureSvc = captureSvc
	}

	auditor := pipeline.NewAuditor(svcs.CfgSvc.GetDetectionLogFile(), source.Name)
	defer auditor.Close()

	sessionCtx, sessionCancel := context.WithCancel(canxCtx)
	defer sessionCancel()

	scanner := pipeline.NewScanner(svcs, source, errorStream, statsStream, pipeline.WithAuditor(auditor))

	scannerResult := make(chan error, 1)
	go func() {
		scannerResult <- scanner.Run(sessionCtx)
	}()

	// Commands run one at a time off the loop so events keep draining while
	// a command waits on the scanner.
	work := make(chan string)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-sessionCtx.Done():
				return
			case line := <-work:
				if handleCommand(sessionCtx, scanner, presenterSvc, line) {
					close(quit)
					return
				}
			}
		}
	}()

	var runErr error
	var pending []string
	events := scanner.Events()

	for {
		var next chan string
		var line string
		if len(pending) > 0 {
			next = work
			line = pending[0]
		}

		select {
		case <-sessionCtx.Done():
			lgr.Logger.Info(
				"checkout session context cancelled",
			)
			goto resume

		case runErr = <-scannerResult:
			goto resume

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			presenterSvc.Event(ev)

		case l, ok := <-commands:
			if !ok {
				lgr.Logger.Info("command input closed")
				commands = nil
				continue
			}
			pending = append(pending, l)

		case next <- line:
			pending = pending[1:]

		case <-quit:
			lgr.Logger.Info("checkout session ending on request")
			goto resume

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

	// Give the scanner a bounded amount of time to stop capture, abandon the
	// in-flight detection and publish its final stats.
resume:
	sessionCancel()

	lgr.Logger.Info(
		"checkout session is waiting for the scanner to exit",
	)

	timer := time.NewTimer(time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"checkout session shutdown waiting period expired. Exiting now",
				slog.Duration("period", time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime())*time.Second),
			)
			return runErr

		case <-scanner.Done():
			if events != nil {
				for ev := range events {
					presenterSvc.Event(ev)
				}
			}
			drain(svcs, statsStream, errorStream)
			return runErr

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}

func drain(svcs pipeline.ServicesFactory, statsStream chan interface{}, errorStream chan interface{}) {
	for {
		select {
		case s := <-statsStream:
			procStats(svcs.DataSvc, s)
		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		default:
			return
		}
	}
}
