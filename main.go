package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/urfave/cli/v2"

	"github.com/khaledhikmat/scanbill-go/mode"
	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/pipeline"
	"github.com/khaledhikmat/scanbill-go/service/capture/cv"
	"github.com/khaledhikmat/scanbill-go/service/catalog"
	"github.com/khaledhikmat/scanbill-go/service/config"
	"github.com/khaledhikmat/scanbill-go/service/data"
	"github.com/khaledhikmat/scanbill-go/service/delivery"
	"github.com/khaledhikmat/scanbill-go/service/inference/yolo"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
	"github.com/khaledhikmat/scanbill-go/service/presenter"
)

const (
	// WARNING: this has to be bigger that the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

const (
	flagLogLevel = "log-level"
	flagNoColor  = "no-color"

	flagLane           = "lane"
	flagSource         = "source"
	flagFramer         = "framer"
	flagWidth          = "width"
	flagHeight         = "height"
	flagFPS            = "fps"
	flagDetector       = "detector"
	flagThreshold      = "threshold"
	flagCooldownMs     = "cooldown-ms"
	flagCooldownScope  = "cooldown-scope"
	flagSampleInterval = "sample-interval-ms"
	flagTaxRate        = "tax-rate"
	flagDefaultPrice   = "default-price"
	flagCatalog        = "catalog"
	flagDatabase       = "database"
	flagStore          = "store"
	flagLimit          = "limit"
)

var modeProcessors = map[string]mode.Processor{
	"checkout": mode.Checkout,
	"demo":     mode.Demo,
}

var logCloser io.Closer = io.NopCloser(nil)

func main() {
	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			lgr.Logger.Error("error loading .env file", slog.Any("error", xerrors.New(err.Error())))
			os.Exit(1)
		}
	}

	pipeline.RegisterCapture("gocv", cv.New)
	pipeline.RegisterDetector(config.Yolo8DetectorName, yolo.New)

	app := &cli.App{
		Name:  "scanbill",
		Usage: "turn a checkout camera feed into a shopping bill",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: "info",
				Usage: "debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:  flagNoColor,
				Usage: "disable colored console output",
			},
		},
		Before: setupLogging,
		After: func(_ *cli.Context) error {
			return logCloser.Close()
		},
		Commands: []*cli.Command{
			{
				Name:   "checkout",
				Usage:  "scan a live feed; type commands on stdin (help lists them)",
				Flags:  sessionFlags("gocv", "0", ""),
				Action: modeAction("checkout"),
			},
			{
				Name:   "demo",
				Usage:  "scan synthetic frames with a simulated detector, then bill and mail a receipt",
				Flags:  sessionFlags("random", "", config.FakeDetectorName),
				Action: modeAction("demo"),
			},
			{
				Name:  "catalog",
				Usage: "print the product catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagCatalog, Usage: "catalog JSON file"},
					&cli.StringFlag{Name: flagDefaultPrice, Usage: "price of unknown products"},
				},
				Action: catalogAction,
			},
			{
				Name:  "bills",
				Usage: "list archived bills, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagStore, Value: "sqlite", Usage: "sqlite or files"},
					&cli.StringFlag{Name: flagDatabase, Usage: "sqlite database file"},
					&cli.IntFlag{Name: flagLimit, Value: 20, Usage: "maximum number of bills, 0 for all"},
				},
				Action: billsAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		lgr.Logger.Error("scanbill failed", slog.Any("error", xerrors.New(err.Error())))
		os.Exit(1)
	}
}

func sessionFlags(framer, source, detector string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagLane, Value: "lane-1", Usage: "checkout lane name"},
		&cli.StringFlag{Name: flagSource, Value: source, Usage: "device index, RTSP url or video file"},
		&cli.StringFlag{Name: flagFramer, Value: framer, Usage: "gocv or random"},
		&cli.IntFlag{Name: flagWidth, Usage: "capture width"},
		&cli.IntFlag{Name: flagHeight, Usage: "capture height"},
		&cli.IntFlag{Name: flagFPS, Value: 30, Usage: "frames per second for synthetic capture"},
		&cli.StringFlag{Name: flagDetector, Value: detector, Usage: "yolo8, remote or fake"},
		&cli.Float64Flag{Name: flagThreshold, Usage: "minimum detection confidence"},
		&cli.IntFlag{Name: flagCooldownMs, Usage: "minimum time between accepted detections"},
		&cli.StringFlag{Name: flagCooldownScope, Usage: "global or label"},
		&cli.IntFlag{Name: flagSampleInterval, Usage: "minimum time between processed frames"},
		&cli.StringFlag{Name: flagTaxRate, Usage: "tax rate, e.g. 0.10"},
		&cli.StringFlag{Name: flagDefaultPrice, Usage: "price of unknown products"},
		&cli.StringFlag{Name: flagCatalog, Usage: "catalog JSON file"},
		&cli.StringFlag{Name: flagStore, Value: "sqlite", Usage: "sqlite or files"},
		&cli.StringFlag{Name: flagDatabase, Usage: "sqlite database file"},
	}
}

func setupLogging(c *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String(flagLogLevel))); err != nil {
		return fmt.Errorf("invalid log level %q", c.String(flagLogLevel))
	}

	logCloser = lgr.Init(lgr.Options{
		Level:   level,
		File:    config.NewEnvVars().GetLogFile(),
		NoColor: c.Bool(flagNoColor),
	})
	return nil
}

// newConfig layers command line flags over SCANBILL_* env vars and defaults.
func newConfig(c *cli.Context) (config.IService, error) {
	opts := []config.Option{}

	if c.IsSet(flagDetector) || c.Command.Name == "demo" {
		opts = append(opts, config.WithDetector(c.String(flagDetector)))
	}
	if c.IsSet(flagThreshold) {
		threshold := c.Float64(flagThreshold)
		if err := config.CheckAcceptThreshold(threshold); err != nil {
			return nil, err
		}
		opts = append(opts, config.WithAcceptThreshold(threshold))
	}
	if c.IsSet(flagCooldownMs) {
		cooldown := c.Int(flagCooldownMs)
		if err := config.CheckDurationMs(cooldown); err != nil {
			return nil, err
		}
		opts = append(opts, config.WithCooldownMs(cooldown))
	}
	if c.IsSet(flagCooldownScope) {
		scope, err := config.ParseCooldownScope(c.String(flagCooldownScope))
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithCooldownScope(scope))
	}
	if c.IsSet(flagSampleInterval) {
		interval := c.Int(flagSampleInterval)
		if err := config.CheckDurationMs(interval); err != nil {
			return nil, err
		}
		opts = append(opts, config.WithSampleIntervalMs(interval))
	}
	if c.IsSet(flagTaxRate) {
		rate, err := config.ParseAmount(c.String(flagTaxRate))
		if err != nil {
			return nil, fmt.Errorf("invalid tax rate: %w", err)
		}
		opts = append(opts, config.WithTaxRate(rate))
	}
	if c.IsSet(flagDefaultPrice) {
		price, err := config.ParseAmount(c.String(flagDefaultPrice))
		if err != nil {
			return nil, fmt.Errorf("invalid default price: %w", err)
		}
		opts = append(opts, config.WithDefaultPrice(price))
	}
	if c.IsSet(flagCatalog) {
		opts = append(opts, config.WithCatalogFile(c.String(flagCatalog)))
	}
	if c.IsSet(flagDatabase) {
		opts = append(opts, config.WithDatabaseFile(c.String(flagDatabase)))
	}

	return config.NewEnvVars(opts...), nil
}

// newCatalog prefers the configured catalog file and falls back to the
// built-in table when there is none.
func newCatalog(cfgSvc config.IService) (catalog.IService, error) {
	if _, err := os.Stat(cfgSvc.GetCatalogFile()); errors.Is(err, fs.ErrNotExist) {
		lgr.Logger.Info("no catalog file, using built-in products", slog.String("file", cfgSvc.GetCatalogFile()))
		return catalog.NewStatic(cfgSvc.GetDefaultPrice()), nil
	}
	return catalog.NewFile(cfgSvc)
}

func newDataService(store string, cfgSvc config.IService) (data.IService, error) {
	switch store {
	case "sqlite":
		return data.NewSQLite(cfgSvc)
	case "files":
		return data.NewFilesDB(cfgSvc), nil
	default:
		return nil, fmt.Errorf("unknown store %q", store)
	}
}

func newDelivery(cfgSvc config.IService, demo bool) delivery.IService {
	params := cfgSvc.GetDeliveryParameters()
	switch {
	case demo:
		return delivery.NewFake(500 * time.Millisecond)
	case params.WebhookURL != "":
		return delivery.NewWebhook(cfgSvc)
	case params.SMTPHost != "":
		return delivery.NewSMTP(cfgSvc)
	default:
		lgr.Logger.Warn("no SMTP host or webhook configured, receipts will not leave this machine")
		return delivery.NewFake(500 * time.Millisecond)
	}
}

func modeAction(modeType string) cli.ActionFunc {
	return func(c *cli.Context) error {
		modeProc, ok := modeProcessors[modeType]
		if !ok {
			return fmt.Errorf("invalid mode %s", modeType)
		}

		cfgSvc, err := newConfig(c)
		if err != nil {
			return err
		}

		dataSvc, err := newDataService(c.String(flagStore), cfgSvc)
		if err != nil {
			return err
		}
		defer dataSvc.Close()

		catalogSvc, err := newCatalog(cfgSvc)
		if err != nil {
			return err
		}

		detectorSvc, err := pipeline.NewDetector(cfgSvc)
		if err != nil {
			return err
		}
		defer detectorSvc.Close()

		svcs := pipeline.ServicesFactory{
			CfgSvc:      cfgSvc,
			DetectorSvc: detectorSvc,
			CatalogSvc:  catalogSvc,
			DeliverySvc: newDelivery(cfgSvc, modeType == "demo"),
			DataSvc:     dataSvc,
		}

		source := model.Source{
			ID:         c.String(flagLane),
			Name:       c.String(flagLane),
			URL:        c.String(flagSource),
			FramerType: c.String(flagFramer),
			Width:      c.Int(flagWidth),
			Height:     c.Int(flagHeight),
			FPS:        c.Int(flagFPS),
		}

		presenterSvc := presenter.NewConsole(os.Stdout, c.Bool(flagNoColor))

		return runMode(c.Context, modeProc, svcs, source, presenterSvc)
	}
}

func runMode(rootCtx context.Context, modeProc mode.Processor, svcs pipeline.ServicesFactory, source model.Source, presenterSvc presenter.IService) error {
	canxCtx, canxFn := context.WithCancel(rootCtx)
	defer canxFn()

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			lgr.Logger.Info(
				"received kill signal",
				slog.Any("signal", sig),
			)
			canxFn()
		case <-canxCtx.Done():
		}
	}()

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs, source, presenterSvc, os.Stdin)
	}()

	// Wait for cancellation or the mode proc
	var procErr error
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"scanbill context cancelled",
		)

	case procErr = <-modeProcResult:
		if procErr != nil {
			lgr.Logger.Info(
				"scanbill mode processor exited",
				slog.Any("error", xerrors.New(procErr.Error())),
			)
		}
		return procErr
	}

	// Wait in a non-blocking way for `waitOnShutdown` for the mode processor to
	// exit. It may need to report errors and stats as it is exiting.
	lgr.Logger.Info(
		"scanbill is waiting for all go routines to exit",
	)

	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	select {
	case <-timer.C:
		lgr.Logger.Info(
			"scanbill shutdown waiting period expired. Exiting now",
			slog.Duration("period", waitOnShutdown),
		)
		return nil

	case procErr = <-modeProcResult:
		return procErr
	}
}

func catalogAction(c *cli.Context) error {
	cfgSvc, err := newConfig(c)
	if err != nil {
		return err
	}

	catalogSvc, err := newCatalog(cfgSvc)
	if err != nil {
		return err
	}

	presenter.NewConsole(os.Stdout, c.Bool(flagNoColor)).Catalog(catalogSvc.Products())
	return nil
}

func billsAction(c *cli.Context) error {
	cfgSvc, err := newConfig(c)
	if err != nil {
		return err
	}

	dataSvc, err := newDataService(c.String(flagStore), cfgSvc)
	if err != nil {
		return err
	}
	defer dataSvc.Close()

	bills, err := dataSvc.RetrieveBills(c.Int(flagLimit))
	if err != nil {
		return err
	}

	presenter.NewConsole(os.Stdout, c.Bool(flagNoColor)).Bills(bills)
	return nil
}
