package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

// envVarsService reads SCANBILL_* environment variables once at construction
// and falls back to the hard-coded defaults for anything unset or unparsable.
type envVarsService struct {
	defaults IService

	inputFolder      string
	catalogFile      string
	databaseFile     string
	logFile          string
	detectionLogFile string
	statsTimeout     int
	eventBuffer      int

	acceptThreshold  float64
	cooldownMs       int
	cooldownScope    string
	sampleIntervalMs int
	taxRate          decimal.Decimal
	defaultPrice     decimal.Decimal

	detectorName string
	modelPath    string
	labelsPath   string
	inferenceURL string
	delivery     DeliveryParameters
}

type Option func(*envVarsService)

func WithAcceptThreshold(v float64) Option {
	return func(s *envVarsService) { s.acceptThreshold = v }
}

func WithCooldownMs(v int) Option {
	return func(s *envVarsService) { s.cooldownMs = v }
}

func WithCooldownScope(v string) Option {
	return func(s *envVarsService) { s.cooldownScope = v }
}

func WithSampleIntervalMs(v int) Option {
	return func(s *envVarsService) { s.sampleIntervalMs = v }
}

func WithTaxRate(v decimal.Decimal) Option {
	return func(s *envVarsService) { s.taxRate = v }
}

func WithDefaultPrice(v decimal.Decimal) Option {
	return func(s *envVarsService) { s.defaultPrice = v }
}

func WithDetector(name string) Option {
	return func(s *envVarsService) { s.detectorName = name }
}

func WithCatalogFile(path string) Option {
	return func(s *envVarsService) { s.catalogFile = path }
}

func WithDatabaseFile(path string) Option {
	return func(s *envVarsService) { s.databaseFile = path }
}

func NewEnvVars(opts ...Option) IService {
	d := NewHardCoded()
	yolo := d.GetDetectorParameters(Yolo8DetectorName)
	remote := d.GetDetectorParameters(RemoteDetectorName)
	delivery := d.GetDeliveryParameters()

	svc := &envVarsService{
		defaults:         d,
		inputFolder:      envString("SCANBILL_INPUT_FOLDER", d.GetInputFolder()),
		catalogFile:      envString("SCANBILL_CATALOG_FILE", ""),
		databaseFile:     envString("SCANBILL_DATABASE_FILE", ""),
		logFile:          envString("SCANBILL_LOG_FILE", d.GetLogFile()),
		detectionLogFile: envString("SCANBILL_DETECTION_LOG_FILE", d.GetDetectionLogFile()),
		statsTimeout:     envInt("SCANBILL_STATS_PERIODIC_TIMEOUT", d.GetStatsPeriodicTimeout()),
		eventBuffer:      envInt("SCANBILL_EVENT_BUFFER_SIZE", d.GetEventBufferSize()),
		acceptThreshold:  envThreshold("SCANBILL_ACCEPT_THRESHOLD", d.GetAcceptThreshold()),
		cooldownMs:       envDurationMs("SCANBILL_COOLDOWN_MS", d.GetCooldownMs()),
		cooldownScope:    envScope("SCANBILL_COOLDOWN_SCOPE", d.GetCooldownScope()),
		sampleIntervalMs: envDurationMs("SCANBILL_SAMPLE_INTERVAL_MS", d.GetSampleIntervalMs()),
		taxRate:          envAmount("SCANBILL_TAX_RATE", d.GetTaxRate()),
		defaultPrice:     envAmount("SCANBILL_DEFAULT_PRICE", d.GetDefaultPrice()),
		detectorName:     envString("SCANBILL_DETECTOR", d.GetDetectorName()),
		modelPath:        envString("SCANBILL_MODEL_PATH", yolo.ModelPath),
		labelsPath:       envString("SCANBILL_LABELS_PATH", yolo.LabelsPath),
		inferenceURL:     envString("SCANBILL_INFERENCE_URL", remote.InferenceURL),
		delivery: DeliveryParameters{
			SMTPHost: envString("SCANBILL_SMTP_HOST", delivery.SMTPHost),
			SMTPPort: envInt("SCANBILL_SMTP_PORT", delivery.SMTPPort),
			Username: envString("SCANBILL_SMTP_USERNAME", delivery.Username),
			Password: envString("SCANBILL_SMTP_PASSWORD", delivery.Password),
			From:     envString("SCANBILL_SMTP_FROM", delivery.From),

			WebhookURL: envString("SCANBILL_WEBHOOK_URL", delivery.WebhookURL),
		},
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

func (svc *envVarsService) GetModeMaxShutdownTime() int {
	return svc.defaults.GetModeMaxShutdownTime()
}

func (svc *envVarsService) GetInputFolder() string {
	return svc.inputFolder
}

func (svc *envVarsService) GetCatalogFile() string {
	if svc.catalogFile != "" {
		return svc.catalogFile
	}
	return svc.inputFolder + "/catalog.json"
}

func (svc *envVarsService) GetDatabaseFile() string {
	if svc.databaseFile != "" {
		return svc.databaseFile
	}
	return svc.inputFolder + "/bills.db"
}

func (svc *envVarsService) GetLogFile() string {
	return svc.logFile
}

func (svc *envVarsService) GetDetectionLogFile() string {
	return svc.detectionLogFile
}

func (svc *envVarsService) GetStatsPeriodicTimeout() int {
	return svc.statsTimeout
}

func (svc *envVarsService) GetEventBufferSize() int {
	return svc.eventBuffer
}

func (svc *envVarsService) GetAcceptThreshold() float64 {
	return svc.acceptThreshold
}

func (svc *envVarsService) GetCooldownMs() int {
	return svc.cooldownMs
}

func (svc *envVarsService) GetCooldownScope() string {
	return svc.cooldownScope
}

func (svc *envVarsService) GetSampleIntervalMs() int {
	return svc.sampleIntervalMs
}

func (svc *envVarsService) GetTaxRate() decimal.Decimal {
	return svc.taxRate
}

func (svc *envVarsService) GetDefaultPrice() decimal.Decimal {
	return svc.defaultPrice
}

func (svc *envVarsService) GetDetectorName() string {
	return svc.detectorName
}

func (svc *envVarsService) GetDetectorParameters(name string) DetectorParameters {
	params := svc.defaults.GetDetectorParameters(name)
	switch name {
	case Yolo8DetectorName:
		params.ModelPath = svc.modelPath
		params.LabelsPath = svc.labelsPath
	case RemoteDetectorName:
		params.InferenceURL = svc.inferenceURL
	}
	return params
}

func (svc *envVarsService) GetDeliveryParameters() DeliveryParameters {
	return svc.delivery
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		lgr.Logger.Warn("ignoring invalid integer env var", slog.String("key", key), slog.String("value", v))
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		lgr.Logger.Warn("ignoring invalid float env var", slog.String("key", key), slog.String("value", v))
		return def
	}
	return f
}

func envAmount(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := ParseAmount(v)
	if err != nil {
		lgr.Logger.Warn("ignoring invalid amount env var", slog.String("key", key), slog.String("value", v), slog.Any("error", err))
		return def
	}
	return d
}

func envThreshold(key string, def float64) float64 {
	f := envFloat(key, def)
	if err := CheckAcceptThreshold(f); err != nil {
		lgr.Logger.Warn("ignoring out of range env var", slog.String("key", key), slog.Float64("value", f))
		return def
	}
	return f
}

func envDurationMs(key string, def int) int {
	n := envInt(key, def)
	if err := CheckDurationMs(n); err != nil {
		lgr.Logger.Warn("ignoring negative duration env var", slog.String("key", key), slog.Int("value", n))
		return def
	}
	return n
}

func envScope(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	scope, err := ParseCooldownScope(v)
	if err != nil {
		lgr.Logger.Warn("ignoring invalid cooldown scope env var", slog.String("key", key), slog.String("value", v))
		return def
	}
	return scope
}
