package config

import "github.com/shopspring/decimal"

const (
	FakeDetectorName   = "fake"
	RemoteDetectorName = "remote"
	Yolo8DetectorName  = "yolo8"

	CooldownScopeGlobal = "global"
	CooldownScopeLabel  = "label"
)

type DetectorParameters struct {
	ModelPath      string  `json:"modelPath"`
	LabelsPath     string  `json:"labelsPath"`
	InferenceURL   string  `json:"inferenceUrl"`
	ScoreThreshold float64 `json:"scoreThreshold"`
	InputSize      int     `json:"inputSize"`
	TimeoutMs      int     `json:"timeoutMs"`
}

type DeliveryParameters struct {
	SMTPHost string `json:"smtpHost"`
	SMTPPort int    `json:"smtpPort"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`

	// WebhookURL, when set, receives receipts as JSON instead of e-mail.
	WebhookURL string `json:"webhookUrl"`
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetInputFolder() string
	GetCatalogFile() string
	GetDatabaseFile() string
	GetLogFile() string
	GetDetectionLogFile() string
	GetStatsPeriodicTimeout() int
	GetEventBufferSize() int

	GetAcceptThreshold() float64
	GetCooldownMs() int
	GetCooldownScope() string
	GetSampleIntervalMs() int
	GetTaxRate() decimal.Decimal
	GetDefaultPrice() decimal.Decimal

	GetDetectorName() string
	GetDetectorParameters(name string) DetectorParameters
	GetDeliveryParameters() DeliveryParameters
}
