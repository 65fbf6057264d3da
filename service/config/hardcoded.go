package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type hardcodedService struct {
}

func NewHardCoded() IService {
	return &hardcodedService{}
}

func (svc *hardcodedService) GetModeMaxShutdownTime() int {
	return 5
}

func (svc *hardcodedService) GetInputFolder() string {
	return "./settings"
}

func (svc *hardcodedService) GetCatalogFile() string {
	return fmt.Sprintf("%s/catalog.json", svc.GetInputFolder())
}

func (svc *hardcodedService) GetDatabaseFile() string {
	return fmt.Sprintf("%s/bills.db", svc.GetInputFolder())
}

func (svc *hardcodedService) GetLogFile() string {
	return ""
}

func (svc *hardcodedService) GetDetectionLogFile() string {
	return "detections.log"
}

func (svc *hardcodedService) GetStatsPeriodicTimeout() int {
	return 30
}

func (svc *hardcodedService) GetEventBufferSize() int {
	return 100
}

func (svc *hardcodedService) GetAcceptThreshold() float64 {
	return 0.6
}

func (svc *hardcodedService) GetCooldownMs() int {
	return 3000
}

func (svc *hardcodedService) GetCooldownScope() string {
	return CooldownScopeGlobal
}

func (svc *hardcodedService) GetSampleIntervalMs() int {
	return 100
}

func (svc *hardcodedService) GetTaxRate() decimal.Decimal {
	return decimal.RequireFromString("0.10")
}

func (svc *hardcodedService) GetDefaultPrice() decimal.Decimal {
	return decimal.RequireFromString("0.99")
}

func (svc *hardcodedService) GetDetectorName() string {
	return Yolo8DetectorName
}

func (svc *hardcodedService) GetDetectorParameters(name string) DetectorParameters {
	if name == Yolo8DetectorName {
		return DetectorParameters{
			ModelPath:      "./models/yolov8n.onnx",
			LabelsPath:     "./models/labels.names",
			ScoreThreshold: 0.5,
			InputSize:      640,
		}
	}

	if name == RemoteDetectorName {
		return DetectorParameters{
			InferenceURL:   "http://localhost:5000/predict",
			ScoreThreshold: 0.5,
			TimeoutMs:      2000,
		}
	}

	return DetectorParameters{}
}

func (svc *hardcodedService) GetDeliveryParameters() DeliveryParameters {
	return DeliveryParameters{
		SMTPPort: 587,
		From:     "receipts@scanbill.local",
	}
}
