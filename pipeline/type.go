package pipeline

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/capture"
	"github.com/khaledhikmat/scanbill-go/service/catalog"
	"github.com/khaledhikmat/scanbill-go/service/config"
	"github.com/khaledhikmat/scanbill-go/service/data"
	"github.com/khaledhikmat/scanbill-go/service/delivery"
	"github.com/khaledhikmat/scanbill-go/service/inference"
)

var (
	ErrScannerStopped = xerrors.New("scanner is not running")
	ErrSendInProgress = xerrors.New("a bill is already being sent")
)

// ServicesFactory carries the collaborators a scanner needs. DataSvc may be
// nil, in which case bills are not archived.
type ServicesFactory struct {
	CfgSvc      config.IService
	CaptureSvc  capture.IService
	DetectorSvc inference.IService
	CatalogSvc  catalog.IService
	DeliverySvc delivery.IService
	DataSvc     data.IService
}

// Command runs on the scanner's control goroutine.
type Command func(s *Scanner)

type detectResult struct {
	seq        uint64
	generation uint64
	frameSeq   uint64
	timestamp  time.Time
	detections []model.Detection
	latency    time.Duration
	err        error
}

type deliveryResult struct {
	bill    model.Bill
	address string
	at      time.Time
	err     error
}
