package data

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/scanbill-go/model"
)

var ErrBillNotFound = xerrors.New("bill not found")

type IService interface {
	NewBill(bill model.Bill) error
	MarkBillDelivered(id, email string, at time.Time) error
	RetrieveBillByID(id string) (model.Bill, error)
	RetrieveBills(limit int) ([]model.Bill, error)

	NewError(err interface{}) error
	NewScannerStats(stats model.ScannerStats) error
	NewCaptureStats(stats model.CaptureStats) error

	Close() error
}
