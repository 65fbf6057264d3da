package data

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/config"
)

type filesDBService struct {
	CfgSvc config.IService
	mu     sync.Mutex
}

func NewFilesDB(cfgsvc config.IService) IService {
	return &filesDBService{
		CfgSvc: cfgsvc,
	}
}

func (svc *filesDBService) NewBill(bill model.Bill) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(bill, "bills", svc.CfgSvc)
}

func (svc *filesDBService) MarkBillDelivered(id, email string, at time.Time) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	bills, err := retrieveEntites[model.Bill]("bills", svc.CfgSvc)
	if err != nil {
		return err
	}

	found := false
	for i := range bills {
		if bills[i].ID == id {
			bills[i].CustomerEmail = email
			delivered := at
			bills[i].DeliveredAt = &delivered
			found = true
			break
		}
	}
	if !found {
		return ErrBillNotFound
	}

	return writeEntities(bills, "bills", svc.CfgSvc)
}

func (svc *filesDBService) RetrieveBillByID(id string) (model.Bill, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	bills, err := retrieveEntites[model.Bill]("bills", svc.CfgSvc)
	if err != nil {
		return model.Bill{}, err
	}

	for _, bill := range bills {
		if bill.ID == id {
			return bill, nil
		}
	}

	return model.Bill{}, ErrBillNotFound
}

func (svc *filesDBService) RetrieveBills(limit int) ([]model.Bill, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	bills, err := retrieveEntites[model.Bill]("bills", svc.CfgSvc)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].CreatedAt.After(bills[j].CreatedAt)
	})
	if limit > 0 && len(bills) > limit {
		bills = bills[:limit]
	}
	return bills, nil
}

func (svc *filesDBService) NewError(err interface{}) error {
	errorData := toErrorRecord(err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(errorData, "errors", svc.CfgSvc)
}

func (svc *filesDBService) NewScannerStats(stats model.ScannerStats) error {
	stats.Timestamp = time.Now().Unix()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(stats, "scanner-stats", svc.CfgSvc)
}

func (svc *filesDBService) NewCaptureStats(stats model.CaptureStats) error {
	stats.Timestamp = time.Now().Unix()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(stats, "capture-stats", svc.CfgSvc)
}

func (svc *filesDBService) Close() error {
	return nil
}

type errorRecord struct {
	Timestamp  int64                  `json:"timestamp"`
	Processor  string                 `json:"processor"`
	Inner      string                 `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

// toErrorRecord flattens a model.CustomError or a plain error for persistence.
func toErrorRecord(err interface{}) errorRecord {
	rec := errorRecord{
		Timestamp:  time.Now().Unix(),
		Processor:  "N/A",
		StackTrace: "N/A",
	}

	switch e := err.(type) {
	case model.CustomError:
		rec.Processor = e.Processor
		rec.Message = e.Message
		rec.StackTrace = e.StackTrace
		rec.Misc = e.Misc
		if e.Inner != nil {
			rec.Inner = e.Inner.Error()
		}
	case error:
		rec.Inner = e.Error()
		rec.Message = e.Error()
	default:
		rec.Message = fmt.Sprintf("%v", e)
	}
	return rec
}

func newEntity[T any](entity T, filename string, cfgsvc config.IService) error {
	entities, err := retrieveEntites[T](filename, cfgsvc)
	if err != nil {
		return err
	}

	entities = append(entities, entity)
	return writeEntities(entities, filename, cfgsvc)
}

func writeEntities[T any](entities []T, filename string, cfgsvc config.IService) error {
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgsvc.GetInputFolder(), 0o755); err != nil {
		return err
	}

	// Write the JSON data to the file (with truncation)
	output := fmt.Sprintf("%s/%s.json", cfgsvc.GetInputFolder(), filename)
	return os.WriteFile(output, data, 0644)
}

func retrieveEntites[T any](filename string, cfgsvc config.IService) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(fmt.Sprintf("%s/%s.json", cfgsvc.GetInputFolder(), filename))
	if os.IsNotExist(err) {
		return entities, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, err
	}

	return entities, nil
}
