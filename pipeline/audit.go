package pipeline

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

const (
	outcomeAccepted       = "accepted"
	outcomeBelowThreshold = "belowThreshold"
	outcomeCooledDown     = "cooledDown"
	outcomeStale          = "stale"
	outcomeEmpty          = "empty"
)

// Auditor appends one JSON line per processed detector result to a rotating
// log file. A nil Auditor discards everything.
type Auditor struct {
	source string

	mu sync.Mutex
	w  io.WriteCloser
}

func NewAuditor(path, source string) *Auditor {
	if path == "" {
		return nil
	}

	return &Auditor{
		source: source,
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		},
	}
}

type auditEntry struct {
	Time       string            `json:"time"`
	Source     string            `json:"source"`
	Seq        uint64            `json:"seq"`
	Outcome    string            `json:"outcome"`
	Chosen     *model.Detection  `json:"chosen,omitempty"`
	Detections []model.Detection `json:"detections"`
}

func (a *Auditor) Record(seq uint64, ts time.Time, outcome string, detections []model.Detection, chosen *model.Detection) {
	if a == nil {
		return
	}

	data, err := json.Marshal(auditEntry{
		Time:       ts.Format(time.RFC3339Nano),
		Source:     a.source,
		Seq:        seq,
		Outcome:    outcome,
		Chosen:     chosen,
		Detections: detections,
	})
	if err != nil {
		lgr.Logger.Warn("error marshaling detections", slog.Any("error", err))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.w.Write(append(data, '\n')); err != nil {
		lgr.Logger.Warn("error writing to detection log file", slog.Any("error", err))
	}
}

func (a *Auditor) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Close()
}
