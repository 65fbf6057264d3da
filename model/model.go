package model

import (
	"fmt"
	"runtime/debug"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// Source describes the video feed a checkout lane is scanning from.
type Source struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`        // RTSP url, video file or device index ("0")
	FramerType string `json:"framerType"` // "gocv" or "random"
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FPS        int    `json:"fps"`
}

type ScannerStats struct {
	Name           string  `json:"name"`
	Session        string  `json:"session"`
	Source         string  `json:"source"`
	Frames         int     `json:"frames"`
	Sampled        int     `json:"sampled"`
	Dispatched     int     `json:"dispatched"`
	Busy           int     `json:"busy"`  // sampled frames dropped while an inference was in flight
	Stale          int     `json:"stale"` // results discarded after a stop/start
	Accepted       int     `json:"accepted"`
	BelowThreshold int     `json:"belowThreshold"`
	CooledDown     int     `json:"cooledDown"`
	Errors         int     `json:"errors"`
	AvgInferenceMs float64 `json:"avgInferenceMs"`
	P95InferenceMs float64 `json:"p95InferenceMs"`
	Uptime         int64   `json:"uptime"`
	Timestamp      int64   `json:"timestamp"`
}

type CaptureStats struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	FPS       int    `json:"fps"`
	Frames    int    `json:"frames"`
	Errors    int    `json:"errors"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}
