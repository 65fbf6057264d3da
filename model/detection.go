package model

import (
	"math"
	"time"
)

// Box is a bounding box in normalized image coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Clamp returns the box with every coordinate forced into [0,1].
func (b Box) Clamp() Box {
	return Box{
		X1: clamp01(b.X1),
		Y1: clamp01(b.Y1),
		X2: clamp01(b.X2),
		Y2: clamp01(b.Y2),
	}
}

// Valid reports whether the box has a positive area.
func (b Box) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Detection is one candidate classification produced by a detector for a single frame.
type Detection struct {
	ID         string  `json:"id"`
	Label      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"bbox"`
}

// Frame is a raw BGR pixel buffer captured from a source.
type Frame struct {
	Seq       uint64
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
}
