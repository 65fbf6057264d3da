// Package tensor decodes raw YOLO output tensors into detections. It has no
// OpenCV dependency so the decoding can be exercised without cgo.
package tensor

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

// Decode reads a YOLO output tensor of shape [1, d1, d2]. YOLOv8 exports
// attributes-first ([1, 4+C, N], no objectness); YOLOv5 exports rows
// ([1, N, 5+C]) with objectness at index 4 which multiplies the class score.
// Box coordinates are in input pixels and come back normalized and clamped.
func Decode(data []float32, d1, d2 int, labels []string, threshold, inputSize float32) []model.Detection {
	numClasses := len(labels)
	if numClasses == 0 || inputSize <= 0 {
		return nil
	}

	v8 := d1 == 4+numClasses && d2 != 4+numClasses

	var anchors, stride int
	at := func(anchor, attr int) float32 {
		if v8 {
			return data[attr*anchors+anchor]
		}
		return data[anchor*stride+attr]
	}

	classOffset := 5
	if v8 {
		anchors = d2
		classOffset = 4
	} else {
		anchors = d1
		stride = d2
		if stride-5 != numClasses {
			lgr.Logger.Warn("yolo output does not match labels",
				slog.Int("d1", d1),
				slog.Int("d2", d2),
				slog.Int("labels", numClasses),
			)
			return nil
		}
	}

	if len(data) < anchors*(classOffset+numClasses) {
		return nil
	}

	dets := []model.Detection{}
	for i := 0; i < anchors; i++ {
		objectness := float32(1)
		if !v8 {
			objectness = at(i, 4)
			if objectness < threshold {
				continue
			}
		}

		classID := -1
		classScore := float32(0)
		for j := 0; j < numClasses; j++ {
			if s := at(i, classOffset+j); s > classScore {
				classScore = s
				classID = j
			}
		}

		score := objectness * classScore
		if classID < 0 || score < threshold {
			continue
		}

		cx := at(i, 0) / inputSize
		cy := at(i, 1) / inputSize
		w := at(i, 2) / inputSize
		h := at(i, 3) / inputSize

		dets = append(dets, model.Detection{
			Label:      labels[classID],
			Confidence: float64(score),
			Box: model.Box{
				X1: float64(cx - w/2),
				Y1: float64(cy - h/2),
				X2: float64(cx + w/2),
				Y2: float64(cy + h/2),
			}.Clamp(),
		})
	}

	sort.SliceStable(dets, func(a, b int) bool {
		return dets[a].Confidence > dets[b].Confidence
	})
	return dets
}

// LoadLabels reads one class name per line.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading labels: %w", err)
	}

	labels := []string{}
	for _, l := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels, nil
}
