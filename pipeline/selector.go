package pipeline

import "github.com/khaledhikmat/scanbill-go/model"

// SelectBest returns the most confident detection at or above threshold.
// Ties keep the earliest detection. ok is false when nothing qualifies.
func SelectBest(detections []model.Detection, threshold float64) (model.Detection, bool) {
	best := model.Detection{}
	found := false
	for _, d := range detections {
		if d.Confidence < threshold {
			continue
		}
		if !found || d.Confidence > best.Confidence {
			best = d
			found = true
		}
	}
	return best, found
}
