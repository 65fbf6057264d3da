package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/khaledhikmat/scanbill-go/model"
)

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name       string
		detections []model.Detection
		wantID     string
		wantOK     bool
	}{
		{
			name: "only banana clears the threshold",
			detections: []model.Detection{
				{ID: "1", Label: "apple", Confidence: 0.4},
				{ID: "2", Label: "banana", Confidence: 0.7},
			},
			wantID: "2",
			wantOK: true,
		},
		{
			name: "nothing clears the threshold",
			detections: []model.Detection{
				{ID: "1", Label: "apple", Confidence: 0.5},
			},
		},
		{
			name: "no detections",
		},
		{
			name: "threshold is inclusive",
			detections: []model.Detection{
				{ID: "1", Label: "milk", Confidence: 0.6},
			},
			wantID: "1",
			wantOK: true,
		},
		{
			name: "highest confidence wins",
			detections: []model.Detection{
				{ID: "1", Label: "milk", Confidence: 0.65},
				{ID: "2", Label: "bread", Confidence: 0.95},
				{ID: "3", Label: "eggs", Confidence: 0.8},
			},
			wantID: "2",
			wantOK: true,
		},
		{
			name: "ties keep the first seen",
			detections: []model.Detection{
				{ID: "1", Label: "milk", Confidence: 0.9},
				{ID: "2", Label: "bread", Confidence: 0.9},
			},
			wantID: "1",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectBest(tt.detections, 0.6)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}
