package tensor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/scanbill-go/model"
)

var approx = cmpopts.EquateApprox(0, 1e-6)

// v8Tensor lays rows of [cx, cy, w, h, class scores...] out attributes-first.
func v8Tensor(rows [][]float32) []float32 {
	attrs := len(rows[0])
	data := make([]float32, attrs*len(rows))
	for anchor, row := range rows {
		for attr, v := range row {
			data[attr*len(rows)+anchor] = v
		}
	}
	return data
}

func v5Tensor(rows [][]float32) []float32 {
	data := []float32{}
	for _, row := range rows {
		data = append(data, row...)
	}
	return data
}

func TestDecode(t *testing.T) {
	labels := []string{"apple", "banana"}

	tests := []struct {
		name   string
		data   []float32
		d1, d2 int
		labels []string
		want   []model.Detection
	}{
		{
			name: "v8 picks best class and sorts by confidence",
			data: v8Tensor([][]float32{
				{320, 320, 64, 128, 0.2, 0.9},
				{32, 32, 128, 128, 0.7, 0.1},
				{100, 100, 10, 10, 0.3, 0.4},
			}),
			d1:     6,
			d2:     3,
			labels: labels,
			want: []model.Detection{
				{Label: "banana", Confidence: 0.9, Box: model.Box{X1: 0.45, Y1: 0.4, X2: 0.55, Y2: 0.6}},
				{Label: "apple", Confidence: 0.7, Box: model.Box{X1: 0, Y1: 0, X2: 0.15, Y2: 0.15}},
			},
		},
		{
			name: "v5 multiplies objectness and clamps boxes",
			data: v5Tensor([][]float32{
				{320, 320, 64, 64, 0.9, 0.1, 0.8},
				{600, 600, 128, 128, 0.4, 0.9, 0.9},
				{630, 100, 40, 20, 0.8, 0.95, 0},
			}),
			d1:     3,
			d2:     7,
			labels: labels,
			want: []model.Detection{
				{Label: "apple", Confidence: 0.76, Box: model.Box{X1: 0.953125, Y1: 0.140625, X2: 1, Y2: 0.171875}},
				{Label: "banana", Confidence: 0.72, Box: model.Box{X1: 0.45, Y1: 0.45, X2: 0.55, Y2: 0.55}},
			},
		},
		{
			name:   "v5 label count mismatch",
			data:   v5Tensor([][]float32{{320, 320, 64, 64, 0.9, 0.1, 0.8}}),
			d1:     1,
			d2:     7,
			labels: []string{"apple", "banana", "milk"},
			want:   nil,
		},
		{
			name:   "v8 label count mismatch",
			data:   v8Tensor([][]float32{{320, 320, 64, 64, 0.1, 0.8}, {320, 320, 64, 64, 0.1, 0.8}}),
			d1:     6,
			d2:     2,
			labels: []string{"apple"},
			want:   nil,
		},
		{
			name:   "short buffer",
			data:   []float32{320, 320, 64},
			d1:     6,
			d2:     3,
			labels: labels,
			want:   nil,
		},
		{
			name:   "nothing above threshold",
			data:   v8Tensor([][]float32{{320, 320, 64, 64, 0.1, 0.2}, {320, 320, 64, 64, 0.3, 0.49}}),
			d1:     6,
			d2:     2,
			labels: labels,
			want:   []model.Detection{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.data, tt.d1, tt.d2, tt.labels, 0.5, 640)
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("Decode mismatch (-want +got):\n%s", diff)
			}
			for _, d := range got {
				assert.True(t, d.Box.Valid(), d.Label)
			}
		})
	}
}

func TestDecodeWithoutLabels(t *testing.T) {
	assert.Nil(t, Decode([]float32{1, 2, 3, 4, 5}, 1, 5, nil, 0.5, 640))
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("apple\r\n banana \n\nmilk\n"), 0o644))

	labels, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "banana", "milk"}, labels)

	_, err = LoadLabels(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
