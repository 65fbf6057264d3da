package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/scanbill-go/model"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    command
		wantErr bool
	}{
		{line: "", want: command{}},
		{line: "  ls ", want: command{verb: "cart"}},
		{line: "BILL", want: command{verb: "bill"}},
		{line: "q", want: command{verb: "quit"}},
		{line: "qty 2 5", want: command{verb: "qty", ref: "2", qty: 5}},
		{line: "qty 2 -1", want: command{verb: "qty", ref: "2", qty: -1}},
		{line: "qty 2 many", wantErr: true},
		{line: "qty 2", wantErr: true},
		{line: "rm abc-123", want: command{verb: "rm", ref: "abc-123"}},
		{line: "rm", wantErr: true},
		{line: "send jane@example.com", want: command{verb: "send", address: "jane@example.com"}},
		{line: "send", wantErr: true},
		{line: "dance", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveLine(t *testing.T) {
	lines := []model.CartLine{{ID: "a"}, {ID: "b"}}

	assert.Equal(t, "a", resolveLine(lines, "1"))
	assert.Equal(t, "b", resolveLine(lines, "2"))
	assert.Equal(t, "3", resolveLine(lines, "3"))
	assert.Equal(t, "b", resolveLine(lines, "b"))
}
