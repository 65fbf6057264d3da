package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameSamplerThrottles(t *testing.T) {
	s := NewFrameSampler(100 * time.Millisecond)
	base := time.Unix(1000, 0)

	assert.True(t, s.Accept(base), "first frame is always accepted")
	assert.False(t, s.Accept(base.Add(30*time.Millisecond)))
	assert.False(t, s.Accept(base.Add(99*time.Millisecond)))
	assert.True(t, s.Accept(base.Add(100*time.Millisecond)))
	assert.False(t, s.Accept(base.Add(150*time.Millisecond)))
	assert.True(t, s.Accept(base.Add(250*time.Millisecond)))
}

func TestFrameSamplerReset(t *testing.T) {
	s := NewFrameSampler(time.Second)
	base := time.Unix(1000, 0)

	assert.True(t, s.Accept(base))
	assert.False(t, s.Accept(base.Add(10*time.Millisecond)))

	s.Reset()
	assert.True(t, s.Accept(base.Add(20*time.Millisecond)))
}
