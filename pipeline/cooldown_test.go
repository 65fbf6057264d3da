package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/khaledhikmat/scanbill-go/service/config"
)

func TestCooldownGateGlobal(t *testing.T) {
	g := NewCooldownGate(1500*time.Millisecond, config.CooldownScopeGlobal)
	base := time.Unix(1000, 0)

	assert.True(t, g.Allow("banana", base))
	assert.False(t, g.Allow("banana", base.Add(500*time.Millisecond)))
	assert.False(t, g.Allow("apple", base.Add(600*time.Millisecond)), "global scope spans labels")
	assert.True(t, g.Allow("banana", base.Add(1500*time.Millisecond)))
}

func TestCooldownGateSuppressedDoesNotExtend(t *testing.T) {
	g := NewCooldownGate(time.Second, config.CooldownScopeGlobal)
	base := time.Unix(1000, 0)

	assert.True(t, g.Allow("banana", base))
	assert.False(t, g.Allow("banana", base.Add(900*time.Millisecond)))
	assert.True(t, g.Allow("banana", base.Add(1000*time.Millisecond)))
}

func TestCooldownGatePerLabel(t *testing.T) {
	g := NewCooldownGate(1500*time.Millisecond, config.CooldownScopeLabel)
	base := time.Unix(1000, 0)

	assert.True(t, g.Allow("banana", base))
	assert.True(t, g.Allow("apple", base.Add(100*time.Millisecond)))
	assert.False(t, g.Allow("Banana", base.Add(200*time.Millisecond)))
}

func TestCooldownGateReset(t *testing.T) {
	g := NewCooldownGate(3*time.Second, config.CooldownScopeGlobal)
	base := time.Unix(1000, 0)

	assert.True(t, g.Allow("banana", base))
	g.Reset()
	assert.True(t, g.Allow("banana", base.Add(10*time.Millisecond)))
}
