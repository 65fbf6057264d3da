package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/khaledhikmat/scanbill-go/service/config"
)

// CooldownGate suppresses acceptances that follow the previous one too
// closely. With the label scope each class has its own window.
type CooldownGate struct {
	cooldown time.Duration
	perLabel bool

	mu           sync.Mutex
	lastAccepted map[string]time.Time
}

func NewCooldownGate(cooldown time.Duration, scope string) *CooldownGate {
	return &CooldownGate{
		cooldown:     cooldown,
		perLabel:     scope == config.CooldownScopeLabel,
		lastAccepted: make(map[string]time.Time),
	}
}

// Allow reports whether a detection of label at now passes the gate and, if
// so, records now as the latest acceptance.
func (g *CooldownGate) Allow(label string, now time.Time) bool {
	key := ""
	if g.perLabel {
		key = strings.ToLower(label)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	last, exists := g.lastAccepted[key]
	if exists && now.Sub(last) < g.cooldown {
		return false
	}
	g.lastAccepted[key] = now
	return true
}

func (g *CooldownGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastAccepted = make(map[string]time.Time)
}
