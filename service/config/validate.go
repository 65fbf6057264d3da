package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseCooldownScope normalizes a scope name and rejects anything other than
// global or label.
func ParseCooldownScope(v string) (string, error) {
	scope := strings.ToLower(strings.TrimSpace(v))
	if scope != CooldownScopeGlobal && scope != CooldownScopeLabel {
		return "", fmt.Errorf("invalid cooldown scope %q", v)
	}
	return scope, nil
}

// ParseAmount parses a price or rate which must not be negative.
func ParseAmount(v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", v, err)
	}
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func CheckAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("amount %s must not be negative", d)
	}
	return nil
}

func CheckAcceptThreshold(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("accept threshold %v must be within [0, 1]", v)
	}
	return nil
}

func CheckDurationMs(v int) error {
	if v < 0 {
		return fmt.Errorf("duration %dms must not be negative", v)
	}
	return nil
}
