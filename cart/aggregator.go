// Package cart holds the running list of cart lines built from accepted detections.
package cart

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/khaledhikmat/scanbill-go/model"
)

// Aggregator owns the cart lines. Mutations are serialized by a mutex and
// publish a fresh slice, so Snapshot never takes the lock.
type Aggregator struct {
	mu    sync.Mutex
	lines atomic.Pointer[[]model.CartLine]
	newID func() string
}

type Option func(*Aggregator)

// WithIDGenerator replaces the uuid line id generator.
func WithIDGenerator(fn func() string) Option {
	return func(a *Aggregator) { a.newID = fn }
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{newID: uuid.NewString}
	for _, opt := range opts {
		opt(a)
	}
	a.lines.Store(&[]model.CartLine{})
	return a
}

// Apply records one accepted detection of product. An existing line with the
// same name (case-insensitive) gains one unit; otherwise a line with quantity 1
// is appended. The affected line and the matching event type are returned.
func (a *Aggregator) Apply(product model.Product) (model.CartLine, model.EventType) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lines := a.copyLines()
	for i := range lines {
		if strings.EqualFold(lines[i].Name, product.Name) {
			lines[i].Quantity++
			a.lines.Store(&lines)
			return lines[i], model.LineUpdated
		}
	}

	line := model.CartLine{
		ID:        a.newID(),
		Name:      product.Name,
		UnitPrice: product.UnitPrice,
		Quantity:  1,
	}
	lines = append(lines, line)
	a.lines.Store(&lines)
	return line, model.LineAdded
}

// SetQuantity overwrites a line's quantity; quantity <= 0 removes the line.
// ok is false when id is unknown or nothing changed.
func (a *Aggregator) SetQuantity(id string, quantity int) (model.CartLine, model.EventType, bool) {
	if quantity <= 0 {
		line, ok := a.Remove(id)
		return line, model.LineRemoved, ok
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	lines := a.copyLines()
	i := indexOf(lines, id)
	if i < 0 || lines[i].Quantity == quantity {
		return model.CartLine{}, model.LineUpdated, false
	}

	lines[i].Quantity = quantity
	a.lines.Store(&lines)
	return lines[i], model.LineUpdated, true
}

// Remove deletes the line with id. ok is false when there was no such line.
func (a *Aggregator) Remove(id string) (model.CartLine, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current := *a.lines.Load()
	i := indexOf(current, id)
	if i < 0 {
		return model.CartLine{}, false
	}

	removed := current[i]
	lines := make([]model.CartLine, 0, len(current)-1)
	lines = append(lines, current[:i]...)
	lines = append(lines, current[i+1:]...)
	a.lines.Store(&lines)
	return removed, true
}

// Snapshot returns the lines in insertion order. The slice is the caller's.
func (a *Aggregator) Snapshot() []model.CartLine {
	current := *a.lines.Load()
	out := make([]model.CartLine, len(current))
	copy(out, current)
	return out
}

func (a *Aggregator) Len() int {
	return len(*a.lines.Load())
}

// Clear empties the cart. It is only meant to follow a confirmed bill delivery.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines.Store(&[]model.CartLine{})
}

// Deduct subtracts billed quantities from the lines with the same ids and
// drops lines that reach zero. Lines that were not billed are kept. It
// returns the remaining lines.
func (a *Aggregator) Deduct(billed []model.CartLine) []model.CartLine {
	a.mu.Lock()
	defer a.mu.Unlock()

	current := *a.lines.Load()
	lines := make([]model.CartLine, 0, len(current))
	for _, l := range current {
		for _, b := range billed {
			if b.ID == l.ID {
				l.Quantity -= b.Quantity
			}
		}
		if l.Quantity > 0 {
			lines = append(lines, l)
		}
	}
	a.lines.Store(&lines)

	out := make([]model.CartLine, len(lines))
	copy(out, lines)
	return out
}

func (a *Aggregator) copyLines() []model.CartLine {
	current := *a.lines.Load()
	lines := make([]model.CartLine, len(current), len(current)+1)
	copy(lines, current)
	return lines
}

func indexOf(lines []model.CartLine, id string) int {
	for i := range lines {
		if lines[i].ID == id {
			return i
		}
	}
	return -1
}
