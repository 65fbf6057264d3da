package cart

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/scanbill-go/model"
)

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("line-%d", n)
	})
}

func product(name, price string) model.Product {
	return model.Product{Name: name, UnitPrice: decimal.RequireFromString(price)}
}

func TestApplyInsertsThenIncrements(t *testing.T) {
	c := New(sequentialIDs())

	line, ev := c.Apply(product("Apple", "1.99"))
	assert.Equal(t, model.LineAdded, ev)
	assert.Equal(t, "line-1", line.ID)
	assert.Equal(t, 1, line.Quantity)

	line, ev = c.Apply(product("apple", "5.00"))
	assert.Equal(t, model.LineUpdated, ev)
	assert.Equal(t, "line-1", line.ID)
	assert.Equal(t, 2, line.Quantity)
	// The first resolved name and price stick.
	assert.Equal(t, "Apple", line.Name)
	assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("1.99")))

	line, ev = c.Apply(product("Bread", "2.49"))
	assert.Equal(t, model.LineAdded, ev)
	assert.Equal(t, "line-2", line.ID)

	want := []model.CartLine{
		{ID: "line-1", Name: "Apple", UnitPrice: decimal.RequireFromString("1.99"), Quantity: 2},
		{ID: "line-2", Name: "Bread", UnitPrice: decimal.RequireFromString("2.49"), Quantity: 1},
	}
	if diff := cmp.Diff(want, c.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyNeverDuplicatesLines(t *testing.T) {
	c := New()
	for _, name := range []string{"Milk", "MILK", "milk", "mIlK"} {
		c.Apply(product(name, "3.99"))
	}

	lines := c.Snapshot()
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity)
}

func TestSetQuantity(t *testing.T) {
	c := New(sequentialIDs())
	c.Apply(product("Eggs", "4.99"))

	line, ev, ok := c.SetQuantity("line-1", 6)
	require.True(t, ok)
	assert.Equal(t, model.LineUpdated, ev)
	assert.Equal(t, 6, line.Quantity)

	_, _, ok = c.SetQuantity("line-1", 6)
	assert.False(t, ok, "unchanged quantity is a no-op")

	_, _, ok = c.SetQuantity("missing", 3)
	assert.False(t, ok)
	assert.Equal(t, 6, c.Snapshot()[0].Quantity)
}

func TestSetQuantityZeroEqualsRemove(t *testing.T) {
	viaSet := New(sequentialIDs())
	viaRemove := New(sequentialIDs())
	for _, c := range []*Aggregator{viaSet, viaRemove} {
		c.Apply(product("Apple", "1.99"))
		c.Apply(product("Bread", "2.49"))
	}

	line, ev, ok := viaSet.SetQuantity("line-1", 0)
	require.True(t, ok)
	assert.Equal(t, model.LineRemoved, ev)
	assert.Equal(t, "Apple", line.Name)

	_, ok = viaRemove.Remove("line-1")
	require.True(t, ok)

	if diff := cmp.Diff(viaRemove.Snapshot(), viaSet.Snapshot()); diff != "" {
		t.Errorf("SetQuantity(0) differs from Remove (-remove +set):\n%s", diff)
	}

	_, _, ok = viaSet.SetQuantity("line-2", -4)
	assert.True(t, ok)
	assert.Zero(t, viaSet.Len())
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	c := New(sequentialIDs())
	c.Apply(product("Soda Can", "1.99"))
	before := c.Snapshot()

	_, ok := c.Remove("line-42")
	assert.False(t, ok)
	assert.Empty(t, cmp.Diff(before, c.Snapshot()))
}

func TestSnapshotIsIsolated(t *testing.T) {
	c := New()
	c.Apply(product("Orange", "1.49"))

	snap := c.Snapshot()
	snap[0].Quantity = 99
	snap[0].Name = "Tampered"

	fresh := c.Snapshot()
	assert.Equal(t, 1, fresh[0].Quantity)
	assert.Equal(t, "Orange", fresh[0].Name)

	c.Apply(product("Orange", "1.49"))
	assert.Equal(t, 99, snap[0].Quantity, "older snapshots do not see new writes")
}

func TestClear(t *testing.T) {
	c := New()
	c.Apply(product("Chips", "3.49"))
	c.Apply(product("Chocolate Bar", "2.99"))

	c.Clear()
	assert.Empty(t, c.Snapshot())

	_, ev := c.Apply(product("Chips", "3.49"))
	assert.Equal(t, model.LineAdded, ev)
}

func TestDeduct(t *testing.T) {
	c := New(sequentialIDs())
	apple, _ := c.Apply(product("Apple", "1.99"))
	c.Apply(product("Apple", "1.99"))
	milk, _ := c.Apply(product("Milk", "3.99"))
	billed := c.Snapshot()

	c.Apply(product("Apple", "1.99"))
	c.Apply(product("Bread", "2.49"))

	remaining := c.Deduct(billed)
	require.Len(t, remaining, 2)
	assert.Equal(t, apple.ID, remaining[0].ID)
	assert.Equal(t, 1, remaining[0].Quantity)
	assert.Equal(t, "Bread", remaining[1].Name)
	assert.Equal(t, remaining, c.Snapshot())

	for _, l := range remaining {
		assert.NotEqual(t, milk.ID, l.ID)
	}

	assert.Empty(t, c.Deduct(c.Snapshot()))
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Apply(product("Banana", "0.99"))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				for _, l := range c.Snapshot() {
					assert.GreaterOrEqual(t, l.Quantity, 1)
				}
			}
		}()
	}
	wg.Wait()

	lines := c.Snapshot()
	require.Len(t, lines, 1)
	assert.Equal(t, 800, lines[0].Quantity)
}
