package presenter

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/khaledhikmat/scanbill-go/model"
)

func TestConsoleEvents(t *testing.T) {
	var buf bytes.Buffer
	svc := NewConsole(&buf, true)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	line := model.CartLine{ID: "l1", Name: "Apple", UnitPrice: decimal.RequireFromString("1.99"), Quantity: 2}
	svc.Event(model.Event{Type: model.LineAdded, Line: line, Timestamp: ts})
	svc.Event(model.Event{Type: model.LineUpdated, Line: line, Timestamp: ts})
	svc.Event(model.Event{Type: model.BillFailed, Reason: "delivery: invalid e-mail address", Timestamp: ts})

	out := buf.String()
	assert.Contains(t, out, "10:00:00 + Apple $1.99 (line l1)")
	assert.Contains(t, out, "Apple x2 = $3.98")
	assert.Contains(t, out, "bill not sent: delivery: invalid e-mail address")
}

func TestConsoleBillCreatedRendersReceipt(t *testing.T) {
	var buf bytes.Buffer
	svc := NewConsole(&buf, true)

	bill := model.Bill{
		ID:         "b1",
		Lines:      []model.CartLine{{ID: "l1", Name: "Bread", UnitPrice: decimal.RequireFromString("2.49"), Quantity: 1}},
		Subtotal:   decimal.RequireFromString("2.49"),
		Tax:        decimal.RequireFromString("0.249"),
		GrandTotal: decimal.RequireFromString("2.739"),
	}
	svc.Event(model.Event{Type: model.BillCreated, Bill: bill})

	out := buf.String()
	assert.Contains(t, out, "bill b1 created")
	assert.Contains(t, out, "Bread")
	assert.Contains(t, out, "$2.74")
}

func TestConsoleCatalogIsSorted(t *testing.T) {
	var buf bytes.Buffer
	svc := NewConsole(&buf, true)

	svc.Catalog(map[string]model.Product{
		"milk":  {Name: "Milk", UnitPrice: decimal.RequireFromString("3.99")},
		"apple": {Name: "Apple", UnitPrice: decimal.RequireFromString("1.99")},
	})

	out := buf.String()
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("apple")), bytes.Index(buf.Bytes(), []byte("milk")))
	assert.Contains(t, out, "$3.99")
}
