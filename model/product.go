package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
}

type CartLine struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Total is the line's extended price.
func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Bill struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"createdAt"`
	Lines         []CartLine      `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	Tax           decimal.Decimal `json:"tax"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	DeliveredAt   *time.Time      `json:"deliveredAt,omitempty"`
}

// Items is the total number of units on the bill.
func (b Bill) Items() int {
	n := 0
	for _, l := range b.Lines {
		n += l.Quantity
	}
	return n
}
