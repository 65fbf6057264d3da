package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/scanbill-go/model"
)

// ErrEmptyCart is returned when a bill is requested for a cart with no lines.
var ErrEmptyCart = xerrors.New("billing: cart is empty")

// Build computes an immutable bill from a cart snapshot. Amounts are kept at
// full decimal precision; rounding happens only when presented.
func Build(lines []model.CartLine, taxRate decimal.Decimal) (model.Bill, error) {
	return BuildAt(lines, taxRate, time.Now())
}

// BuildAt is Build with an explicit creation time.
func BuildAt(lines []model.CartLine, taxRate decimal.Decimal, now time.Time) (model.Bill, error) {
	if len(lines) == 0 {
		return model.Bill{}, ErrEmptyCart
	}

	copied := make([]model.CartLine, len(lines))
	copy(copied, lines)

	subtotal := Subtotal(copied)
	tax := subtotal.Mul(taxRate)

	return model.Bill{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		Lines:      copied,
		Subtotal:   subtotal,
		TaxRate:    taxRate,
		Tax:        tax,
		GrandTotal: subtotal.Add(tax),
	}, nil
}

func Subtotal(lines []model.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}
