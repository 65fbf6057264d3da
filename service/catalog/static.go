package catalog

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

var builtinProducts = map[string]model.Product{
	"apple":     {Name: "Apple", UnitPrice: decimal.RequireFromString("1.99")},
	"banana":    {Name: "Banana", UnitPrice: decimal.RequireFromString("0.99")},
	"orange":    {Name: "Orange", UnitPrice: decimal.RequireFromString("1.49")},
	"milk":      {Name: "Milk", UnitPrice: decimal.RequireFromString("3.99")},
	"bread":     {Name: "Bread", UnitPrice: decimal.RequireFromString("2.49")},
	"eggs":      {Name: "Eggs", UnitPrice: decimal.RequireFromString("4.99")},
	"water":     {Name: "Water Bottle", UnitPrice: decimal.RequireFromString("1.29")},
	"soda":      {Name: "Soda Can", UnitPrice: decimal.RequireFromString("1.99")},
	"chips":     {Name: "Potato Chips", UnitPrice: decimal.RequireFromString("3.49")},
	"chocolate": {Name: "Chocolate Bar", UnitPrice: decimal.RequireFromString("2.99")},
}

type staticService struct {
	products     map[string]model.Product
	defaultPrice decimal.Decimal
}

// NewStatic serves the built-in product table.
func NewStatic(defaultPrice decimal.Decimal) IService {
	return newTable(builtinProducts, defaultPrice)
}

func newTable(products map[string]model.Product, defaultPrice decimal.Decimal) *staticService {
	if defaultPrice.IsNegative() {
		lgr.Logger.Warn("negative default price, using zero", slog.String("defaultPrice", defaultPrice.String()))
		defaultPrice = decimal.Zero
	}

	table := make(map[string]model.Product, len(products))
	for label, p := range products {
		table[strings.ToLower(label)] = p
	}
	return &staticService{
		products:     table,
		defaultPrice: defaultPrice,
	}
}

func (svc *staticService) Resolve(label string) model.Product {
	if p, ok := svc.products[strings.ToLower(label)]; ok {
		return p
	}

	return model.Product{
		Name:      label,
		UnitPrice: svc.defaultPrice,
	}
}

func (svc *staticService) Products() map[string]model.Product {
	out := make(map[string]model.Product, len(svc.products))
	for k, v := range svc.products {
		out[k] = v
	}
	return out
}
