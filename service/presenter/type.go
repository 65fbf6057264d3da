package presenter

import "github.com/khaledhikmat/scanbill-go/model"

// IService shows pipeline output to the cashier.
type IService interface {
	Event(event model.Event)
	Cart(lines []model.CartLine)
	Bills(bills []model.Bill)
	Catalog(products map[string]model.Product)
}
