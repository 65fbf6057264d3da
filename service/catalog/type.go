package catalog

import "github.com/khaledhikmat/scanbill-go/model"

// IService resolves detector class labels to products. Resolve never fails:
// unknown labels come back as a product named after the label at the default price.
type IService interface {
	Resolve(label string) model.Product
	Products() map[string]model.Product
}
