package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/config"
)

// NewFile loads the product table from the configured JSON file, shaped as
// {"apple": {"name": "Apple", "price": "1.99"}, ...}.
func NewFile(cfgSvc config.IService) (IService, error) {
	data, err := os.ReadFile(cfgSvc.GetCatalogFile())
	if err != nil {
		return nil, fmt.Errorf("error reading catalog file: %w", err)
	}

	products := map[string]model.Product{}
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("error parsing catalog file: %w", err)
	}

	for label, p := range products {
		if p.Name == "" {
			return nil, fmt.Errorf("catalog entry %q has no name", label)
		}
		if p.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("catalog entry %q has a negative price", label)
		}
	}

	return newTable(products, cfgSvc.GetDefaultPrice()), nil
}
