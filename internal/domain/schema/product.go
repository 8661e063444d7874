package schema

import "github.com/shopspring/decimal"

// Product is a catalog entry. The client only reads it to resolve line-item titles.
type Product struct {
	RefID       FlexString      `json:"refid"`
	Description string          `json:"descripción"`
	Brand       string          `json:"marca,omitempty"`
	Price       decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"activo"`
	Tags        []string        `json:"tags,omitempty"`
}

// Catalog indexes products by reference id. The last entry wins on duplicates.
type Catalog map[string]Product

// NewCatalog builds a lookup table from a product list.
func NewCatalog(products []Product) Catalog {
	catalog := make(Catalog, len(products))
	for _, p := range products {
		catalog[p.RefID.String()] = p
	}
	return catalog
}

// Title resolves the display title for refID, falling back to the raw id.
func (c Catalog) Title(refID string) string {
	if p, ok := c[refID]; ok && p.Description != "" {
		return p.Description
	}
	return refID
}
