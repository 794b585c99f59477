// Package models defines the client-side cart and catalog read models.
package models

import "github.com/shopspring/decimal"

// Variant is one purchasable configuration of a product, e.g. a
// color/storage combination.
type Variant struct {
	ID string `json:"id"`
	// Price overrides the product price when non-zero.
	Price      decimal.Decimal   `json:"price"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image,omitempty"`
	Variants []Variant       `json:"variants,omitempty"`
}

// FindVariant looks a variant up by id.
func (p Product) FindVariant(id string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// PriceFor returns the unit price of p in variant v (nil means base product).
func (p Product) PriceFor(v *Variant) decimal.Decimal {
	if v != nil && !v.Price.IsZero() {
		return v.Price
	}
	return p.Price
}
