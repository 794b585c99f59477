package models

import (
	"maps"

	"github.com/shopspring/decimal"
)

// LineKey identifies a cart line. An empty VariantID stands for the base
// product without a variant.
type LineKey struct {
	ProductID string
	VariantID string
}

// KeyOf builds the key for a product and an optional variant.
func KeyOf(productID string, variantID *string) LineKey {
	k := LineKey{ProductID: productID}
	if variantID != nil {
		k.VariantID = *variantID
	}
	return k
}

// CartLine is one row of the cart.
//
// Name, ImageURL and VariantAttributes are a copy of the catalog data taken
// when the line was first added. They are used for rendering only and are
// allowed to go stale relative to the catalog.
type CartLine struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
	// UnitPrice is captured at add time and is not re-validated locally.
	UnitPrice decimal.Decimal `json:"unitPrice"`
	// RemoteLineID is set once the line exists in the server cart.
	RemoteLineID *string `json:"remoteLineId,omitempty"`

	Name              string            `json:"name"`
	ImageURL          string            `json:"imageUrl,omitempty"`
	VariantAttributes map[string]string `json:"variantAttributes,omitempty"`
}

// NewCartLine snapshots product p (and variant v, if any) into a line with
// quantity 1.
func NewCartLine(p Product, v *Variant) CartLine {
	line := CartLine{
		ProductID: p.ID,
		Quantity:  1,
		UnitPrice: p.PriceFor(v),
		Name:      p.Name,
		ImageURL:  p.ImageURL,
	}
	if v != nil {
		id := v.ID
		line.VariantID = &id
		line.VariantAttributes = maps.Clone(v.Attributes)
	}
	return line
}

func (l CartLine) Key() LineKey {
	return KeyOf(l.ProductID, l.VariantID)
}

// IsSynced reports whether the line has a server-side counterpart.
func (l CartLine) IsSynced() bool {
	return l.RemoteLineID != nil && *l.RemoteLineID != ""
}

// Total is UnitPrice × Quantity.
func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Clone returns a deep copy, so callers can't reach into store-owned pointers.
func (l CartLine) Clone() CartLine {
	c := l
	if l.VariantID != nil {
		v := *l.VariantID
		c.VariantID = &v
	}
	if l.RemoteLineID != nil {
		r := *l.RemoteLineID
		c.RemoteLineID = &r
	}
	c.VariantAttributes = maps.Clone(l.VariantAttributes)
	return c
}

// Subtotal sums line totals.
func Subtotal(lines []CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}
