package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/storefront/internal/client/models"
)

// flexID accepts ids encoded either as JSON strings or as JSON numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type variantDTO struct {
	ID         flexID          `json:"id"`
	Price      decimal.Decimal `json:"price"`
	Attributes map[string]any  `json:"attributes"`
}

type productDTO struct {
	ID       flexID          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Variants []variantDTO    `json:"variants"`
}

type cartItemDTO struct {
	ID       flexID      `json:"id"`
	Quantity int         `json:"quantity"`
	Product  productDTO  `json:"product"`
	Variant  *variantDTO `json:"variant"`
}

type cartDTO struct {
	Items []cartItemDTO `json:"items"`
}

type cartItemRequest struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
}

type idResponse struct {
	ID flexID `json:"id"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type orderRequest struct {
	AddressID string            `json:"address_id,omitempty"`
	Items     []cartItemRequest `json:"items"`
}

func (v variantDTO) model() models.Variant {
	var attrs map[string]string
	if len(v.Attributes) > 0 {
		attrs = make(map[string]string, len(v.Attributes))
		for k, val := range v.Attributes {
			attrs[k] = fmt.Sprint(val)
		}
	}
	return models.Variant{ID: string(v.ID), Price: v.Price, Attributes: attrs}
}

func (p productDTO) model() models.Product {
	out := models.Product{
		ID:       string(p.ID),
		Name:     p.Name,
		Price:    p.Price,
		ImageURL: p.Image,
	}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, v.model())
	}
	return out
}

func (it cartItemDTO) line() models.CartLine {
	var variant *models.Variant
	if it.Variant != nil && it.Variant.ID != "" {
		v := it.Variant.model()
		variant = &v
	}
	line := models.NewCartLine(it.Product.model(), variant)
	line.Quantity = it.Quantity
	if it.ID != "" {
		id := string(it.ID)
		line.RemoteLineID = &id
	}
	return line
}
