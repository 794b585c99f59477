package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/storefront/internal/client/models"
)

func renderCart(w io.Writer, lines []models.CartLine, subtotal decimal.Decimal) error {
	if len(lines) == 0 {
		_, err := fmt.Fprintln(w, "Your cart is empty.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tVARIANT\tNAME\tQTY\tUNIT\tTOTAL\t")
	for _, l := range lines {
		variant := "-"
		if l.VariantID != nil {
			variant = *l.VariantID
			if attrs := formatAttributes(l.VariantAttributes); attrs != "" {
				variant += " (" + attrs + ")"
			}
		}
		mark := ""
		if !l.IsSynced() {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			l.ProductID, variant, l.Name, l.Quantity, l.UnitPrice.StringFixed(2), l.Total().StringFixed(2), mark)
	}
	fmt.Fprintf(tw, "\t\t\t\tSubtotal\t%s\t\n", subtotal.StringFixed(2))
	return tw.Flush()
}

func renderProduct(w io.Writer, p models.Product) error {
	fmt.Fprintf(w, "%s (id %s), %s\n", p.Name, p.ID, p.Price.StringFixed(2))
	if p.ImageURL != "" {
		fmt.Fprintf(w, "image: %s\n", p.ImageURL)
	}
	if len(p.Variants) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tPRICE\tATTRIBUTES\t")
	for i := range p.Variants {
		v := &p.Variants[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", v.ID, p.PriceFor(v).StringFixed(2), formatAttributes(v.Attributes))
	}
	return tw.Flush()
}

func formatAttributes(attrs map[string]string) string {
	keys := slices.Sorted(maps.Keys(attrs))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+attrs[k])
	}
	return strings.Join(parts, ", ")
}
