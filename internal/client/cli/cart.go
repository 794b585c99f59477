package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/client/client"
	"github.com/dmitrijs2005/storefront/internal/client/services"
)

// lineArgs parses "<productId> [variantId]".
func lineArgs(args []string, usage string) (string, *string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", nil, fmt.Errorf("%w: %s", errUsage, usage)
	}
	var variantID *string
	if len(args) == 2 {
		variantID = &args[1]
	}
	return args[0], variantID, nil
}

// Show prints a product with its variants.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: show <productId>", errUsage)
	}
	p, err := a.catalog.GetProduct(ctx, args[0])
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("product %s not found", args[0])
		}
		return err
	}
	return renderProduct(a.out, p)
}

// Add puts one unit of a product (or of one of its variants) in the cart.
func (a *App) Add(ctx context.Context, args []string) error {
	productID, variantID, err := lineArgs(args, "add <productId> [variantId]")
	if err != nil {
		return err
	}

	p, err := a.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("product %s not found", productID)
		}
		return err
	}

	if variantID == nil {
		_, err = a.cartService.Add(ctx, p, nil)
		return err
	}
	v, ok := p.FindVariant(*variantID)
	if !ok {
		return fmt.Errorf("product %s has no variant %s", productID, *variantID)
	}
	_, err = a.cartService.Add(ctx, p, v)
	return err
}

func (a *App) Increase(ctx context.Context, args []string) error {
	productID, variantID, err := lineArgs(args, "inc <productId> [variantId]")
	if err != nil {
		return err
	}
	return a.cartService.UpdateQuantity(ctx, productID, services.ActionIncrease, "", variantID)
}

func (a *App) Decrease(ctx context.Context, args []string) error {
	productID, variantID, err := lineArgs(args, "dec <productId> [variantId]")
	if err != nil {
		return err
	}
	err = a.cartService.UpdateQuantity(ctx, productID, services.ActionDecrease, "", variantID)
	if errors.Is(err, services.ErrMinimumQuantity) {
		// Already shown as a notification.
		return nil
	}
	return err
}

func (a *App) SetQuantity(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: set <productId> <quantity> [variantId]", errUsage)
	}
	var variantID *string
	if len(args) == 3 {
		variantID = &args[2]
	}
	return a.cartService.UpdateQuantity(ctx, args[0], services.ActionSet, args[1], variantID)
}

func (a *App) Remove(ctx context.Context, args []string) error {
	productID, variantID, err := lineArgs(args, "rm <productId> [variantId]")
	if err != nil {
		return err
	}
	return a.cartService.Delete(ctx, productID, variantID)
}

// Cart prints the cart lines and the subtotal.
func (a *App) Cart(ctx context.Context) error {
	return renderCart(a.out, a.cartService.Lines(), a.cartService.Subtotal())
}

// Sync merges the local cart into the server cart.
func (a *App) Sync(ctx context.Context) error {
	if !a.isLoggedIn(ctx) {
		return errors.New("log in to sync your cart")
	}
	if err := a.cartService.Merge(ctx); err != nil {
		return err
	}
	printlnFn("Cart synchronized.")
	return nil
}

// Checkout places an order for the whole cart. An optional address id is
// passed to the backend as is.
func (a *App) Checkout(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: checkout [addressId]", errUsage)
	}
	var addressID string
	if len(args) == 1 {
		addressID = args[0]
	}

	_, err := a.cartService.Checkout(ctx, addressID)
	switch {
	case errors.Is(err, services.ErrNotLoggedIn):
		return errors.New("log in to check out")
	case errors.Is(err, services.ErrEmptyCart):
		return errors.New("your cart is empty")
	}
	return err
}
