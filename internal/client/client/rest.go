package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/storefront/internal/client/models"
)

// CartItem is the payload for creating or updating a server cart line.
type CartItem struct {
	ProductID string
	VariantID *string
	Quantity  int
}

// Registration holds sign-up details. Names are optional.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Client is the typed storefront API used by the services layer.
type Client interface {
	FetchCart(ctx context.Context) ([]models.CartLine, error)
	// CreateCartItem returns the id of the new server line.
	CreateCartItem(ctx context.Context, item CartItem) (string, error)
	UpdateCartItem(ctx context.Context, lineID string, item CartItem) error
	DeleteCartItem(ctx context.Context, lineID string) error

	GetProduct(ctx context.Context, id string) (models.Product, error)
	// PlaceOrder returns the id of the created order.
	PlaceOrder(ctx context.Context, lines []models.CartLine, addressID string) (string, error)

	// Login and Register store the issued tokens on success.
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, r Registration) error
}

type RESTClient struct {
	gw *Gateway
}

func NewRESTClient(gw *Gateway) *RESTClient {
	return &RESTClient{gw: gw}
}

var _ Client = (*RESTClient)(nil)

func (c *RESTClient) FetchCart(ctx context.Context) ([]models.CartLine, error) {
	var resp cartDTO
	if err := c.gw.Do(ctx, http.MethodGet, "/cart/", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	lines := make([]models.CartLine, 0, len(resp.Items))
	for _, it := range resp.Items {
		lines = append(lines, it.line())
	}
	return lines, nil
}

func (c *RESTClient) CreateCartItem(ctx context.Context, item CartItem) (string, error) {
	var resp idResponse
	if err := c.gw.Do(ctx, http.MethodPost, "/cart-items/", toItemRequest(item), &resp); err != nil {
		return "", fmt.Errorf("create cart item: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create cart item: response has no id")
	}
	return string(resp.ID), nil
}

func (c *RESTClient) UpdateCartItem(ctx context.Context, lineID string, item CartItem) error {
	if err := c.gw.Do(ctx, http.MethodPut, cartItemPath(lineID), toItemRequest(item), nil); err != nil {
		return fmt.Errorf("update cart item %s: %w", lineID, err)
	}
	return nil
}

func (c *RESTClient) DeleteCartItem(ctx context.Context, lineID string) error {
	if err := c.gw.Do(ctx, http.MethodDelete, cartItemPath(lineID), nil, nil); err != nil {
		return fmt.Errorf("delete cart item %s: %w", lineID, err)
	}
	return nil
}

func (c *RESTClient) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var resp productDTO
	if err := c.gw.Do(ctx, http.MethodGet, "/products/"+url.PathEscape(id)+"/", nil, &resp); err != nil {
		return models.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return resp.model(), nil
}

func (c *RESTClient) PlaceOrder(ctx context.Context, lines []models.CartLine, addressID string) (string, error) {
	req := orderRequest{AddressID: addressID, Items: make([]cartItemRequest, 0, len(lines))}
	for _, l := range lines {
		req.Items = append(req.Items, cartItemRequest{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity})
	}
	var resp idResponse
	if err := c.gw.Do(ctx, http.MethodPost, "/orders/", req, &resp); err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	return string(resp.ID), nil
}

func (c *RESTClient) Login(ctx context.Context, email, password string) error {
	var tokens tokenPair
	if err := c.gw.DoAnonymous(ctx, http.MethodPost, "/auth/login/", loginRequest{Email: email, Password: password}, &tokens); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return c.storeTokens(ctx, tokens)
}

// Register signs up and, when the backend doesn't issue tokens on sign-up,
// logs in with the same credentials.
func (c *RESTClient) Register(ctx context.Context, r Registration) error {
	req := registerRequest{Email: r.Email, Password: r.Password, FirstName: r.FirstName, LastName: r.LastName}
	var tokens tokenPair
	if err := c.gw.DoAnonymous(ctx, http.MethodPost, "/auth/register/", req, &tokens); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if tokens.Access == "" {
		return c.Login(ctx, r.Email, r.Password)
	}
	return c.storeTokens(ctx, tokens)
}

func (c *RESTClient) storeTokens(ctx context.Context, t tokenPair) error {
	if t.Access == "" || t.Refresh == "" {
		return fmt.Errorf("%w: token pair incomplete", ErrUnauthorized)
	}
	if err := c.gw.tokens.SetTokens(ctx, t.Access, t.Refresh); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func toItemRequest(item CartItem) cartItemRequest {
	return cartItemRequest{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity}
}

func cartItemPath(lineID string) string {
	return "/cart-items/" + url.PathEscape(lineID) + "/"
}
