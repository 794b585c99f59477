package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

func newTestREST(t *testing.T, h http.Handler, tokens *memTokens) *RESTClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewRESTClient(NewGateway(srv.URL, 5*time.Second, tokens, nil, logging.NewNop()))
}

func TestRESTClient_FetchCart_MapsLines(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cart/", r.URL.Path)
		_, _ = io.WriteString(w, `{"items":[
			{"id":11,"quantity":2,"product":{"id":5,"name":"Mug","price":"9.50","image":"mug.png"}},
			{"id":"12","quantity":1,"product":{"id":6,"name":"Phone","price":"500.00"},
			 "variant":{"id":61,"price":"650.00","attributes":{"color":"black","storage":256}}},
			{"id":13,"quantity":1,"product":{"id":7,"name":"Tee","price":"20"},"variant":{"id":71,"price":"0"}}
		]}`)
	})
	c := newTestREST(t, h, &memTokens{access: "A"})

	lines, err := c.FetchCart(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 3)

	mug := lines[0]
	assert.Equal(t, "5", mug.ProductID)
	assert.Nil(t, mug.VariantID)
	assert.Equal(t, 2, mug.Quantity)
	assert.True(t, decimal.RequireFromString("9.5").Equal(mug.UnitPrice))
	require.NotNil(t, mug.RemoteLineID)
	assert.Equal(t, "11", *mug.RemoteLineID)
	assert.Equal(t, "Mug", mug.Name)
	assert.Equal(t, "mug.png", mug.ImageURL)

	phone := lines[1]
	require.NotNil(t, phone.VariantID)
	assert.Equal(t, "61", *phone.VariantID)
	assert.Equal(t, "12", *phone.RemoteLineID)
	assert.True(t, decimal.RequireFromString("650").Equal(phone.UnitPrice))
	assert.Equal(t, map[string]string{"color": "black", "storage": "256"}, phone.VariantAttributes)

	// Zero variant price falls back to the product price.
	assert.True(t, decimal.RequireFromString("20").Equal(lines[2].UnitPrice))
}

func TestRESTClient_CartItemCalls(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]any
	}
	calls := make(chan call, 3)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls <- call{r.Method, r.URL.Path, body}
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":42,"quantity":3}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestREST(t, h, &memTokens{access: "A"})
	ctx := context.Background()
	vid := "v1"

	id, err := c.CreateCartItem(ctx, CartItem{ProductID: "p1", VariantID: &vid, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	got := <-calls
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/cart-items/", got.path)
	assert.Equal(t, map[string]any{"product_id": "p1", "variant_id": "v1", "quantity": float64(3)}, got.body)

	require.NoError(t, c.UpdateCartItem(ctx, "42", CartItem{ProductID: "p1", Quantity: 5}))
	got = <-calls
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/cart-items/42/", got.path)
	assert.Equal(t, map[string]any{"product_id": "p1", "quantity": float64(5)}, got.body)

	require.NoError(t, c.DeleteCartItem(ctx, "42"))
	got = <-calls
	assert.Equal(t, http.MethodDelete, got.method)
	assert.Equal(t, "/cart-items/42/", got.path)
}

func TestRESTClient_CreateCartItem_MissingID(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	c := newTestREST(t, h, &memTokens{access: "A"})

	_, err := c.CreateCartItem(context.Background(), CartItem{ProductID: "p1", Quantity: 1})
	require.Error(t, err)
}

func TestRESTClient_GetProduct(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/5/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"id":5,"name":"Phone","price":"500","variants":[{"id":"a","price":"550","attributes":{"color":"red"}}]}`)
	})
	c := newTestREST(t, h, &memTokens{})
	ctx := context.Background()

	p, err := c.GetProduct(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, "5", p.ID)
	require.Len(t, p.Variants, 1)
	v, ok := p.FindVariant("a")
	require.True(t, ok)
	assert.Equal(t, "red", v.Attributes["color"])

	_, err = c.GetProduct(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRESTClient_Login_StoresTokens(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var req loginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "a@b.c" || req.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"access":"A","refresh":"R"}`)
	})
	tokens := &memTokens{access: "stale"}
	c := newTestREST(t, h, tokens)
	ctx := context.Background()

	err := c.Login(ctx, "a@b.c", "bad")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "stale", tokens.access)

	require.NoError(t, c.Login(ctx, "a@b.c", "pw"))
	assert.Equal(t, "A", tokens.access)
	assert.Equal(t, "R", tokens.refresh)
}

func TestRESTClient_Register_FallsBackToLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register/", func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "Ann", req.FirstName)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":1,"email":"a@b.c"}`)
	})
	mux.HandleFunc("/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"access":"A","refresh":"R"}`)
	})
	tokens := &memTokens{}
	c := newTestREST(t, mux, tokens)

	require.NoError(t, c.Register(context.Background(), Registration{Email: "a@b.c", Password: "pw", FirstName: "Ann"}))
	assert.Equal(t, "A", tokens.access)
}

func TestRESTClient_PlaceOrder(t *testing.T) {
	got := make(chan orderRequest, 1)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req orderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got <- req
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"o-1"}`)
	})
	c := newTestREST(t, h, &memTokens{access: "A"})

	vid := "v"
	lines := []models.CartLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", VariantID: &vid, Quantity: 1},
	}
	id, err := c.PlaceOrder(context.Background(), lines, "addr-9")
	require.NoError(t, err)
	assert.Equal(t, "o-1", id)

	req := <-got
	assert.Equal(t, "addr-9", req.AddressID)
	assert.Equal(t, []cartItemRequest{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", VariantID: &vid, Quantity: 1},
	}, req.Items)
}

func TestFlexID_UnmarshalJSON(t *testing.T) {
	var v struct {
		A flexID `json:"a"`
		B flexID `json:"b"`
		C flexID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":17,"b":"x-1","c":null}`), &v))
	assert.Equal(t, flexID("17"), v.A)
	assert.Equal(t, flexID("x-1"), v.B)
	assert.Equal(t, flexID(""), v.C)

	require.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}
