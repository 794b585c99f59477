package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/storefront/internal/client/cart"
	"github.com/dmitrijs2005/storefront/internal/client/client"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/storefront/internal/client/session"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

// ---- storage ----

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// ---- session ----

type fakeSession struct {
	authed  atomic.Bool
	cleared int
	status  session.Status
}

func (f *fakeSession) IsAuthenticated(context.Context) bool { return f.authed.Load() }

func (f *fakeSession) Clear(context.Context) error {
	f.cleared++
	f.authed.Store(false)
	return nil
}

func (f *fakeSession) Status(context.Context) session.Status { return f.status }

// ---- notifier ----

type notification struct {
	kind NotificationKind
	msg  string
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notification
}

func (r *recordingNotifier) Notify(kind NotificationKind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, notification{kind, msg})
}

func (r *recordingNotifier) last() notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.got) == 0 {
		return notification{}
	}
	return r.got[len(r.got)-1]
}

// ---- fake API ----

// fakeAPI is an in-memory server cart. It records every call in order.
type fakeAPI struct {
	mu     sync.Mutex
	nextID int
	lines  []models.CartLine
	calls  []string
	orders [][]models.CartLine

	fetchErr  error
	fetchErrs []error // consumed one per FetchCart before fetchErr
	createErr map[string]error
	updateErr error
	deleteErr error
	orderErr  error

	// createGate, when set, blocks CreateCartItem until closed.
	createGate chan struct{}

	loginErr   error
	loginCalls int
	onLogin    func()
	registered []client.Registration
}

var _ client.Client = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI { return &fakeAPI{createErr: map[string]error{}} }

func (f *fakeAPI) seed(productID string, variantID *string, qty int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(client.CartItem{ProductID: productID, VariantID: variantID, Quantity: qty})
}

func (f *fakeAPI) addLocked(item client.CartItem) string {
	f.nextID++
	id := "srv-" + strconv.Itoa(f.nextID)
	l := models.CartLine{
		ProductID:    item.ProductID,
		VariantID:    item.VariantID,
		Quantity:     item.Quantity,
		UnitPrice:    decimal.NewFromInt(10),
		RemoteLineID: &id,
		Name:         "server " + item.ProductID,
	}
	f.lines = append(f.lines, l.Clone())
	return id
}

func (f *fakeAPI) FetchCart(context.Context) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GET")
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]models.CartLine, len(f.lines))
	for i := range f.lines {
		out[i] = f.lines[i].Clone()
	}
	return out, nil
}

func (f *fakeAPI) CreateCartItem(ctx context.Context, item client.CartItem) (string, error) {
	if f.createGate != nil {
		select {
		case <-f.createGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("POST %s q=%d", item.ProductID, item.Quantity))
	if err := f.createErr[item.ProductID]; err != nil {
		return "", err
	}
	return f.addLocked(item), nil
}

func (f *fakeAPI) UpdateCartItem(_ context.Context, lineID string, item client.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("PUT %s q=%d", lineID, item.Quantity))
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.lines {
		if *f.lines[i].RemoteLineID == lineID {
			f.lines[i].Quantity = item.Quantity
			return nil
		}
	}
	return client.ErrNotFound
}

func (f *fakeAPI) DeleteCartItem(_ context.Context, lineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "DELETE "+lineID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.lines {
		if *f.lines[i].RemoteLineID == lineID {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return nil
		}
	}
	return client.ErrNotFound
}

func (f *fakeAPI) GetProduct(_ context.Context, id string) (models.Product, error) {
	return models.Product{ID: id, Name: "Product " + id, Price: decimal.NewFromInt(10)}, nil
}

func (f *fakeAPI) PlaceOrder(_ context.Context, lines []models.CartLine, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ORDER")
	if f.orderErr != nil {
		return "", f.orderErr
	}
	f.orders = append(f.orders, lines)
	f.lines = nil
	return "order-" + strconv.Itoa(len(f.orders)), nil
}

func (f *fakeAPI) Login(context.Context, string, string) error {
	f.mu.Lock()
	f.loginCalls++
	err := f.loginErr
	hook := f.onLogin
	f.mu.Unlock()
	if err == nil && hook != nil {
		hook()
	}
	return err
}

func (f *fakeAPI) Register(_ context.Context, r client.Registration) error {
	f.mu.Lock()
	f.registered = append(f.registered, r)
	hook := f.onLogin
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

// mutations returns recorded calls other than GET.
func (f *fakeAPI) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c != "GET" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAPI) serverLines() []models.CartLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.CartLine, len(f.lines))
	for i := range f.lines {
		out[i] = f.lines[i].Clone()
	}
	return out
}

// ---- fixture ----

type fixture struct {
	api      *fakeAPI
	store    *cart.Store
	session  *fakeSession
	notifier *recordingNotifier
	svc      CartService
}

func newFixture(t *testing.T, authed bool) *fixture {
	t.Helper()
	f := &fixture{
		api:      newFakeAPI(),
		session:  &fakeSession{},
		notifier: &recordingNotifier{},
	}
	f.session.authed.Store(authed)
	f.store = cart.NewStore(newMemKV(), logging.NewNop())
	f.svc = NewCartService(f.api, f.store, f.session, f.notifier, logging.NewNop(), 5*time.Second)
	t.Cleanup(f.svc.Wait)
	return f
}

func product(id string) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: decimal.NewFromInt(10)}
}

func strPtr(s string) *string { return &s }
