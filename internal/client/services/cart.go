// Package services contains the application services of the storefront
// client: cart mutations with optimistic local updates mirrored to the
// server, cart synchronization, and authentication.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/storefront/internal/client/cart"
	"github.com/dmitrijs2005/storefront/internal/client/client"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

// MaxQuantity caps the quantity accepted by a set action.
const MaxQuantity = math.MaxInt32

// QuantityAction selects how UpdateQuantity changes a line.
type QuantityAction string

const (
	ActionIncrease QuantityAction = "increase"
	ActionDecrease QuantityAction = "decrease"
	ActionSet      QuantityAction = "set"
)

// Session tells whether server mirroring is enabled.
type Session interface {
	IsAuthenticated(ctx context.Context) bool
}

// AddResult describes what Add did to the cart.
type AddResult struct {
	Line models.CartLine
	// Increased is true when the line already existed and its quantity
	// went up by one.
	Increased bool
}

// CartService is the cart API used by the front end.
//
// Mutations are applied to the local cart synchronously and persisted
// before the call returns. When a session exists they are then mirrored to
// the server in the background; mirror failures are logged and never roll
// the local change back.
type CartService interface {
	// Load restores the persisted cart.
	Load(ctx context.Context) []models.CartLine
	Lines() []models.CartLine
	Subtotal() decimal.Decimal

	Add(ctx context.Context, product models.Product, variant *models.Variant) (AddResult, error)
	UpdateQuantity(ctx context.Context, productID string, action QuantityAction, value string, variantID *string) error
	Delete(ctx context.Context, productID string, variantID *string) error

	// Refresh replaces the local cart with the server cart.
	Refresh(ctx context.Context) error
	// Merge pushes local lines into the server cart (local quantities win)
	// and then adopts the server result.
	Merge(ctx context.Context) error
	// Detach forgets server line ids, turning the cart back into a guest
	// cart. Used on logout.
	Detach(ctx context.Context) error

	// Checkout places an order for the current lines and empties the cart.
	Checkout(ctx context.Context, addressID string) (string, error)

	// Wait blocks until all background mirror calls have finished.
	Wait()
}

type cartService struct {
	api           client.Client
	store         *cart.Store
	session       Session
	notifier      Notifier
	logger        logging.Logger
	mirrorTimeout time.Duration

	bg sync.WaitGroup

	// pending marks keys with a create call in flight, so a burst of adds
	// produces one server line.
	pendingMu sync.Mutex
	pending   map[models.LineKey]bool

	syncMu sync.Mutex
	syncs  singleflight.Group
}

// NewCartService wires the cart API. notifier may be nil.
func NewCartService(api client.Client, store *cart.Store, session Session, notifier Notifier, logger logging.Logger, mirrorTimeout time.Duration) CartService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &cartService{
		api:           api,
		store:         store,
		session:       session,
		notifier:      notifier,
		logger:        logger,
		mirrorTimeout: mirrorTimeout,
		pending:       make(map[models.LineKey]bool),
	}
}

func (s *cartService) Load(ctx context.Context) []models.CartLine {
	return s.store.Load(ctx)
}

func (s *cartService) Lines() []models.CartLine {
	return s.store.Lines()
}

func (s *cartService) Subtotal() decimal.Decimal {
	return models.Subtotal(s.store.Lines())
}

func (s *cartService) Add(ctx context.Context, product models.Product, variant *models.Variant) (AddResult, error) {
	if product.ID == "" {
		return AddResult{}, ErrInvalidProduct
	}

	var variantID *string
	if variant != nil {
		id := variant.ID
		variantID = &id
	}
	key := models.KeyOf(product.ID, variantID)

	prev, next, err := s.store.Apply(ctx, key, func(cur *models.CartLine) (*models.CartLine, error) {
		if cur != nil {
			if cur.Quantity < MaxQuantity {
				cur.Quantity++
			}
			return cur, nil
		}
		line := models.NewCartLine(product, variant)
		return &line, nil
	})
	if next == nil {
		return AddResult{}, fmt.Errorf("add to cart: %w", err)
	}
	s.logPersistError(ctx, err)

	res := AddResult{Line: *next, Increased: prev != nil}
	if res.Increased {
		s.notifier.Notify(KindInfo, fmt.Sprintf("%s quantity increased to %d", displayName(*next), next.Quantity))
	} else {
		s.notifier.Notify(KindSuccess, fmt.Sprintf("%s added to cart", displayName(*next)))
	}

	if s.session.IsAuthenticated(ctx) {
		s.pushLine(ctx, *next)
	}
	return res, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, productID string, action QuantityAction, value string, variantID *string) error {
	var target int
	switch action {
	case ActionIncrease, ActionDecrease:
	case ActionSet:
		target = ParseQuantity(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	key := models.KeyOf(productID, variantID)
	prev, next, err := s.store.Apply(ctx, key, func(cur *models.CartLine) (*models.CartLine, error) {
		if cur == nil {
			return nil, nil
		}
		switch action {
		case ActionIncrease:
			if cur.Quantity < MaxQuantity {
				cur.Quantity++
			}
		case ActionDecrease:
			if cur.Quantity <= 1 {
				return nil, ErrMinimumQuantity
			}
			cur.Quantity--
		case ActionSet:
			cur.Quantity = target
		}
		return cur, nil
	})
	if next == nil {
		if errors.Is(err, ErrMinimumQuantity) {
			s.notifier.Notify(KindWarning, "Quantity cannot be less than 1")
			return err
		}
		if err != nil {
			return fmt.Errorf("update quantity: %w", err)
		}
		return nil
	}
	s.logPersistError(ctx, err)

	// Unsynced lines with a create in flight catch up in backfill.
	if prev.Quantity != next.Quantity && next.IsSynced() && s.session.IsAuthenticated(ctx) {
		s.pushLine(ctx, *next)
	}
	return nil
}

func (s *cartService) Delete(ctx context.Context, productID string, variantID *string) error {
	key := models.KeyOf(productID, variantID)
	prev, _, err := s.store.Apply(ctx, key, func(*models.CartLine) (*models.CartLine, error) {
		return nil, nil
	})
	if prev == nil {
		return nil
	}
	s.logPersistError(ctx, err)

	s.notifier.Notify(KindSuccess, fmt.Sprintf("%s removed from cart", displayName(*prev)))

	if prev.IsSynced() && s.session.IsAuthenticated(ctx) {
		lineID := *prev.RemoteLineID
		s.mirror(ctx, "delete", key, func(ctx context.Context) error {
			return s.api.DeleteCartItem(ctx, lineID)
		})
	}
	return nil
}

func (s *cartService) Detach(ctx context.Context) error {
	lines := s.store.Lines()
	for i := range lines {
		lines[i].RemoteLineID = nil
	}
	if err := s.store.Replace(ctx, lines); err != nil {
		return fmt.Errorf("detach cart: %w", err)
	}
	return nil
}

func (s *cartService) Checkout(ctx context.Context, addressID string) (string, error) {
	if !s.session.IsAuthenticated(ctx) {
		return "", ErrNotLoggedIn
	}
	s.Wait()

	lines := s.store.Lines()
	if len(lines) == 0 {
		return "", ErrEmptyCart
	}

	orderID, err := s.api.PlaceOrder(ctx, lines, addressID)
	if err != nil {
		return "", fmt.Errorf("checkout: %w", err)
	}
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error(ctx, "order placed but local cart not cleared", "order_id", orderID, "error", err)
	}

	s.notifier.Notify(KindSuccess, fmt.Sprintf("Order %s placed", orderID))
	return orderID, nil
}

func (s *cartService) Wait() {
	s.bg.Wait()
}

// pushLine mirrors the current state of line: an update when the line has a
// server id, otherwise a create followed by id backfill. While a create is
// in flight for the key, further pushes are folded into the backfill.
func (s *cartService) pushLine(ctx context.Context, line models.CartLine) {
	key := line.Key()

	if line.IsSynced() {
		lineID := *line.RemoteLineID
		item := toCartItem(line)
		s.mirror(ctx, "update", key, func(ctx context.Context) error {
			return s.api.UpdateCartItem(ctx, lineID, item)
		})
		return
	}

	s.pendingMu.Lock()
	if s.pending[key] {
		s.pendingMu.Unlock()
		return
	}
	s.pending[key] = true
	s.pendingMu.Unlock()

	item := toCartItem(line)
	s.mirror(ctx, "create", key, func(ctx context.Context) error {
		defer func() {
			s.pendingMu.Lock()
			delete(s.pending, key)
			s.pendingMu.Unlock()
		}()

		lineID, err := s.api.CreateCartItem(ctx, item)
		if err != nil {
			return err
		}
		return s.backfill(ctx, key, lineID, item.Quantity)
	})
}

// backfill records the server id of a freshly created line. A line removed
// in the meantime is left alone. If the quantity moved while the create was
// in flight, the server line is brought up to date.
func (s *cartService) backfill(ctx context.Context, key models.LineKey, lineID string, pushedQty int) error {
	_, next, err := s.store.Apply(ctx, key, func(cur *models.CartLine) (*models.CartLine, error) {
		if cur == nil {
			return nil, nil
		}
		if !cur.IsSynced() {
			cur.RemoteLineID = &lineID
		}
		return cur, nil
	})
	if next == nil {
		if err != nil {
			return fmt.Errorf("backfill line id: %w", err)
		}
		s.logger.Debug(ctx, "line removed before create returned", "product_id", key.ProductID, "variant_id", key.VariantID)
		return nil
	}
	s.logPersistError(ctx, err)

	if next.Quantity != pushedQty && next.IsSynced() {
		return s.api.UpdateCartItem(ctx, *next.RemoteLineID, toCartItem(*next))
	}
	return nil
}

// mirror runs fn in the background with its own timeout, detached from the
// caller's cancellation.
func (s *cartService) mirror(ctx context.Context, op string, key models.LineKey, fn func(ctx context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mirrorTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.logger.Warn(ctx, "cart mirror request failed",
				"op", op,
				"product_id", key.ProductID,
				"variant_id", key.VariantID,
				"error", err,
			)
		}
	}()
}

func (s *cartService) logPersistError(ctx context.Context, err error) {
	if err != nil {
		s.logger.Warn(ctx, "cart change kept in memory only", "error", err)
	}
}

// ParseQuantity turns user input into a set-quantity target:
// max(1, floor(value)), capped at MaxQuantity. Positive infinity and
// values too large for float64 are capped too; NaN, negative infinity and
// non-numbers become 1.
func ParseQuantity(value string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil && !(errors.Is(err, strconv.ErrRange) && math.IsInf(f, 1)) {
		return 1
	}
	if math.IsNaN(f) || math.IsInf(f, -1) {
		return 1
	}
	f = math.Floor(f)
	switch {
	case f < 1:
		return 1
	case f > MaxQuantity:
		return MaxQuantity
	default:
		return int(f)
	}
}

func toCartItem(l models.CartLine) client.CartItem {
	return client.CartItem{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity}
}

func displayName(l models.CartLine) string {
	if l.Name != "" {
		return l.Name
	}
	return "Product " + l.ProductID
}
