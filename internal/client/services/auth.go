package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/storefront/internal/client/client"
	"github.com/dmitrijs2005/storefront/internal/client/session"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

// SessionStore is the part of session.Store the auth service needs.
type SessionStore interface {
	IsAuthenticated(ctx context.Context) bool
	Clear(ctx context.Context) error
	Status(ctx context.Context) session.Status
}

// CartSyncer is notified about session changes. CartService implements it.
type CartSyncer interface {
	Merge(ctx context.Context) error
	Detach(ctx context.Context) error
}

// AuthService defines authentication operations for the front end.
//
// Contract:
//   - Login: authenticate, store the session, then merge the local cart
//     into the server cart.
//   - Register: create an account, which also logs in, then merge.
//   - Logout: drop the session. The local cart stays as a guest cart.
//   - Status: describe the stored session.
//
// A failed merge after a successful login is logged, not returned: the user
// is logged in either way.
type AuthService interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, r client.Registration) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) session.Status
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type authService struct {
	api      client.Client
	sessions SessionStore
	cart     CartSyncer
	logger   logging.Logger
	validate *validator.Validate
}

// NewAuthService constructs an AuthService bound to the given API client,
// session store and cart.
func NewAuthService(api client.Client, sessions SessionStore, cart CartSyncer, logger logging.Logger) AuthService {
	return &authService{
		api:      api,
		sessions: sessions,
		cart:     cart,
		logger:   logger,
		validate: validator.New(),
	}
}

func (a *authService) check(email, password string) error {
	if err := a.validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (a *authService) Login(ctx context.Context, email, password string) error {
	if err := a.check(email, password); err != nil {
		return err
	}
	if err := a.api.Login(ctx, email, password); err != nil {
		return err
	}
	a.logger.Info(ctx, "logged in", "email", email)
	a.mergeCart(ctx)
	return nil
}

func (a *authService) Register(ctx context.Context, r client.Registration) error {
	if err := a.check(r.Email, r.Password); err != nil {
		return err
	}
	if err := a.api.Register(ctx, r); err != nil {
		return err
	}
	a.logger.Info(ctx, "registered", "email", r.Email)
	a.mergeCart(ctx)
	return nil
}

func (a *authService) mergeCart(ctx context.Context) {
	if err := a.cart.Merge(ctx); err != nil {
		a.logger.Warn(ctx, "cart merge after login failed", "error", err)
	}
}

func (a *authService) Logout(ctx context.Context) error {
	if err := a.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if err := a.cart.Detach(ctx); err != nil {
		a.logger.Warn(ctx, "cart kept server line ids after logout", "error", err)
	}
	a.logger.Info(ctx, "logged out")
	return nil
}

func (a *authService) Status(ctx context.Context) session.Status {
	return a.sessions.Status(ctx)
}
