package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/storefront/internal/client/cart"
	"github.com/dmitrijs2005/storefront/internal/client/client"
	"github.com/dmitrijs2005/storefront/internal/client/config"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/storefront/internal/client/services"
	"github.com/dmitrijs2005/storefront/internal/client/session"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

// Catalog looks products up for display and for adding to the cart.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (models.Product, error)
}

// Sessions is the part of session.Store the app reads at startup.
type Sessions interface {
	IsAuthenticated(ctx context.Context) bool
	RefreshExpired(ctx context.Context, now time.Time) bool
	Clear(ctx context.Context) error
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	sessions    Sessions
	catalog     Catalog
	authService services.AuthService
	cartService services.CartService
	reader      *bufio.Reader
	out         io.Writer

	loginRequired atomic.Bool
}

// NewApp opens the local database and wires the services.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	sessions := session.NewStore(db)
	app := &App{
		config:   c,
		logger:   logger,
		db:       db,
		sessions: sessions,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}

	api := client.NewRESTClient(client.NewGateway(c.APIBaseURL, c.RequestTimeout, sessions, app, logger))
	store := cart.NewStore(metadata.NewSQLiteRepository(db), logger)

	app.catalog = api
	app.cartService = services.NewCartService(api, store, sessions, newConsoleNotifier(app.out), logger, c.SyncTimeout)
	app.authService = services.NewAuthService(api, sessions, app.cartService, logger)

	return app, nil
}

// Run restores the cart, refreshes it when a session exists and runs the
// REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	printlnFn("Welcome to the storefront CLI (type 'help' for commands)")
	a.startup(ctx)

	runREPL(ctx, a, func() string { return a.status(ctx) }, a.reader)
}

func (a *App) startup(ctx context.Context) {
	lines := a.cartService.Load(ctx)
	a.logger.Debug(ctx, "cart loaded", "lines", len(lines))

	if !a.sessions.IsAuthenticated(ctx) {
		return
	}
	if a.sessions.RefreshExpired(ctx, time.Now()) {
		if err := a.sessions.Clear(ctx); err != nil {
			a.logger.Error(ctx, "failed to clear expired session", "error", err)
		}
		printlnFn("Your session has expired. Log in to sync your cart.")
		return
	}
	if err := a.cartService.Refresh(ctx); err != nil {
		a.logger.Warn(ctx, "using local cart, server cart unavailable", "error", err)
	}
}

// Close waits for background cart mirroring and closes the database.
func (a *App) Close() {
	a.cartService.Wait()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error(context.Background(), "failed to close database", "error", err)
		}
	}
}

// RedirectToLogin is called by the gateway, possibly from a background
// goroutine. The REPL prompts for credentials on its next iteration.
func (a *App) RedirectToLogin() {
	a.loginRequired.Store(true)
}

func (a *App) loginRequested() bool {
	return a.loginRequired.Swap(false)
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.sessions.IsAuthenticated(ctx)
}

func (a *App) status(ctx context.Context) string {
	n := 0
	for _, l := range a.cartService.Lines() {
		n += l.Quantity
	}
	who := "guest"
	if a.isLoggedIn(ctx) {
		who = "online"
	}
	return fmt.Sprintf("(%s, %d in cart)", who, n)
}
