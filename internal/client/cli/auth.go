package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/client/client"
)

// getSimpleText, getOptionalText and getPassword are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var (
	getSimpleText   = GetSimpleText
	getOptionalText = GetOptionalText
	getPassword     = GetPassword
)

// Register prompts for email, password and optional names, creates the
// account and logs in. The local cart is merged into the new account.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Choose a password")
	if err != nil {
		return err
	}
	defer clear(password)

	first, err := getOptionalText(a.reader, "First name", a.out)
	if err != nil {
		return err
	}
	last, err := getOptionalText(a.reader, "Last name", a.out)
	if err != nil {
		return err
	}

	r := client.Registration{Email: email, Password: string(password), FirstName: first, LastName: last}
	if err := a.authService.Register(ctx, r); err != nil {
		return err
	}

	printlnFn("Account created, you are logged in.")
	return nil
}

// Login prompts for credentials and authenticates. On success the local
// cart is merged into the server cart.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer clear(password)

	if err := a.authService.Login(ctx, email, string(password)); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return errors.New("login failed: wrong email or password")
		}
		return err
	}

	printlnFn("Login successful.")
	return nil
}

// Logout drops the session. The cart stays on this device.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	printlnFn("Logged out. Your cart is kept on this device.")
	return nil
}

// Status prints the session state and token lifetimes.
func (a *App) Status(ctx context.Context) error {
	st := a.authService.Status(ctx)
	if !st.Authenticated {
		printlnFn("Not logged in.")
		return nil
	}

	msg := "Logged in"
	if st.Subject != "" {
		msg += fmt.Sprintf(" as user %s", st.Subject)
	}
	printlnFn(msg + ".")
	if !st.AccessExpiresAt.IsZero() {
		printlnFn("Access token expires:", st.AccessExpiresAt.Local().Format(time.RFC1123))
	}
	if !st.RefreshExpiresAt.IsZero() {
		printlnFn("Session expires:", st.RefreshExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}
