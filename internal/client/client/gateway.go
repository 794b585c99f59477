package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/storefront/internal/logging"
)

const (
	refreshPath = "/auth/refresh/"

	// RequestIDHeader carries a per-request id for server-side log correlation.
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 4 << 10
)

// TokenStore is where the gateway reads bearer tokens and writes refreshed
// ones. session.Store implements it.
type TokenStore interface {
	GetAccessToken(ctx context.Context) (string, error)
	GetRefreshToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
	SetTokens(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

// Navigator is told when the session can't be recovered and the user has to
// authenticate again.
type Navigator interface {
	RedirectToLogin()
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
	// Refresh is set by backends that rotate refresh tokens.
	Refresh string `json:"refresh,omitempty"`
}

// Gateway is the single choke point for backend calls. It attaches the
// bearer token and, on a 401, refreshes the access token once and replays
// the request once.
type Gateway struct {
	baseURL   string
	http      *http.Client
	tokens    TokenStore
	nav       Navigator
	logger    logging.Logger
	refreshes singleflight.Group
	// refreshTimeout bounds the shared refresh call, which outlives the
	// caller that started it.
	refreshTimeout time.Duration
}

// NewGateway builds a gateway against baseURL. nav may be nil.
func NewGateway(baseURL string, timeout time.Duration, tokens TokenStore, nav Navigator, logger logging.Logger) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		nav:     nav,
		logger:  logger,

		refreshTimeout: timeout,
	}
}

// Do sends body (JSON-encoded, may be nil) and decodes a 2xx response into
// out (may be nil).
//
// A 401 triggers one token refresh and one replay. A second 401 is returned
// as a *StatusError unwrapping to ErrUnauthorized. When the refresh token is
// missing or rejected the session is cleared, the navigator is told, and
// ErrSessionExpired is returned.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}

	access, err := g.tokens.GetAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}

	err = g.send(ctx, method, path, payload, access, out)
	if !isUnauthorized(err) {
		return err
	}

	fresh, err := g.freshAccessToken(ctx, access)
	if err != nil {
		return err
	}

	g.logger.Debug(ctx, "replaying request with refreshed token", "method", method, "path", path)
	return g.send(ctx, method, path, payload, fresh, out)
}

// DoAnonymous sends a request without a bearer token and without the
// refresh-on-401 behavior. Used for login, registration and refresh itself.
func (g *Gateway) DoAnonymous(ctx context.Context, method, path string, body, out any) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}
	return g.send(ctx, method, path, payload, "", out)
}

// freshAccessToken returns a token newer than stale. If a concurrent
// request already refreshed it, the stored token is reused.
func (g *Gateway) freshAccessToken(ctx context.Context, stale string) (string, error) {
	if current, err := g.tokens.GetAccessToken(ctx); err == nil && current != "" && current != stale {
		return current, nil
	}

	v, err, _ := g.refreshes.Do("refresh", func() (any, error) {
		rctx := context.WithoutCancel(ctx)
		if g.refreshTimeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(rctx, g.refreshTimeout)
			defer cancel()
		}
		return g.refresh(rctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Gateway) refresh(ctx context.Context) (string, error) {
	refresh, err := g.tokens.GetRefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("read refresh token: %w", err)
	}
	if refresh == "" {
		return "", g.expire(ctx, "no refresh token")
	}

	payload, err := encodeBody(refreshRequest{Refresh: refresh})
	if err != nil {
		return "", err
	}

	var resp refreshResponse
	if err := g.send(ctx, http.MethodPost, refreshPath, payload, "", &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
			return "", g.expire(ctx, "refresh token rejected")
		}
		// Server trouble is not proof the refresh token is bad; keep the session.
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	if resp.Access == "" {
		return "", g.expire(ctx, "refresh returned no access token")
	}

	if resp.Refresh != "" {
		err = g.tokens.SetTokens(ctx, resp.Access, resp.Refresh)
	} else {
		err = g.tokens.SetAccessToken(ctx, resp.Access)
	}
	if err != nil {
		return "", fmt.Errorf("store refreshed token: %w", err)
	}

	g.logger.Info(ctx, "access token refreshed")
	return resp.Access, nil
}

func (g *Gateway) expire(ctx context.Context, reason string) error {
	g.logger.Warn(ctx, "session expired", "reason", reason)
	if err := g.tokens.Clear(ctx); err != nil {
		g.logger.Error(ctx, "failed to clear session", "error", err)
	}
	if g.nav != nil {
		g.nav.RedirectToLogin()
	}
	return ErrSessionExpired
}

func (g *Gateway) send(ctx context.Context, method, path string, payload []byte, token string, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	g.logger.Debug(ctx, "api request",
		"request_id", requestID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return b, nil
}

func isUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}
