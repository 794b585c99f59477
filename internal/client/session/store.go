// Package session persists the access/refresh token pair used to talk to the
// storefront API.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/storefront/internal/dbx"
)

// Storage keys in the metadata table.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Store reads and writes session tokens. Missing tokens are reported as
// empty strings, not errors.
type Store struct {
	db   *sql.DB
	repo metadata.Repository
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, repo: metadata.NewSQLiteRepository(db)}
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.repo.Get(ctx, key)
	if errors.Is(err, metadata.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (s *Store) GetAccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, AccessTokenKey)
}

func (s *Store) GetRefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, RefreshTokenKey)
}

func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	return s.repo.Set(ctx, AccessTokenKey, []byte(token))
}

// SetTokens replaces both tokens atomically. An empty refresh token keeps
// the stored one.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, AccessTokenKey, []byte(access)); err != nil {
			return err
		}
		if refresh == "" {
			return nil
		}
		return repo.Set(ctx, RefreshTokenKey, []byte(refresh))
	})
}

// Clear drops both tokens. The cart is left alone.
func (s *Store) Clear(ctx context.Context) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Delete(ctx, AccessTokenKey); err != nil {
			return err
		}
		return repo.Delete(ctx, RefreshTokenKey)
	})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether an access token is stored. Storage
// errors count as "not authenticated".
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	token, err := s.GetAccessToken(ctx)
	return err == nil && token != ""
}
