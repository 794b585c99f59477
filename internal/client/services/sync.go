package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/client/client"
	"github.com/dmitrijs2005/storefront/internal/client/models"
)

// Refresh and Merge share syncMu so at most one cycle touches the cart at a
// time. Concurrent calls of the same kind join the running cycle.

func (s *cartService) Refresh(ctx context.Context) error {
	_, err, _ := s.syncs.Do("refresh", func() (any, error) {
		s.syncMu.Lock()
		defer s.syncMu.Unlock()
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *cartService) Merge(ctx context.Context) error {
	_, err, _ := s.syncs.Do("merge", func() (any, error) {
		s.syncMu.Lock()
		defer s.syncMu.Unlock()
		return nil, s.merge(ctx)
	})
	return err
}

func (s *cartService) refresh(ctx context.Context) error {
	remote, err := s.api.FetchCart(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cart refresh failed, keeping local cart", "error", err)
		return fmt.Errorf("refresh cart: %w", err)
	}
	if err := s.store.Replace(ctx, remote); err != nil {
		return fmt.Errorf("refresh cart: %w", err)
	}
	s.logger.Info(ctx, "cart refreshed from server", "lines", len(remote))
	return nil
}

// merge reconciles the local cart into the server cart. For every local
// line the server ends up with the local quantity; server-only lines are
// kept. The local cart then becomes whatever the server reports.
func (s *cartService) merge(ctx context.Context) error {
	local := s.store.Lines()
	if len(local) == 0 {
		return s.refresh(ctx)
	}

	remote, err := s.api.FetchCart(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cart merge aborted, server cart unavailable", "error", err)
		return fmt.Errorf("merge cart: %w", err)
	}

	byKey := make(map[models.LineKey]models.CartLine, len(remote))
	for _, r := range remote {
		if _, dup := byKey[r.Key()]; !dup {
			byKey[r.Key()] = r
		}
	}

	var pushed, skipped int
	for _, l := range local {
		err := s.mergeLine(ctx, l, byKey)
		switch {
		case errors.Is(err, client.ErrSessionExpired):
			return fmt.Errorf("merge cart: %w", err)
		case err != nil:
			skipped++
			s.logger.Warn(ctx, "cart merge skipped line",
				"product_id", l.ProductID,
				"variant_id", l.Key().VariantID,
				"quantity", l.Quantity,
				"error", err,
			)
		default:
			pushed++
		}
	}

	remote, err = s.api.FetchCart(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cart merge could not re-fetch server cart", "error", err)
		return fmt.Errorf("merge cart: %w", err)
	}
	if err := s.store.Replace(ctx, remote); err != nil {
		return fmt.Errorf("merge cart: %w", err)
	}

	s.logger.Info(ctx, "cart merged", "local_lines", len(local), "pushed", pushed, "skipped", skipped, "lines", len(remote))
	return nil
}

func (s *cartService) mergeLine(ctx context.Context, l models.CartLine, remote map[models.LineKey]models.CartLine) error {
	item := toCartItem(l)

	r, ok := remote[l.Key()]
	switch {
	case ok && r.Quantity == l.Quantity:
		return nil
	case ok && r.IsSynced():
		return s.api.UpdateCartItem(ctx, *r.RemoteLineID, item)
	default:
		_, err := s.api.CreateCartItem(ctx, item)
		return err
	}
}
