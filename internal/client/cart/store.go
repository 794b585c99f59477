// Package cart holds the local cart: the in-process owner of the live cart
// lines, persisted as a JSON array under a single metadata key.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

// StorageKey is the metadata key holding the serialized cart.
const StorageKey = "cartItems"

// KV is the durable storage the cart is saved to. metadata.Repository
// satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ApplyFunc computes the new state of the line under a key. cur is nil when
// there is no such line. Returning nil removes the line (or leaves it absent);
// returning an error aborts without any change.
type ApplyFunc func(cur *models.CartLine) (*models.CartLine, error)

// Store keeps cart lines in memory, in insertion order, and writes them
// through to KV after every change. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	kv     KV
	lines  []models.CartLine
	logger logging.Logger
}

func NewStore(kv KV, logger logging.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Load restores the cart from storage. Missing or unreadable state yields
// an empty cart; it is logged, never returned as an error.
func (s *Store) Load(ctx context.Context) []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil

	data, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, metadata.ErrNotFound) {
			s.logger.Warn(ctx, "cart storage unreadable, starting empty", "error", err)
		}
		return nil
	}

	var stored []models.CartLine
	if err := json.Unmarshal(data, &stored); err != nil {
		s.logger.Warn(ctx, "cart state corrupt, starting empty", "error", err)
		return nil
	}

	s.lines = normalize(stored)
	return s.snapshot()
}

// Lines returns a copy of the current cart.
func (s *Store) Lines() []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Find returns a copy of the line under key.
func (s *Store) Find(key models.LineKey) (models.CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(key); i >= 0 {
		return s.lines[i].Clone(), true
	}
	return models.CartLine{}, false
}

// Replace swaps the whole cart, e.g. for the server's authoritative copy.
func (s *Store) Replace(ctx context.Context, lines []models.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = normalize(lines)
	return s.persistLocked(ctx)
}

// Persist saves the current in-memory state.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.Replace(ctx, nil)
}

// Apply atomically reads, transforms and writes the line under key, then
// persists. It returns copies of the line before and after fn ran (nil when
// absent). The key of a returned line must match key.
//
// If persisting fails the in-memory change is kept and the error returned.
func (s *Store) Apply(ctx context.Context, key models.LineKey, fn ApplyFunc) (prev, next *models.CartLine, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(key)
	if i >= 0 {
		c := s.lines[i].Clone()
		prev = &c
	}

	var arg *models.CartLine
	if prev != nil {
		c := prev.Clone()
		arg = &c
	}
	result, err := fn(arg)
	if err != nil {
		return prev, nil, err
	}

	switch {
	case result == nil && i < 0:
		return nil, nil, nil
	case result == nil:
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	default:
		if result.Key() != key {
			return prev, nil, fmt.Errorf("cart line key changed from %v to %v", key, result.Key())
		}
		if result.Quantity < 1 {
			return prev, nil, fmt.Errorf("cart line %v: quantity %d below 1", key, result.Quantity)
		}
		if i >= 0 {
			s.lines[i] = result.Clone()
		} else {
			s.lines = append(s.lines, result.Clone())
		}
		c := result.Clone()
		next = &c
	}

	return prev, next, s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	lines := s.lines
	if lines == nil {
		lines = []models.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, data); err != nil {
		s.logger.Error(ctx, "failed to persist cart", "error", err)
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

func (s *Store) indexOf(key models.LineKey) int {
	for i := range s.lines {
		if s.lines[i].Key() == key {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() []models.CartLine {
	out := make([]models.CartLine, len(s.lines))
	for i := range s.lines {
		out[i] = s.lines[i].Clone()
	}
	return out
}

// normalize enforces the cart invariants on externally supplied lines:
// one line per key (duplicates fold into the first, quantities summed) and
// positive quantities. Lines without a product id are dropped.
func normalize(in []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, 0, len(in))
	seen := make(map[models.LineKey]int, len(in))

	for _, l := range in {
		if l.ProductID == "" || l.Quantity < 1 {
			continue
		}
		if i, ok := seen[l.Key()]; ok {
			out[i].Quantity += l.Quantity
			if !out[i].IsSynced() && l.IsSynced() {
				out[i].RemoteLineID = l.Clone().RemoteLineID
			}
			continue
		}
		seen[l.Key()] = len(out)
		out = append(out, l.Clone())
	}
	return out
}
