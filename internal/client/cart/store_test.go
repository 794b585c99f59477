package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
	getErr error
	sets   int
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("metadata[%s]: %w", key, metadata.ErrNotFound)
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func strPtr(s string) *string { return &s }

func line(productID string, qty int) models.CartLine {
	return models.CartLine{ProductID: productID, Quantity: qty, UnitPrice: decimal.NewFromInt(10), Name: "p" + productID}
}

func TestLoad_EmptyAndCorrupt(t *testing.T) {
	ctx := context.Background()

	kv := newMemKV()
	s := NewStore(kv, logging.NewNop())
	assert.Empty(t, s.Load(ctx), "no prior state")

	kv.data[StorageKey] = []byte(`{not json`)
	assert.Empty(t, s.Load(ctx), "corrupt state treated as empty")
	assert.Empty(t, s.Lines())

	kv.data[StorageKey] = []byte(`{"productId":"1"}`)
	assert.Empty(t, s.Load(ctx), "wrong shape treated as empty")

	kv.getErr = errors.New("disk gone")
	assert.Empty(t, s.Load(ctx))
}

func TestLoad_NormalizesStoredLines(t *testing.T) {
	kv := newMemKV()
	kv.data[StorageKey] = []byte(`[
		{"productId":"1","quantity":2,"unitPrice":"100"},
		{"productId":"1","quantity":1,"unitPrice":"100","remoteLineId":"A"},
		{"productId":"1","variantId":"blue","quantity":1,"unitPrice":"110"},
		{"productId":"","quantity":1},
		{"productId":"2","quantity":0}
	]`)
	s := NewStore(kv, logging.NewNop())

	lines := s.Load(context.Background())
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].Quantity)
	require.NotNil(t, lines[0].RemoteLineID)
	assert.Equal(t, "A", *lines[0].RemoteLineID)
	assert.Equal(t, models.KeyOf("1", strPtr("blue")), lines[1].Key())
}

func TestReplaceAndPersist_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := NewStore(kv, logging.NewNop())

	want := []models.CartLine{line("1", 2), line("2", 1)}
	want[1].RemoteLineID = strPtr("X")
	require.NoError(t, s.Replace(ctx, want))

	reloaded := NewStore(kv, logging.NewNop()).Load(ctx)
	require.Len(t, reloaded, 2)
	assert.Equal(t, "1", reloaded[0].ProductID)
	assert.Equal(t, 2, reloaded[0].Quantity)
	assert.True(t, decimal.NewFromInt(10).Equal(reloaded[0].UnitPrice))
	assert.Equal(t, "X", *reloaded[1].RemoteLineID)

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, NewStore(kv, logging.NewNop()).Load(ctx))
	assert.JSONEq(t, `[]`, string(kv.data[StorageKey]))
}

func TestApply_InsertUpdateRemove(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := NewStore(kv, logging.NewNop())
	key := models.KeyOf("1", nil)

	prev, next, err := s.Apply(ctx, key, func(cur *models.CartLine) (*models.CartLine, error) {
		assert.Nil(t, cur)
		l := line("1", 1)
		return &l, nil
	})
	require.NoError(t, err)
	assert.Nil(t, prev)
	require.NotNil(t, next)
	assert.Equal(t, 1, next.Quantity)

	prev, next, err = s.Apply(ctx, key, func(cur *models.CartLine) (*models.CartLine, error) {
		require.NotNil(t, cur)
		cur.Quantity += 4
		return cur, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, prev.Quantity)
	assert.Equal(t, 5, next.Quantity)

	got, ok := s.Find(key)
	require.True(t, ok)
	assert.Equal(t, 5, got.Quantity)

	prev, next, err = s.Apply(ctx, key, func(cur *models.CartLine) (*models.CartLine, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, 5, prev.Quantity)
	assert.Nil(t, next)
	_, ok = s.Find(key)
	assert.False(t, ok)

	assert.Equal(t, 3, kv.sets, "every mutation persists")
}

func TestApply_NoopOnMissingLine(t *testing.T) {
	kv := newMemKV()
	s := NewStore(kv, logging.NewNop())

	prev, next, err := s.Apply(context.Background(), models.KeyOf("9", nil), func(cur *models.CartLine) (*models.CartLine, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, prev)
	assert.Nil(t, next)
	assert.Zero(t, kv.sets)
}

func TestApply_ErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := NewStore(kv, logging.NewNop())
	require.NoError(t, s.Replace(ctx, []models.CartLine{line("1", 1)}))
	rejected := errors.New("rejected")

	_, _, err := s.Apply(ctx, models.KeyOf("1", nil), func(cur *models.CartLine) (*models.CartLine, error) {
		cur.Quantity = 100
		return nil, rejected
	})
	require.ErrorIs(t, err, rejected)

	got, _ := s.Find(models.KeyOf("1", nil))
	assert.Equal(t, 1, got.Quantity, "fn must not be able to mutate store memory through its argument")
}

func TestApply_RejectsInvalidResult(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemKV(), logging.NewNop())

	_, _, err := s.Apply(ctx, models.KeyOf("1", nil), func(cur *models.CartLine) (*models.CartLine, error) {
		l := line("2", 1)
		return &l, nil
	})
	require.Error(t, err)

	_, _, err = s.Apply(ctx, models.KeyOf("1", nil), func(cur *models.CartLine) (*models.CartLine, error) {
		l := line("1", 0)
		return &l, nil
	})
	require.Error(t, err)
	assert.Empty(t, s.Lines())
}

func TestApply_PersistFailureKeepsMemory(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errors.New("read-only fs")
	s := NewStore(kv, logging.NewNop())

	_, next, err := s.Apply(context.Background(), models.KeyOf("1", nil), func(cur *models.CartLine) (*models.CartLine, error) {
		l := line("1", 1)
		return &l, nil
	})
	require.Error(t, err)
	require.NotNil(t, next)
	assert.Len(t, s.Lines(), 1)
}

func TestLines_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemKV(), logging.NewNop())
	l := line("1", 1)
	l.RemoteLineID = strPtr("A")
	require.NoError(t, s.Replace(ctx, []models.CartLine{l}))

	got := s.Lines()
	got[0].Quantity = 99
	*got[0].RemoteLineID = "B"

	again := s.Lines()
	assert.Equal(t, 1, again[0].Quantity)
	assert.Equal(t, "A", *again[0].RemoteLineID)
}

func TestApply_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemKV(), logging.NewNop())
	key := models.KeyOf("1", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Apply(ctx, key, func(cur *models.CartLine) (*models.CartLine, error) {
				if cur == nil {
					l := line("1", 1)
					return &l, nil
				}
				cur.Quantity++
				return cur, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 50, lines[0].Quantity)
}
