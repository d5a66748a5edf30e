package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/storage"
	"github.com/rhuss/storefront/pkg/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), Config{Path: filepath.Join(t.TempDir(), "shop.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newTestStore(t)
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	s, err := New(ctx, Config{Path: path})
	require.NoError(t, err)
	u := storagetest.NewUser("alice")
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.Close())

	reopened, err := New(ctx, Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.DateJoined.Equal(u.DateJoined))
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestDeleteReferencedProductIsConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := storagetest.NewUser("grace")
	require.NoError(t, s.CreateUser(ctx, u))
	p := &api.Product{Name: "lamp", Price: 1999, Stock: 3}
	require.NoError(t, s.CreateProduct(ctx, p))
	require.NoError(t, s.CreateOrder(ctx, &api.Order{
		User:        u.ID,
		TotalAmount: 1999,
		Status:      api.OrderStatusPending,
		Items:       []api.OrderItem{{Product: p.ID, Quantity: 1, Price: 1999}},
	}))

	err := s.DeleteProduct(ctx, p.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.Contains(t, err.Error(), "delete from products")
}
