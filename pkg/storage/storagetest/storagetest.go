// Package storagetest provides the conformance suite shared by every
// storage.Store implementation.
package storagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/storage"
)

// Factory returns a fresh, empty store. The factory registers its own cleanup.
type Factory func(t *testing.T) storage.Store

// Run executes the full conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("UsernameUnique", func(t *testing.T) { testUsernameUnique(t, newStore(t)) })
	t.Run("Products", func(t *testing.T) { testProducts(t, newStore(t)) })
	t.Run("Orders", func(t *testing.T) { testOrders(t, newStore(t)) })
	t.Run("OrderOwnerScope", func(t *testing.T) { testOrderOwnerScope(t, newStore(t)) })
	t.Run("OrderReferences", func(t *testing.T) { testOrderReferences(t, newStore(t)) })
	t.Run("Cascades", func(t *testing.T) { testCascades(t, newStore(t)) })
	t.Run("ConcurrentCreates", func(t *testing.T) { testConcurrentCreates(t, newStore(t)) })
	t.Run("HealthCheck", func(t *testing.T) {
		require.NoError(t, newStore(t).HealthCheck(context.Background()))
	})
}

// NewUser returns a user record ready for insertion.
func NewUser(username string) *api.User {
	return &api.User{
		Username:     username,
		Email:        username + "@example.com",
		Address:      "1 Main St",
		PasswordHash: "$2a$04$notarealhashnotarealhashnotarealhashnotarealhash",
		Active:       true,
	}
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()

	u := NewUser("alice")
	u.Staff = true
	require.NoError(t, s.CreateUser(ctx, u))
	require.NotZero(t, u.ID)
	assert.False(t, u.DateJoined.IsZero())

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.True(t, got.Staff)
	assert.True(t, got.Active)

	byName, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	got.Address = "2 Side St"
	got.PasswordHash = "$2a$04$anotherhash"
	require.NoError(t, s.UpdateUser(ctx, got))

	again, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "2 Side St", again.Address)
	assert.Equal(t, "$2a$04$anotherhash", again.PasswordHash)

	require.NoError(t, s.CreateUser(ctx, NewUser("bob")))
	list, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Less(t, list[0].ID, list[1].ID)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), storage.ErrNotFound)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	missing := NewUser("ghost")
	missing.ID = 999999
	assert.ErrorIs(t, s.UpdateUser(ctx, missing), storage.ErrNotFound)
}

func testUsernameUnique(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, NewUser("carol")))
	assert.ErrorIs(t, s.CreateUser(ctx, NewUser("carol")), storage.ErrConflict)

	dave := NewUser("dave")
	require.NoError(t, s.CreateUser(ctx, dave))
	dave.Username = "carol"
	assert.ErrorIs(t, s.UpdateUser(ctx, dave), storage.ErrConflict)
}

func testProducts(t *testing.T, s storage.Store) {
	ctx := context.Background()

	p := &api.Product{Name: "Mug", Description: "Ceramic", Price: 1250, Stock: 10}
	require.NoError(t, s.CreateProduct(ctx, p))
	require.NotZero(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Name)
	assert.Equal(t, api.Money(1250), got.Price)
	assert.Equal(t, 10, got.Stock)

	got.Price = 999
	got.Stock = 3
	require.NoError(t, s.UpdateProduct(ctx, got))

	again, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, api.Money(999), again.Price)
	assert.Equal(t, 3, again.Stock)
	assert.False(t, again.UpdatedAt.Before(again.CreatedAt))

	require.NoError(t, s.CreateProduct(ctx, &api.Product{Name: "Plate", Price: 800}))
	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	_, err = s.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.UpdateProduct(ctx, p), storage.ErrNotFound)
}

func seedOrder(t *testing.T, s storage.Store, owner string) (*api.User, *api.Product, *api.Order) {
	t.Helper()
	ctx := context.Background()

	u := NewUser(owner)
	require.NoError(t, s.CreateUser(ctx, u))
	p := &api.Product{Name: owner + "-widget", Price: 500, Stock: 5}
	require.NoError(t, s.CreateProduct(ctx, p))

	o := &api.Order{
		User:        u.ID,
		TotalAmount: 1500,
		Status:      api.OrderStatusPending,
		Items: []api.OrderItem{
			{Product: p.ID, Quantity: 2, Price: 500},
			{Product: p.ID, Quantity: 1, Price: 500},
		},
	}
	require.NoError(t, s.CreateOrder(ctx, o))
	return u, p, o
}

func testOrders(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, p, o := seedOrder(t, s, "erin")

	require.NotZero(t, o.ID)
	require.Len(t, o.Items, 2)
	for _, it := range o.Items {
		assert.NotZero(t, it.ID)
		assert.Equal(t, o.ID, it.Order)
	}

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.User, got.User)
	assert.Equal(t, api.Money(1500), got.TotalAmount)
	assert.Equal(t, api.OrderStatusPending, got.Status)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, 1, got.Items[1].Quantity)

	itemIDs := []int64{got.Items[0].ID, got.Items[1].ID}
	got.Status = api.OrderStatusProcessing
	require.NoError(t, s.UpdateOrder(ctx, got, false))

	kept, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, api.OrderStatusProcessing, kept.Status)
	require.Len(t, kept.Items, 2)
	assert.Equal(t, itemIDs, []int64{kept.Items[0].ID, kept.Items[1].ID})

	got.Status = api.OrderStatusShipped
	got.Items = []api.OrderItem{{Product: p.ID, Quantity: 4, Price: 450}}
	require.NoError(t, s.UpdateOrder(ctx, got, true))

	again, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, api.OrderStatusShipped, again.Status)
	require.Len(t, again.Items, 1)
	assert.Equal(t, 4, again.Items[0].Quantity)
	assert.Equal(t, api.Money(450), again.Items[0].Price)

	list, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 1)

	require.NoError(t, s.DeleteOrder(ctx, o.ID))
	_, err = s.GetOrder(ctx, o.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteOrder(ctx, o.ID), storage.ErrNotFound)
}

func testOrderOwnerScope(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner, _, o := seedOrder(t, s, "frank")
	other := NewUser("grace")
	require.NoError(t, s.CreateUser(ctx, other))

	got, err := s.GetOrderForUser(ctx, o.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = s.GetOrderForUser(ctx, o.ID, other.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetOrderForUser(ctx, o.ID+1000, owner.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testOrderReferences(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u, p, _ := seedOrder(t, s, "heidi")

	err := s.CreateOrder(ctx, &api.Order{
		User: u.ID, TotalAmount: 100, Status: api.OrderStatusPending,
		Items: []api.OrderItem{{Product: p.ID + 1000, Quantity: 1, Price: 100}},
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	err = s.CreateOrder(ctx, &api.Order{User: u.ID + 1000, TotalAmount: 100, Status: api.OrderStatusPending})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Referenced products cannot be deleted.
	assert.ErrorIs(t, s.DeleteProduct(ctx, p.ID), storage.ErrConflict)
	_, err = s.GetProduct(ctx, p.ID)
	assert.NoError(t, err)
}

func testCascades(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u, p, o := seedOrder(t, s, "ivan")

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err := s.GetOrder(ctx, o.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// With the order gone the product is free to delete.
	assert.NoError(t, s.DeleteProduct(ctx, p.ID))
}

func testConcurrentCreates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.CreateProduct(ctx, &api.Product{Name: "item", Price: 100})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, n)
}
