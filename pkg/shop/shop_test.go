package shop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/storage"
	"github.com/rhuss/storefront/pkg/storage/memory"
	"github.com/rhuss/storefront/pkg/storage/storagetest"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc   *Service
	store *memory.Store
	staff auth.Identity
	alice auth.Identity
	bob   auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	mk := func(name string, staff bool) auth.Identity {
		u := storagetest.NewUser(name)
		u.Staff = staff
		require.NoError(t, store.CreateUser(ctx, u))
		return auth.UserIdentity(u.ID, u.Username, staff)
	}

	return &fixture{
		svc:   New(store),
		store: store,
		staff: mk("root", true),
		alice: mk("alice", false),
		bob:   mk("bob", false),
	}
}

func (f *fixture) product(t *testing.T, name string, price api.Money) *api.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), f.staff, &api.ProductInput{
		Name:  ptr(name),
		Price: ptr(price),
		Stock: ptr(10),
	})
	require.NoError(t, err)
	return p
}

func orderInput(productID int64) *api.OrderInput {
	return &api.OrderInput{
		TotalAmount: ptr(api.Money(2500)),
		Items: &[]api.OrderItemInput{
			{Product: productID, Quantity: 2, Price: 1250},
		},
	}
}

func TestProducts_AnonymousReads(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", 1250)

	list, err := f.svc.ListProducts(context.Background(), auth.Anonymous())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got, err := f.svc.GetProduct(context.Background(), auth.Anonymous(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, api.Money(1250), got.Price)
}

func TestProducts_NonStaffMutationForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Widget", 1250)

	for _, caller := range []auth.Identity{auth.Anonymous(), f.alice} {
		_, err := f.svc.CreateProduct(ctx, caller, &api.ProductInput{Name: ptr("Gadget"), Price: ptr(api.Money(1))})
		assert.ErrorIs(t, err, auth.ErrForbidden)

		_, err = f.svc.UpdateProduct(ctx, caller, p.ID, &api.ProductInput{Price: ptr(api.Money(1))}, true)
		assert.ErrorIs(t, err, auth.ErrForbidden)

		err = f.svc.DeleteProduct(ctx, caller, p.ID)
		assert.ErrorIs(t, err, auth.ErrForbidden)
	}

	// Zero store change.
	list, err := f.store.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Widget", list[0].Name)
	assert.Equal(t, api.Money(1250), list[0].Price)
}

func TestProducts_ForbiddenBeforeValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateProduct(context.Background(), f.alice, &api.ProductInput{})
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestProducts_StaffCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Widget", 1250)

	updated, err := f.svc.UpdateProduct(ctx, f.staff, p.ID, &api.ProductInput{Stock: ptr(3)}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Stock)
	assert.Equal(t, "Widget", updated.Name)

	_, err = f.svc.UpdateProduct(ctx, f.staff, p.ID, &api.ProductInput{Stock: ptr(3)}, false)
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "name", apiErr.Param)

	require.NoError(t, f.svc.DeleteProduct(ctx, f.staff, p.ID))
	_, err = f.svc.GetProduct(ctx, f.staff, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProducts_DeleteReferencedConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Widget", 1250)
	_, err := f.svc.CreateOrder(ctx, f.staff, orderInput(p.ID))
	require.NoError(t, err)

	err = f.svc.DeleteProduct(ctx, f.staff, p.ID)
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorTypeConflict, apiErr.Type)
}

func TestOrders_OwnerStampedFromCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Widget", 1250)

	in := orderInput(p.ID)
	in.User = ptr(f.alice.UserID)

	o, err := f.svc.CreateOrder(ctx, f.staff, in)
	require.NoError(t, err)
	assert.Equal(t, f.staff.UserID, o.User)
	assert.Equal(t, api.OrderStatusPending, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, p.ID, o.Items[0].Product)

	stored, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, f.staff.UserID, stored.User)
}

func TestOrders_NonStaffMutationForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Widget", 1250)
	o, err := f.svc.CreateOrder(ctx, f.staff, orderInput(p.ID))
	require.NoError(t, err)

	for _, caller := range []auth.Identity{auth.Anonymous(), f.alice} {
		_, err := f.svc.CreateOrder(ctx, caller, orderInput(p.ID))
		assert.ErrorIs(t, err, auth.ErrForbidden)

		_, err = f.svc.UpdateOrder(ctx, caller, o.ID, &api.OrderInput{Status: ptr(api.OrderStatusShipped)}, true)
		assert.ErrorIs(t, err, auth.ErrForbidden)

		err = f.svc.DeleteOrder(ctx, caller, o.ID)
		assert.ErrorIs(t, err, auth.ErrForbidden)
	}

	orders, err := f.store.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, api.OrderStatusPending, orders[0].Status)
}

func TestOrders_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", 1250)

	in := orderInput(p.ID)
	*in.Items = append(*in.Items, api.OrderItemInput{Product: 999, Quantity: 1, Price: 100})

	_, err := f.svc.CreateOrder(context.Background(), f.staff, in)
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorTypeInvalidRequest, apiErr.Type)
	assert.Equal(t, "items[1].product", apiErr.Param)

	orders, err := f.store.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrders_UpdateReplacesItemsKeepsOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	widget := f.product(t, "Widget", 1250)
	gadget := f.product(t, "Gadget", 500)

	o, err := f.svc.CreateOrder(ctx, f.staff, orderInput(widget.ID))
	require.NoError(t, err)

	updated, err := f.svc.UpdateOrder(ctx, f.staff, o.ID, &api.OrderInput{
		User:   ptr(f.bob.UserID),
		Status: ptr(api.OrderStatusShipped),
		Items:  &[]api.OrderItemInput{{Product: gadget.ID, Quantity: 1, Price: 500}},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, f.staff.UserID, updated.User)
	assert.Equal(t, api.OrderStatusShipped, updated.Status)
	assert.Equal(t, api.Money(2500), updated.TotalAmount)

	stored, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, gadget.ID, stored.Items[0].Product)
}

func TestOrders_PatchWithoutItemsKeepsItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Widget", 1250)
	o, err := f.svc.CreateOrder(ctx, f.staff, orderInput(p.ID))
	require.NoError(t, err)

	_, err = f.svc.UpdateOrder(ctx, f.staff, o.ID, &api.OrderInput{Status: ptr(api.OrderStatusProcessing)}, true)
	require.NoError(t, err)

	stored, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, o.Items[0].ID, stored.Items[0].ID)
	assert.Equal(t, api.OrderStatusProcessing, stored.Status)
}

func TestOrders_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Widget", 1250)
	o, err := f.svc.CreateOrder(ctx, f.staff, orderInput(p.ID))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteOrder(ctx, f.staff, o.ID))
	_, err = f.svc.GetOrder(ctx, auth.Anonymous(), o.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The product is free to go once no order references it.
	assert.NoError(t, f.svc.DeleteProduct(ctx, f.staff, p.ID))
}

func TestViewOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Widget", 1250)
	o, err := f.svc.CreateOrder(ctx, f.staff, orderInput(p.ID))
	require.NoError(t, err)

	got, err := f.svc.ViewOrder(ctx, f.staff, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.ViewOrder(ctx, f.alice, o.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.svc.ViewOrder(ctx, f.staff, o.ID+100)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.svc.ViewOrder(ctx, auth.Anonymous(), o.ID)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestOrders_AnonymousReadsAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Widget", 1250)
	_, err := f.svc.CreateOrder(ctx, f.staff, orderInput(p.ID))
	require.NoError(t, err)

	orders, err := f.svc.ListOrders(ctx, auth.Anonymous())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrders_OwnerMustExist(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", 1250)

	// A staff identity whose user row is gone, as with a stale API key mapping.
	ghost := auth.UserIdentity(12345, "ghost", true)
	_, err := f.svc.CreateOrder(context.Background(), ghost, orderInput(p.ID))
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorTypeConflict, apiErr.Type)
}
