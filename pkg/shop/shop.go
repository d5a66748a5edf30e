// Package shop implements the product catalog and the order resource.
//
// Every operation takes the caller's identity and passes it through the
// authorization gate before the store is touched.
package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/storage"
)

// Store is the persistence the shop needs.
type Store interface {
	storage.ProductStore
	storage.OrderStore
}

// Service serves products and orders.
type Service struct {
	store Store
}

// New creates the service.
func New(store Store) *Service {
	return &Service{store: store}
}

// ListProducts returns the whole catalog.
func (s *Service) ListProducts(ctx context.Context, id auth.Identity) ([]*api.Product, error) {
	if err := auth.Authorize(id, auth.OpRead, auth.KindProduct); err != nil {
		return nil, err
	}
	return s.store.ListProducts(ctx)
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id auth.Identity, productID int64) (*api.Product, error) {
	if err := auth.Authorize(id, auth.OpRead, auth.KindProduct); err != nil {
		return nil, err
	}
	return s.store.GetProduct(ctx, productID)
}

// CreateProduct adds a catalog entry. Staff only.
func (s *Service) CreateProduct(ctx context.Context, id auth.Identity, in *api.ProductInput) (*api.Product, error) {
	if err := auth.Authorize(id, auth.OpCreate, auth.KindProduct); err != nil {
		return nil, err
	}
	if apiErr := api.ValidateProductInput(in, false); apiErr != nil {
		return nil, apiErr
	}

	p := &api.Product{}
	in.ApplyTo(p)
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProduct replaces (partial false) or patches (partial true) a
// product. Staff only.
func (s *Service) UpdateProduct(ctx context.Context, id auth.Identity, productID int64, in *api.ProductInput, partial bool) (*api.Product, error) {
	if err := auth.Authorize(id, auth.OpUpdate, auth.KindProduct); err != nil {
		return nil, err
	}
	if apiErr := api.ValidateProductInput(in, partial); apiErr != nil {
		return nil, apiErr
	}

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	in.ApplyTo(p)
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes a product. Staff only. Products still referenced
// by order items cannot be deleted.
func (s *Service) DeleteProduct(ctx context.Context, id auth.Identity, productID int64) error {
	if err := auth.Authorize(id, auth.OpDelete, auth.KindProduct); err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, productID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return api.NewConflictError("", "product is referenced by existing orders")
		}
		return err
	}
	slog.Info("product deleted", "product_id", productID, "by", id.Subject())
	return nil
}

// ListOrders returns all orders with their items.
func (s *Service) ListOrders(ctx context.Context, id auth.Identity) ([]*api.Order, error) {
	if err := auth.Authorize(id, auth.OpRead, auth.KindOrder); err != nil {
		return nil, err
	}
	return s.store.ListOrders(ctx)
}

// GetOrder returns one order with its items.
func (s *Service) GetOrder(ctx context.Context, id auth.Identity, orderID int64) (*api.Order, error) {
	if err := auth.Authorize(id, auth.OpRead, auth.KindOrder); err != nil {
		return nil, err
	}
	return s.store.GetOrder(ctx, orderID)
}

// ViewOrder returns an order only to its owner. Anonymous callers get
// auth.ErrUnauthenticated; anyone else who does not own the order gets
// storage.ErrNotFound, the same as for a missing order.
func (s *Service) ViewOrder(ctx context.Context, id auth.Identity, orderID int64) (*api.Order, error) {
	if id.IsAnonymous() {
		return nil, auth.ErrUnauthenticated
	}
	return s.store.GetOrderForUser(ctx, orderID, id.UserID)
}

// CreateOrder stores a new order with its items. Staff only. The owner is
// always the caller; any user in the input is ignored.
func (s *Service) CreateOrder(ctx context.Context, id auth.Identity, in *api.OrderInput) (*api.Order, error) {
	if err := auth.Authorize(id, auth.OpCreate, auth.KindOrder); err != nil {
		return nil, err
	}
	if apiErr := api.ValidateOrderInput(in, false); apiErr != nil {
		return nil, apiErr
	}
	if err := s.checkProducts(ctx, in); err != nil {
		return nil, err
	}

	o := &api.Order{User: id.UserID}
	in.ApplyTo(o)
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, ownerConflict(err)
	}
	return o, nil
}

// UpdateOrder replaces (partial false) or patches (partial true) an order.
// Staff only. Items, when present, replace the existing ones. The owner
// never changes.
func (s *Service) UpdateOrder(ctx context.Context, id auth.Identity, orderID int64, in *api.OrderInput, partial bool) (*api.Order, error) {
	if err := auth.Authorize(id, auth.OpUpdate, auth.KindOrder); err != nil {
		return nil, err
	}
	if apiErr := api.ValidateOrderInput(in, partial); apiErr != nil {
		return nil, apiErr
	}

	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.checkProducts(ctx, in); err != nil {
		return nil, err
	}

	in.ApplyTo(o)
	if err := s.store.UpdateOrder(ctx, o, in.Items != nil); err != nil {
		return nil, ownerConflict(err)
	}
	return o, nil
}

// DeleteOrder removes an order and its items. Staff only.
func (s *Service) DeleteOrder(ctx context.Context, id auth.Identity, orderID int64) error {
	if err := auth.Authorize(id, auth.OpDelete, auth.KindOrder); err != nil {
		return err
	}
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	slog.Info("order deleted", "order_id", orderID, "by", id.Subject())
	return nil
}

// checkProducts reports the first item whose product does not exist.
func (s *Service) checkProducts(ctx context.Context, in *api.OrderInput) error {
	if in.Items == nil {
		return nil
	}
	for i, item := range *in.Items {
		_, err := s.store.GetProduct(ctx, item.Product)
		if errors.Is(err, storage.ErrNotFound) {
			return api.NewInvalidRequestError(fmt.Sprintf("items[%d].product", i),
				fmt.Sprintf("invalid pk \"%d\": product does not exist", item.Product))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ownerConflict reports a dangling reference left after checkProducts,
// which can only be the owner or a product deleted concurrently.
func ownerConflict(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return api.NewConflictError("user", "order owner or product no longer exists")
	}
	return err
}
