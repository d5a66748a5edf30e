package storage

import (
	"context"

	"github.com/rhuss/storefront/pkg/api"
)

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts u and sets its ID and DateJoined. Returns
	// ErrConflict if the username is taken.
	CreateUser(ctx context.Context, u *api.User) error

	// GetUser returns the user with the given ID.
	GetUser(ctx context.Context, id int64) (*api.User, error)

	// GetUserByUsername returns the user with the given username.
	GetUserByUsername(ctx context.Context, username string) (*api.User, error)

	// ListUsers returns all users ordered by ID.
	ListUsers(ctx context.Context) ([]*api.User, error)

	// UpdateUser overwrites the stored record with u, including the
	// password hash.
	UpdateUser(ctx context.Context, u *api.User) error

	// DeleteUser removes the user and, with it, the user's orders.
	DeleteUser(ctx context.Context, id int64) error
}

// ProductStore persists catalog entries.
type ProductStore interface {
	// CreateProduct inserts p and sets its ID and timestamps.
	CreateProduct(ctx context.Context, p *api.Product) error

	GetProduct(ctx context.Context, id int64) (*api.Product, error)

	// ListProducts returns all products ordered by ID.
	ListProducts(ctx context.Context) ([]*api.Product, error)

	// UpdateProduct overwrites the stored record and refreshes UpdatedAt.
	UpdateProduct(ctx context.Context, p *api.Product) error

	// DeleteProduct removes the product. Returns ErrConflict while order
	// items still reference it.
	DeleteProduct(ctx context.Context, id int64) error
}

// OrderStore persists orders together with their items.
type OrderStore interface {
	// CreateOrder inserts o and its items in one atomic step and sets the
	// generated IDs and timestamps. Returns ErrConflict when the owner or
	// an item's product does not exist.
	CreateOrder(ctx context.Context, o *api.Order) error

	// GetOrder returns the order with its items.
	GetOrder(ctx context.Context, id int64) (*api.Order, error)

	// GetOrderForUser returns the order only when it is owned by userID.
	// Any mismatch is reported as ErrNotFound.
	GetOrderForUser(ctx context.Context, id, userID int64) (*api.Order, error)

	// ListOrders returns all orders ordered by ID, each with its items.
	ListOrders(ctx context.Context) ([]*api.Order, error)

	// UpdateOrder overwrites the order fields. Items are replaced only
	// when replaceItems is set; otherwise the stored items keep their IDs.
	UpdateOrder(ctx context.Context, o *api.Order, replaceItems bool) error

	// DeleteOrder removes the order and its items.
	DeleteOrder(ctx context.Context, id int64) error
}

// Store is the full resource store used by the services.
type Store interface {
	UserStore
	ProductStore
	OrderStore

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
