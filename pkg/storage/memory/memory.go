// Package memory provides an in-memory implementation of storage.Store
// for testing and lightweight deployments. Records are lost when the
// process restarts.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/storage"
)

// Store is an in-memory storage.Store. Records are copied on the way in and
// on the way out so callers never share memory with the store.
type Store struct {
	mu       sync.RWMutex
	users    map[int64]*api.User
	products map[int64]*api.Product
	orders   map[int64]*api.Order

	nextUserID    int64
	nextProductID int64
	nextOrderID   int64
	nextItemID    int64

	now func() time.Time
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:    make(map[int64]*api.User),
		products: make(map[int64]*api.Product),
		orders:   make(map[int64]*api.Order),
		now:      time.Now,
	}
}

// CreateUser inserts a user. Usernames are unique.
func (s *Store) CreateUser(_ context.Context, u *api.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.usernameTaken(u.Username, 0) {
		return storage.ErrConflict
	}

	s.nextUserID++
	u.ID = s.nextUserID
	if u.DateJoined.IsZero() {
		u.DateJoined = s.now().UTC()
	}

	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(_ context.Context, id int64) (*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(_ context.Context) ([]*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*api.User, 0, len(s.users))
	for _, id := range sortedKeys(s.users) {
		cp := *s.users[id]
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateUser overwrites a stored user.
func (s *Store) UpdateUser(_ context.Context, u *api.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if s.usernameTaken(u.Username, u.ID) {
		return storage.ErrConflict
	}

	cp := *u
	cp.DateJoined = existing.DateJoined
	s.users[u.ID] = &cp
	return nil
}

// DeleteUser removes a user and every order the user owns.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	for oid, o := range s.orders {
		if o.User == id {
			delete(s.orders, oid)
		}
	}
	return nil
}

// CreateProduct inserts a product.
func (s *Store) CreateProduct(_ context.Context, p *api.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProductID++
	now := s.now().UTC()
	p.ID = s.nextProductID
	p.CreatedAt = now
	p.UpdatedAt = now

	cp := *p
	s.products[p.ID] = &cp
	return nil
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(_ context.Context, id int64) (*api.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListProducts returns all products ordered by ID.
func (s *Store) ListProducts(_ context.Context) ([]*api.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*api.Product, 0, len(s.products))
	for _, id := range sortedKeys(s.products) {
		cp := *s.products[id]
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateProduct overwrites a stored product.
func (s *Store) UpdateProduct(_ context.Context, p *api.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return storage.ErrNotFound
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

// DeleteProduct removes a product that no order item references.
func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return storage.ErrNotFound
	}
	for _, o := range s.orders {
		for _, it := range o.Items {
			if it.Product == id {
				return storage.ErrConflict
			}
		}
	}
	delete(s.products, id)
	return nil
}

// CreateOrder inserts an order with its items.
func (s *Store) CreateOrder(_ context.Context, o *api.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOrderRefs(o); err != nil {
		return err
	}

	s.nextOrderID++
	now := s.now().UTC()
	o.ID = s.nextOrderID
	o.CreatedAt = now
	o.UpdatedAt = now
	s.assignItemIDs(o)

	s.orders[o.ID] = cloneOrder(o)
	return nil
}

// GetOrder retrieves an order by ID.
func (s *Store) GetOrder(_ context.Context, id int64) (*api.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneOrder(o), nil
}

// GetOrderForUser retrieves an order by ID, scoped to its owner.
func (s *Store) GetOrderForUser(_ context.Context, id, userID int64) (*api.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok || o.User != userID {
		return nil, storage.ErrNotFound
	}
	return cloneOrder(o), nil
}

// ListOrders returns all orders ordered by ID.
func (s *Store) ListOrders(_ context.Context) ([]*api.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*api.Order, 0, len(s.orders))
	for _, id := range sortedKeys(s.orders) {
		out = append(out, cloneOrder(s.orders[id]))
	}
	return out, nil
}

// UpdateOrder overwrites a stored order, replacing its items when asked.
func (s *Store) UpdateOrder(_ context.Context, o *api.Order, replaceItems bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[o.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if !replaceItems {
		o.Items = slices.Clone(existing.Items)
	}
	if err := s.checkOrderRefs(o); err != nil {
		return err
	}

	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = s.now().UTC()
	if replaceItems {
		s.assignItemIDs(o)
	}

	s.orders[o.ID] = cloneOrder(o)
	return nil
}

// DeleteOrder removes an order with its items.
func (s *Store) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// usernameTaken reports whether another user (other than exceptID) holds username.
// Caller must hold s.mu.
func (s *Store) usernameTaken(username string, exceptID int64) bool {
	for id, u := range s.users {
		if id != exceptID && u.Username == username {
			return true
		}
	}
	return false
}

// checkOrderRefs mirrors the foreign keys of the SQL schemas. Caller must hold s.mu.
func (s *Store) checkOrderRefs(o *api.Order) error {
	if _, ok := s.users[o.User]; !ok {
		return storage.ErrConflict
	}
	for _, it := range o.Items {
		if _, ok := s.products[it.Product]; !ok {
			return storage.ErrConflict
		}
	}
	return nil
}

// assignItemIDs numbers fresh item rows. Caller must hold s.mu.
func (s *Store) assignItemIDs(o *api.Order) {
	for i := range o.Items {
		s.nextItemID++
		o.Items[i].ID = s.nextItemID
		o.Items[i].Order = o.ID
	}
}

func cloneOrder(o *api.Order) *api.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	if cp.Items == nil {
		cp.Items = []api.OrderItem{}
	}
	return &cp
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
