// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling and goose for schema migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/debug"
	"github.com/rhuss/storefront/pkg/storage"
)

// Store is a PostgreSQL-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const userColumns = `id, username, email, address, password_hash, is_staff, is_active, date_joined`

func scanUser(row pgx.Row) (*api.User, error) {
	var u api.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Address, &u.PasswordHash, &u.Staff, &u.Active, &u.DateJoined)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, u *api.User) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, address, password_hash, is_staff, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, date_joined
	`, u.Username, u.Email, u.Address, u.PasswordHash, u.Staff, u.Active).Scan(&u.ID, &u.DateJoined)
	if err != nil {
		return mapError("inserting user", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*api.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("querying user", err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*api.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, mapError("querying user", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]*api.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []*api.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser overwrites a stored user.
func (s *Store) UpdateUser(ctx context.Context, u *api.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET username = $2, email = $3, address = $4, password_hash = $5, is_staff = $6, is_active = $7
		WHERE id = $1
	`, u.ID, u.Username, u.Email, u.Address, u.PasswordHash, u.Staff, u.Active)
	if err != nil {
		return mapError("updating user", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteUser removes a user; orders cascade in the schema.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "users", id)
}

const productColumns = `id, name, description, price_cents, stock, created_at, updated_at`

func scanProduct(row pgx.Row) (*api.Product, error) {
	var p api.Product
	var price int64
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Price = api.Money(price)
	return &p, nil
}

// CreateProduct inserts a product.
func (s *Store) CreateProduct(ctx context.Context, p *api.Product) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (name, description, price_cents, stock)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, p.Name, p.Description, int64(p.Price), p.Stock).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError("inserting product", err)
	}
	return nil
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(ctx context.Context, id int64) (*api.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("querying product", err)
	}
	return p, nil
}

// ListProducts returns all products ordered by ID.
func (s *Store) ListProducts(ctx context.Context) ([]*api.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	products := []*api.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProduct overwrites a stored product.
func (s *Store) UpdateProduct(ctx context.Context, p *api.Product) error {
	err := s.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $2, description = $3, price_cents = $4, stock = $5, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Description, int64(p.Price), p.Stock).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError("updating product", err)
	}
	return nil
}

// DeleteProduct removes a product. Referenced products are protected by
// the order_items foreign key.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "products", id)
}

// CreateOrder inserts an order and its items in one transaction.
func (s *Store) CreateOrder(ctx context.Context, o *api.Order) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (user_id, total_amount_cents, status)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at
		`, o.User, int64(o.TotalAmount), string(o.Status)).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return err
		}
		return insertItems(ctx, tx, o)
	})
	if err != nil {
		return mapError("inserting order", err)
	}
	debug.Log("storage", "order created", "order_id", o.ID, "items", len(o.Items))
	return nil
}

// GetOrder retrieves an order with its items.
func (s *Store) GetOrder(ctx context.Context, id int64) (*api.Order, error) {
	return s.getOrder(ctx, `WHERE id = $1`, id)
}

// GetOrderForUser retrieves an order only if userID owns it.
func (s *Store) GetOrderForUser(ctx context.Context, id, userID int64) (*api.Order, error) {
	return s.getOrder(ctx, `WHERE id = $1 AND user_id = $2`, id, userID)
}

func (s *Store) getOrder(ctx context.Context, where string, args ...any) (*api.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, args...))
	if err != nil {
		return nil, mapError("querying order", err)
	}

	items, err := s.itemsByOrder(ctx, `WHERE order_id = $1`, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = append(o.Items, items[o.ID]...)
	return o, nil
}

// ListOrders returns all orders ordered by ID, each with its items.
func (s *Store) ListOrders(ctx context.Context) ([]*api.Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	orders := []*api.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	items, err := s.itemsByOrder(ctx, ``)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Items = append(o.Items, items[o.ID]...)
	}
	return orders, nil
}

// UpdateOrder overwrites the order row and, when replaceItems is set,
// replaces its items in the same transaction.
func (s *Store) UpdateOrder(ctx context.Context, o *api.Order, replaceItems bool) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE orders
			SET user_id = $2, total_amount_cents = $3, status = $4, updated_at = now()
			WHERE id = $1
			RETURNING created_at, updated_at
		`, o.ID, o.User, int64(o.TotalAmount), string(o.Status)).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil || !replaceItems {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, o)
	})
	if err != nil {
		return mapError("updating order", err)
	}
	return nil
}

// DeleteOrder removes an order; items cascade in the schema.
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "orders", id)
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const orderColumns = `id, user_id, total_amount_cents, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*api.Order, error) {
	var o api.Order
	var total int64
	var status string
	if err := row.Scan(&o.ID, &o.User, &total, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.TotalAmount = api.Money(total)
	o.Status = api.OrderStatus(status)
	o.Items = []api.OrderItem{}
	return &o, nil
}

// itemsByOrder loads order items grouped by order ID, in insertion order.
func (s *Store) itemsByOrder(ctx context.Context, where string, args ...any) (map[int64][]api.OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price_cents
		FROM order_items `+where+`
		ORDER BY order_id, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	grouped := make(map[int64][]api.OrderItem)
	for rows.Next() {
		var it api.OrderItem
		var price int64
		if err := rows.Scan(&it.ID, &it.Order, &it.Product, &it.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		it.Price = api.Money(price)
		grouped[it.Order] = append(grouped[it.Order], it)
	}
	return grouped, rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, o *api.Order) error {
	for i := range o.Items {
		it := &o.Items[i]
		it.Order = o.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price_cents)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, o.ID, it.Product, it.Quantity, int64(it.Price)).Scan(&it.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// deleteByID removes one row from table. table is always a package constant.
func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return mapError("deleting from "+table, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// mapError translates missing rows and constraint violations into storage
// sentinels: 23505 (unique) and 23503 (foreign key) become ErrConflict.
func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503":
			return fmt.Errorf("%s: %w (%s)", op, storage.ErrConflict, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
