// Package sqlite provides an embedded SQLite implementation of
// storage.Store, for single-node deployments that need durability without
// running a database server. It uses the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/storage"
)

// Config holds SQLite settings.
type Config struct {
	// Path is the database file. It is created if missing.
	Path string
}

// Store is a SQLite-backed storage.Store.
type Store struct {
	db *sql.DB
	// SQLite allows one writer at a time.
	writeLock sync.Mutex
	now       func() time.Time
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New opens (or creates) the database at cfg.Path and applies migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")

	db, err := sql.Open("sqlite", "file:"+cfg.Path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) timestamp() (time.Time, int64) {
	t := s.now().UTC().Truncate(time.Microsecond)
	return t, t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

const userColumns = `id, username, email, address, password_hash, is_staff, is_active, date_joined`

func scanUser(row interface{ Scan(...any) error }) (*api.User, error) {
	var u api.User
	var joined int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Address, &u.PasswordHash, &u.Staff, &u.Active, &joined); err != nil {
		return nil, err
	}
	u.DateJoined = fromMicros(joined)
	return &u, nil
}

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, u *api.User) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	joined, micros := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, address, password_hash, is_staff, is_active, date_joined)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.Username, u.Email, u.Address, u.PasswordHash, u.Staff, u.Active, micros)
	if err != nil {
		return mapError("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	u.DateJoined = joined
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*api.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, mapError("query user", err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*api.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		return nil, mapError("query user", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]*api.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*api.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser overwrites a stored user.
func (s *Store) UpdateUser(ctx context.Context, u *api.User) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = ?, email = ?, address = ?, password_hash = ?, is_staff = ?, is_active = ?
		WHERE id = ?
	`, u.Username, u.Email, u.Address, u.PasswordHash, u.Staff, u.Active, u.ID)
	if err != nil {
		return mapError("update user", err)
	}
	return requireRow(res)
}

// DeleteUser removes a user; orders cascade in the schema.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "users", id)
}

const productColumns = `id, name, description, price_cents, stock, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*api.Product, error) {
	var p api.Product
	var price, created, updated int64
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &created, &updated); err != nil {
		return nil, err
	}
	p.Price = api.Money(price)
	p.CreatedAt = fromMicros(created)
	p.UpdatedAt = fromMicros(updated)
	return &p, nil
}

// CreateProduct inserts a product.
func (s *Store) CreateProduct(ctx context.Context, p *api.Product) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	now, micros := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO products (name, description, price_cents, stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, p.Description, int64(p.Price), p.Stock, micros, micros)
	if err != nil {
		return mapError("insert product", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(ctx context.Context, id int64) (*api.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		return nil, mapError("query product", err)
	}
	return p, nil
}

// ListProducts returns all products ordered by ID.
func (s *Store) ListProducts(ctx context.Context) ([]*api.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []*api.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProduct overwrites a stored product.
func (s *Store) UpdateProduct(ctx context.Context, p *api.Product) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	now, micros := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price_cents = ?, stock = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Description, int64(p.Price), p.Stock, micros, p.ID)
	if err != nil {
		return mapError("update product", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// DeleteProduct removes a product not referenced by any order item.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "products", id)
}

// CreateOrder inserts an order and its items in one transaction.
func (s *Store) CreateOrder(ctx context.Context, o *api.Order) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	now, micros := s.timestamp()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO orders (user_id, total_amount_cents, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, o.User, int64(o.TotalAmount), string(o.Status), micros, micros)
		if err != nil {
			return err
		}
		if o.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		return insertItems(ctx, tx, o)
	})
	if err != nil {
		return mapError("insert order", err)
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// GetOrder retrieves an order with its items.
func (s *Store) GetOrder(ctx context.Context, id int64) (*api.Order, error) {
	return s.getOrder(ctx, `WHERE id = ?`, id)
}

// GetOrderForUser retrieves an order only if userID owns it.
func (s *Store) GetOrderForUser(ctx context.Context, id, userID int64) (*api.Order, error) {
	return s.getOrder(ctx, `WHERE id = ? AND user_id = ?`, id, userID)
}

func (s *Store) getOrder(ctx context.Context, where string, args ...any) (*api.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders `+where, args...))
	if err != nil {
		return nil, mapError("query order", err)
	}
	items, err := s.itemsByOrder(ctx, `WHERE order_id = ?`, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = append(o.Items, items[o.ID]...)
	return o, nil
}

// ListOrders returns all orders ordered by ID, each with its items.
func (s *Store) ListOrders(ctx context.Context) ([]*api.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []*api.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
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

// UpdateOrder overwrites the order row and replaces its items when
// replaceItems is set.
func (s *Store) UpdateOrder(ctx context.Context, o *api.Order, replaceItems bool) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	now, micros := s.timestamp()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders SET user_id = ?, total_amount_cents = ?, status = ?, updated_at = ?
			WHERE id = ?
		`, o.User, int64(o.TotalAmount), string(o.Status), micros, o.ID)
		if err != nil {
			return err
		}
		if err := requireRow(res); err != nil || !replaceItems {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, o.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, o)
	})
	if err != nil {
		return mapError("update order", err)
	}
	o.UpdatedAt = now
	return nil
}

// DeleteOrder removes an order; items cascade in the schema.
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "orders", id)
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const orderColumns = `id, user_id, total_amount_cents, status, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*api.Order, error) {
	var o api.Order
	var total, created, updated int64
	var status string
	if err := row.Scan(&o.ID, &o.User, &total, &status, &created, &updated); err != nil {
		return nil, err
	}
	o.TotalAmount = api.Money(total)
	o.Status = api.OrderStatus(status)
	o.CreatedAt = fromMicros(created)
	o.UpdatedAt = fromMicros(updated)
	o.Items = []api.OrderItem{}
	return &o, nil
}

func (s *Store) itemsByOrder(ctx context.Context, where string, args ...any) (map[int64][]api.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price_cents
		FROM order_items `+where+`
		ORDER BY order_id, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	grouped := make(map[int64][]api.OrderItem)
	for rows.Next() {
		var it api.OrderItem
		var price int64
		if err := rows.Scan(&it.ID, &it.Order, &it.Product, &it.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.Price = api.Money(price)
		grouped[it.Order] = append(grouped[it.Order], it)
	}
	return grouped, rows.Err()
}

func insertItems(ctx context.Context, tx *sql.Tx, o *api.Order) error {
	for i := range o.Items {
		it := &o.Items[i]
		it.Order = o.ID
		res, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price_cents)
			VALUES (?, ?, ?, ?)
		`, o.ID, it.Product, it.Quantity, int64(it.Price))
		if err != nil {
			return err
		}
		if it.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteByID removes one row from table. table is always a package constant.
func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return mapError("delete from "+table, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// mapError translates missing rows and constraint violations into storage sentinels.
func mapError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, storage.ErrNotFound) {
		return storage.ErrNotFound
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// ON DELETE RESTRICT surfaces as SQLITE_CONSTRAINT_TRIGGER, so
		// match on the primary result code.
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return errors.Join(storage.ErrConflict, fmt.Errorf("%s: %w", op, err))
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
