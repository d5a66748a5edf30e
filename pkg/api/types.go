package api

import "time"

// User is an account record. Only id, username, email and address are
// serialized; credentials and privilege flags stay server-side.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Address  string `json:"address"`

	PasswordHash string    `json:"-"`
	Staff        bool      `json:"-"`
	Active       bool      `json:"-"`
	DateJoined   time.Time `json:"-"`
}

// Product is a catalog entry.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       Money     `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is owned by exactly one user and is composed of an ordered
// collection of items.
type Order struct {
	ID          int64       `json:"id"`
	User        int64       `json:"user"`
	TotalAmount Money       `json:"total_amount"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Items       []OrderItem `json:"items"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID       int64 `json:"id"`
	Order    int64 `json:"order"`
	Product  int64 `json:"product"`
	Quantity int   `json:"quantity"`
	Price    Money `json:"price"`
}

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

// LoginRequest is the body of POST /users/login and POST /token/.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /token/refresh/.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// CredentialsErrorResponse is the body returned by the login endpoint on a
// failed attempt.
type CredentialsErrorResponse struct {
	Error string `json:"error"`
}

// AccessTokenResponse carries a single access token.
type AccessTokenResponse struct {
	Access string `json:"access"`
}

// TokenPair carries an access token and the refresh token that can renew it.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// UserInput is the body of the user write endpoints. Nil fields are absent
// from the request; PATCH applies only the present ones.
type UserInput struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Address  *string `json:"address"`
	Password *string `json:"password"`
}

// ProductInput is the body of the product write endpoints.
type ProductInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *Money  `json:"price"`
	Stock       *int    `json:"stock"`
}

// OrderInput is the body of the order write endpoints. User is accepted for
// compatibility but never trusted: the owner comes from the caller.
type OrderInput struct {
	User        *int64            `json:"user"`
	TotalAmount *Money            `json:"total_amount"`
	Status      *OrderStatus      `json:"status"`
	Items       *[]OrderItemInput `json:"items"`
}

// OrderItemInput is one line of an OrderInput.
type OrderItemInput struct {
	Product  int64 `json:"product"`
	Quantity int   `json:"quantity"`
	Price    Money `json:"price"`
}
