package api

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

// Field limits shared by the validators.
const (
	MaxUsernameLength = 150
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
	MaxNameLength    = 255
	MaxOrderItems    = 100
)

// ValidateRegister checks a RegisterRequest. Username, password and email are
// all required.
func ValidateRegister(req *RegisterRequest) *APIError {
	if err := validateUsername(req.Username); err != nil {
		return err
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}
	if req.Email == "" {
		return NewInvalidRequestError("email", "email is required")
	}
	return validateEmail(req.Email)
}

// ValidateLogin checks that both credentials are present.
func ValidateLogin(req *LoginRequest) *APIError {
	if req.Username == "" {
		return NewInvalidRequestError("username", "username is required")
	}
	if req.Password == "" {
		return NewInvalidRequestError("password", "password is required")
	}
	return nil
}

// ValidateUserInput checks a user write. When partial is false (create, PUT)
// username and password are required.
func ValidateUserInput(in *UserInput, partial bool) *APIError {
	if in.Username != nil || !partial {
		if err := validateUsername(deref(in.Username)); err != nil {
			return err
		}
	}
	if in.Password != nil || !partial {
		if err := validatePassword(deref(in.Password)); err != nil {
			return err
		}
	}
	if in.Email != nil && *in.Email != "" {
		if err := validateEmail(*in.Email); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTo copies the present profile fields onto u. The password is not
// copied; callers hash it separately.
func (in *UserInput) ApplyTo(u *User) {
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Address != nil {
		u.Address = *in.Address
	}
}

// ValidateProductInput checks a product write. When partial is false, name
// and price are required.
func ValidateProductInput(in *ProductInput, partial bool) *APIError {
	if in.Name != nil || !partial {
		name := strings.TrimSpace(deref(in.Name))
		if name == "" {
			return NewInvalidRequestError("name", "name is required")
		}
		if len(name) > MaxNameLength {
			return NewInvalidRequestError("name",
				fmt.Sprintf("name must be at most %d characters", MaxNameLength))
		}
	}
	if in.Price == nil && !partial {
		return NewInvalidRequestError("price", "price is required")
	}
	if in.Price != nil && *in.Price < 0 {
		return NewInvalidRequestError("price", "price must not be negative")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return NewInvalidRequestError("stock", "stock must not be negative")
	}
	return nil
}

// ApplyTo copies the present fields onto p.
func (in *ProductInput) ApplyTo(p *Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
}

// ValidateOrderInput checks an order write. When partial is false,
// total_amount and items are required. Product existence is checked by the
// caller, which has access to the store.
func ValidateOrderInput(in *OrderInput, partial bool) *APIError {
	if in.TotalAmount == nil && !partial {
		return NewInvalidRequestError("total_amount", "total_amount is required")
	}
	if in.TotalAmount != nil && *in.TotalAmount < 0 {
		return NewInvalidRequestError("total_amount", "total_amount must not be negative")
	}
	if in.Status != nil && !in.Status.Valid() {
		return NewInvalidRequestError("status",
			fmt.Sprintf("status %q is not a valid choice", *in.Status))
	}
	if in.Items == nil {
		if !partial {
			return NewInvalidRequestError("items", "items is required")
		}
		return nil
	}
	if len(*in.Items) > MaxOrderItems {
		return NewInvalidRequestError("items",
			fmt.Sprintf("items exceeds maximum of %d", MaxOrderItems))
	}
	for i, item := range *in.Items {
		if item.Product <= 0 {
			return NewInvalidRequestError(fmt.Sprintf("items[%d].product", i), "product is required")
		}
		if item.Quantity < 1 {
			return NewInvalidRequestError(fmt.Sprintf("items[%d].quantity", i), "quantity must be at least 1")
		}
		if item.Price < 0 {
			return NewInvalidRequestError(fmt.Sprintf("items[%d].price", i), "price must not be negative")
		}
	}
	return nil
}

// ApplyTo copies the present fields onto o. The owner is never taken from
// the input. When items are present they replace the existing ones.
func (in *OrderInput) ApplyTo(o *Order) {
	if in.TotalAmount != nil {
		o.TotalAmount = *in.TotalAmount
	}
	if in.Status != nil {
		o.Status = *in.Status
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	if in.Items != nil {
		items := make([]OrderItem, 0, len(*in.Items))
		for _, it := range *in.Items {
			items = append(items, OrderItem{
				Order:    o.ID,
				Product:  it.Product,
				Quantity: it.Quantity,
				Price:    it.Price,
			})
		}
		o.Items = items
	}
}

func validateUsername(username string) *APIError {
	if username == "" {
		return NewInvalidRequestError("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return NewInvalidRequestError("username",
			fmt.Sprintf("username must be at most %d characters", MaxUsernameLength))
	}
	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return NewInvalidRequestError("username",
			"username may contain only letters, numbers, and @/./+/-/_ characters")
	}
	return nil
}

func validatePassword(password string) *APIError {
	if password == "" {
		return NewInvalidRequestError("password", "password is required")
	}
	if len(password) > MaxPasswordBytes {
		return NewInvalidRequestError("password",
			fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

func validateEmail(email string) *APIError {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return NewInvalidRequestError("email", "enter a valid email address")
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
