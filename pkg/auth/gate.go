package auth

import (
	"net/http"

	"github.com/rhuss/storefront/pkg/debug"
	"github.com/rhuss/storefront/pkg/observability"
)

// Operation is the kind of access a request performs on a resource.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// IsSafe reports whether the operation leaves stored state unchanged.
func (op Operation) IsSafe() bool {
	return op == OpRead
}

// ResourceKind names the resource collection being accessed.
type ResourceKind string

const (
	KindProduct ResourceKind = "product"
	KindOrder   ResourceKind = "order"
	KindUser    ResourceKind = "user"
)

// OperationForMethod maps an HTTP method to an Operation. GET, HEAD and
// OPTIONS are reads; POST creates; PUT and PATCH update; DELETE deletes.
// Any other method is treated as an update so it never slips through as a read.
func OperationForMethod(method string) Operation {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return OpRead
	case http.MethodPost:
		return OpCreate
	case http.MethodDelete:
		return OpDelete
	default:
		return OpUpdate
	}
}

// Allow decides whether id may perform op on kind.
//
// Reads are open to everyone. Users may be written by any authenticated
// caller. Products, orders and unknown kinds are written by staff only.
func Allow(id Identity, op Operation, kind ResourceKind) bool {
	return decide(id, op, kind) == nil
}

// Authorize is Allow with a typed reason: ErrUnauthenticated when the
// caller must log in first, ErrForbidden when logging in would not help.
func Authorize(id Identity, op Operation, kind ResourceKind) error {
	err := decide(id, op, kind)
	if err != nil {
		observability.AuthzDeniedTotal.WithLabelValues(string(op), string(kind)).Inc()
		debug.Log("auth", "authorization denied",
			"subject", id.Subject(),
			"operation", op,
			"resource", kind,
			"reason", err,
		)
	}
	return err
}

func decide(id Identity, op Operation, kind ResourceKind) error {
	if op.IsSafe() {
		return nil
	}
	if kind == KindUser {
		if id.IsAnonymous() {
			return ErrUnauthenticated
		}
		return nil
	}
	if !id.Staff {
		return ErrForbidden
	}
	return nil
}
