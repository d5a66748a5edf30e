package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/debug"
	"github.com/rhuss/storefront/pkg/observability"
	"github.com/rhuss/storefront/pkg/transport"
)

// AccountService is the user-facing side of the account package.
type AccountService interface {
	Register(ctx context.Context, req *api.RegisterRequest) (*api.User, error)
	Login(ctx context.Context, req *api.LoginRequest) (string, error)
	ObtainPair(ctx context.Context, req *api.LoginRequest) (*api.TokenPair, error)
	Refresh(ctx context.Context, refresh string) (string, error)

	ListUsers(ctx context.Context, id auth.Identity) ([]*api.User, error)
	GetUser(ctx context.Context, id auth.Identity, userID int64) (*api.User, error)
	CreateUser(ctx context.Context, id auth.Identity, in *api.UserInput) (*api.User, error)
	UpdateUser(ctx context.Context, id auth.Identity, userID int64, in *api.UserInput, partial bool) (*api.User, error)
	DeleteUser(ctx context.Context, id auth.Identity, userID int64) error
}

// ShopService is the catalog and order side of the shop package.
type ShopService interface {
	ListProducts(ctx context.Context, id auth.Identity) ([]*api.Product, error)
	GetProduct(ctx context.Context, id auth.Identity, productID int64) (*api.Product, error)
	CreateProduct(ctx context.Context, id auth.Identity, in *api.ProductInput) (*api.Product, error)
	UpdateProduct(ctx context.Context, id auth.Identity, productID int64, in *api.ProductInput, partial bool) (*api.Product, error)
	DeleteProduct(ctx context.Context, id auth.Identity, productID int64) error

	ListOrders(ctx context.Context, id auth.Identity) ([]*api.Order, error)
	GetOrder(ctx context.Context, id auth.Identity, orderID int64) (*api.Order, error)
	ViewOrder(ctx context.Context, id auth.Identity, orderID int64) (*api.Order, error)
	CreateOrder(ctx context.Context, id auth.Identity, in *api.OrderInput) (*api.Order, error)
	UpdateOrder(ctx context.Context, id auth.Identity, orderID int64, in *api.OrderInput, partial bool) (*api.Order, error)
	DeleteOrder(ctx context.Context, id auth.Identity, orderID int64) error
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Adapter serves the storefront API over HTTP.
// It routes requests to the account and shop services and serializes
// their results.
type Adapter struct {
	accounts AccountService
	shop     ShopService
	health   HealthChecker
	authMW   transport.Middleware
	metrics  http.Handler
	router   chi.Router
	config   Config
	logger   *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	BasePath          string
	MaxBodySize       int64
	MetricsPath       string
	TrustProxyHeaders bool
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
		MetricsPath: "/metrics",
	}
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithAuthMiddleware installs the authentication middleware. Without it
// every caller is anonymous.
func WithAuthMiddleware(mw transport.Middleware) AdapterOption {
	return func(a *Adapter) { a.authMW = mw }
}

// WithHealthChecker makes /readyz probe the given store.
func WithHealthChecker(hc HealthChecker) AdapterOption {
	return func(a *Adapter) { a.health = hc }
}

// WithMetricsHandler serves h at Config.MetricsPath.
func WithMetricsHandler(h http.Handler) AdapterOption {
	return func(a *Adapter) { a.metrics = h }
}

// WithAdapterLogger sets the logger used for request logging.
func WithAdapterLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter creates an HTTP adapter for the given services.
func NewAdapter(accounts AccountService, shop ShopService, cfg Config, opts ...AdapterOption) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = DefaultConfig().MetricsPath
	}
	cfg.BasePath = strings.TrimSuffix(cfg.BasePath, "/")

	a := &Adapter{
		accounts: accounts,
		shop:     shop,
		config:   cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.router = a.routes()
	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.router
}

func (a *Adapter) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(
		transport.RequestID(),
		transport.Logging(a.logger),
		transport.Recovery(a.logger),
	)
	if a.config.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(
		middleware.StripSlashes,
		middleware.GetHead,
		observability.MetricsMiddleware,
	)
	if a.authMW != nil {
		r.Use(a.authMW)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteAPIError(w, api.NewNotFoundError("no route for "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("method", fmt.Sprintf("method %s not allowed", r.Method)),
			http.StatusMethodNotAllowed,
		)
	})

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	if a.metrics != nil {
		r.Handle(a.config.MetricsPath, a.metrics)
	}

	if a.config.BasePath == "" {
		a.mountAPI(r)
	} else {
		r.Route(a.config.BasePath, a.mountAPI)
	}
	return r
}

func (a *Adapter) mountAPI(r chi.Router) {
	r.Post("/users/register", a.handleRegister)
	r.Post("/users/login", a.handleLogin)
	r.Post("/token", a.handleObtainPair)
	r.Post("/token/refresh", a.handleRefresh)

	r.Route("/users", func(r chi.Router) {
		r.Use(gate(auth.KindUser))
		r.Get("/", a.handleListUsers)
		r.Post("/", a.handleCreateUser)
		r.Options("/", allow(http.MethodGet, http.MethodPost))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.handleGetUser)
			r.Put("/", a.handleUpdateUser(false))
			r.Patch("/", a.handleUpdateUser(true))
			r.Delete("/", a.handleDeleteUser)
			r.Options("/", allow(http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete))
		})
	})

	r.Route("/products", func(r chi.Router) {
		r.Use(gate(auth.KindProduct))
		r.Get("/", a.handleListProducts)
		r.Post("/", a.handleCreateProduct)
		r.Options("/", allow(http.MethodGet, http.MethodPost))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.handleGetProduct)
			r.Put("/", a.handleUpdateProduct(false))
			r.Patch("/", a.handleUpdateProduct(true))
			r.Delete("/", a.handleDeleteProduct)
			r.Options("/", allow(http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete))
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(gate(auth.KindOrder))
		r.Get("/", a.handleListOrders)
		r.Post("/", a.handleCreateOrder)
		r.Options("/", allow(http.MethodGet, http.MethodPost))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.handleGetOrder)
			r.Put("/", a.handleUpdateOrder(false))
			r.Patch("/", a.handleUpdateOrder(true))
			r.Delete("/", a.handleDeleteOrder)
			r.Options("/", allow(http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete))
			r.Get("/view_order", a.handleViewOrder)
		})
	})
}

// gate rejects requests the caller may not perform on kind before any
// path or body parsing happens.
func gate(kind auth.ResourceKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.Authorize(identity(r), auth.OperationForMethod(r.Method), kind); err != nil {
				transport.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allow answers an OPTIONS request with the methods a route supports.
func allow(methods ...string) http.HandlerFunc {
	value := strings.Join(append(methods, http.MethodHead, http.MethodOptions), ", ")
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", value)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.health.HealthCheck(ctx); err != nil {
			a.logger.Warn("readiness check failed", "error", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

// decode reads a JSON request body into dst. It writes the error response
// itself and reports whether the handler should continue.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		debug.Log("transport", "request body rejected", "path", r.URL.Path, "error", err)
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
		case errors.Is(err, io.EOF):
			transport.WriteAPIError(w, api.NewInvalidRequestError("body", "request body is required"))
		default:
			transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		}
		return false
	}
	return true
}

// pathID parses the {id} route parameter. A malformed id names no record,
// so it is answered with 404.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		transport.WriteAPIError(w, api.NewNotFoundError("no record with id "+strconv.Quote(raw)))
		return 0, false
	}
	return id, true
}

func identity(r *http.Request) auth.Identity {
	return auth.IdentityFromContext(r.Context())
}
