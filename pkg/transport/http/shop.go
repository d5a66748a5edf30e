package http

import (
	"net/http"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/transport"
)

func (a *Adapter) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.shop.ListProducts(r.Context(), identity(r))
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, products)
}

func (a *Adapter) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := a.shop.GetProduct(r.Context(), identity(r), productID)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, p)
}

func (a *Adapter) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in api.ProductInput
	if !a.decode(w, r, &in) {
		return
	}
	p, err := a.shop.CreateProduct(r.Context(), identity(r), &in)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, p)
}

func (a *Adapter) handleUpdateProduct(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, ok := pathID(w, r)
		if !ok {
			return
		}
		var in api.ProductInput
		if !a.decode(w, r, &in) {
			return
		}
		p, err := a.shop.UpdateProduct(r.Context(), identity(r), productID, &in, partial)
		if err != nil {
			transport.WriteError(w, r, err)
			return
		}
		transport.WriteJSON(w, http.StatusOK, p)
	}
}

func (a *Adapter) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.shop.DeleteProduct(r.Context(), identity(r), productID); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Adapter) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.shop.ListOrders(r.Context(), identity(r))
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, orders)
}

func (a *Adapter) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := a.shop.GetOrder(r.Context(), identity(r), orderID)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, o)
}

// handleViewOrder handles GET /orders/{id}/view_order. Orders owned by
// someone else are reported as missing.
func (a *Adapter) handleViewOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := a.shop.ViewOrder(r.Context(), identity(r), orderID)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, o)
}

func (a *Adapter) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in api.OrderInput
	if !a.decode(w, r, &in) {
		return
	}
	o, err := a.shop.CreateOrder(r.Context(), identity(r), &in)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, o)
}

func (a *Adapter) handleUpdateOrder(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := pathID(w, r)
		if !ok {
			return
		}
		var in api.OrderInput
		if !a.decode(w, r, &in) {
			return
		}
		o, err := a.shop.UpdateOrder(r.Context(), identity(r), orderID, &in, partial)
		if err != nil {
			transport.WriteError(w, r, err)
			return
		}
		transport.WriteJSON(w, http.StatusOK, o)
	}
}

func (a *Adapter) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.shop.DeleteOrder(r.Context(), identity(r), orderID); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
