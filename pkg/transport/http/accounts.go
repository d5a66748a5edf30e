package http

import (
	"errors"
	"net/http"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/transport"
)

// handleRegister handles POST /users/register.
func (a *Adapter) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !a.decode(w, r, &req) {
		return
	}
	if _, err := a.accounts.Register(r.Context(), &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "User registered successfully"})
}

// handleLogin handles POST /users/login. Credential failures keep the
// flat {"error": "..."} body that existing clients parse.
func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !a.decode(w, r, &req) {
		return
	}
	access, err := a.accounts.Login(r.Context(), &req)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		transport.WriteJSON(w, http.StatusBadRequest, api.CredentialsErrorResponse{Error: "Invalid credentials"})
		return
	}
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.AccessTokenResponse{Access: access})
}

// handleObtainPair handles POST /token/.
func (a *Adapter) handleObtainPair(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !a.decode(w, r, &req) {
		return
	}
	pair, err := a.accounts.ObtainPair(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, pair)
}

// handleRefresh handles POST /token/refresh/.
func (a *Adapter) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if !a.decode(w, r, &req) {
		return
	}
	access, err := a.accounts.Refresh(r.Context(), req.Refresh)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.AccessTokenResponse{Access: access})
}

func (a *Adapter) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.accounts.ListUsers(r.Context(), identity(r))
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, users)
}

func (a *Adapter) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := a.accounts.GetUser(r.Context(), identity(r), userID)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, u)
}

func (a *Adapter) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in api.UserInput
	if !a.decode(w, r, &in) {
		return
	}
	u, err := a.accounts.CreateUser(r.Context(), identity(r), &in)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, u)
}

func (a *Adapter) handleUpdateUser(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r)
		if !ok {
			return
		}
		var in api.UserInput
		if !a.decode(w, r, &in) {
			return
		}
		u, err := a.accounts.UpdateUser(r.Context(), identity(r), userID, &in, partial)
		if err != nil {
			transport.WriteError(w, r, err)
			return
		}
		transport.WriteJSON(w, http.StatusOK, u)
	}
}

func (a *Adapter) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.accounts.DeleteUser(r.Context(), identity(r), userID); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
