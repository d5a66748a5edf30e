package integration

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/rhuss/storefront/pkg/api"
)

func TestInvalidJSON(t *testing.T) {
	body := bytes.NewReader([]byte(`{invalid json`))
	resp, err := http.Post(
		testEnv.BaseURL()+"/users/register",
		"application/json",
		body,
	)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		body := readBody(t, resp)
		t.Errorf("expected 400, got %d: %s", resp.StatusCode, body)
	}

	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)

	if errResp.Error == nil {
		t.Fatal("error object is nil")
	}
	if errResp.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error.type = %q, want %q", errResp.Error.Type, api.ErrorTypeInvalidRequest)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/users/register", map[string]string{"username": "nopass"})
	expectStatus(t, resp, http.StatusBadRequest)

	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)
	if errResp.Error == nil || errResp.Error.Param != "password" {
		t.Errorf("error = %+v, want param %q", errResp.Error, "password")
	}
}

func TestProductNotFound(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/products/424242")
	expectStatus(t, resp, http.StatusNotFound)

	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)
	if errResp.Error == nil || errResp.Error.Type != api.ErrorTypeNotFound {
		t.Errorf("error = %+v, want type %q", errResp.Error, api.ErrorTypeNotFound)
	}
}

func TestDeleteNotFound(t *testing.T) {
	root := login(t, adminUser, adminPassword)
	resp := request(t, http.MethodDelete, testEnv.BaseURL()+"/orders/424242", root, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUnsupportedContentType(t *testing.T) {
	resp, err := http.Post(
		testEnv.BaseURL()+"/users/register",
		"text/plain",
		bytes.NewReader([]byte("hello")),
	)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", resp.StatusCode)
	}
}

func TestLoginErrorFormat(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/users/login", map[string]string{
		"username": "nobody",
		"password": "whatever",
	})
	expectStatus(t, resp, http.StatusBadRequest)

	var body map[string]any
	decodeJSON(t, resp, &body)
	if body["error"] != "Invalid credentials" {
		t.Errorf("body = %v, want {\"error\": \"Invalid credentials\"}", body)
	}
}

func TestErrorResponseFormat(t *testing.T) {
	resp := request(t, http.MethodPost, testEnv.BaseURL()+"/products", "", map[string]any{"name": "x", "price": "1.00"})
	expectStatus(t, resp, http.StatusForbidden)

	var raw map[string]map[string]any
	decodeJSON(t, resp, &raw)

	errObj, ok := raw["error"]
	if !ok {
		t.Fatal("response missing top-level 'error' key")
	}
	if errObj["type"] != string(api.ErrorTypePermissionDenied) {
		t.Errorf("error.type = %v, want %q", errObj["type"], api.ErrorTypePermissionDenied)
	}
	if _, ok := errObj["message"]; !ok {
		t.Error("error object missing 'message'")
	}
}
