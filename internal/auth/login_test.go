package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fido/internal/ledger"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/users/login" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["email"] != "ada@example.com" || creds["password"] != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": "tok-123",
			"user":  map[string]string{"id": "u1", "name": "Ada", "email": "ada@example.com"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.Login(context.Background(), "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token != "tok-123" || result.User.Name != "Ada" {
		t.Fatalf("result = %+v", result)
	}

	_, err = client.Login(context.Background(), "ada@example.com", "wrong")
	var apiErr *ledger.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "invalid credentials" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	client, err := NewClient("https://fido-api.example.com", 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Login(context.Background(), "", "pw"); err == nil {
		t.Fatalf("expected error for empty email")
	}
	if _, err := client.Login(context.Background(), "a@b.c", ""); err == nil {
		t.Fatalf("expected error for empty password")
	}
}
