// Package auth obtains bearer credentials from the Expense API. Token
// storage stays out of scope: the gateway reads its token from config and
// cmd/fido-login prints a fresh one for the operator to export.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fido/internal/ledger"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Client struct {
	base string
	hc   *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("missing expense api base url")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{base: baseURL, hc: &http.Client{Timeout: timeout}}, nil
}

// Login exchanges credentials for a bearer token. A 401 carries the server's
// rejection message, not ErrUnauthenticated: there is no session to redirect.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return LoginResult{}, errors.New("email and password are required")
	}

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return LoginResult{}, fmt.Errorf("encode login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/users/login", bytes.NewReader(body))
	if err != nil {
		return LoginResult{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &payload)
		return LoginResult{}, &ledger.APIError{StatusCode: resp.StatusCode, Message: payload.Message}
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return LoginResult{}, fmt.Errorf("decode login response: %w", err)
	}
	if result.Token == "" {
		return LoginResult{}, errors.New("login response missing token")
	}
	return result, nil
}
