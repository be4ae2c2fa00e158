package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// GoTrueConfig configures a GoTrueClient.
type GoTrueConfig struct {
	BaseURL    string // backend project URL, e.g. https://xyz.supabase.co
	AnonKey    string // public API key sent with every request
	ServiceKey string // privileged key; required for account administration
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GoTrueClient talks to a GoTrue-compatible identity backend. It verifies
// bearer tokens remotely, resolves roles through the is_admin / is_user RPCs
// and, when a service key is configured, creates and deletes accounts.
type GoTrueClient struct {
	baseURL    string
	anonKey    string
	serviceKey string
	http       *http.Client
}

// NewGoTrueClient creates a client.
func NewGoTrueClient(cfg GoTrueConfig) (*GoTrueClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("identity backend URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid identity backend URL: %w", err)
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("identity backend anon key is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &GoTrueClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		http:       client,
	}, nil
}

// Privileged reports whether account administration is available.
func (c *GoTrueClient) Privileged() bool {
	return c.serviceKey != ""
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// APIError is a non-2xx response from the identity backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity backend returned %d: %s", e.Status, e.Body)
}

func (c *GoTrueClient) do(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", soundarchive.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", soundarchive.ErrUpstreamUnavailable, err)
	}
	return nil
}

// VerifyToken implements soundarchive.IdentityProvider.
func (c *GoTrueClient) VerifyToken(ctx context.Context, bearer string) (soundarchive.Principal, error) {
	var u gotrueUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", bearer, nil, &u); err != nil {
		return soundarchive.Principal{}, err
	}
	if u.ID == "" {
		return soundarchive.Principal{}, errors.New("identity backend returned no user id")
	}
	return soundarchive.Principal{ID: u.ID, Email: strings.ToLower(u.Email)}, nil
}

func (c *GoTrueClient) rpcBool(ctx context.Context, fn, uid string) (bool, error) {
	bearer := c.serviceKey
	if bearer == "" {
		bearer = c.anonKey
	}
	var ok bool
	if err := c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+fn, bearer, map[string]string{"uid": uid}, &ok); err != nil {
		return false, fmt.Errorf("rpc %s: %w", fn, err)
	}
	return ok, nil
}

// RoleOf implements soundarchive.RoleChecker with the is_admin and is_user RPCs.
func (c *GoTrueClient) RoleOf(ctx context.Context, principalID string) (soundarchive.Role, error) {
	isAdmin, err := c.rpcBool(ctx, "is_admin", principalID)
	if err != nil {
		return "", err
	}
	if isAdmin {
		return soundarchive.RoleAdmin, nil
	}
	isUser, err := c.rpcBool(ctx, "is_user", principalID)
	if err != nil {
		return "", err
	}
	if isUser {
		return soundarchive.RoleUser, nil
	}
	return "", soundarchive.ErrNotFound
}

// CreateAccount implements soundarchive.AccountProvider. Without a password
// the backend sends an invitation email.
func (c *GoTrueClient) CreateAccount(ctx context.Context, req soundarchive.NewAccount) (*soundarchive.Account, error) {
	if !c.Privileged() {
		return nil, soundarchive.ErrAdminUnavailable
	}
	meta := map[string]string{}
	if req.FullName != "" {
		meta["full_name"] = req.FullName
	}

	var u gotrueUser
	var err error
	if req.Password != "" {
		err = c.do(ctx, http.MethodPost, "/auth/v1/admin/users", c.serviceKey, map[string]interface{}{
			"email":         req.Email,
			"password":      req.Password,
			"email_confirm": true,
			"user_metadata": meta,
		}, &u)
	} else {
		err = c.do(ctx, http.MethodPost, "/auth/v1/invite", c.serviceKey, map[string]interface{}{
			"email": req.Email,
			"data":  meta,
		}, &u)
	}
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
			return nil, soundarchive.NewValidationError("email", apiErr.Body)
		}
		return nil, err
	}
	return &soundarchive.Account{ID: u.ID, Email: u.Email}, nil
}

// DeleteAccount implements soundarchive.AccountProvider.
func (c *GoTrueClient) DeleteAccount(ctx context.Context, id string) error {
	if !c.Privileged() {
		return soundarchive.ErrAdminUnavailable
	}
	err := c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(id), c.serviceKey, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return soundarchive.ErrNotFound
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, soundarchive.ErrNotFound)
}
