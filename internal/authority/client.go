// Package authority is the client for the remote uptime authority service.
// All calls go through an authenticated transport that injects the current
// credential and detects session expiry.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"upwatch/internal/models"
	"upwatch/internal/session"
)

const (
	loginPath    = "/v1/auth/login"
	registerPath = "/v1/auth/register"
	whoAmIPath   = "/v1/auth/me"
	logoutPath   = "/v1/auth/logout"

	requestTimeout = 10 * time.Second
)

var (
	// ErrUnauthorized is returned when the authority rejects the credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned when a login attempt is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Client talks to the remote authority over its REST API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates an authority client whose requests carry the credential held
// by sessions.
func New(baseURL string, sessions *session.Controller) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Transport: &authTransport{base: transport, sessions: sessions},
			Timeout:   requestTimeout,
		},
	}
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login exchanges operator credentials for a token. A 401 here means the
// credentials are wrong; it never touches an existing session.
func (c *Client) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := c.post(ctx, loginPath, body)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", nil, ErrInvalidCredentials
	default:
		return "", nil, fmt.Errorf("login failed: authority returned %d", resp.StatusCode)
	}

	var decoded loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if decoded.Token == "" {
		return "", nil, errors.New("authority returned an empty token")
	}
	return decoded.Token, decoded.User, nil
}

// WhoAmI validates the current credential and returns the operator identity.
func (c *Client) WhoAmI(ctx context.Context) (*models.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+whoAmIPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whoami request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("whoami failed: authority returned %d", resp.StatusCode)
	}

	var user models.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode whoami response: %w", err)
	}
	return &user, nil
}

// Logout invalidates the credential on the authority side. Best-effort: the
// local session is cleared regardless of the result.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.post(ctx, logoutPath, nil)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("logout failed: authority returned %d", resp.StatusCode)
	}
	return nil
}

// ReportStatus informs the authority of a target's new health state.
func (c *Client) ReportStatus(ctx context.Context, targetID string, status models.Status, responseTimeMS int64) error {
	body := map[string]any{
		"status":           string(status),
		"response_time_ms": responseTimeMS,
	}
	resp, err := c.post(ctx, fmt.Sprintf("/v1/targets/%s/status", targetID), body)
	if err != nil {
		return fmt.Errorf("report status request failed: %w", err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		return fmt.Errorf("report status failed: authority returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}
