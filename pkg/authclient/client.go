package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Skotchmaster/authtrust/pkg/tokens"
)

const DefaultTimeout = 3 * time.Second

var ErrUnexpectedStatus = errors.New("unexpected status from auth service")

type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
}

func NewClient(authServiceURL, clientID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(authServiceURL, "/"),
		clientID: clientID,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type ValidateRequest struct {
	AccessToken string `json:"access_token"`
	ClientID    string `json:"client_id"`
}

type ValidateResponse struct {
	Valid bool              `json:"valid"`
	User  *tokens.Principal `json:"user,omitempty"`
	Error tokens.Code       `json:"error,omitempty"`
}

type RefreshResponse struct {
	Tokens tokens.Pair `json:"tokens"`
}

// Validate asks the issuer whether accessToken is currently trusted.
// A definitive negative answer is a response with Valid false, not an error;
// errors are reserved for transport and protocol failures.
func (c *Client) Validate(ctx context.Context, accessToken string) (*ValidateResponse, error) {
	var out ValidateResponse
	status, err := c.postJSON(ctx, "/oauth/validate", ValidateRequest{
		AccessToken: accessToken,
		ClientID:    c.clientID,
	}, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
	if !out.Valid && out.Error == "" {
		out.Error = tokens.CodeTokenInvalid
	}
	return &out, nil
}

func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	var out RefreshResponse
	status, err := c.postJSON(ctx, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("refresh failed with status: %d", status)
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
