package sengled

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/unixpickle/essentials"
	"golang.org/x/oauth2"
)

const (
	loginPath   = "/oauth2/login"
	devicesPath = "/api/v1/devices"
)

var errMissingToken = errors.New("login response has no access_token")

// Client talks to the Sengled cloud API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, creds Credentials) (token string, err error) {
	defer essentials.AddCtxTo("POST "+loginPath, &err)

	body, err := json.Marshal(map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(c.httpClient, req, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", errMissingToken
	}
	return resp.AccessToken, nil
}

// Devices lists the devices visible to the session token, in server order.
func (c *Client) Devices(ctx context.Context, token string) (devices []Device, err error) {
	defer essentials.AddCtxTo("GET "+devicesPath, &err)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	authed.Timeout = c.httpClient.Timeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+devicesPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var resp struct {
		Devices []Device `json:"devices"`
	}
	if err := c.do(authed, req, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

func (c *Client) do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
