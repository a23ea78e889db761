package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ccugym/gymdash/internal/metrics"
)

// Client talks to the gym backend REST API
type Client struct {
	baseURL string
	client  *http.Client
	metrics *metrics.Metrics
}

// NewClient creates a new backend client. m may be nil.
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		metrics: m,
	}
}

// BaseURL returns the backend root the client was created with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ValidateToken asks the backend whether token is still valid
func (c *Client) ValidateToken(ctx context.Context, token string) (TokenInfo, error) {
	var info TokenInfo
	err := c.doJSON(ctx, "validate-token", http.MethodPost, "/api/validate-token", "", tokenRequest{Token: token}, &info)
	return info, err
}

// GymCount returns the current occupancy
func (c *Client) GymCount(ctx context.Context) (Occupancy, error) {
	var occ Occupancy
	err := c.doJSON(ctx, "gym-count", http.MethodGet, "/api/gym-count", "", nil, &occ)
	return occ, err
}

// Equipment lists all equipment. adminToken is optional; the public listing
// needs none.
func (c *Client) Equipment(ctx context.Context, adminToken string) ([]EquipmentRecord, error) {
	var items []EquipmentRecord
	if err := c.doJSON(ctx, "equipment", http.MethodGet, "/api/equipment", adminToken, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []EquipmentRecord{}
	}
	return items, nil
}

// UpdateEquipment pushes one record's counts
func (c *Client) UpdateEquipment(ctx context.Context, adminToken string, item EquipmentRecord) error {
	body := updateRequest{Name: item.Name, Total: item.Total, Available: item.Available}
	return c.doJSON(ctx, "equipment-update", http.MethodPut, "/api/equipment/update", adminToken, body, nil)
}

// GymFloor fetches the encoded gym floor image at the given resolution
func (c *Client) GymFloor(ctx context.Context, width, height int) ([]byte, string, error) {
	q := url.Values{}
	q.Set("width", strconv.Itoa(width))
	q.Set("height", strconv.Itoa(height))

	resp, err := c.do(ctx, "gym-floor", http.MethodGet, "/api/gym-floor?"+q.Encode(), "", nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read image: %v", ErrNetwork, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// Suggestion asks the AI endpoint for a workout suggestion
func (c *Client) Suggestion(ctx context.Context, proToken, prompt string) (string, error) {
	var out suggestionResponse
	if err := c.doJSON(ctx, "ai-suggestions", http.MethodPost, "/api/ai-suggestions", proToken, suggestionRequest{Prompt: prompt}, &out); err != nil {
		return "", err
	}
	return out.Suggestion, nil
}

// AdminLogin exchanges the admin password for an admin token
func (c *Client) AdminLogin(ctx context.Context, password string) (string, error) {
	var out loginResponse
	if err := c.doJSON(ctx, "admin-login", http.MethodPost, "/api/admin/login", "", loginRequest{Password: password}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: login returned no token", ErrAuth)
	}
	return out.Token, nil
}

// RedeemPro exchanges a Pro code for a time-limited Pro token
func (c *Client) RedeemPro(ctx context.Context, code string) (string, error) {
	var out struct {
		upgradeResponse
		errorResponse
	}
	if err := c.doJSON(ctx, "pro-upgrade", http.MethodPost, "/api/pro/upgrade", "", upgradeRequest{Code: code}, &out); err != nil {
		return "", err
	}
	if !out.Success || out.Token == "" {
		return "", &StatusError{Status: http.StatusOK, Message: out.Error}
	}
	return out.Token, nil
}

func (c *Client) doJSON(ctx context.Context, endpoint, method, path, bearer string, body, out any) error {
	resp, err := c.do(ctx, endpoint, method, path, bearer, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrNetwork, endpoint, err)
	}
	return nil
}

// do sends the request and returns the response only for 2xx statuses; the
// caller closes the body.
func (c *Client) do(ctx context.Context, endpoint, method, path, bearer string, body any) (*http.Response, error) {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.ObserveBackend(endpoint, "network", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %s: %v", ErrNetwork, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var er errorResponse
		_ = json.Unmarshal(data, &er)
		c.metrics.ObserveBackend(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
		slog.Debug("backend refused request", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, &StatusError{Status: resp.StatusCode, Message: er.Error}
	}

	c.metrics.ObserveBackend(endpoint, "ok", time.Since(start).Seconds())
	return resp, nil
}
