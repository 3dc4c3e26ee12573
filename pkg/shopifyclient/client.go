/**
 * @description
 * Read-only client for the Shopify Admin REST API. It is used by the product
 * listing endpoint and plays no part in ledger correctness.
 */
package shopifyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAPIVersion = "2023-10"
	maxErrorBodyBytes = 4096
)

var ErrMissingCredentials = errors.New("shopify store url and access token are required")

// UpstreamError is returned when Shopify answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("shopify api responded with %s", e.Status)
}

// Client is a client for the Shopify Admin API.
type Client struct {
	apiVersion string
	httpClient *http.Client
}

// NewClient creates a new Shopify Admin API client.
func NewClient(apiVersion string) *Client {
	apiVersion = strings.TrimSpace(apiVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ListProducts fetches the store's product listing and returns the raw JSON document.
func (c *Client) ListProducts(ctx context.Context, storeURL, accessToken string) (json.RawMessage, error) {
	storeURL = strings.TrimSpace(storeURL)
	accessToken = strings.TrimSpace(accessToken)
	if storeURL == "" || accessToken == "" {
		return nil, ErrMissingCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.productsURL(storeURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if !json.Valid(body) {
		return nil, errors.New("shopify api returned invalid json")
	}
	return json.RawMessage(body), nil
}

func (c *Client) productsURL(storeURL string) string {
	base := strings.TrimSuffix(storeURL, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/admin/api/%s/products.json", base, c.apiVersion)
}
