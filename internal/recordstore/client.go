package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ateli/materialflow/internal/domain"
)

// Client reaches the record store over HTTP. It is the engine's only
// networked dependency and satisfies the engine's RecordStore interface.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL,
		client:  client,
	}
}

func (c *Client) ListOrders(ctx context.Context, projectID string) ([]domain.Order, error) {
	u := fmt.Sprintf("%s/projects/%s/orders", c.baseURL, url.PathEscape(projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("record store returned status %d for project %s", resp.StatusCode, projectID)
	}

	var orders []domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

func (c *Client) UpsertOrder(ctx context.Context, order *domain.Order, attributionName string) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	u := fmt.Sprintf("%s/orders/%s", c.baseURL, url.PathEscape(order.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if attributionName != "" {
		req.Header.Set(AttributionHeader, attributionName)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("record store returned status %d for order %s: %s", resp.StatusCode, order.ID, body)
	}
	return nil
}
