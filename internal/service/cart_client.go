package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/pkg/httpclient"
)

// CartClient talks to the marketplace backend's cart endpoints.
type CartClient struct {
	client *httpclient.Client
}

// NewCartClient creates a cart service client.
func NewCartClient(baseURL string, getToken func() string) *CartClient {
	return &CartClient{
		client: httpclient.New().
			WithBaseURL(baseURL).
			WithTimeout(15 * time.Second).
			WithTokenSource(getToken),
	}
}

// ClearCart empties the user's cart.
func (c *CartClient) ClearCart(ctx context.Context) error {
	resp, err := c.client.Delete("/api/cart")
	if err != nil {
		return fmt.Errorf("clear cart failed: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(resp, &env); err != nil {
		return fmt.Errorf("clear cart parse error: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("clear cart rejected: %s", env.Message)
	}
	return nil
}
