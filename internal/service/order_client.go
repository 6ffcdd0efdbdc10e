package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/pkg/httpclient"
)

// OrderClient talks to the marketplace backend's order endpoints.
type OrderClient struct {
	client *httpclient.Client
}

// NewOrderClient creates an order service client. getToken supplies the
// session bearer token per request.
func NewOrderClient(baseURL string, getToken func() string) *OrderClient {
	return &OrderClient{
		client: httpclient.New().
			WithBaseURL(baseURL).
			WithTimeout(15 * time.Second).
			WithTokenSource(getToken),
	}
}

// envelope is the backend's standard response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateOrderPayment records the payment for an order on the backend.
func (o *OrderClient) CreateOrderPayment(ctx context.Context, orderID int) (*OrderPaymentAck, error) {
	body := map[string]interface{}{
		"orderId": orderID,
	}

	resp, err := o.client.Post("/api/order-payments", body)
	if err != nil {
		return nil, fmt.Errorf("create order payment failed: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(resp, &env); err != nil {
		return nil, fmt.Errorf("create order payment parse error: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("create order payment rejected: %s", env.Message)
	}

	ack := &OrderPaymentAck{}
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, ack)
	}
	return ack, nil
}

// GetPaymentStatus queries the payment status for an order.
func (o *OrderClient) GetPaymentStatus(ctx context.Context, orderID int) (*PaymentStatus, error) {
	resp, err := o.client.Get("/api/order-payments/" + strconv.Itoa(orderID) + "/status")
	if err != nil {
		return nil, fmt.Errorf("get payment status failed: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(resp, &env); err != nil {
		return nil, fmt.Errorf("get payment status parse error: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("get payment status rejected: %s", env.Message)
	}

	status := &PaymentStatus{}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("get payment status: empty payload")
	}
	if err := json.Unmarshal(env.Data, status); err != nil {
		return nil, fmt.Errorf("get payment status parse error: %w", err)
	}
	return status, nil
}
