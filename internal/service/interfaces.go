package service

import "context"

// OrderPaymentAck is the backend's acknowledgement of a recorded payment.
type OrderPaymentAck struct {
	Message string `json:"message"`
}

// PaymentStatus is the backend's view of a payment, used by the status poller
// and the reconciliation sweep.
type PaymentStatus struct {
	IsSuccess         bool   `json:"isSuccess"`
	IsPending         bool   `json:"isPending"`
	VnpayResponseCode string `json:"vnpayResponseCode"`
	TransactionID     string `json:"transactionId"`
	Amount            int64  `json:"amount"`
	PayDate           string `json:"payDate"`
}

// OrderService exposes the backend order endpoints the payment flow consumes.
type OrderService interface {
	// CreateOrderPayment persists "this order was paid" on the backend.
	CreateOrderPayment(ctx context.Context, orderID int) (*OrderPaymentAck, error)

	// GetPaymentStatus queries the backend payment status for an order.
	GetPaymentStatus(ctx context.Context, orderID int) (*PaymentStatus, error)
}

// CartService clears the local cart after a successful payment. Fire and
// forget from the payment flow's perspective.
type CartService interface {
	ClearCart(ctx context.Context) error
}
