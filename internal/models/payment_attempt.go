package models

// Attempt status values.
const (
	AttemptStatusPending = "pending"
	AttemptStatusSuccess = "success"
	AttemptStatusFailed  = "failed"
	AttemptStatusExpired = "expired"
)

// Signal channel values recorded per attempt.
const (
	ChannelDeepLink = "deeplink"
	ChannelWebview  = "webview"
	ChannelPoll     = "poll"
	ChannelMirror   = "mirror"
)

// PaymentAttempt maps to the `payment_attempts` table. One row per payment
// attempt observed by the redirect bridge; the reconciliation sweep works off
// rows stuck in pending.
type PaymentAttempt struct {
	ID             uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AttemptID      string `gorm:"column:attempt_id;size:64;uniqueIndex" json:"attempt_id"`
	OrderID        string `gorm:"column:order_id;size:64;index" json:"order_id"`
	TransactionRef string `gorm:"column:transaction_ref;size:128" json:"transaction_ref"`
	ResponseCode   string `gorm:"column:response_code;size:8" json:"response_code"`
	// Amount in minor units as reported by the gateway.
	Amount      int64  `gorm:"column:amount" json:"amount"`
	Status      string `gorm:"column:status;size:16;index" json:"status"`
	Channel     string `gorm:"column:channel;size:16" json:"channel"`
	RawCallback string `gorm:"column:raw_callback;type:text" json:"raw_callback"`
	Message     string `gorm:"column:message;size:512" json:"message"`
	CreatedAt   int64  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   int64  `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentAttempt) TableName() string {
	return "payment_attempts"
}
