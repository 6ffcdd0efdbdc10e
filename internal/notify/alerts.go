package notify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/pkg/telegram"
)

// OpsNotifier pushes reconciliation alerts to a Telegram channel. A
// finalization failure means money may have moved without the order being
// marked paid, which support needs to see immediately.
type OpsNotifier struct {
	bot    *telegram.BotAPI
	chatID string
	logger *zap.Logger
}

// New creates an ops notifier. Returns nil when no chat is configured so
// callers can pass it straight through as an optional dependency.
func New(token, chatID string, logger *zap.Logger) *OpsNotifier {
	if token == "" || chatID == "" {
		return nil
	}
	return &OpsNotifier{
		bot:    telegram.NewBotAPI(token),
		chatID: chatID,
		logger: logger,
	}
}

// AlertFinalizationFailure reports an order whose gateway payment succeeded
// but whose backend finalization failed.
func (n *OpsNotifier) AlertFinalizationFailure(orderID string, err error) {
	text := fmt.Sprintf(
		"⚠️ <b>Payment finalization failed</b>\nOrder: %s\nError: %v\nGateway reported success; order is NOT marked paid.",
		orderID, err,
	)
	if _, sendErr := n.bot.SendMessage(n.chatID, text); sendErr != nil {
		n.logger.Error("failed to send finalization alert", zap.Error(sendErr))
	}
}
