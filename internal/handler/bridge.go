package handler

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/flow"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/models"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/pkg/utils"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/repository"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/vnpay"
)

// BridgeHandler serves the web-redirect mirror: the gateway return URL used
// when the app's custom scheme did not fire. It journals the attempt, mirrors
// the IPN, drives the shared finalization gateway and renders a result page.
type BridgeHandler struct {
	attempts  *repository.AttemptRepository
	finalizer *flow.Finalizer
	logger    *zap.Logger
}

// NewBridgeHandler creates the redirect-mirror handler.
func NewBridgeHandler(attempts *repository.AttemptRepository, finalizer *flow.Finalizer, logger *zap.Logger) *BridgeHandler {
	return &BridgeHandler{
		attempts:  attempts,
		finalizer: finalizer,
		logger:    logger,
	}
}

// VNPayReturn handles the gateway's browser redirect back from the hosted
// payment page.
func (h *BridgeHandler) VNPayReturn(c echo.Context) error {
	cb := vnpay.ParseCallback(c.Request().RequestURI, c.QueryParam("orderId"))
	if cb == nil {
		return h.renderResult(c, "Payment error", "The gateway response could not be read.", "", 0)
	}

	orderID := cb.TransactionRef
	amount := cb.MajorAmount()

	attempt := &models.PaymentAttempt{
		AttemptID:      utils.GenerateAttemptID(),
		OrderID:        orderID,
		TransactionRef: cb.TransactionRef,
		ResponseCode:   cb.ResponseCode,
		Amount:         cb.Amount,
		Channel:        models.ChannelMirror,
		Status:         models.AttemptStatusPending,
		RawCallback:    encodeParams(cb.RawParams),
	}

	if !cb.Succeeded() {
		attempt.Status = models.AttemptStatusFailed
		attempt.Message = vnpay.Translate(cb.ResponseCode)
		if err := h.attempts.Create(attempt); err != nil {
			h.logger.Error("failed to journal declined attempt", zap.Error(err))
		}
		h.finalizer.MirrorIPN(cb.RawParams)
		return h.renderResult(c, "Payment failed", attempt.Message, orderID, amount)
	}

	if err := h.attempts.Create(attempt); err != nil {
		h.logger.Error("failed to journal attempt", zap.Error(err))
	}
	h.finalizer.MirrorIPN(cb.RawParams)

	outcome, err := h.finalizer.Finalize(c.Request().Context(), orderID, cb.RawParams)
	if err != nil {
		h.logger.Error("bridge finalization failed",
			zap.String("order_id", orderID), zap.Error(err))
		// Leave the attempt pending; the reconciliation sweep retries it.
		return h.renderResult(c, "Payment received",
			"Your payment was received and is being confirmed. If the order does not update, contact support with order "+orderID+".",
			orderID, amount)
	}

	message := "Thank you, your payment is complete!"
	if outcome.AlreadyRecorded {
		message = "This payment was already recorded."
	}
	if err := h.attempts.UpdateStatus(attempt.AttemptID, models.AttemptStatusSuccess, message); err != nil {
		h.logger.Error("failed to update attempt status", zap.Error(err))
	}

	return h.renderResult(c, "Payment successful", message, orderID, amount)
}

// AttemptStatus returns the latest journaled attempt for an order. The app
// polls this when it reopens without having seen a deep link.
func (h *BridgeHandler) AttemptStatus(c echo.Context) error {
	orderID := c.Param("orderID")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "orderID is required",
		})
	}

	attempt, err := h.attempts.FindByOrderID(orderID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": "no attempt recorded for order",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    attempt,
	})
}

func encodeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	raw, _ := json.Marshal(params)
	return string(raw)
}

// ── Result page ──────────────────────────────────────────────────────

var resultTemplate = template.Must(template.New("payment").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Payment result</title>
    <style>
        body { font-family: -apple-system, Helvetica, Arial, sans-serif; background: #f2f2f2; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; text-align: center; max-width: 400px; width: 100%; }
        h1 { color: #333; margin-bottom: 20px; }
        p { color: #666; margin-bottom: 10px; }
    </style>
</head>
<body>
    <div class="box">
        <h1>{{.Title}}</h1>
        {{if .OrderID}}<p>Order: <span>{{.OrderID}}</span></p>{{end}}
        {{if .HasAmount}}<p>Amount: <span>{{.AmountStr}}</span> VND</p>{{end}}
        <p>{{.Message}}</p>
    </div>
</body>
</html>`))

func (h *BridgeHandler) renderResult(c echo.Context, title, message, orderID string, amount int64) error {
	data := map[string]interface{}{
		"Title":     title,
		"Message":   message,
		"OrderID":   orderID,
		"HasAmount": amount > 0,
		"AmountStr": utils.FormatNumber(amount),
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return resultTemplate.Execute(c.Response().Writer, data)
}
