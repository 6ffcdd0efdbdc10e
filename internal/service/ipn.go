package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/pkg/httpclient"
)

// IPNMirror re-sends gateway callback parameters to the backend's IPN
// endpoint. The gateway already calls that endpoint server-side, so this is a
// redundant, best-effort notification path: failures are logged and swallowed.
type IPNMirror struct {
	client *httpclient.Client
	logger *zap.Logger
}

// NewIPNMirror creates an IPN mirror client.
func NewIPNMirror(baseURL string, logger *zap.Logger) *IPNMirror {
	return &IPNMirror{
		client: httpclient.New().
			WithBaseURL(baseURL).
			WithTimeout(10 * time.Second),
		logger: logger,
	}
}

// Mirror forwards all raw callback parameters via GET. Every parameter is
// normalized to a vnp_-prefixed name and the amount is coerced to a number.
func (m *IPNMirror) Mirror(ctx context.Context, rawParams map[string]string) {
	if len(rawParams) == 0 {
		return
	}

	query := make(map[string]string, len(rawParams))
	for key, value := range rawParams {
		name := key
		if !strings.HasPrefix(name, "vnp_") {
			name = "vnp_" + strings.ToUpper(name[:1]) + name[1:]
		}
		if name == "vnp_Amount" {
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				value = strconv.FormatInt(n, 10)
			} else {
				value = "0"
			}
		}
		query[name] = value
	}

	_, status, err := m.client.GetWithQuery("/api/payments/vnpay-ipn", query)
	if err != nil {
		m.logger.Warn("IPN mirror request failed", zap.Error(err))
		return
	}
	if !httpclient.StatusOK(status) {
		m.logger.Warn("IPN mirror rejected", zap.Int("status", status))
	}
}
