package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/config"
)

// SettingsHandler serves the payment-flow tunables the mobile client needs to
// drive the gateway webview: the deep-link scheme and mirror domain for
// app-link matching, plus the poll, stuck-loading and redirect-loop
// parameters. Keeping these server-side lets ops adjust them without an app
// release.
type SettingsHandler struct {
	cfg *config.Config
}

func NewSettingsHandler(cfg *config.Config) *SettingsHandler {
	return &SettingsHandler{cfg: cfg}
}

// FlowSettings returns the client-side flow configuration.
func (h *SettingsHandler) FlowSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"deepLinkScheme": h.cfg.VNPay.DeepLinkScheme,
			"mirrorDomain":   h.cfg.VNPay.MirrorDomain,
			"pollIntervalMs": h.cfg.Flow.PollInterval.Milliseconds(),
			"stuckTimeoutMs": h.cfg.Flow.StuckTimeout.Milliseconds(),
			"redirectLimit":  h.cfg.Flow.RedirectLimit,
		},
	})
}
