package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"gorm.io/gorm"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/config"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/flow"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/handler"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/middleware"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/repository"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	cfg *config.Config,
	db *gorm.DB,
	finalizer *flow.Finalizer,
	logger *zap.Logger,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	attempts := repository.NewAttemptRepository(db)
	bridge := handler.NewBridgeHandler(attempts, finalizer, logger)
	settings := handler.NewSettingsHandler(cfg)

	// Gateway return redirect (web mirror of the app deep link)
	paymentGroup := e.Group("/payment")
	paymentGroup.GET("/vnpay/return", bridge.VNPayReturn)
	paymentGroup.GET("/attempts/:orderID", bridge.AttemptStatus)
	paymentGroup.GET("/flow-settings", settings.FlowSettings)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
