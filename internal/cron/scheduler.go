package cron

import (
	"context"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/config"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/flow"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/models"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/repository"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/service"
)

// Scheduler runs the server-side reconciliation jobs: the pending-attempt
// sweep (the bridge's twin of the client status poller, covering users who
// never returned to the app) and the stale-attempt expiry.
type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	attempts  *repository.AttemptRepository
	orders    service.OrderService
	finalizer *flow.Finalizer
	logger    *zap.Logger
}

// New creates a new reconciliation scheduler.
func New(cfg *config.Config, attempts *repository.AttemptRepository, orders service.OrderService, finalizer *flow.Finalizer, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		cfg:       cfg,
		attempts:  attempts,
		orders:    orders,
		finalizer: finalizer,
		logger:    logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	// Pending payment sweep - every 3 minutes
	s.cron.AddFunc("0 */3 * * * *", func() {
		s.logger.Debug("Running: pending payment sweep")
		s.sweepPending()
	})

	// Expire stale attempts - every hour
	s.cron.AddFunc("0 0 * * * *", func() {
		s.logger.Debug("Running: attempt expiry")
		s.expireStale()
	})

	s.cron.Start()
	s.logger.Info("Reconciliation scheduler started")
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// sweepPending re-checks attempts the bridge left pending (finalization
// failed or the gateway never redirected) against the backend status.
func (s *Scheduler) sweepPending() {
	defer s.recoverFromPanic("sweepPending")

	// Skip attempts younger than one poll interval; the client poller is
	// still working on those.
	cutoff := time.Now().Add(-s.cfg.Flow.PollInterval)
	attempts, err := s.attempts.FindPendingOlderThan(cutoff, 50)
	if err != nil {
		s.logger.Error("pending sweep query failed", zap.Error(err))
		return
	}

	for _, attempt := range attempts {
		s.reconcile(attempt)
	}
}

func (s *Scheduler) reconcile(attempt models.PaymentAttempt) {
	orderID, err := strconv.Atoi(attempt.OrderID)
	if err != nil {
		s.logger.Warn("skipping attempt with non-numeric order id",
			zap.String("order_id", attempt.OrderID))
		_ = s.attempts.UpdateStatus(attempt.AttemptID, models.AttemptStatusFailed, "invalid order id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	status, err := s.orders.GetPaymentStatus(ctx, orderID)
	if err != nil {
		s.logger.Debug("sweep status query failed",
			zap.String("order_id", attempt.OrderID), zap.Error(err))
		return
	}

	switch {
	case status.IsPending:
		// Still in flight at the gateway; keep it for the next sweep.
	case status.IsSuccess:
		if _, err := s.finalizer.Finalize(ctx, attempt.OrderID, nil); err != nil {
			s.logger.Error("sweep finalization failed",
				zap.String("order_id", attempt.OrderID), zap.Error(err))
			return
		}
		_ = s.attempts.UpdateStatus(attempt.AttemptID, models.AttemptStatusSuccess, "reconciled by sweep")
		s.logger.Info("attempt reconciled", zap.String("order_id", attempt.OrderID))
	default:
		message := "payment failed"
		if status.VnpayResponseCode != "" {
			message = "gateway code " + status.VnpayResponseCode
		}
		_ = s.attempts.UpdateStatus(attempt.AttemptID, models.AttemptStatusFailed, message)
	}
}

// expireStale closes out attempts that never reached a terminal signal.
func (s *Scheduler) expireStale() {
	defer s.recoverFromPanic("expireStale")

	n, err := s.attempts.ExpirePendingOlderThan(s.cfg.Flow.AttemptTTL)
	if err != nil {
		s.logger.Error("attempt expiry failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired stale attempts", zap.Int64("count", n))
	}
}

func (s *Scheduler) recoverFromPanic(job string) {
	if r := recover(); r != nil {
		s.logger.Error("cron job panicked", zap.String("job", job), zap.Any("panic", r))
	}
}
