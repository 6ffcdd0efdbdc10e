package flow

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/service"
)

// Poller periodically queries the backend payment status for an order. It is
// the fallback channel for the case where the user returns to the app without
// the webview or deep link firing. Never started when a deep-link success
// parameter was present at screen mount.
type Poller struct {
	orders   service.OrderService
	machine  *Machine
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a status poller. interval defaults to 3s.
func NewPoller(orders service.OrderService, machine *Machine, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		orders:   orders,
		machine:  machine,
		interval: interval,
		logger:   logger,
	}
}

// Start begins polling in a background goroutine. It is a no-op when the
// machine's poll channel is disabled (deep-link hint present or already
// terminal).
func (p *Poller) Start(ctx context.Context) {
	if !p.machine.PollEnabled() {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go p.run(ctx)
}

// Stop cancels the poll loop and waits for it to exit. Safe to call more than
// once and without a prior Start.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.machine.Terminal() {
				return
			}
			if done := p.pollOnce(ctx); done {
				return
			}
		}
	}
}

// pollOnce queries the backend once. Returns true when polling should stop.
func (p *Poller) pollOnce(ctx context.Context) bool {
	orderID, err := strconv.Atoi(p.machine.currentOrderID())
	if err != nil {
		p.logger.Warn("poller: non-numeric order id, stopping",
			zap.String("order_id", p.machine.currentOrderID()))
		return true
	}

	status, err := p.orders.GetPaymentStatus(ctx, orderID)
	if err != nil {
		// Transient backend trouble keeps the loop alive; the stuck-loading
		// escape bounds the total wait.
		p.logger.Debug("payment status poll failed", zap.Error(err))
		return false
	}

	if status.IsPending {
		return false
	}

	p.machine.HandlePollResult(ctx, PollStatus{
		Pending:      false,
		Success:      status.IsSuccess,
		ResponseCode: status.VnpayResponseCode,
		Amount:       status.Amount,
	})
	return true
}
