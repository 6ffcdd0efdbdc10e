package flow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/service"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/vnpay"
)

// SessionConfig describes one payment attempt.
type SessionConfig struct {
	OrderID string
	// DeepLink carries the launch parameters when the screen was opened via
	// the OS deep link, nil otherwise.
	DeepLink     *vnpay.DeepLink
	Matcher      vnpay.AppLinkMatcher
	PollInterval time.Duration
	Guard        GuardConfig
	// OnTerminal replaces the current screen with the result view. One-way:
	// the session never navigates back into the gateway.
	OnTerminal func(Result)
}

// Session owns the machine, guard and poller for one payment attempt and
// tears their timers down together. Mirrors one gateway-webview screen
// lifetime.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	machine *Machine
	guard   *Guard
	poller  *Poller
	logger  *zap.Logger

	closeOnce sync.Once
}

// NewSession wires a payment attempt. The poller only runs when no deep-link
// success parameter was supplied (it would be redundant and could race the
// deep link's already-definitive signal).
func NewSession(cfg SessionConfig, finalizer *Finalizer, orders service.OrderService, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	s.machine = NewMachine(cfg.OrderID, cfg.DeepLink, finalizer, func(r Result) {
		// Stop the fallback channels as soon as any channel reaches a
		// terminal state; stale timers must not fire against this order.
		cancel()
		if cfg.OnTerminal != nil {
			cfg.OnTerminal(r)
		}
	}, logger)

	s.guard = NewGuard(ctx, s.machine, cfg.Matcher, cfg.Guard, logger)
	s.poller = NewPoller(orders, s.machine, cfg.PollInterval, logger)

	return s
}

// Start kicks off the session's asynchronous channels: the deep-link
// fast path when launch parameters carried success=true, and the status
// poller otherwise.
func (s *Session) Start(cfg SessionConfig) {
	// A deep-link failure resolved at construction still owes the screen its
	// terminal notification.
	if res := s.machine.Result(); res != nil {
		s.cancel()
		if cfg.OnTerminal != nil {
			cfg.OnTerminal(*res)
		}
		return
	}

	if cfg.DeepLink != nil && cfg.DeepLink.Success != nil && *cfg.DeepLink.Success {
		link := *cfg.DeepLink
		go s.machine.HandleTerminalSignal(s.ctx, Signal{
			OrderID:  cfg.OrderID,
			Callback: link.AsCallback(),
			Success:  link.Success,
			Amount:   link.Amount,
		})
		return
	}
	s.poller.Start(s.ctx)
}

// Machine exposes the state machine for the screen's render logic.
func (s *Session) Machine() *Machine { return s.machine }

// Guard exposes the webview port for the host to drive.
func (s *Session) Guard() *Guard { return s.guard }

// HandleDeepLink feeds a deep link that arrived while the screen was already
// mounted (the OS re-opened the app with the gateway result).
func (s *Session) HandleDeepLink(rawURL string) {
	link := vnpay.ParseDeepLink(rawURL)
	orderID := link.OrderID
	if orderID == "" {
		orderID = s.machine.currentOrderID()
	}
	s.machine.HandleTerminalSignal(s.ctx, Signal{
		OrderID:  orderID,
		Callback: link.AsCallback(),
		Success:  link.Success,
		Amount:   link.Amount,
	})
}

// Close tears the session down: guard timers, poll loop, context. Safe to
// call multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.guard.Close()
		s.poller.Stop()
	})
}
