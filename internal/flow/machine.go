package flow

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/vnpay"
)

// State is the externally visible payment state.
type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Result is the terminal outcome handed to the navigation layer.
type Result struct {
	Status  State
	OrderID string
	Amount  string
	Code    string
	Message string
}

// Signal is a terminal input from any of the three channels: OS deep link,
// webview redirect observation, or backend status poll.
type Signal struct {
	OrderID  string
	Callback *vnpay.Callback
	// Success is the explicit deep-link flag; when set it wins over the
	// callback's response code.
	Success *bool
	// Amount is the display amount in major units, when the channel knows it.
	Amount string
}

func (s Signal) succeeded() bool {
	if s.Success != nil {
		return *s.Success
	}
	return s.Callback != nil && s.Callback.Succeeded()
}

// Machine owns the loading|success|failed state for one payment attempt and
// clamps the racing signal channels to a single finalization. First terminal
// signal wins; everything after is a no-op.
type Machine struct {
	mu sync.Mutex

	state   State
	orderID string
	// deepLinkHint is true when a deep-link success parameter was present at
	// construction; it disables the poll channel entirely.
	deepLinkHint bool

	// Finalization latch. isProcessing closes the race window between two
	// near-simultaneous signals; hasProcessed clamps late channels after the
	// first attempt resolves. retryUsed marks the single permitted
	// finalization retry as spent. Reset only when the order id changes.
	isProcessing bool
	hasProcessed bool
	retryUsed    bool

	result       *Result
	orderDetails *FinalizeOutcome

	finalizer  *Finalizer
	onTerminal func(Result)
	logger     *zap.Logger
}

// NewMachine builds a state machine for one order. link carries the deep-link
// parameters known at construction time, or nil when the screen was mounted
// without a deep link. An explicit success=false fails immediately; an
// explicit success=true fast-paths success processing via HandleTerminalSignal;
// absence leaves the machine waiting on the poll or webview channels.
func NewMachine(orderID string, link *vnpay.DeepLink, finalizer *Finalizer, onTerminal func(Result), logger *zap.Logger) *Machine {
	m := &Machine{
		state:        StateLoading,
		orderID:      orderID,
		deepLinkHint: link != nil && link.Success != nil,
		finalizer:    finalizer,
		onTerminal:   onTerminal,
		logger:       logger,
	}
	if link != nil && link.Success != nil && !*link.Success {
		code := link.Code
		if code == "" {
			code = "24"
		}
		message := link.Message
		if message == "" {
			message = vnpay.Translate(code)
		}
		m.state = StateFailed
		m.hasProcessed = true
		m.result = &Result{
			Status:  StateFailed,
			OrderID: orderID,
			Amount:  link.Amount,
			Code:    code,
			Message: message,
		}
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Terminal reports whether the machine has left loading.
func (m *Machine) Terminal() bool {
	return m.State() != StateLoading
}

// PollEnabled reports whether the backend status poll channel should run.
// The poll is a fallback, subordinate to a deep-link signal.
func (m *Machine) PollEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.deepLinkHint && m.state == StateLoading
}

// Result returns the terminal result, or nil while loading.
func (m *Machine) Result() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result == nil {
		return nil
	}
	r := *m.result
	return &r
}

// OrderDetails returns the finalization snapshot recorded on success.
func (m *Machine) OrderDetails() *FinalizeOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderDetails
}

// Reset prepares the machine for a new payment attempt. The latch survives
// re-entry for the same order; only a different order id clears it.
func (m *Machine) Reset(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if orderID == m.orderID {
		return
	}
	m.orderID = orderID
	m.state = StateLoading
	m.deepLinkHint = false
	m.isProcessing = false
	m.hasProcessed = false
	m.retryUsed = false
	m.result = nil
	m.orderDetails = nil
}

// HandleTerminalSignal folds a terminal signal from any channel into the
// machine. Duplicate and late signals are no-ops; the first one drives the
// finalization side effect at most once.
func (m *Machine) HandleTerminalSignal(ctx context.Context, sig Signal) {
	m.mu.Lock()
	if m.isProcessing || m.hasProcessed {
		m.mu.Unlock()
		return
	}
	// Claim the latch before any suspension point so a second signal arriving
	// mid-finalization is clamped.
	m.isProcessing = true
	m.hasProcessed = true
	orderID := m.orderID
	if sig.OrderID != "" {
		orderID = sig.OrderID
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.isProcessing = false
		m.mu.Unlock()
	}()

	// Redundant notification path; the gateway also calls the backend's IPN
	// endpoint server-side.
	m.finalizer.MirrorIPN(sig.rawParams())

	if !sig.succeeded() {
		// Definitive decline from the gateway's own signal: no backend call
		// was attempted, so the latch stays closed.
		code := ""
		if sig.Callback != nil {
			code = sig.Callback.ResponseCode
		}
		m.transition(Result{
			Status:  StateFailed,
			OrderID: orderID,
			Amount:  sig.displayAmount(),
			Code:    code,
			Message: vnpay.Translate(code),
		}, nil, false)
		return
	}

	outcome, err := m.finalizer.Finalize(ctx, orderID, sig.rawParams())
	if err != nil {
		m.logger.Error("order finalization failed",
			zap.String("order_id", orderID), zap.Error(err))
		// The order was never actually finalized; reopen the latch for
		// exactly one retry. A second failure closes it for good.
		m.mu.Lock()
		if !m.retryUsed {
			m.retryUsed = true
			m.hasProcessed = false
		}
		m.mu.Unlock()
		m.transition(Result{
			Status:  StateFailed,
			OrderID: orderID,
			Amount:  sig.displayAmount(),
			Message: "Payment was received but the order could not be confirmed. Please contact support with order " + orderID + ".",
		}, nil, true)
		return
	}

	m.transition(Result{
		Status:  StateSuccess,
		OrderID: orderID,
		Amount:  sig.displayAmount(),
		Code:    vnpay.ResponseCodeSuccess,
	}, outcome, false)
}

// HandlePollResult folds a backend status poll into the machine. Only
// consulted when no deep-link success parameter was supplied.
func (m *Machine) HandlePollResult(ctx context.Context, status PollStatus) {
	if !m.PollEnabled() {
		return
	}
	if status.Pending {
		return
	}

	success := status.Success
	cb := &vnpay.Callback{
		ResponseCode:   status.ResponseCode,
		TransactionRef: m.currentOrderID(),
		RawParams:      map[string]string{},
	}
	if success && cb.ResponseCode == "" {
		cb.ResponseCode = vnpay.ResponseCodeSuccess
	}
	if !success && cb.ResponseCode == "" {
		// The backend reported a failure without a gateway code; surface it
		// as the gateway's own unknown-error code rather than a blank one.
		cb.ResponseCode = "99"
	}

	amount := ""
	if status.Amount > 0 {
		amount = strconv.FormatInt(status.Amount, 10)
	}

	m.HandleTerminalSignal(ctx, Signal{
		OrderID:  m.currentOrderID(),
		Callback: cb,
		Success:  &success,
		Amount:   amount,
	})
}

// PollStatus is the poller's normalized view of the backend status response.
type PollStatus struct {
	Pending      bool
	Success      bool
	ResponseCode string
	// Amount in major units as reported by the backend.
	Amount int64
}

func (m *Machine) currentOrderID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderID
}

// transition records the terminal result and notifies the navigation layer.
// keepFailedRetryable marks finalization failures, whose result may be
// replaced by the single permitted retry.
func (m *Machine) transition(r Result, outcome *FinalizeOutcome, keepFailedRetryable bool) {
	m.mu.Lock()
	m.state = r.Status
	m.result = &r
	if outcome != nil {
		m.orderDetails = outcome
	}
	cb := m.onTerminal
	m.mu.Unlock()

	m.logger.Info("payment state transition",
		zap.String("order_id", r.OrderID),
		zap.String("state", string(r.Status)),
		zap.String("code", r.Code),
		zap.Bool("retryable", keepFailedRetryable))

	if cb != nil {
		cb(r)
	}
}

func (s Signal) displayAmount() string {
	if s.Amount != "" {
		return s.Amount
	}
	if s.Callback != nil && s.Callback.Amount > 0 {
		return strconv.FormatInt(s.Callback.MajorAmount(), 10)
	}
	return ""
}

func (s Signal) rawParams() map[string]string {
	if s.Callback == nil {
		return nil
	}
	return s.Callback.RawParams
}
