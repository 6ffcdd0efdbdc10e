package flow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/vnpay"
)

// WebviewPort is the event surface a webview host drives. The navigation
// guard implements it; the host (a React Native WebView, a test harness)
// forwards its native events into these methods.
type WebviewPort interface {
	// OnNavigationStateChange reports a navigation event. A false return
	// vetoes the navigation: the payment flow is logically complete and the
	// webview must not follow the redirect.
	OnNavigationStateChange(url string, loading bool) bool
	OnLoadStart()
	OnLoadEnd()
	// OnMessage receives a postMessage payload from the injected script.
	OnMessage(payload []byte)
}

// ManualOutcome is the user's self-reported result after escaping to an
// external browser. Some banking apps hijack the in-app browser context and
// never return control to the webview, so the user reports the outcome.
type ManualOutcome string

const (
	ManualSuccess ManualOutcome = "success"
	ManualCancel  ManualOutcome = "cancel"
	ManualError   ManualOutcome = "error"
)

// RedirectTrace counts distinct URL changes inside the webview. Crossing the
// threshold without reaching a terminal gateway URL is a client-side error
// (redirect loop), independent of gateway signals.
type RedirectTrace struct {
	LastURL string
	Count   int
}

// webviewMessage is the JSON envelope posted by the injected script.
type webviewMessage struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

const messageTypeVNPayResponse = "VNPAY_RESPONSE"

// Guard observes webview host events, detects gateway-terminal URLs versus
// legitimate in-page navigation, counts redirects to catch loops, and
// forwards parsed callbacks into the state machine. It also owns the
// stuck-loading escape policy.
type Guard struct {
	mu sync.Mutex

	ctx     context.Context
	machine *Machine
	matcher vnpay.AppLinkMatcher
	logger  *zap.Logger

	maxRedirects int
	stuckAfter   time.Duration

	trace        RedirectTrace
	halted       bool
	loading      bool
	loadingSince time.Time
	stuckTimer   *time.Timer
	stuckFired   bool
	closed       bool

	// onRedirectLoop surfaces the loop error to the screen, which offers
	// reload or abandon. Distinct from gateway failure.
	onRedirectLoop func()
	// onStuckLoading offers the external-browser escape hatch.
	onStuckLoading func()
}

// GuardConfig bundles the guard's tunables and screen callbacks.
type GuardConfig struct {
	// MaxRedirects is the distinct-URL-change threshold; crossing it is a
	// redirect loop. Defaults to 10.
	MaxRedirects int
	// StuckAfter is how long the webview may stay loading before the
	// external-browser escape is offered. Defaults to 10s.
	StuckAfter     time.Duration
	OnRedirectLoop func()
	OnStuckLoading func()
}

// NewGuard wires a navigation guard to a state machine.
func NewGuard(ctx context.Context, machine *Machine, matcher vnpay.AppLinkMatcher, cfg GuardConfig, logger *zap.Logger) *Guard {
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = 10 * time.Second
	}
	return &Guard{
		ctx:            ctx,
		machine:        machine,
		matcher:        matcher,
		logger:         logger,
		maxRedirects:   cfg.MaxRedirects,
		stuckAfter:     cfg.StuckAfter,
		onRedirectLoop: cfg.OnRedirectLoop,
		onStuckLoading: cfg.OnStuckLoading,
	}
}

// OnNavigationStateChange processes a native navigation event.
func (g *Guard) OnNavigationStateChange(url string, loading bool) bool {
	g.mu.Lock()
	if g.halted || g.closed {
		g.mu.Unlock()
		return false
	}

	if url != "" && url != g.trace.LastURL {
		g.trace.LastURL = url
		g.trace.Count++
	}
	if g.trace.Count > g.maxRedirects {
		g.halted = true
		loopCb := g.onRedirectLoop
		g.mu.Unlock()
		g.logger.Warn("redirect loop detected",
			zap.Int("count", g.trace.Count), zap.String("last_url", url))
		if loopCb != nil {
			loopCb()
		}
		return false
	}
	g.mu.Unlock()

	if g.matcher.Matches(url) {
		g.handleDeepLinkURL(url)
		return false
	}

	if vnpay.HasResponseCode(url) {
		g.handleTerminalURL(url)
		return false
	}

	return true
}

// OnLoadStart marks the spinner active and arms the stuck-loading timer.
func (g *Guard) OnLoadStart() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.loading = true
	g.loadingSince = time.Now()
	if g.stuckTimer != nil {
		g.stuckTimer.Stop()
	}
	g.stuckFired = false
	g.stuckTimer = time.AfterFunc(g.stuckAfter, g.fireStuck)
}

// OnLoadEnd clears the spinner and disarms the stuck-loading timer.
func (g *Guard) OnLoadEnd() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loading = false
	if g.stuckTimer != nil {
		g.stuckTimer.Stop()
		g.stuckTimer = nil
	}
}

// Loading reports whether the webview is currently loading, and for how long.
func (g *Guard) Loading() (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.loading {
		return false, 0
	}
	return true, time.Since(g.loadingSince)
}

// OnMessage processes a postMessage envelope from the injected script. SPA
// style client-side redirects never trigger a native navigation event; the
// injected script watches the history API and posts the terminal URL here.
// The machine's latch dedups against the native event for the same redirect.
func (g *Guard) OnMessage(payload []byte) {
	var msg webviewMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		g.logger.Debug("ignoring malformed webview message", zap.Error(err))
		return
	}
	if msg.Type != messageTypeVNPayResponse || msg.URL == "" {
		return
	}

	g.mu.Lock()
	halted := g.halted || g.closed
	g.mu.Unlock()
	if halted {
		return
	}

	if g.matcher.Matches(msg.URL) {
		g.handleDeepLinkURL(msg.URL)
		return
	}
	if vnpay.HasResponseCode(msg.URL) {
		g.handleTerminalURL(msg.URL)
	}
}

// ReportManualOutcome synthesizes a callback from the user's self-reported
// result after the external-browser escape, and feeds it through the same
// terminal-signal path as real gateway callbacks.
func (g *Guard) ReportManualOutcome(outcome ManualOutcome) {
	code := "99"
	switch outcome {
	case ManualSuccess:
		code = vnpay.ResponseCodeSuccess
	case ManualCancel:
		code = "24"
	}

	orderID := g.machine.currentOrderID()
	cb := &vnpay.Callback{
		ResponseCode:   code,
		TransactionRef: orderID,
		RawParams:      map[string]string{vnpay.ParamResponseCode: code},
	}
	g.machine.HandleTerminalSignal(g.ctx, Signal{OrderID: orderID, Callback: cb})
}

// Reload clears the redirect trace after a loop error so the screen can retry
// the gateway page.
func (g *Guard) Reload() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trace = RedirectTrace{}
	g.halted = false
}

// Trace returns a copy of the current redirect trace.
func (g *Guard) Trace() RedirectTrace {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trace
}

// Close releases the guard's timers. Late host events become no-ops.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.stuckTimer != nil {
		g.stuckTimer.Stop()
		g.stuckTimer = nil
	}
}

func (g *Guard) fireStuck() {
	g.mu.Lock()
	if g.closed || !g.loading || g.stuckFired || g.machine.Terminal() {
		g.mu.Unlock()
		return
	}
	g.stuckFired = true
	cb := g.onStuckLoading
	g.mu.Unlock()

	g.logger.Warn("webview stuck loading, offering external browser escape")
	if cb != nil {
		cb()
	}
}

// handleTerminalURL parses a gateway-terminal URL and forwards it to the
// machine.
func (g *Guard) handleTerminalURL(url string) {
	cb := vnpay.ParseCallback(url, g.machine.currentOrderID())
	if cb == nil {
		g.logger.Warn("terminal URL did not yield a callback", zap.String("url", url))
		return
	}
	g.machine.HandleTerminalSignal(g.ctx, Signal{OrderID: cb.TransactionRef, Callback: cb})
}

// handleDeepLinkURL hands an app-link URL off to the deep-link completion
// path.
func (g *Guard) handleDeepLinkURL(url string) {
	link := vnpay.ParseDeepLink(url)
	orderID := link.OrderID
	if orderID == "" {
		orderID = g.machine.currentOrderID()
	}
	g.machine.HandleTerminalSignal(g.ctx, Signal{
		OrderID:  orderID,
		Callback: link.AsCallback(),
		Success:  link.Success,
		Amount:   link.Amount,
	})
}
