package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/service"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/vnpay"
)

// ── Stubs shared by the flow tests ───────────────────────────────────

type stubOrders struct {
	mu          sync.Mutex
	payCalls    int
	payErrs     []error
	statusCalls int
	statusFn    func(call int) (*service.PaymentStatus, error)
}

func (s *stubOrders) CreateOrderPayment(_ context.Context, _ int) (*service.OrderPaymentAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payCalls++
	if len(s.payErrs) > 0 {
		err := s.payErrs[0]
		s.payErrs = s.payErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &service.OrderPaymentAck{Message: "recorded"}, nil
}

func (s *stubOrders) GetPaymentStatus(_ context.Context, _ int) (*service.PaymentStatus, error) {
	s.mu.Lock()
	call := s.statusCalls
	s.statusCalls++
	fn := s.statusFn
	s.mu.Unlock()
	if fn == nil {
		return &service.PaymentStatus{IsPending: true}, nil
	}
	return fn(call)
}

func (s *stubOrders) PayCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payCalls
}

func (s *stubOrders) StatusCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls
}

type stubCart struct {
	mu    sync.Mutex
	calls int
}

func (s *stubCart) ClearCart(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func (s *stubCart) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (s *stubStore) MarkProcessed(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[orderID] {
		return false, nil
	}
	s.seen[orderID] = true
	return true, nil
}

func (s *stubStore) Release(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, orderID)
	return nil
}

func newTestFinalizer(orders *stubOrders, cart *stubCart) *Finalizer {
	return NewFinalizer(orders, cart, &stubStore{}, nil, nil, zap.NewNop())
}

func successSignal(orderID string) Signal {
	return Signal{
		OrderID: orderID,
		Callback: &vnpay.Callback{
			ResponseCode:   "00",
			TransactionRef: orderID,
			Amount:         10000000,
			RawParams:      map[string]string{"vnp_ResponseCode": "00"},
		},
	}
}

func declineSignal(orderID, code string) Signal {
	return Signal{
		OrderID: orderID,
		Callback: &vnpay.Callback{
			ResponseCode:   code,
			TransactionRef: orderID,
			RawParams:      map[string]string{"vnp_ResponseCode": code},
		},
	}
}

// ── Tests ────────────────────────────────────────────────────────────

func TestMachineFinalizesAtMostOnce(t *testing.T) {
	orders := &stubOrders{}
	cart := &stubCart{}
	m := NewMachine("42", nil, newTestFinalizer(orders, cart), nil, zap.NewNop())

	// Deep link, webview redirect and poll all racing with the same result.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.HandleTerminalSignal(context.Background(), successSignal("42"))
		}()
	}
	wg.Wait()

	require.Equal(t, 1, orders.PayCalls())
	require.Equal(t, StateSuccess, m.State())
	require.NotNil(t, m.Result())
	require.Equal(t, "42", m.Result().OrderID)
	require.Equal(t, "100000", m.Result().Amount)

	// Late signal after the terminal state is a no-op.
	m.HandleTerminalSignal(context.Background(), successSignal("42"))
	require.Equal(t, 1, orders.PayCalls())

	// Cart clear runs asynchronously after the payment is recorded.
	require.Eventually(t, func() bool { return cart.Calls() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestMachineDeclineDoesNotFinalize(t *testing.T) {
	orders := &stubOrders{}
	m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())

	m.HandleTerminalSignal(context.Background(), declineSignal("42", "24"))

	require.Equal(t, 0, orders.PayCalls())
	require.Equal(t, StateFailed, m.State())
	require.Equal(t, "24", m.Result().Code)
	require.Equal(t, "Transaction cancelled by customer", m.Result().Message)

	// A decline closes the latch for good: a later success signal for the
	// same attempt must not finalize.
	m.HandleTerminalSignal(context.Background(), successSignal("42"))
	require.Equal(t, 0, orders.PayCalls())
	require.Equal(t, StateFailed, m.State())
}

func TestMachineFinalizationFailureAllowsOneRetry(t *testing.T) {
	orders := &stubOrders{payErrs: []error{errors.New("backend down")}}
	m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())

	m.HandleTerminalSignal(context.Background(), successSignal("42"))

	require.Equal(t, 1, orders.PayCalls())
	require.Equal(t, StateFailed, m.State())
	require.Contains(t, m.Result().Message, "contact support")
	require.Contains(t, m.Result().Message, "42")

	// Gateway said paid but the backend call failed: the latch reopens so a
	// retry signal can drive one more attempt.
	m.HandleTerminalSignal(context.Background(), successSignal("42"))
	require.Equal(t, 2, orders.PayCalls())
	require.Equal(t, StateSuccess, m.State())
}

func TestMachineSecondFinalizationFailureClosesLatch(t *testing.T) {
	orders := &stubOrders{payErrs: []error{errors.New("backend down"), errors.New("still down")}}
	m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())

	m.HandleTerminalSignal(context.Background(), successSignal("42"))
	m.HandleTerminalSignal(context.Background(), successSignal("42"))
	require.Equal(t, 2, orders.PayCalls())
	require.Equal(t, StateFailed, m.State())

	// The single permitted retry is spent; further signals must not drive a
	// third backend call.
	m.HandleTerminalSignal(context.Background(), successSignal("42"))
	m.HandleTerminalSignal(context.Background(), successSignal("42"))
	require.Equal(t, 2, orders.PayCalls())
	require.Equal(t, StateFailed, m.State())

	// A new order id starts fresh, with a fresh retry allowance.
	m.Reset("43")
	m.HandleTerminalSignal(context.Background(), successSignal("43"))
	require.Equal(t, 3, orders.PayCalls())
	require.Equal(t, StateSuccess, m.State())
}

func TestMachineDeepLinkFailureIsImmediatelyTerminal(t *testing.T) {
	orders := &stubOrders{}
	no := false
	link := &vnpay.DeepLink{OrderID: "42", Success: &no}
	m := NewMachine("42", link, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())

	require.Equal(t, StateFailed, m.State())
	require.Equal(t, "24", m.Result().Code)
	require.False(t, m.PollEnabled())

	// Terminal from construction: nothing to process.
	m.HandleTerminalSignal(context.Background(), successSignal("42"))
	require.Equal(t, 0, orders.PayCalls())
}

func TestMachinePollSuppressedByDeepLinkHint(t *testing.T) {
	yes := true
	link := &vnpay.DeepLink{OrderID: "42", Success: &yes}
	orders := &stubOrders{}
	m := NewMachine("42", link, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())

	require.False(t, m.PollEnabled())

	m.HandlePollResult(context.Background(), PollStatus{Success: true})
	require.Equal(t, 0, orders.PayCalls())
	require.Equal(t, StateLoading, m.State())
}

func TestMachineHandlePollResult(t *testing.T) {
	t.Run("pending keeps loading", func(t *testing.T) {
		orders := &stubOrders{}
		m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())

		m.HandlePollResult(context.Background(), PollStatus{Pending: true})
		require.Equal(t, StateLoading, m.State())
		require.Equal(t, 0, orders.PayCalls())
	})

	t.Run("success finalizes", func(t *testing.T) {
		orders := &stubOrders{}
		m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())

		m.HandlePollResult(context.Background(), PollStatus{Success: true, Amount: 100000})
		require.Equal(t, StateSuccess, m.State())
		require.Equal(t, 1, orders.PayCalls())
		require.Equal(t, "100000", m.Result().Amount)
	})

	t.Run("failure carries the backend's gateway code", func(t *testing.T) {
		orders := &stubOrders{}
		m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())

		m.HandlePollResult(context.Background(), PollStatus{Success: false, ResponseCode: "51"})
		require.Equal(t, StateFailed, m.State())
		require.Equal(t, "51", m.Result().Code)
		require.Equal(t, 0, orders.PayCalls())
	})

	t.Run("failure without a gateway code maps to the unknown-error code", func(t *testing.T) {
		orders := &stubOrders{}
		m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())

		m.HandlePollResult(context.Background(), PollStatus{Success: false})
		require.Equal(t, StateFailed, m.State())
		require.Equal(t, "99", m.Result().Code)
		require.Equal(t, "Unknown error, please contact support", m.Result().Message)
	})
}

func TestMachineReset(t *testing.T) {
	orders := &stubOrders{}
	m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())

	m.HandleTerminalSignal(context.Background(), successSignal("42"))
	require.Equal(t, StateSuccess, m.State())

	// Re-entering the same order keeps the latch closed.
	m.Reset("42")
	m.HandleTerminalSignal(context.Background(), successSignal("42"))
	require.Equal(t, 1, orders.PayCalls())

	// A different order starts a fresh attempt.
	m.Reset("43")
	require.Equal(t, StateLoading, m.State())
	m.HandleTerminalSignal(context.Background(), successSignal("43"))
	require.Equal(t, 2, orders.PayCalls())
}

func TestMachineNotifiesTerminalCallback(t *testing.T) {
	var (
		mu      sync.Mutex
		results []Result
	)
	orders := &stubOrders{}
	m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}, zap.NewNop())

	m.HandleTerminalSignal(context.Background(), successSignal("42"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	require.Equal(t, StateSuccess, results[0].Status)
	require.Equal(t, "42", results[0].OrderID)
}
