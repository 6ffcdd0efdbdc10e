package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/service"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/vnpay"
)

func TestPollerResolvesOnDefinitiveStatus(t *testing.T) {
	orders := &stubOrders{
		statusFn: func(call int) (*service.PaymentStatus, error) {
			if call < 2 {
				return &service.PaymentStatus{IsPending: true}, nil
			}
			return &service.PaymentStatus{IsSuccess: true, Amount: 100000}, nil
		},
	}
	m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())
	p := NewPoller(orders, m, 10*time.Millisecond, zap.NewNop())

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return m.State() == StateSuccess },
		time.Second, 5*time.Millisecond)
	require.Equal(t, 1, orders.PayCalls())

	// The loop exits after the definitive answer; no further status calls.
	settled := orders.StatusCalls()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, settled, orders.StatusCalls())
}

func TestPollerSurvivesTransientErrors(t *testing.T) {
	orders := &stubOrders{
		statusFn: func(call int) (*service.PaymentStatus, error) {
			if call == 0 {
				return nil, errors.New("timeout")
			}
			return &service.PaymentStatus{IsSuccess: false, VnpayResponseCode: "24"}, nil
		},
	}
	m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())
	p := NewPoller(orders, m, 10*time.Millisecond, zap.NewNop())

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return m.State() == StateFailed },
		time.Second, 5*time.Millisecond)
	require.Equal(t, "24", m.Result().Code)
	require.Equal(t, 0, orders.PayCalls())
}

func TestPollerNotStartedWithDeepLinkHint(t *testing.T) {
	orders := &stubOrders{}
	yes := true
	link := &vnpay.DeepLink{OrderID: "42", Success: &yes}
	m := NewMachine("42", link, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())
	p := NewPoller(orders, m, 5*time.Millisecond, zap.NewNop())

	p.Start(context.Background())
	p.Stop()

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 0, orders.StatusCalls())
}

func TestPollerStop(t *testing.T) {
	orders := &stubOrders{}
	m := NewMachine("42", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())
	p := NewPoller(orders, m, 10*time.Millisecond, zap.NewNop())

	p.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	p.Stop()

	settled := orders.StatusCalls()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, settled, orders.StatusCalls())

	// Stop is idempotent.
	p.Stop()
}

func TestPollerStopsOnNonNumericOrderID(t *testing.T) {
	orders := &stubOrders{}
	m := NewMachine("not-a-number", nil, newTestFinalizer(orders, &stubCart{}), nil, zap.NewNop())
	p := NewPoller(orders, m, 10*time.Millisecond, zap.NewNop())

	p.Start(context.Background())
	defer p.Stop()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, orders.StatusCalls())
}
