package flow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/dedup"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/service"
)

// Notifier pushes reconciliation alerts to the ops channel. Optional.
type Notifier interface {
	AlertFinalizationFailure(orderID string, err error)
}

// IPNSink mirrors raw gateway parameters to the backend. Optional,
// best-effort.
type IPNSink interface {
	Mirror(ctx context.Context, rawParams map[string]string)
}

// FinalizeOutcome is the snapshot recorded after a successful finalization.
type FinalizeOutcome struct {
	OrderID string
	Message string
	// AlreadyRecorded is true when another channel (or the redirect bridge)
	// won the finalization claim first.
	AlreadyRecorded bool
}

// Finalizer is the single side-effecting gateway of the payment flow: it
// records the payment on the backend and clears the local cart. The caller's
// latch prevents concurrent duplicates within a screen; the processed store
// extends the at-most-once guarantee across processes.
type Finalizer struct {
	orders   service.OrderService
	cart     service.CartService
	store    dedup.ProcessedStore
	ipn      IPNSink
	notifier Notifier
	logger   *zap.Logger
}

// NewFinalizer creates the order finalization gateway. ipn and notifier may
// be nil.
func NewFinalizer(orders service.OrderService, cart service.CartService, store dedup.ProcessedStore, ipn IPNSink, notifier Notifier, logger *zap.Logger) *Finalizer {
	return &Finalizer{
		orders:   orders,
		cart:     cart,
		store:    store,
		ipn:      ipn,
		notifier: notifier,
		logger:   logger,
	}
}

// Finalize records the payment for orderID on the backend and clears the
// cart. Cart-clear failure does not roll back the payment: it is logged and
// ignored. A backend error surfaces to the caller, which may retry once.
func (f *Finalizer) Finalize(ctx context.Context, orderID string, rawParams map[string]string) (*FinalizeOutcome, error) {
	id, err := strconv.Atoi(orderID)
	if err != nil {
		return nil, fmt.Errorf("finalize: non-numeric order id %q: %w", orderID, err)
	}

	claimed, err := f.store.MarkProcessed(ctx, orderID)
	if err != nil {
		f.logger.Warn("processed store unavailable, proceeding on local latch only",
			zap.String("order_id", orderID), zap.Error(err))
		claimed = true
	}
	if !claimed {
		f.logger.Info("finalization already claimed elsewhere", zap.String("order_id", orderID))
		return &FinalizeOutcome{OrderID: orderID, AlreadyRecorded: true}, nil
	}

	ack, err := f.orders.CreateOrderPayment(ctx, id)
	if err != nil {
		// Give the claim back so the single permitted retry can go through.
		if relErr := f.store.Release(context.WithoutCancel(ctx), orderID); relErr != nil {
			f.logger.Warn("failed to release finalization claim",
				zap.String("order_id", orderID), zap.Error(relErr))
		}
		if f.notifier != nil {
			f.notifier.AlertFinalizationFailure(orderID, err)
		}
		return nil, fmt.Errorf("create order payment: %w", err)
	}

	go f.clearCart(orderID)

	outcome := &FinalizeOutcome{OrderID: orderID}
	if ack != nil {
		outcome.Message = ack.Message
	}
	return outcome, nil
}

// MirrorIPN forwards raw gateway parameters to the backend's IPN endpoint,
// best effort.
func (f *Finalizer) MirrorIPN(rawParams map[string]string) {
	if f.ipn == nil || len(rawParams) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	go func() {
		defer cancel()
		f.ipn.Mirror(ctx, rawParams)
	}()
}

func (f *Finalizer) clearCart(orderID string) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("cart clear panicked", zap.Any("panic", r))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := f.cart.ClearCart(ctx); err != nil {
		f.logger.Warn("cart clear failed after successful payment",
			zap.String("order_id", orderID), zap.Error(err))
	}
}
