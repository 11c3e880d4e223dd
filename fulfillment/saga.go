package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	orderflow "github.com/orderflow-io/orderflow"
	"github.com/orderflow-io/orderflow/order"
)

// eventGuards maps inbound event types to the single saga state allowed
// to act on them. The event channel is at-least-once, so an event arriving
// while the saga is in any other state is silently ignored; this state
// guard is the saga's idempotency mechanism.
var eventGuards = map[string]State{
	"OrderPaymentUpdated":  StatePaymentPending,
	"OrderShippingUpdated": StateFulfillmentStarted,
}

// Orchestrator executes the fulfillment flow for individual sagas:
// forward steps against the external service ports, commands back into
// the order aggregate, and the compensation protocol on failure.
type Orchestrator struct {
	store     Store
	inventory InventoryService
	payment   PaymentService
	shipping  ShippingService
	commands  CommandDispatcher
	logger    orderflow.Logger
	now       func() time.Time

	onCompensation func(action CompensationAction, success bool)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithCompensationObserver registers a callback invoked after each executed
// compensation action with its outcome. Skipped actions are not reported.
func WithCompensationObserver(fn func(action CompensationAction, success bool)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onCompensation = fn
	}
}

// NewOrchestrator creates an Orchestrator over the given ports.
func NewOrchestrator(store Store, inventory InventoryService, payment PaymentService, shipping ShippingService, commands CommandDispatcher, logger orderflow.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = orderflow.NopLogger()
	}
	o := &Orchestrator{
		store:     store,
		inventory: inventory,
		payment:   payment,
		shipping:  shipping,
		commands:  commands,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// handleOrderCreated starts a new saga for the order and runs the forward
// flow up to payment initiation. At most one live saga exists per order;
// a duplicate OrderCreated delivery finds the existing instance and stops.
func (o *Orchestrator) handleOrderCreated(ctx context.Context, e order.OrderCreated) error {
	if len(e.Items) == 0 {
		return fmt.Errorf("fulfillment: order %s has no items", e.OrderID)
	}

	if existing, err := o.store.FindLiveByOrderID(ctx, e.OrderID); err == nil {
		o.logger.Debug("Saga already running for order",
			"sagaId", existing.ID, "orderId", e.OrderID)
		return nil
	} else if !errors.Is(err, ErrSagaNotFound) {
		return err
	}

	now := o.now()
	saga := &Saga{
		ID:              uuid.NewString(),
		OrderID:         e.OrderID,
		State:           StateStarted,
		Items:           e.Items,
		TotalAmount:     e.Total,
		ShippingAddress: e.ShippingAddress,
		Shipping:        e.ShippingInfo,
		PaymentMethod:   e.PaymentInfo.Method,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.store.Save(ctx, saga); err != nil {
		return fmt.Errorf("fulfillment: failed to create saga for order %s: %w", e.OrderID, err)
	}

	o.logger.Info("Saga started", "sagaId", saga.ID, "orderId", saga.OrderID)
	return o.runForward(ctx, saga)
}

// runForward executes the forward flow from inventory reservation through
// payment initiation. Payment capture and fulfillment run asynchronously,
// driven by the OrderPaymentUpdated and OrderShippingUpdated events.
func (o *Orchestrator) runForward(ctx context.Context, saga *Saga) error {
	reservationID, err := o.inventory.ReserveInventory(ctx, saga.OrderID, saga.Items)
	if err != nil {
		o.logger.Warn("Inventory reservation failed",
			"sagaId", saga.ID, "orderId", saga.OrderID, "error", err)
		return o.compensate(ctx, saga, fmt.Sprintf("inventory reservation failed: %v", err))
	}
	saga.ReservationID = reservationID
	saga.recordCompensation(ActionReleaseInventory)
	saga.transitionTo(StateInventoryReserved, o.now())
	if err := o.save(ctx, saga); err != nil {
		return err
	}

	if err := o.dispatch(ctx, order.UpdateOrderStatus{
		OrderID:   saga.OrderID,
		Status:    order.StatusProcessing,
		Reason:    "fulfillment started",
		ChangedBy: "fulfillment-saga",
	}); err != nil {
		o.logger.Warn("Failed to move order to processing",
			"sagaId", saga.ID, "orderId", saga.OrderID, "error", err)
		return o.compensate(ctx, saga, fmt.Sprintf("status update failed: %v", err))
	}
	saga.transitionTo(StatePaymentPending, o.now())
	if err := o.save(ctx, saga); err != nil {
		return err
	}

	return o.initiatePayment(ctx, saga)
}

// initiatePayment captures payment through the gateway and reports the
// outcome back onto the order. The resulting OrderPaymentUpdated event
// drives the saga's next step, so a crash between the gateway call and
// event delivery leaves the saga safely parked in PAYMENT_PENDING.
func (o *Orchestrator) initiatePayment(ctx context.Context, saga *Saga) error {
	info := order.PaymentInfo{
		Method: saga.PaymentMethod,
		Status: order.PaymentStatusCaptured,
	}

	transactionID, err := o.payment.ProcessPayment(ctx, saga.OrderID, saga.TotalAmount, saga.PaymentMethod)
	if err != nil {
		o.logger.Warn("Payment processing failed",
			"sagaId", saga.ID, "orderId", saga.OrderID, "error", err)
		info.Status = order.PaymentStatusFailed
	} else {
		info.TransactionID = transactionID
	}

	if err := o.dispatch(ctx, order.UpdatePaymentInfo{
		OrderID:     saga.OrderID,
		PaymentInfo: info,
	}); err != nil {
		return o.compensate(ctx, saga, fmt.Sprintf("payment update failed: %v", err))
	}
	return nil
}

// handlePaymentUpdated reacts to the payment outcome. Only a saga in
// PAYMENT_PENDING acts on the event; a captured payment confirms the
// reservation and starts fulfillment, anything else compensates.
func (o *Orchestrator) handlePaymentUpdated(ctx context.Context, saga *Saga, e order.OrderPaymentUpdated) error {
	if saga.State != eventGuards["OrderPaymentUpdated"] {
		o.logger.Debug("Ignoring payment update in state",
			"sagaId", saga.ID, "state", saga.State)
		return nil
	}

	if e.PaymentInfo.Status != order.PaymentStatusCaptured {
		return o.compensate(ctx, saga, "payment not captured")
	}

	saga.PaymentTransactionID = e.PaymentInfo.TransactionID
	if err := o.inventory.ConfirmReservation(ctx, saga.OrderID, saga.ReservationID); err != nil {
		o.logger.Warn("Reservation confirmation failed",
			"sagaId", saga.ID, "orderId", saga.OrderID, "error", err)
		return o.compensate(ctx, saga, fmt.Sprintf("reservation confirmation failed: %v", err))
	}
	saga.recordCompensation(ActionRefundPayment)
	saga.transitionTo(StatePaymentProcessed, o.now())
	if err := o.save(ctx, saga); err != nil {
		return err
	}

	return o.startFulfillment(ctx, saga)
}

// startFulfillment books the shipment and pushes the tracking number back
// onto the order. The OrderShippingUpdated event completes the saga.
func (o *Orchestrator) startFulfillment(ctx context.Context, saga *Saga) error {
	shipmentID, err := o.shipping.CreateShipment(ctx, saga.OrderID, saga.Items, saga.ShippingAddress)
	if err != nil {
		o.logger.Warn("Shipment creation failed",
			"sagaId", saga.ID, "orderId", saga.OrderID, "error", err)
		return o.compensate(ctx, saga, fmt.Sprintf("shipment creation failed: %v", err))
	}
	saga.ShipmentID = shipmentID
	saga.recordCompensation(ActionCancelShipment)
	saga.transitionTo(StateFulfillmentStarted, o.now())
	if err := o.save(ctx, saga); err != nil {
		return err
	}

	shipping := saga.Shipping
	shipping.TrackingNumber = shipmentID
	if err := o.dispatch(ctx, order.UpdateShippingInfo{
		OrderID:      saga.OrderID,
		ShippingInfo: shipping,
	}); err != nil {
		return o.compensate(ctx, saga, fmt.Sprintf("shipping update failed: %v", err))
	}
	return nil
}

// handleShippingUpdated completes the saga once a tracking number appears.
func (o *Orchestrator) handleShippingUpdated(ctx context.Context, saga *Saga, e order.OrderShippingUpdated) error {
	if saga.State != eventGuards["OrderShippingUpdated"] {
		o.logger.Debug("Ignoring shipping update in state",
			"sagaId", saga.ID, "state", saga.State)
		return nil
	}
	if e.ShippingInfo.TrackingNumber == "" {
		return nil
	}

	saga.transitionTo(StateCompleted, o.now())
	if err := o.save(ctx, saga); err != nil {
		return err
	}
	o.logger.Info("Saga completed", "sagaId", saga.ID, "orderId", saga.OrderID)
	return nil
}

// handleOrderCancelled compensates a saga still in flight when the order
// is cancelled. A cancellation after COMPLETED has no effect; refunds for
// completed orders are a separate flow.
func (o *Orchestrator) handleOrderCancelled(ctx context.Context, saga *Saga, e order.OrderCancelled) error {
	if saga.IsTerminal() || saga.State == StateCompensating {
		return nil
	}
	return o.compensateWithoutCancel(ctx, saga, "order cancelled")
}

// compensate runs the compensation protocol and cancels the order.
func (o *Orchestrator) compensate(ctx context.Context, saga *Saga, reason string) error {
	if err := o.compensateWithoutCancel(ctx, saga, reason); err != nil {
		return err
	}

	// The OrderCancelled event this produces finds the saga already in
	// FAILED and is ignored by the state guard.
	if err := o.dispatch(ctx, order.CancelOrder{
		OrderID:     saga.OrderID,
		Reason:      reason,
		CancelledBy: "fulfillment-saga",
	}); err != nil {
		o.logger.Warn("Failed to cancel order after compensation",
			"sagaId", saga.ID, "orderId", saga.OrderID, "error", err)
	}
	return nil
}

// compensateWithoutCancel executes the recorded compensation actions in
// reverse registration order. Each action runs independently: a failure is
// logged and the remaining actions still run. The saga always ends FAILED
// with the triggering reason in LastError.
func (o *Orchestrator) compensateWithoutCancel(ctx context.Context, saga *Saga, reason string) error {
	saga.transitionTo(StateCompensating, o.now())
	if err := o.save(ctx, saga); err != nil {
		o.logger.Error("Failed to persist compensating state",
			"sagaId", saga.ID, "error", err)
	}

	for i := len(saga.Compensations) - 1; i >= 0; i-- {
		action := saga.Compensations[i]
		if err := o.runCompensation(ctx, saga, action); err != nil {
			o.logger.Warn("Compensation action failed",
				"sagaId", saga.ID, "action", action, "error", err)
		}
	}

	saga.LastError = reason
	saga.transitionTo(StateFailed, o.now())
	if err := o.save(ctx, saga); err != nil {
		return err
	}

	o.logger.Info("Saga failed after compensation",
		"sagaId", saga.ID, "orderId", saga.OrderID, "reason", reason)
	return nil
}

// runCompensation dispatches one symbolic action to its port. Actions are
// skipped when the matching forward step never recorded a resource ID.
func (o *Orchestrator) runCompensation(ctx context.Context, saga *Saga, action CompensationAction) error {
	var err error
	switch action {
	case ActionReleaseInventory:
		if saga.ReservationID == "" {
			return nil
		}
		err = o.inventory.ReleaseReservation(ctx, saga.OrderID, saga.ReservationID)

	case ActionRefundPayment:
		if saga.PaymentTransactionID == "" {
			return nil
		}
		_, err = o.payment.RefundPayment(ctx, saga.OrderID, saga.TotalAmount, saga.PaymentTransactionID)

	case ActionCancelShipment:
		if saga.ShipmentID == "" {
			return nil
		}
		err = o.shipping.CancelShipment(ctx, saga.OrderID, saga.ShipmentID)

	default:
		return fmt.Errorf("fulfillment: unknown compensation action %q", action)
	}

	if o.onCompensation != nil {
		o.onCompensation(action, err == nil)
	}
	return err
}

func (o *Orchestrator) save(ctx context.Context, saga *Saga) error {
	if err := o.store.Save(ctx, saga); err != nil {
		return fmt.Errorf("fulfillment: failed to save saga %s: %w", saga.ID, err)
	}
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, cmd orderflow.Command) error {
	result, err := o.commands.Dispatch(ctx, cmd)
	if err != nil {
		return err
	}
	if result.IsError() {
		return result.Error
	}
	return nil
}
