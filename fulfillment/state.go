// Package fulfillment implements the order fulfillment saga: a long-running
// compensating process, one instance per order, that coordinates inventory
// reservation, payment capture, and shipment creation in response to order
// events.
package fulfillment

import (
	"time"

	"github.com/orderflow-io/orderflow/order"
)

// State is the saga's position in the fulfillment flow.
type State string

// Saga states. The forward flow is STARTED through COMPLETED in order;
// COMPENSATING and FAILED are reachable from any non-terminal state.
const (
	StateStarted            State = "STARTED"
	StateInventoryReserved  State = "INVENTORY_RESERVED"
	StatePaymentPending     State = "PAYMENT_PENDING"
	StatePaymentProcessed   State = "PAYMENT_PROCESSED"
	StateFulfillmentStarted State = "FULFILLMENT_STARTED"
	StateCompleted          State = "COMPLETED"
	StateCompensating       State = "COMPENSATING"
	StateFailed             State = "FAILED"
)

// IsTerminal returns true once the saga can no longer make progress.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// String returns the state as a string.
func (s State) String() string {
	return string(s)
}

// CompensationAction is a symbolic undo step. Actions are recorded only
// after the corresponding forward step succeeds, and executed in reverse
// registration order on failure.
type CompensationAction string

// Compensation actions.
const (
	ActionReleaseInventory CompensationAction = "RELEASE_INVENTORY"
	ActionRefundPayment    CompensationAction = "REFUND_PAYMENT"
	ActionCancelShipment   CompensationAction = "CANCEL_SHIPMENT"
)

// Saga is the persisted state of one fulfillment saga instance.
// It carries the order snapshot needed for orchestration plus the
// compensation stack and resource identifiers created by forward steps.
type Saga struct {
	// ID is the unique saga identifier.
	ID string `json:"id"`

	// OrderID is the order this saga coordinates. At most one live
	// (non-terminal) saga exists per order.
	OrderID string `json:"orderId"`

	// State is the saga's current position in the flow.
	State State `json:"state"`

	// Items is the order's line items at saga start.
	Items []order.OrderItem `json:"items"`

	// TotalAmount is the order total at saga start.
	TotalAmount order.Money `json:"totalAmount"`

	// ShippingAddress is the destination for the shipment.
	ShippingAddress order.Address `json:"shippingAddress"`

	// Shipping carries the order's carrier and cost, reused when the saga
	// pushes the tracking number back onto the order.
	Shipping order.ShippingInfo `json:"shipping"`

	// PaymentMethod is the order's payment method.
	PaymentMethod order.PaymentMethod `json:"paymentMethod"`

	// ReservationID is set once inventory has been reserved.
	ReservationID string `json:"reservationId,omitempty"`

	// PaymentTransactionID is set once payment has been captured.
	PaymentTransactionID string `json:"paymentTransactionId,omitempty"`

	// ShipmentID is set once a shipment has been created.
	ShipmentID string `json:"shipmentId,omitempty"`

	// Compensations is the stack of undo actions, in registration order.
	Compensations []CompensationAction `json:"compensations,omitempty"`

	// RetryCount is the number of manual retries performed.
	RetryCount int `json:"retryCount"`

	// LastError holds the failure that sent the saga to FAILED.
	LastError string `json:"lastError,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Version guards saga updates with optimistic concurrency.
	Version int64 `json:"version"`
}

// recordCompensation pushes an undo action onto the compensation stack.
func (s *Saga) recordCompensation(action CompensationAction) {
	s.Compensations = append(s.Compensations, action)
}

// transitionTo moves the saga to a new state.
func (s *Saga) transitionTo(state State, now time.Time) {
	s.State = state
	s.UpdatedAt = now
	if state == StateCompleted {
		completed := now
		s.CompletedAt = &completed
	}
}

// IsTerminal returns true once the saga is COMPLETED or FAILED.
func (s *Saga) IsTerminal() bool {
	return s.State.IsTerminal()
}
