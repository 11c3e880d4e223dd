package fulfillment

import (
	"context"
	"errors"
	"fmt"

	orderflow "github.com/orderflow-io/orderflow"
	"github.com/orderflow-io/orderflow/order"
)

// ErrExternalService matches any failure returned by an external service
// port. A step failing with this error triggers saga compensation, never a
// process crash.
var ErrExternalService = errors.New("fulfillment: external service call failed")

// ExternalServiceError reports a failed call to an external service.
type ExternalServiceError struct {
	Service   string
	Operation string
	Cause     error
}

// Error returns the error message.
func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("fulfillment: %s.%s failed: %v", e.Service, e.Operation, e.Cause)
}

// Is reports whether this error matches ErrExternalService.
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalService
}

// Unwrap returns the underlying cause.
func (e *ExternalServiceError) Unwrap() error {
	return e.Cause
}

// NewExternalServiceError creates a new ExternalServiceError.
func NewExternalServiceError(service, operation string, cause error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Operation: operation, Cause: cause}
}

// InventoryService is the port to the inventory system.
type InventoryService interface {
	// ReserveInventory reserves stock for the order's items and returns a
	// reservation ID.
	ReserveInventory(ctx context.Context, orderID string, items []order.OrderItem) (string, error)

	// ConfirmReservation converts a reservation into a firm allocation.
	ConfirmReservation(ctx context.Context, orderID, reservationID string) error

	// ReleaseReservation releases reserved stock back to the pool.
	ReleaseReservation(ctx context.Context, orderID, reservationID string) error
}

// PaymentService is the port to the payment gateway.
type PaymentService interface {
	// ProcessPayment captures payment for the order and returns a
	// transaction ID.
	ProcessPayment(ctx context.Context, orderID string, amount order.Money, method order.PaymentMethod) (string, error)

	// RefundPayment refunds a captured payment and returns a refund ID.
	RefundPayment(ctx context.Context, orderID string, amount order.Money, transactionID string) (string, error)
}

// ShippingService is the port to the shipping provider.
type ShippingService interface {
	// CreateShipment books a shipment and returns its tracking number.
	CreateShipment(ctx context.Context, orderID string, items []order.OrderItem, address order.Address) (string, error)

	// CancelShipment cancels a previously created shipment.
	CancelShipment(ctx context.Context, orderID, shipmentID string) error
}

// CommandDispatcher sends commands back into the order aggregate.
// *orderflow.CommandBus satisfies this interface.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd orderflow.Command) (orderflow.CommandResult, error)
}
