package fulfillment

import (
	"context"

	"github.com/google/uuid"

	"github.com/orderflow-io/orderflow/order"
)

// SimulatedServices implements all three external service ports in
// process, generating fresh resource IDs for every call. It backs local
// development and demos where no real inventory, payment, or shipping
// systems exist. The function hooks, when set, replace the default
// behavior of the corresponding operation.
type SimulatedServices struct {
	ReserveFunc func(ctx context.Context, orderID string, items []order.OrderItem) (string, error)
	PaymentFunc func(ctx context.Context, orderID string, amount order.Money, method order.PaymentMethod) (string, error)
	ShipFunc    func(ctx context.Context, orderID string, items []order.OrderItem, address order.Address) (string, error)
}

var (
	_ InventoryService = (*SimulatedServices)(nil)
	_ PaymentService   = (*SimulatedServices)(nil)
	_ ShippingService  = (*SimulatedServices)(nil)
)

// NewSimulatedServices creates services that always succeed.
func NewSimulatedServices() *SimulatedServices {
	return &SimulatedServices{}
}

func (s *SimulatedServices) ReserveInventory(ctx context.Context, orderID string, items []order.OrderItem) (string, error) {
	if s.ReserveFunc != nil {
		return s.ReserveFunc(ctx, orderID, items)
	}
	return "res-" + uuid.NewString(), nil
}

func (s *SimulatedServices) ConfirmReservation(ctx context.Context, orderID, reservationID string) error {
	return nil
}

func (s *SimulatedServices) ReleaseReservation(ctx context.Context, orderID, reservationID string) error {
	return nil
}

func (s *SimulatedServices) ProcessPayment(ctx context.Context, orderID string, amount order.Money, method order.PaymentMethod) (string, error) {
	if s.PaymentFunc != nil {
		return s.PaymentFunc(ctx, orderID, amount, method)
	}
	return "txn-" + uuid.NewString(), nil
}

func (s *SimulatedServices) RefundPayment(ctx context.Context, orderID string, amount order.Money, transactionID string) (string, error) {
	return "ref-" + uuid.NewString(), nil
}

func (s *SimulatedServices) CreateShipment(ctx context.Context, orderID string, items []order.OrderItem, address order.Address) (string, error) {
	if s.ShipFunc != nil {
		return s.ShipFunc(ctx, orderID, items, address)
	}
	return "shp-" + uuid.NewString(), nil
}

func (s *SimulatedServices) CancelShipment(ctx context.Context, orderID, shipmentID string) error {
	return nil
}
