package order

import (
	"context"

	"github.com/google/uuid"

	orderflow "github.com/orderflow-io/orderflow"
)

// RegisterEvents registers all order event types with the event store's
// serializer so stored events deserialize to their concrete types.
func RegisterEvents(store *orderflow.EventStore) {
	store.RegisterEvents(Events()...)
}

// RegisterHandlers wires every order command to an aggregate handler on
// the bus. Each handler loads the order, invokes the matching domain
// method, and persists the resulting events.
func RegisterHandlers(bus *orderflow.CommandBus, store *orderflow.EventStore) {
	bus.Register(orderflow.NewAggregateHandler(orderflow.AggregateHandlerConfig[CreateOrder, *Order]{
		Store:     store,
		Factory:   NewOrder,
		NewIDFunc: uuid.NewString,
		Executor: func(ctx context.Context, o *Order, cmd CreateOrder) error {
			return o.Create(cmd.CustomerID, cmd.Items, cmd.ShippingAddress, cmd.BillingAddress, cmd.PaymentInfo, cmd.ShippingInfo)
		},
	}))

	bus.Register(orderflow.NewAggregateHandler(orderflow.AggregateHandlerConfig[UpdateOrderStatus, *Order]{
		Store:   store,
		Factory: NewOrder,
		Executor: func(ctx context.Context, o *Order, cmd UpdateOrderStatus) error {
			return o.ChangeStatus(cmd.Status, cmd.Reason, cmd.ChangedBy)
		},
	}))

	bus.Register(orderflow.NewAggregateHandler(orderflow.AggregateHandlerConfig[AddOrderItem, *Order]{
		Store:   store,
		Factory: NewOrder,
		Executor: func(ctx context.Context, o *Order, cmd AddOrderItem) error {
			return o.AddItem(cmd.Item)
		},
	}))

	bus.Register(orderflow.NewAggregateHandler(orderflow.AggregateHandlerConfig[RemoveOrderItem, *Order]{
		Store:   store,
		Factory: NewOrder,
		Executor: func(ctx context.Context, o *Order, cmd RemoveOrderItem) error {
			return o.RemoveItem(cmd.ItemID)
		},
	}))

	bus.Register(orderflow.NewAggregateHandler(orderflow.AggregateHandlerConfig[UpdateItemQuantity, *Order]{
		Store:   store,
		Factory: NewOrder,
		Executor: func(ctx context.Context, o *Order, cmd UpdateItemQuantity) error {
			return o.UpdateItemQuantity(cmd.ItemID, cmd.Quantity)
		},
	}))

	bus.Register(orderflow.NewAggregateHandler(orderflow.AggregateHandlerConfig[UpdatePaymentInfo, *Order]{
		Store:   store,
		Factory: NewOrder,
		Executor: func(ctx context.Context, o *Order, cmd UpdatePaymentInfo) error {
			return o.UpdatePaymentInfo(cmd.PaymentInfo)
		},
	}))

	bus.Register(orderflow.NewAggregateHandler(orderflow.AggregateHandlerConfig[UpdateShippingInfo, *Order]{
		Store:   store,
		Factory: NewOrder,
		Executor: func(ctx context.Context, o *Order, cmd UpdateShippingInfo) error {
			return o.UpdateShippingInfo(cmd.ShippingInfo)
		},
	}))

	bus.Register(orderflow.NewAggregateHandler(orderflow.AggregateHandlerConfig[CancelOrder, *Order]{
		Store:   store,
		Factory: NewOrder,
		Executor: func(ctx context.Context, o *Order, cmd CancelOrder) error {
			return o.Cancel(cmd.Reason, cmd.CancelledBy)
		},
	}))

	bus.Register(orderflow.NewAggregateHandler(orderflow.AggregateHandlerConfig[RefundOrder, *Order]{
		Store:   store,
		Factory: NewOrder,
		Executor: func(ctx context.Context, o *Order, cmd RefundOrder) error {
			return o.Refund(cmd.Amount, cmd.Reason, cmd.RefundedBy, cmd.TransactionID)
		},
	}))
}
