package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderflow "github.com/orderflow-io/orderflow"
	"github.com/orderflow-io/orderflow/adapters/memory"
	"github.com/orderflow-io/orderflow/order"
)

func newTestBus() (*orderflow.CommandBus, *orderflow.EventStore) {
	store := orderflow.New(memory.NewAdapter())
	order.RegisterEvents(store)

	bus := orderflow.NewCommandBus(orderflow.WithMiddleware(orderflow.ValidationMiddleware()))
	order.RegisterHandlers(bus, store)
	return bus, store
}

func createCommand() order.CreateOrder {
	return order.CreateOrder{
		CustomerID: "cust-1",
		Items: []order.ItemInput{
			{ProductID: "p1", Name: "Widget", Quantity: 2, UnitPrice: order.MustMoney(1500, "USD")},
		},
		ShippingAddress: order.Address{Street: "1 Main St", City: "Springfield", PostalCode: "62701", Country: "US"},
		PaymentInfo:     order.PaymentInfo{Method: order.PaymentMethodCard, Status: order.PaymentStatusPending},
	}
}

func TestOrderCommandFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("create assigns an ID and persists the stream", func(t *testing.T) {
		bus, store := newTestBus()

		result, err := bus.Dispatch(ctx, createCommand())
		require.NoError(t, err)
		require.True(t, result.IsSuccess())
		assert.NotEmpty(t, result.AggregateID)
		assert.Equal(t, int64(1), result.Version)

		loaded := order.NewOrder(result.AggregateID)
		require.NoError(t, store.LoadAggregate(ctx, loaded))
		assert.Equal(t, order.StatusPending, loaded.Status())
		assert.Equal(t, "cust-1", loaded.CustomerID())
	})

	t.Run("captured payment confirms the order", func(t *testing.T) {
		bus, store := newTestBus()

		created, err := bus.Dispatch(ctx, createCommand())
		require.NoError(t, err)
		orderID := created.AggregateID

		result, err := bus.Dispatch(ctx, order.UpdatePaymentInfo{
			OrderID: orderID,
			PaymentInfo: order.PaymentInfo{
				Method: order.PaymentMethodCard, Status: order.PaymentStatusCaptured, TransactionID: "txn-1",
			},
		})
		require.NoError(t, err)
		require.True(t, result.IsSuccess())
		assert.Equal(t, int64(3), result.Version)

		loaded := order.NewOrder(orderID)
		require.NoError(t, store.LoadAggregate(ctx, loaded))
		assert.Equal(t, order.StatusConfirmed, loaded.Status())
	})

	t.Run("full lifecycle through the bus", func(t *testing.T) {
		bus, store := newTestBus()

		created, err := bus.Dispatch(ctx, createCommand())
		require.NoError(t, err)
		orderID := created.AggregateID

		steps := []orderflow.Command{
			order.UpdatePaymentInfo{OrderID: orderID, PaymentInfo: order.PaymentInfo{
				Method: order.PaymentMethodCard, Status: order.PaymentStatusCaptured, TransactionID: "txn-1",
			}},
			order.AddOrderItem{OrderID: orderID, Item: order.ItemInput{
				ProductID: "p2", Quantity: 1, UnitPrice: order.MustMoney(2500, "USD"),
			}},
			order.UpdateOrderStatus{OrderID: orderID, Status: order.StatusProcessing, ChangedBy: "warehouse"},
			order.UpdateShippingInfo{OrderID: orderID, ShippingInfo: order.ShippingInfo{
				Carrier: "UPS", TrackingNumber: "1Z999", Cost: order.MustMoney(500, "USD"),
			}},
			order.UpdateOrderStatus{OrderID: orderID, Status: order.StatusDelivered, ChangedBy: "carrier"},
			order.RefundOrder{OrderID: orderID, Amount: order.MustMoney(1000, "USD"), Reason: "late", RefundedBy: "support"},
		}
		for _, cmd := range steps {
			result, err := bus.Dispatch(ctx, cmd)
			require.NoError(t, err, "command %s", cmd.CommandType())
			require.True(t, result.IsSuccess(), "command %s: %v", cmd.CommandType(), result.Error)
		}

		loaded := order.NewOrder(orderID)
		require.NoError(t, store.LoadAggregate(ctx, loaded))
		assert.Equal(t, order.StatusRefunded, loaded.Status())
		assert.Equal(t, order.PaymentStatusRefunded, loaded.PaymentInfo().Status)
		assert.Equal(t, "1Z999", loaded.ShippingInfo().TrackingNumber)
	})

	t.Run("domain rejections surface in the result", func(t *testing.T) {
		bus, _ := newTestBus()

		created, err := bus.Dispatch(ctx, createCommand())
		require.NoError(t, err)

		result, err := bus.Dispatch(ctx, order.UpdateOrderStatus{
			OrderID: created.AggregateID,
			Status:  order.StatusShipped,
		})
		require.NoError(t, err)
		assert.True(t, result.IsError())
		assert.ErrorIs(t, result.Error, order.ErrInvalidStatusTransition)
	})

	t.Run("validation middleware rejects malformed commands", func(t *testing.T) {
		bus, _ := newTestBus()

		_, err := bus.Dispatch(ctx, order.CreateOrder{CustomerID: "cust-1"})
		assert.ErrorIs(t, err, orderflow.ErrValidationFailed)
	})

	t.Run("commands against a missing order fail", func(t *testing.T) {
		bus, _ := newTestBus()

		result, err := bus.Dispatch(ctx, order.CancelOrder{OrderID: "missing", Reason: "test"})
		require.NoError(t, err)
		assert.True(t, result.IsError())
		assert.ErrorIs(t, result.Error, order.ErrOrderNotFound)
	})
}
