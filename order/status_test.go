package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	t.Run("allowed transitions", func(t *testing.T) {
		allowed := []struct{ from, to Status }{
			{StatusPending, StatusConfirmed},
			{StatusPending, StatusCancelled},
			{StatusConfirmed, StatusProcessing},
			{StatusConfirmed, StatusCancelled},
			{StatusProcessing, StatusShipped},
			{StatusProcessing, StatusCancelled},
			{StatusShipped, StatusDelivered},
			{StatusShipped, StatusCancelled},
			{StatusDelivered, StatusRefunded},
		}
		for _, tt := range allowed {
			assert.True(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
		}
	})

	t.Run("everything else is rejected", func(t *testing.T) {
		all := []Status{
			StatusPending, StatusConfirmed, StatusProcessing,
			StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded,
		}
		allowed := map[Status]map[Status]bool{
			StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
			StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true},
			StatusProcessing: {StatusShipped: true, StatusCancelled: true},
			StatusShipped:    {StatusDelivered: true, StatusCancelled: true},
			StatusDelivered:  {StatusRefunded: true},
		}
		for _, from := range all {
			for _, to := range all {
				if allowed[from][to] {
					continue
				}
				assert.False(t, from.CanTransitionTo(to), "%s -> %s should be rejected", from, to)
			}
		}
	})

	t.Run("terminal states", func(t *testing.T) {
		assert.True(t, StatusCancelled.IsTerminal())
		assert.True(t, StatusRefunded.IsTerminal())
		for _, s := range []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered} {
			assert.False(t, s.IsTerminal(), "%s", s)
		}
	})

	t.Run("validity", func(t *testing.T) {
		assert.True(t, StatusPending.IsValid())
		assert.False(t, Status("unknown").IsValid())
		assert.False(t, Status("").IsValid())
		assert.False(t, Status("").IsTerminal())
	})
}
