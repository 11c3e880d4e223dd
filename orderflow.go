// Package orderflow provides the event sourcing and CQRS primitives that the
// order lifecycle service is built on.
//
// An order's state is never stored directly: every change is captured as a
// domain event appended to the order's stream, and current state is rebuilt
// by replaying that stream (optionally from a snapshot). Commands are
// dispatched through a CommandBus, load the aggregate, invoke a domain
// method, and persist the resulting events with an optimistic concurrency
// check.
//
// Create an event store with the in-memory adapter for development:
//
//	store := orderflow.New(memory.NewAdapter())
//
// For production, use the PostgreSQL adapter:
//
//	adapter, err := postgres.NewAdapter(connStr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := orderflow.New(adapter)
//
// The order domain lives in the order package; the fulfillment saga that
// reacts to order events lives in the fulfillment package.
package orderflow

// Version returns the library version string.
func Version() string {
	return "0.1.0"
}

// BuildStreamID creates a stream ID from an aggregate type and ID.
// This follows the convention: "{Type}-{ID}"
func BuildStreamID(aggregateType, aggregateID string) string {
	return aggregateType + "-" + aggregateID
}
