// Package msgpack provides a MessagePack serializer for the event store.
//
// MessagePack produces smaller payloads than JSON, which matters for hot
// order streams. Note that the kafka, sns, and webhook publishers forward
// payloads verbatim, so downstream consumers must decode MessagePack when
// this serializer is in use.
package msgpack

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	orderflow "github.com/orderflow-io/orderflow"
)

// Serializer is a MessagePack implementation of orderflow.Serializer.
// It shares the registry semantics of the default JSON serializer.
type Serializer struct {
	registry *orderflow.EventRegistry
}

var _ orderflow.Serializer = (*Serializer)(nil)

// NewSerializer creates a Serializer with an empty registry.
func NewSerializer() *Serializer {
	return &Serializer{
		registry: orderflow.NewEventRegistry(),
	}
}

// Register adds an event type to the serializer's registry.
func (s *Serializer) Register(eventType string, example interface{}) {
	s.registry.Register(eventType, example)
}

// RegisterAll registers multiple events using their struct names as type names.
func (s *Serializer) RegisterAll(examples ...interface{}) {
	s.registry.RegisterAll(examples...)
}

// Registry returns the underlying EventRegistry.
func (s *Serializer) Registry() *orderflow.EventRegistry {
	return s.registry
}

// Serialize converts an event to MessagePack bytes.
func (s *Serializer) Serialize(event interface{}) ([]byte, error) {
	if event == nil {
		return nil, orderflow.NewSerializationError("nil", "serialize", fmt.Errorf("event cannot be nil"))
	}

	data, err := msgpack.Marshal(event)
	if err != nil {
		return nil, orderflow.NewSerializationError(reflect.TypeOf(event).Name(), "serialize", err)
	}

	return data, nil
}

// Deserialize converts MessagePack bytes back to an event.
// If the event type is registered, returns a value of that type;
// otherwise a map[string]interface{}.
func (s *Serializer) Deserialize(data []byte, eventType string) (interface{}, error) {
	if len(data) == 0 {
		return nil, orderflow.NewSerializationError(eventType, "deserialize", fmt.Errorf("data cannot be empty"))
	}

	t, ok := s.registry.Lookup(eventType)
	if !ok {
		var result map[string]interface{}
		if err := msgpack.Unmarshal(data, &result); err != nil {
			return nil, orderflow.NewSerializationError(eventType, "deserialize", err)
		}
		return result, nil
	}

	ptr := reflect.New(t)
	if err := msgpack.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, orderflow.NewSerializationError(eventType, "deserialize", err)
	}

	return ptr.Elem().Interface(), nil
}
