package orderflow

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Serializer encodes event payloads for storage and decodes them back.
// Deserialize receives the stored type name so registry-based
// implementations can pick the concrete Go type.
type Serializer interface {
	Serialize(event interface{}) ([]byte, error)
	Deserialize(data []byte, eventType string) (interface{}, error)
}

// EventRegistry maps event type names to Go types so serialized payloads
// can be decoded back to their concrete types. Safe for concurrent use.
type EventRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewEventRegistry creates an empty registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{types: make(map[string]reflect.Type)}
}

func indirectType(example interface{}) reflect.Type {
	t := reflect.TypeOf(example)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Register maps eventType to the example's Go type. A pointer example is
// registered as its element type.
func (r *EventRegistry) Register(eventType string, example interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[eventType] = indirectType(example)
}

// RegisterAll registers each example under its struct name.
func (r *EventRegistry) RegisterAll(examples ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, example := range examples {
		t := indirectType(example)
		r.types[t.Name()] = t
	}
}

// Lookup returns the Go type registered under the given name.
func (r *EventRegistry) Lookup(eventType string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[eventType]
	return t, ok
}

// RegisteredTypes lists all registered event type names.
func (r *EventRegistry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}

// JSONSerializer is the default Serializer. Payloads of unregistered event
// types deserialize to map[string]interface{} rather than failing, so
// consumers can still route events they do not model.
type JSONSerializer struct {
	registry *EventRegistry
}

// NewJSONSerializer creates a JSONSerializer with an empty registry.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{registry: NewEventRegistry()}
}

// Register adds an event type to the serializer's registry.
func (s *JSONSerializer) Register(eventType string, example interface{}) {
	s.registry.Register(eventType, example)
}

// RegisterAll registers events under their struct names.
func (s *JSONSerializer) RegisterAll(examples ...interface{}) {
	s.registry.RegisterAll(examples...)
}

// Registry returns the underlying EventRegistry.
func (s *JSONSerializer) Registry() *EventRegistry {
	return s.registry
}

// Serialize encodes an event as JSON.
func (s *JSONSerializer) Serialize(event interface{}) ([]byte, error) {
	if event == nil {
		return nil, NewSerializationError("nil", "serialize", fmt.Errorf("event cannot be nil"))
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, NewSerializationError(reflect.TypeOf(event).Name(), "serialize", err)
	}
	return data, nil
}

// Deserialize decodes JSON into the registered type for eventType, or into
// a map when the type is unknown.
func (s *JSONSerializer) Deserialize(data []byte, eventType string) (interface{}, error) {
	if len(data) == 0 {
		return nil, NewSerializationError(eventType, "deserialize", fmt.Errorf("data cannot be empty"))
	}

	t, ok := s.registry.Lookup(eventType)
	if !ok {
		var generic map[string]interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, NewSerializationError(eventType, "deserialize", err)
		}
		return generic, nil
	}

	target := reflect.New(t)
	if err := json.Unmarshal(data, target.Interface()); err != nil {
		return nil, NewSerializationError(eventType, "deserialize", err)
	}
	return target.Elem().Interface(), nil
}

// GetEventType derives the type name for an event from its struct name.
// Returns an empty string for nil.
func GetEventType(event interface{}) string {
	if event == nil {
		return ""
	}
	return indirectType(event).Name()
}

// SerializeEvent encodes an event and wraps it, with its derived type name
// and the given metadata, into an EventData envelope ready for appending.
func SerializeEvent(serializer Serializer, event interface{}, metadata Metadata) (EventData, error) {
	eventType := GetEventType(event)
	if eventType == "" {
		return EventData{}, NewSerializationError("", "serialize", fmt.Errorf("cannot determine event type"))
	}

	data, err := serializer.Serialize(event)
	if err != nil {
		return EventData{}, err
	}
	return EventData{Type: eventType, Data: data, Metadata: metadata}, nil
}

// DeserializeEvent decodes a StoredEvent's payload and pairs it with the
// stored envelope fields.
func DeserializeEvent(serializer Serializer, stored StoredEvent) (Event, error) {
	data, err := serializer.Deserialize(stored.Data, stored.Type)
	if err != nil {
		return Event{}, err
	}
	return EventFromStored(stored, data), nil
}
