package orderflow

// Aggregate is an event-sourced domain object: its state is the left fold
// of its event stream.
type Aggregate interface {
	// AggregateID returns the instance identifier.
	AggregateID() string

	// AggregateType returns the stream category, e.g. "Order".
	AggregateType() string

	// Version is the number of events applied so far.
	Version() int64

	// ApplyEvent folds one event into the aggregate's state. It must be
	// deterministic: replaying the same events yields identical state.
	ApplyEvent(event interface{}) error

	// UncommittedEvents returns events applied but not yet persisted.
	UncommittedEvents() []interface{}

	// ClearUncommittedEvents drops the uncommitted list after a save.
	ClearUncommittedEvents()
}

// VersionSetter lets the store stamp the version after loading or saving.
// AggregateBase implements it.
type VersionSetter interface {
	SetVersion(v int64)
}

// Snapshotter marks aggregates that can round trip their state through a
// snapshot. Restoring a snapshot and replaying the event tail must equal a
// full replay from the first event.
type Snapshotter interface {
	// Snapshot returns the serialized state and the version it captures.
	Snapshot() ([]byte, int64, error)

	// RestoreSnapshot loads state captured at the given version.
	RestoreSnapshot(data []byte, version int64) error
}

// AggregateBase supplies the bookkeeping half of the Aggregate interface.
// Embed it and implement ApplyEvent plus the command methods.
type AggregateBase struct {
	id                string
	aggregateType     string
	version           int64
	uncommittedEvents []interface{}
}

// NewAggregateBase creates an AggregateBase at version zero.
func NewAggregateBase(id, aggregateType string) AggregateBase {
	return AggregateBase{id: id, aggregateType: aggregateType}
}

// AggregateID returns the instance identifier.
func (a *AggregateBase) AggregateID() string {
	return a.id
}

// AggregateType returns the stream category.
func (a *AggregateBase) AggregateType() string {
	return a.aggregateType
}

// Version returns the number of applied events.
func (a *AggregateBase) Version() int64 {
	return a.version
}

// SetVersion stamps the version directly.
func (a *AggregateBase) SetVersion(v int64) {
	a.version = v
}

// IncrementVersion advances the version by one.
func (a *AggregateBase) IncrementVersion() {
	a.version++
}

// UncommittedEvents returns events not yet persisted.
func (a *AggregateBase) UncommittedEvents() []interface{} {
	return a.uncommittedEvents
}

// ClearUncommittedEvents drops the uncommitted list.
func (a *AggregateBase) ClearUncommittedEvents() {
	a.uncommittedEvents = nil
}

// Record appends an event to the uncommitted list. The aggregate calls
// this from a command method after validating preconditions; state itself
// only changes in ApplyEvent.
func (a *AggregateBase) Record(event interface{}) {
	a.uncommittedEvents = append(a.uncommittedEvents, event)
}

// HasUncommittedEvents reports pending events.
func (a *AggregateBase) HasUncommittedEvents() bool {
	return len(a.uncommittedEvents) > 0
}

// StreamID returns the stream addressing this aggregate instance.
func (a *AggregateBase) StreamID() StreamID {
	return NewStreamID(a.aggregateType, a.id)
}

// AggregateFactory builds an empty aggregate for an ID, ready for replay.
type AggregateFactory func(id string) Aggregate
