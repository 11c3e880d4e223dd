package order

// Status is the lifecycle state of an order.
type Status string

// Order statuses.
const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// statusTransitions is the complete transition table. Any pair absent
// here is rejected; terminal states have no entries.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// IsValid returns true for a known status.
func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// IsTerminal returns true if no transition leaves this status.
func (s Status) IsTerminal() bool {
	return len(statusTransitions[s]) == 0 && s.IsValid()
}

// CanTransitionTo returns true if the transition table allows s -> to.
func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// String returns the status as a string.
func (s Status) String() string {
	return string(s)
}
