package domain

// Event is a side effect of a committed state transition. Transitions return
// events instead of writing notifications themselves; a dispatcher turns each
// event into one notification per recipient and a broker message once the
// transaction has committed.
type Event struct {
	// AggregateType and Action name the broker topic, e.g. order + shipped.
	AggregateType string
	AggregateID   string
	Action        string

	Notification NotificationType
	Recipients   []string
	Title        string
	Message      string

	// Payload is published to the broker as the event data.
	Payload map[string]any
}

// Without returns recipients with userID removed.
func Without(recipients []string, userID string) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r != userID {
			out = append(out, r)
		}
	}
	return out
}
