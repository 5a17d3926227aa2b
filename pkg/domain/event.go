package domain

// EventType identifies what an Event reports.
type EventType string

const (
	EventLoadStarted  EventType = "load-started"
	EventLoadFinished EventType = "load-finished"
	EventRunStarted   EventType = "started"
	EventRunFinished  EventType = "finished"
	EventNodeState    EventType = "state"
)

// Event is a structured record emitted for run boundaries and node state transitions.
// Node fields are copied at emission time, so events stay valid after the node changes.
type Event struct {
	Type    EventType `json:"type"`
	RunID   string    `json:"runId,omitempty"`
	IDs     []string  `json:"ids,omitempty"`
	NodeID  string    `json:"nodeId,omitempty"`
	Kind    Kind      `json:"nodeType,omitempty"`
	State   State     `json:"state,omitempty"`
	Message string    `json:"message,omitempty"`
	Tree    *Tree     `json:"-"`
}

// NodeEvent snapshots node into a state event.
func NodeEvent(runID string, node *Node) Event {
	return Event{
		Type:    EventNodeState,
		RunID:   runID,
		NodeID:  node.ID,
		Kind:    node.Kind,
		State:   node.State,
		Message: node.Message,
	}
}
