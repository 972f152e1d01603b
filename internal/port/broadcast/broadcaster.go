// Package broadcast defines the port for broadcasting real-time events to connected clients.
package broadcast

import "context"

// EventTaskStatus is emitted after every committed task change.
const EventTaskStatus = "task.status"

// TaskStatusEvent is the payload of EventTaskStatus.
type TaskStatusEvent struct {
	TaskID    string `json:"task_id"`
	ContextID string `json:"context_id"`
	State     string `json:"state"`
	Reply     string `json:"reply,omitempty"`
	Done      bool   `json:"done"`
}

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
