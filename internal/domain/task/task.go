// Package task defines the Task, Message and Artifact protocol entities.
package task

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is a single conversational message made of parts.
type Message struct {
	Role      Role   `json:"role"`
	Parts     Parts  `json:"parts"`
	MessageID string `json:"messageId"`
	TaskID    string `json:"taskId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
	Kind      string `json:"kind"` // always "message"
}

// Text returns the concatenated text parts of the message.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	return m.Parts.Text()
}

// Artifact is a named structured result attached to a task.
type Artifact struct {
	ArtifactID  string `json:"artifactId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parts       Parts  `json:"parts"`
}

// Status is the current lifecycle position of a task.
type Status struct {
	State     State     `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is one tracked unit of conversational work.
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    Status         `json:"status"`
	History   []Message      `json:"history"`
	Artifacts []Artifact     `json:"artifacts"`
	Metadata  map[string]any `json:"metadata"` //nolint:gosec // A2A protocol requires flexible metadata
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Kind      string         `json:"kind"` // always "task"
}

// Context groups tasks that share a conversation thread.
type Context struct {
	ID        string    `json:"id"`
	TaskIDs   []string  `json:"taskIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsTerminal reports whether the task can no longer change.
func (t *Task) IsTerminal() bool {
	return t.Status.State.IsTerminal()
}

// LatestAgentMessage returns the most recent agent message in history, or nil.
func (t *Task) LatestAgentMessage() *Message {
	for i := len(t.History) - 1; i >= 0; i-- {
		if t.History[i].Role == RoleAgent {
			return &t.History[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the task. Metadata values are copied through
// a JSON round trip so nested maps are not shared.
func (t *Task) Clone() (*Task, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var c Task
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// WithHistoryLimit returns a shallow copy whose history holds at most the
// last n entries. n <= 0 means no limit.
func (t *Task) WithHistoryLimit(n int) *Task {
	c := *t
	if n > 0 && len(c.History) > n {
		c.History = append([]Message(nil), c.History[len(c.History)-n:]...)
	}
	return &c
}
