package messagequeue

// TaskStatusPayload is published on SubjectTaskStatus.
type TaskStatusPayload struct {
	TaskID    string `json:"task_id"`
	ContextID string `json:"context_id"`
	State     string `json:"state"`
	Done      bool   `json:"done"`
	RequestID string `json:"request_id,omitempty"`
}

// TaskCancelPayload is consumed from SubjectTaskCancel.
type TaskCancelPayload struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason,omitempty"`
}
