// Package messagequeue defines the port for task status events and
// out-of-band cancel requests.
package messagequeue

import "context"

// Handler processes one delivered message. The context carries the
// publisher's request id when one was set. Returning an error asks the
// queue to redeliver.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue publishes and consumes JSON messages on named subjects.
type Queue interface {
	// Publish sends data on subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe delivers new messages on subject to handler until the
	// returned cancel function is called.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain lets in-flight handlers finish, then closes the connection.
	Drain() error

	// Close drops the connection immediately.
	Close() error

	// IsConnected is reported by the health endpoint.
	IsConnected() bool
}

// Subjects used by Careline.
const (
	SubjectTaskStatus = "tasks.status" // committed task changes
	SubjectTaskCancel = "tasks.cancel" // cancel a task out of band
)
