package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/domain/task"
	"github.com/Strob0t/careline/internal/logger"
	"github.com/Strob0t/careline/internal/port/broadcast"
	"github.com/Strob0t/careline/internal/port/messagequeue"
)

// SendRequest is one inbound message. An empty TaskID starts a new task.
type SendRequest struct {
	TaskID    string       `json:"taskId,omitempty"`
	ContextID string       `json:"contextId,omitempty"`
	Message   task.Message `json:"message"`
}

// TaskView is the outward summary of a task.
type TaskView struct {
	ID        string          `json:"id"`
	ContextID string          `json:"contextId"`
	State     task.State      `json:"state"`
	Reply     string          `json:"reply"`
	Artifacts []task.Artifact `json:"artifacts"`
	Done      bool            `json:"done"`
}

// View summarizes t. A task is done once its appointment is confirmed.
func View(t *task.Task) TaskView {
	v := TaskView{
		ID:        t.ID,
		ContextID: t.ContextID,
		State:     t.Status.State,
		Reply:     t.LatestAgentMessage().Text(),
		Artifacts: t.Artifacts,
	}
	if v.Artifacts == nil {
		v.Artifacts = []task.Artifact{}
	}
	for i := range t.Artifacts {
		if t.Artifacts[i].Name == ArtifactAppointment {
			v.Done = true
		}
	}
	return v
}

// ProtocolService is the inbound surface shared by every transport.
type ProtocolService struct {
	store   *TaskStore
	machine *TaskMachine
	orch    *Orchestrator
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue
}

// NewProtocolService creates a ProtocolService.
func NewProtocolService(store *TaskStore, machine *TaskMachine, orch *Orchestrator) *ProtocolService {
	return &ProtocolService{store: store, machine: machine, orch: orch}
}

// SetBroadcaster attaches a real-time status feed.
func (s *ProtocolService) SetBroadcaster(b broadcast.Broadcaster) { s.hub = b }

// SetQueue attaches the message queue used for status events and cancels.
func (s *ProtocolService) SetQueue(q messagequeue.Queue) { s.queue = q }

// CreateOrContinue runs one turn for req, creating the task first when no
// task id is given. Unknown task ids fail with ErrTaskNotFound.
func (s *ProtocolService) CreateOrContinue(ctx context.Context, req SendRequest) (*task.Task, error) {
	if req.Message.Role != "" && req.Message.Role != task.RoleUser {
		return nil, fmt.Errorf("%w: message role must be %q", domain.ErrValidation, task.RoleUser)
	}
	text := strings.TrimSpace(req.Message.Parts.Text())
	if text == "" {
		return nil, fmt.Errorf("%w: message must contain text", domain.ErrValidation)
	}

	id := req.TaskID
	if id == "" {
		t, err := s.machine.Create(ctx, req.ContextID)
		if err != nil {
			return nil, err
		}
		id = t.ID
		slog.InfoContext(ctx, "task created", "task_id", t.ID, "context_id", t.ContextID)
	}

	var claimed bool
	t, sess, err := s.machine.Continue(ctx, id, req.Message, func(t *task.Task, sess *session.Session) error {
		if req.ContextID != "" && req.ContextID != t.ContextID {
			return fmt.Errorf("%w: task %s belongs to context %s", domain.ErrValidation, t.ID, t.ContextID)
		}
		if err := s.orch.Turn(ctx, t, sess, text); err != nil {
			return err
		}
		claimed = s.orch.claimRecord(sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed {
		s.orch.writeRecord(ctx, t, sess)
	}
	s.publish(ctx, t)
	return t, nil
}

// Get returns the committed task with at most historyLimit history entries.
// historyLimit <= 0 returns the full history. Reads never mutate.
func (s *ProtocolService) Get(ctx context.Context, id string, historyLimit int) (*task.Task, error) {
	if historyLimit < 0 {
		return nil, fmt.Errorf("%w: historyLength must not be negative", domain.ErrValidation)
	}
	t, _, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.WithHistoryLimit(historyLimit), nil
}

// Cancel moves a task to canceled. Canceling twice fails with ErrTaskTerminal.
func (s *ProtocolService) Cancel(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.machine.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "task canceled", "task_id", t.ID)
	s.publish(ctx, t)
	return t, nil
}

// ReportInputFailure records a turn in which speech input failed.
func (s *ProtocolService) ReportInputFailure(ctx context.Context, id, kind string) (*task.Task, error) {
	k, err := ParseInputFailureKind(kind)
	if err != nil {
		return nil, err
	}
	var claimed bool
	t, sess, err := s.machine.Resume(ctx, id, func(t *task.Task, sess *session.Session) error {
		if err := s.orch.InputFailure(ctx, t, sess, k); err != nil {
			return err
		}
		claimed = s.orch.claimRecord(sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed {
		s.orch.writeRecord(ctx, t, sess)
	}
	s.publish(ctx, t)
	return t, nil
}

// StartCancelSubscriber cancels tasks requested on the tasks.cancel subject.
func (s *ProtocolService) StartCancelSubscriber(ctx context.Context) (cancel func(), err error) {
	if s.queue == nil {
		return func() {}, nil
	}
	return s.queue.Subscribe(ctx, messagequeue.SubjectTaskCancel, func(msgCtx context.Context, subject string, data []byte) error {
		if err := messagequeue.Validate(subject, data); err != nil {
			// Redelivery cannot fix a malformed message.
			slog.WarnContext(msgCtx, "dropping invalid cancel message", "error", err)
			return nil
		}
		var p messagequeue.TaskCancelPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("unmarshal task cancel: %w", err)
		}
		if _, err := s.Cancel(msgCtx, p.TaskID); err != nil {
			if domain.IsProtocolError(err) {
				slog.InfoContext(msgCtx, "cancel request ignored", "task_id", p.TaskID, "error", err)
				return nil
			}
			return err
		}
		return nil
	})
}

// publish emits the committed state of t. Delivery failures are logged only.
func (s *ProtocolService) publish(ctx context.Context, t *task.Task) {
	v := View(t)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventTaskStatus, broadcast.TaskStatusEvent{
			TaskID:    v.ID,
			ContextID: v.ContextID,
			State:     string(v.State),
			Reply:     v.Reply,
			Done:      v.Done,
		})
	}
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.TaskStatusPayload{
		TaskID:    v.ID,
		ContextID: v.ContextID,
		State:     string(v.State),
		Done:      v.Done,
		RequestID: logger.RequestID(ctx),
	})
	if err != nil {
		slog.ErrorContext(ctx, "encode task status", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectTaskStatus, data); err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "publish task status failed", "task_id", v.ID, "error", err)
	}
}
