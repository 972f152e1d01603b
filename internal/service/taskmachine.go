package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/domain/task"
)

// TurnFunc runs orchestration on a task after the inbound message has been
// appended. It works on the same uncommitted copies as the machine.
type TurnFunc func(t *task.Task, sess *session.Session) error

// TaskMachine enforces the task lifecycle and the append-only history. It is
// the only code that changes a task's state.
type TaskMachine struct {
	store *TaskStore
	now   func() time.Time
	newID func() string
}

// NewTaskMachine creates a TaskMachine over the given store.
func NewTaskMachine(store *TaskStore) *TaskMachine {
	return &TaskMachine{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Create allocates a submitted task with a fresh session. An empty contextID
// starts a new context.
func (m *TaskMachine) Create(ctx context.Context, contextID string) (*task.Task, error) {
	now := m.now().UTC()
	if contextID == "" {
		contextID = m.newID()
	}
	t := &task.Task{
		ID:        m.newID(),
		ContextID: contextID,
		Status:    task.Status{State: task.StateSubmitted, Timestamp: now},
		History:   []task.Message{},
		Artifacts: []task.Artifact{},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
		Kind:      "task",
	}
	sess := session.New(m.newID(), now)
	if err := m.store.Create(ctx, t, sess); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Continue appends msg to a non-terminal task and then runs turn on it under
// the task's lock. Nothing is committed when turn fails.
func (m *TaskMachine) Continue(ctx context.Context, taskID string, msg task.Message, turn TurnFunc) (*task.Task, *session.Session, error) {
	return m.store.Update(ctx, taskID, func(t *task.Task, sess *session.Session) error {
		if t.IsTerminal() {
			return fmt.Errorf("%w: task %s is %s", domain.ErrTaskTerminal, t.ID, t.Status.State)
		}
		m.Append(t, msg)
		if turn == nil {
			return nil
		}
		return turn(t, sess)
	})
}

// Resume runs turn on a non-terminal task without an inbound message, for
// turns in which the caller's input could not be captured.
func (m *TaskMachine) Resume(ctx context.Context, taskID string, turn TurnFunc) (*task.Task, *session.Session, error) {
	return m.store.Update(ctx, taskID, func(t *task.Task, sess *session.Session) error {
		if t.IsTerminal() {
			return fmt.Errorf("%w: task %s is %s", domain.ErrTaskTerminal, t.ID, t.Status.State)
		}
		return turn(t, sess)
	})
}

// Cancel moves a task to canceled. A second cancel fails with ErrTaskTerminal.
func (m *TaskMachine) Cancel(ctx context.Context, taskID string) (*task.Task, error) {
	t, _, err := m.store.Update(ctx, taskID, func(t *task.Task, _ *session.Session) error {
		return m.Transition(t, task.StateCanceled, nil)
	})
	return t, err
}

// Append adds a message to the history, filling in ids the caller left empty.
func (m *TaskMachine) Append(t *task.Task, msg task.Message) {
	if msg.MessageID == "" {
		msg.MessageID = m.newID()
	}
	if msg.Role == "" {
		msg.Role = task.RoleUser
	}
	msg.TaskID = t.ID
	msg.ContextID = t.ContextID
	msg.Kind = "message"
	t.History = append(t.History, msg)
	t.UpdatedAt = m.now().UTC()
}

// AgentMessage builds an agent text message.
func (m *TaskMachine) AgentMessage(text string) *task.Message {
	return &task.Message{
		Role:  task.RoleAgent,
		Parts: task.Parts{task.TextPart{Text: text}},
		Kind:  "message",
	}
}

// Transition moves t to next along the lifecycle graph, appending the
// optional agent message to the history and, for completed tasks, the given
// artifacts. On error t is left unchanged.
func (m *TaskMachine) Transition(t *task.Task, next task.State, agentMsg *task.Message, artifacts ...task.Artifact) error {
	from := t.Status.State
	if from.IsTerminal() {
		return fmt.Errorf("%w: task %s is %s", domain.ErrTaskTerminal, t.ID, from)
	}
	if !from.CanTransition(next) {
		return fmt.Errorf("invalid transition %s -> %s", from, next)
	}
	if next == task.StateCanceled && agentMsg != nil {
		return fmt.Errorf("canceled task %s takes no agent content", t.ID)
	}
	if len(artifacts) > 0 && next != task.StateCompleted {
		return fmt.Errorf("artifacts are only attached on completion, not %s", next)
	}

	now := m.now().UTC()
	var status *task.Message
	if agentMsg != nil {
		msg := *agentMsg
		msg.Role = task.RoleAgent
		m.Append(t, msg)
		appended := t.History[len(t.History)-1]
		status = &appended
	}
	for _, a := range artifacts {
		if a.ArtifactID == "" {
			a.ArtifactID = m.newID()
		}
		t.Artifacts = append(t.Artifacts, a)
	}
	t.Status = task.Status{State: next, Message: status, Timestamp: now}
	t.UpdatedAt = now
	return nil
}
