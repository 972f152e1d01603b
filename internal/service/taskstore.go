package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/domain/task"
	"github.com/Strob0t/careline/internal/port/taskstore"
)

const (
	taskKeyPrefix    = "task."
	contextKeyPrefix = "context."
)

// ErrStoreClosed is returned by every TaskStore operation after Close.
var ErrStoreClosed = errors.New("task store closed")

// taskEntry is the unit persisted per task id.
type taskEntry struct {
	Task    *task.Task       `json:"task"`
	Session *session.Session `json:"session"`
}

// UpdateFunc mutates the working copies of a task and its session. Returning
// an error discards every change.
type UpdateFunc func(t *task.Task, sess *session.Session) error

// TaskStore is the concurrent-safe registry of tasks, their sessions and
// contexts. Each task id has its own lock that is held for a whole Update, so
// turns on one task are serialized while distinct tasks proceed in parallel.
// Reads never take the turn lock and see the last committed snapshot.
type TaskStore struct {
	backend taskstore.Backend

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	ctxMu  sync.Mutex // guards context index read-modify-write
	closed bool
}

// NewTaskStore creates a TaskStore over the given backend.
func NewTaskStore(backend taskstore.Backend) *TaskStore {
	return &TaskStore{
		backend: backend,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Create persists a new task with its session and registers it with its
// context, creating the context when it does not exist yet.
func (s *TaskStore) Create(ctx context.Context, t *task.Task, sess *session.Session) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if t.ID == "" || t.ContextID == "" {
		return fmt.Errorf("%w: task id and context id are required", domain.ErrValidation)
	}

	lock := s.lockFor(t.ID)
	lock.Lock()
	defer lock.Unlock()

	if _, ok, err := s.backend.Get(ctx, taskKeyPrefix+t.ID); err != nil {
		return fmt.Errorf("lookup task %s: %w", t.ID, err)
	} else if ok {
		return fmt.Errorf("%w: task %s already exists", domain.ErrValidation, t.ID)
	}

	if err := s.addToContext(ctx, t.ContextID, t.ID, t.CreatedAt); err != nil {
		return err
	}
	return s.put(ctx, &taskEntry{Task: t, Session: sess})
}

// Get returns the last committed snapshot of a task and its session.
func (s *TaskStore) Get(ctx context.Context, id string) (*task.Task, *session.Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, nil, err
	}
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return e.Task, e.Session, nil
}

// Update runs fn on private copies of the task and session while holding the
// task's lock. The copies are committed only when fn returns nil.
func (s *TaskStore) Update(ctx context.Context, id string, fn UpdateFunc) (*task.Task, *session.Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, nil, err
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	// Decoding from the backend yields copies that share nothing with
	// concurrent readers.
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := fn(e.Task, e.Session); err != nil {
		return nil, nil, err
	}
	if err := s.put(ctx, e); err != nil {
		return nil, nil, err
	}
	return e.Task, e.Session, nil
}

// GetContext returns a context and the ids of its tasks in creation order.
func (s *TaskStore) GetContext(ctx context.Context, id string) (*task.Context, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	data, ok, err := s.backend.Get(ctx, contextKeyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("get context %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: context %s", domain.ErrTaskNotFound, id)
	}
	var c task.Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode context %s: %w", id, err)
	}
	return &c, nil
}

// TaskIDs lists the ids of every stored task.
func (s *TaskStore) TaskIDs(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	keys, err := s.backend.Keys(ctx, taskKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, taskKeyPrefix))
	}
	return ids, nil
}

// Close tears the store down. Later calls fail with ErrStoreClosed.
func (s *TaskStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.locks = make(map[string]*sync.Mutex)
	s.mu.Unlock()
	return s.backend.Close()
}

func (s *TaskStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// lockFor returns the turn lock of a task id. Locks are never removed while
// the store is open, since tasks are retained until teardown.
func (s *TaskStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *TaskStore) load(ctx context.Context, id string) (*taskEntry, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: task id is required", domain.ErrValidation)
	}
	data, ok, err := s.backend.Get(ctx, taskKeyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	var e taskEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	if e.Task == nil || e.Session == nil {
		return nil, fmt.Errorf("decode task %s: incomplete entry", id)
	}
	if e.Session.Data == nil {
		e.Session.Data = make(session.Data)
	}
	return &e, nil
}

func (s *TaskStore) put(ctx context.Context, e *taskEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", e.Task.ID, err)
	}
	if err := s.backend.Put(ctx, taskKeyPrefix+e.Task.ID, data); err != nil {
		return fmt.Errorf("put task %s: %w", e.Task.ID, err)
	}
	return nil
}

func (s *TaskStore) addToContext(ctx context.Context, contextID, taskID string, now time.Time) error {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()

	key := contextKeyPrefix + contextID
	c := task.Context{ID: contextID, CreatedAt: now}
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get context %s: %w", contextID, err)
	}
	if ok {
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("decode context %s: %w", contextID, err)
		}
	}
	c.TaskIDs = append(c.TaskIDs, taskID)

	data, err = json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode context %s: %w", contextID, err)
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put context %s: %w", contextID, err)
	}
	return nil
}
