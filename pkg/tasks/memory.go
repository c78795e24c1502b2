package tasks

import (
	"context"
	"strconv"
	"sync"

	"taskmate/pkg/apperr"
)

// MemoryService keeps tasks in process memory. It backs the "memory"
// task provider and the tests.
type MemoryService struct {
	mu      sync.Mutex
	tasks   []Task
	nextID  int
	listErr error
	addErr  error
	created []Task
}

// NewMemoryService returns a store pre-filled with the given contents.
func NewMemoryService(contents ...string) *MemoryService {
	m := &MemoryService{}
	for _, c := range contents {
		m.tasks = append(m.tasks, m.newTask(c, ""))
	}
	return m
}

func (m *MemoryService) newTask(content, description string) Task {
	m.nextID++
	return Task{ID: strconv.Itoa(m.nextID), Content: content, Description: description}
}

// FailList makes subsequent ListTasks calls fail with err (nil clears it).
func (m *MemoryService) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// FailCreate makes subsequent CreateTask calls fail with err (nil clears it).
func (m *MemoryService) FailCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addErr = err
}

// CreateTask implements Service.
func (m *MemoryService) CreateTask(ctx context.Context, content, description string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.addErr != nil {
		return nil, apperr.Remote("tasks", "create_task", m.addErr)
	}

	t := m.newTask(content, description)
	m.tasks = append(m.tasks, t)
	m.created = append(m.created, t)
	return &t, nil
}

// ListTasks implements Service.
func (m *MemoryService) ListTasks(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, apperr.Remote("tasks", "list_tasks", m.listErr)
	}

	out := make([]string, len(m.tasks))
	for i, t := range m.tasks {
		out[i] = t.Content
	}
	return out, nil
}

// Created returns every task added through CreateTask, in call order.
func (m *MemoryService) Created() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, len(m.created))
	copy(out, m.created)
	return out
}
