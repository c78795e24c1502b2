// Package tasks adapts the remote task-list service behind a small
// interface. The assistant never holds an authoritative copy of the
// user's tasks; every call goes to the backing service.
package tasks

import (
	"context"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Task is a single task record as returned by the service.
type Task struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
}

// Service is the task client contract used by the tools and the front ends.
type Service interface {
	// CreateTask creates one remote task. An empty description is omitted.
	CreateTask(ctx context.Context, content, description string) (*Task, error)
	// ListTasks returns the content of every task in service order.
	// A failure must not be read as "zero tasks".
	ListTasks(ctx context.Context) ([]string, error)
}

// Texts shown by the task panels of every front end.
const (
	PanelTitle     = "Your Todo List"
	PanelEmptyText = "No tasks available."
	PanelErrorText = "Failed to load tasks."
)

// Panel is the task list shown next to the chat. Err is set when the
// service could not be reached, so the UI can tell "no tasks" apart from
// "no data".
type Panel struct {
	Tasks []string
	Err   error
}

// Empty reports whether the service answered with zero tasks.
func (p Panel) Empty() bool {
	return p.Err == nil && len(p.Tasks) == 0
}

// Lines renders the panel as display lines: one bullet per task, or a
// single status line for the empty and failed states.
func (p Panel) Lines() []string {
	switch {
	case p.Err != nil:
		return []string{PanelErrorText}
	case len(p.Tasks) == 0:
		return []string{PanelEmptyText}
	}
	out := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		out[i] = "• " + t
	}
	return out
}

// Snapshot fetches the task list for display. Failures are logged and
// returned inside the Panel instead of aborting the caller.
func Snapshot(ctx context.Context, svc Service) Panel {
	list, err := svc.ListTasks(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load task panel", "error", err)
		return Panel{Err: err}
	}
	return Panel{Tasks: list}
}
