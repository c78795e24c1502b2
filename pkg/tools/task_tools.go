package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"taskmate/pkg/apperr"
	"taskmate/pkg/tasks"
)

// Tool names are part of the model contract and must not change.
const (
	AddTaskName   = "add_task"
	ShowTasksName = "show_tasks"
)

// NoTasksText is returned by show_tasks for an empty list.
const NoTasksText = "No tasks found."

// AddTaskTool creates a task in the user's task list.
type AddTaskTool struct {
	svc tasks.Service
}

func NewAddTaskTool(svc tasks.Service) *AddTaskTool {
	return &AddTaskTool{svc: svc}
}

func (t *AddTaskTool) Name() string { return AddTaskName }

func (t *AddTaskTool) Description() string {
	return "Add a new task to the user's Todoist list. Use only when the user clearly wants to create or add a task."
}

func (t *AddTaskTool) Parameters() map[string]any {
	return map[string]any{
		"task": map[string]any{
			"type":        "string",
			"description": "The task title, e.g. \"Call mom tomorrow\".",
		},
		"desc": map[string]any{
			"type":        "string",
			"description": "Optional longer description of the task.",
		},
	}
}

func (t *AddTaskTool) RequiredParameters() []string {
	return []string{"task"}
}

// Execute creates exactly one task.
func (t *AddTaskTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	content, _ := args["task"].(string)
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &apperr.ToolInvocationError{Tool: AddTaskName, Reason: "task text must not be empty"}
	}
	desc, _ := args["desc"].(string)

	task, err := t.svc.CreateTask(ctx, content, strings.TrimSpace(desc))
	if err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}

	slog.InfoContext(ctx, "Task added", "id", task.ID, "content", task.Content)

	res := TextResultf("Task added: %s", task.Content)
	res.Details = map[string]any{"id": task.ID, "content": task.Content}
	return res, nil
}

// ShowTasksTool lists the user's tasks.
type ShowTasksTool struct {
	svc tasks.Service
}

func NewShowTasksTool(svc tasks.Service) *ShowTasksTool {
	return &ShowTasksTool{svc: svc}
}

func (t *ShowTasksTool) Name() string { return ShowTasksName }

func (t *ShowTasksTool) Description() string {
	return "Show all tasks from the user's Todoist list. Use only when the user asks to see, list or show tasks."
}

func (t *ShowTasksTool) Parameters() map[string]any {
	return map[string]any{}
}

func (t *ShowTasksTool) RequiredParameters() []string {
	return nil
}

// Execute returns one "- <content>" line per task in service order.
func (t *ShowTasksTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	list, err := t.svc.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("show tasks: %w", err)
	}

	res := TextResultf("%s", FormatTaskList(list))
	res.Details = map[string]any{"tasks": list}
	return res, nil
}

// FormatTaskList renders tasks as bullet lines, or NoTasksText.
func FormatTaskList(list []string) string {
	if len(list) == 0 {
		return NoTasksText
	}
	var sb strings.Builder
	for i, item := range list {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(item)
	}
	return sb.String()
}

// TextResultf formats a plain text tool result.
func TextResultf(format string, a ...any) *ToolResult {
	return &ToolResult{Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf(format, a...)}}}
}

// NewTaskRegistry returns a registry holding add_task and show_tasks.
func NewTaskRegistry(svc tasks.Service) *ToolRegistry {
	r := NewToolRegistry()
	r.Register(NewAddTaskTool(svc))
	r.Register(NewShowTasksTool(svc))
	return r
}
