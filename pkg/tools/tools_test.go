package tools

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"taskmate/pkg/apperr"
	"taskmate/pkg/tasks"
)

func TestRegistry(t *testing.T) {
	svc := tasks.NewMemoryService()
	r := NewTaskRegistry(svc)

	all := r.GetAll()
	if len(all) != 2 || all[0].Name() != AddTaskName || all[1].Name() != ShowTasksName {
		t.Fatalf("GetAll = %v", all)
	}

	if _, ok := r.Get(ShowTasksName); !ok {
		t.Error("show_tasks should be registered")
	}
	r.Unregister(ShowTasksName)
	if _, ok := r.Get(ShowTasksName); ok {
		t.Error("show_tasks should be gone after Unregister")
	}
}

func TestSchemasAreStable(t *testing.T) {
	add := NewAddTaskTool(nil)
	if !reflect.DeepEqual(add.RequiredParameters(), []string{"task"}) {
		t.Errorf("required = %v", add.RequiredParameters())
	}
	props := add.Parameters()
	for _, name := range []string{"task", "desc"} {
		prop, ok := props[name].(map[string]any)
		if !ok || prop["type"] != "string" {
			t.Errorf("%s schema = %v", name, props[name])
		}
	}

	show := NewShowTasksTool(nil)
	if len(show.Parameters()) != 0 || len(show.RequiredParameters()) != 0 {
		t.Error("show_tasks takes no arguments")
	}
}

func TestAddTask(t *testing.T) {
	svc := tasks.NewMemoryService()
	tool := NewAddTaskTool(svc)

	res, err := tool.Execute(context.Background(), map[string]any{"task": "Buy milk"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text() != "Task added: Buy milk" {
		t.Errorf("result = %q", res.Text())
	}

	created := svc.Created()
	if len(created) != 1 || created[0].Content != "Buy milk" || created[0].Description != "" {
		t.Errorf("created = %+v", created)
	}
}

func TestAddTask_WithDescription(t *testing.T) {
	svc := tasks.NewMemoryService()
	_, err := NewAddTaskTool(svc).Execute(context.Background(), map[string]any{"task": "Dentist", "desc": "bring card"})
	if err != nil {
		t.Fatal(err)
	}
	if got := svc.Created()[0].Description; got != "bring card" {
		t.Errorf("description = %q", got)
	}
}

func TestAddTask_Blank(t *testing.T) {
	svc := tasks.NewMemoryService()
	_, err := NewAddTaskTool(svc).Execute(context.Background(), map[string]any{"task": "   "})
	if !apperr.IsToolInvocation(err) {
		t.Fatalf("err = %v, want ToolInvocationError", err)
	}
	if len(svc.Created()) != 0 {
		t.Error("blank task must not reach the service")
	}
}

func TestAddTask_RemoteFailure(t *testing.T) {
	svc := tasks.NewMemoryService()
	svc.FailCreate(errors.New("401"))

	_, err := NewAddTaskTool(svc).Execute(context.Background(), map[string]any{"task": "x"})
	if !apperr.IsRemote(err) {
		t.Fatalf("err = %v, want RemoteServiceError", err)
	}
}

func TestShowTasks(t *testing.T) {
	tests := []struct {
		name  string
		tasks []string
		want  string
	}{
		{"two tasks", []string{"Buy milk", "Call mom"}, "- Buy milk\n- Call mom"},
		{"empty", nil, NoTasksText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := tasks.NewMemoryService(tt.tasks...)
			res, err := NewShowTasksTool(svc).Execute(context.Background(), nil)
			if err != nil {
				t.Fatal(err)
			}
			if res.Text() != tt.want {
				t.Errorf("text = %q, want %q", res.Text(), tt.want)
			}
			got, _ := res.Details["tasks"].([]string)
			if len(got) != len(tt.tasks) {
				t.Errorf("details = %v", res.Details)
			}
		})
	}
}

func TestShowTasks_Failure(t *testing.T) {
	svc := tasks.NewMemoryService("Buy milk")
	svc.FailList(errors.New("timeout"))

	if _, err := NewShowTasksTool(svc).Execute(context.Background(), nil); !apperr.IsRemote(err) {
		t.Fatalf("err = %v, want RemoteServiceError", err)
	}
}

func TestValidateArgs(t *testing.T) {
	add := NewAddTaskTool(nil)
	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"task": "Buy milk"}, false},
		{"valid with desc", map[string]any{"task": "Buy milk", "desc": "2L"}, false},
		{"missing task", map[string]any{"desc": "x"}, true},
		{"null task", map[string]any{"task": nil}, true},
		{"wrong type", map[string]any{"task": 42.0}, true},
		{"unknown field", map[string]any{"task": "x", "due": "tomorrow"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(add, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperr.IsToolInvocation(err) {
				t.Errorf("err = %T, want ToolInvocationError", err)
			}
		})
	}

	if err := ValidateArgs(NewShowTasksTool(nil), map[string]any{}); err != nil {
		t.Errorf("show_tasks with no args: %v", err)
	}
}
