package main

import (
	"testing"

	"taskmate/pkg/config"
	"taskmate/pkg/tasks"

	jsoniter "github.com/json-iterator/go"
)

func TestSelectChannels(t *testing.T) {
	configured := map[string]jsoniter.RawMessage{
		"web":      jsoniter.RawMessage(`{"port":9000}`),
		"telegram": jsoniter.RawMessage(`{"token":"x"}`),
	}

	tests := []struct {
		ui      string
		want    map[string]string
		wantErr bool
	}{
		{"", map[string]string{"web": `{"port":9000}`, "telegram": `{"token":"x"}`}, false},
		{"web", map[string]string{"web": `{"port":9000}`}, false},
		{"terminal", map[string]string{"terminal": `{}`}, false},
		{"plain", map[string]string{"terminal": `{"plain":true}`}, false},
		{"gui", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.ui, func(t *testing.T) {
			got, err := selectChannels(configured, tt.ui)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if string(got[k]) != v {
					t.Errorf("%s = %s, want %s", k, got[k], v)
				}
			}
		})
	}
}

func TestNewTaskService(t *testing.T) {
	if _, ok := newTaskService(config.TasksConfig{Type: "memory"}).(*tasks.MemoryService); !ok {
		t.Error("memory backend not selected")
	}
	if _, ok := newTaskService(config.TasksConfig{Type: "todoist", APIKey: "k"}).(*tasks.TodoistService); !ok {
		t.Error("todoist backend not selected")
	}
}
