package tasks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskmate/pkg/apperr"
)

func newTestService(t *testing.T, h http.HandlerFunc, opts ...TodoistOption) *TodoistService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]TodoistOption{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	return NewTodoistService("secret-token", opts...)
}

func TestTodoistCreateTask(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotMethod, gotPath string

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"42","content":"Buy milk"}`))
	})

	task, err := svc.CreateTask(context.Background(), "Buy milk", "")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID != "42" || task.Content != "Buy milk" {
		t.Errorf("task = %+v", task)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotMethod != http.MethodPost || gotPath != "/tasks" {
		t.Errorf("request = %s %s, want POST /tasks", gotMethod, gotPath)
	}
	if gotBody["content"] != "Buy milk" {
		t.Errorf("content = %v", gotBody["content"])
	}
	if _, ok := gotBody["description"]; ok {
		t.Error("empty description should be omitted from the request")
	}
}

func TestTodoistCreateTask_WithDescription(t *testing.T) {
	var gotBody map[string]any
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"id":"1","content":"Dentist","description":"bring card"}`))
	})

	if _, err := svc.CreateTask(context.Background(), "Dentist", "bring card"); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if gotBody["description"] != "bring card" {
		t.Errorf("description = %v", gotBody["description"])
	}
}

func TestTodoistListTasks_FollowsCursor(t *testing.T) {
	var calls int
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("limit") != "2" {
			t.Errorf("limit = %q, want 2", r.URL.Query().Get("limit"))
		}
		switch r.URL.Query().Get("cursor") {
		case "":
			w.Write([]byte(`{"results":[{"id":"1","content":"Buy milk"},{"id":"2","content":"Call mom"}],"next_cursor":"page2"}`))
		case "page2":
			w.Write([]byte(`{"results":[{"id":"3","content":"Pay rent"}],"next_cursor":null}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}, WithPageSize(2))

	got, err := svc.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	want := []string{"Buy milk", "Call mom", "Pay rent"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("task[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestTodoistListTasks_RepeatedCursor(t *testing.T) {
	var calls int
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"results":[{"id":"1","content":"Buy milk"}],"next_cursor":"stuck"}`))
	})

	got, err := svc.ListTasks(context.Background())
	if got != nil {
		t.Errorf("got %v, want no partial list", got)
	}
	var rse *apperr.RemoteServiceError
	if !errors.As(err, &rse) || !errors.Is(err, ErrCursorLoop) {
		t.Fatalf("err = %v, want a RemoteServiceError wrapping ErrCursorLoop", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestTodoistListTasks_Empty(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[],"next_cursor":null}`))
	})

	got, err := svc.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

func TestTodoistErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"unauthorized", http.StatusUnauthorized, "Forbidden", 401},
		{"server error", http.StatusInternalServerError, "boom", 500},
		{"malformed json", http.StatusOK, "{not json", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := svc.ListTasks(context.Background())
			var rse *apperr.RemoteServiceError
			if !errors.As(err, &rse) {
				t.Fatalf("expected RemoteServiceError, got %v", err)
			}
			if rse.Service != "tasks" || rse.Op != "list_tasks" {
				t.Errorf("error = %+v", rse)
			}
			if rse.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", rse.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestTodoistUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc := NewTodoistService("k", WithBaseURL(url))
	if _, err := svc.CreateTask(context.Background(), "x", ""); !apperr.IsRemote(err) {
		t.Fatalf("expected RemoteServiceError, got %v", err)
	}
}
