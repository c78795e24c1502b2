package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taskmate/pkg/apperr"
	"taskmate/pkg/httpkit"
)

// DefaultTodoistURL is the base of Todoist's unified REST API.
const DefaultTodoistURL = "https://api.todoist.com/api/v1"

// defaultPageSize is the page size requested when listing tasks.
const defaultPageSize = 200

// maxPages bounds one ListTasks call.
const maxPages = 500

// ErrCursorLoop is wrapped when the service hands back a cursor it already
// returned, or pagination exceeds maxPages.
var ErrCursorLoop = errors.New("pagination did not terminate")

// TodoistService talks to the Todoist REST API.
type TodoistService struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
}

// TodoistOption configures a TodoistService.
type TodoistOption func(*TodoistService)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) TodoistOption {
	return func(s *TodoistService) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) TodoistOption {
	return func(s *TodoistService) { s.client = c }
}

// WithPageSize sets the number of tasks fetched per page.
func WithPageSize(n int) TodoistOption {
	return func(s *TodoistService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewTodoistService creates a Todoist client authenticated with apiKey.
func NewTodoistService(apiKey string, opts ...TodoistOption) *TodoistService {
	s := &TodoistService{
		baseURL:  DefaultTodoistURL,
		apiKey:   apiKey,
		pageSize: defaultPageSize,
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		s.client = httpkit.NewClient(httpkit.WithRetry(1, 500*time.Millisecond))
	}
	return s
}

type createTaskRequest struct {
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
}

type taskPage struct {
	Results    []Task  `json:"results"`
	NextCursor *string `json:"next_cursor"`
}

// CreateTask implements Service.
func (s *TodoistService) CreateTask(ctx context.Context, content, description string) (*Task, error) {
	body, err := json.Marshal(createTaskRequest{Content: content, Description: description})
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}

	var created Task
	if err := s.do(ctx, http.MethodPost, "/tasks", nil, body, &created, "create_task"); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Task created", "id", created.ID, "content", created.Content)
	return &created, nil
}

// ListTasks implements Service. It follows next_cursor until the last page.
func (s *TodoistService) ListTasks(ctx context.Context) ([]string, error) {
	contents := make([]string, 0)
	cursor := ""
	seen := make(map[string]bool)

	for page := 1; ; page++ {
		if page > maxPages {
			return nil, apperr.Remote("tasks", "list_tasks", fmt.Errorf("%w: more than %d pages", ErrCursorLoop, maxPages))
		}

		q := url.Values{}
		q.Set("limit", strconv.Itoa(s.pageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp taskPage
		if err := s.do(ctx, http.MethodGet, "/tasks", q, nil, &resp, "list_tasks"); err != nil {
			return nil, err
		}

		for _, t := range resp.Results {
			contents = append(contents, t.Content)
		}

		if resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		cursor = *resp.NextCursor
		if seen[cursor] {
			return nil, apperr.Remote("tasks", "list_tasks", fmt.Errorf("%w: cursor %q repeated", ErrCursorLoop, cursor))
		}
		seen[cursor] = true
	}

	slog.DebugContext(ctx, "Tasks listed", "count", len(contents))
	return contents, nil
}

func (s *TodoistService) do(ctx context.Context, method, path string, query url.Values, body []byte, out any, op string) error {
	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return apperr.Remote("tasks", op, err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return apperr.Remote("tasks", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := httpkit.ReadErrorBody(resp.Body, 512)
		return &apperr.RemoteServiceError{
			Service:    "tasks",
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(msg)),
		}
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Remote("tasks", op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
