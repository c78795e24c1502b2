package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"taskmate/pkg/api"
	"taskmate/pkg/channels"
	"taskmate/pkg/config"
	"taskmate/pkg/session"
	"taskmate/pkg/tasks"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed static
var staticFiles embed.FS

const channelID = "web"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Disabled bool   `json:"disabled"`
}

// IncomingMessage is a chat line sent by the page. Plain text frames are
// accepted too.
type IncomingMessage struct {
	Text string `json:"text"`
}

// OutgoingMessage is every frame the server writes to the page.
type OutgoingMessage struct {
	Type  string          `json:"type"` // "session", "history", "reply", "signal"
	ID    string          `json:"id,omitempty"`
	Text  string          `json:"text,omitempty"`
	HTML  string          `json:"html,omitempty"`
	Value string          `json:"value,omitempty"`
	Data  []HistoryRecord `json:"data,omitempty"`
}

// HistoryRecord is one transcript line replayed on connect.
type HistoryRecord struct {
	Role string `json:"role"`
	Text string `json:"text"`
	HTML string `json:"html,omitempty"`
}

// TasksResponse is the body of GET /api/tasks. Error is set when the task
// service could not be reached, so the sidebar can tell it from an empty list.
type TasksResponse struct {
	Tasks []string `json:"tasks"`
	Error string   `json:"error,omitempty"`
}

// SafeConn serialises writes; gorilla connections allow one writer at a time.
type SafeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *SafeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Conn.WriteMessage(websocket.TextMessage, data)
}

// WebChannel serves the single-page chat UI. Every browser tab is its own
// session, keyed by the id the page keeps in sessionStorage.
type WebChannel struct {
	config      WebConfig
	deps        channels.Deps
	server      *http.Server
	connections map[string]*SafeConn // session id -> socket
	mu          sync.RWMutex
}

func NewWebChannel(cfg WebConfig, deps channels.Deps) *WebChannel {
	if deps.System == nil {
		deps.System = config.DefaultSystemConfig()
	}
	return &WebChannel{
		config:      cfg,
		deps:        deps,
		connections: make(map[string]*SafeConn),
	}
}

func (c *WebChannel) ID() string {
	return channelID
}

// Handler returns the HTTP routes bound to ctx.
func (c *WebChannel) Handler(ctx api.ChannelContext) http.Handler {
	static, _ := fs.Sub(staticFiles, "static")

	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServerFS(static))
	mux.HandleFunc("GET /api/tasks", c.handleTasks)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		c.handleWebSocket(w, r, ctx)
	})
	return mux
}

// Start binds the listener before returning so a busy port fails startup.
func (c *WebChannel) Start(ctx api.ChannelContext) error {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	c.server = &http.Server{
		Handler:           c.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Web UI listening", "addr", ln.Addr().String())

	go func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web server error", "error", err)
		}
	}()
	return nil
}

func (c *WebChannel) Stop() error {
	if c.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c.mu.Lock()
	for id, conn := range c.connections {
		conn.Close()
		delete(c.connections, id)
	}
	c.mu.Unlock()

	return c.server.Shutdown(ctx)
}

func (c *WebChannel) conn(sessionID string) (*SafeConn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conn, ok := c.connections[sessionID]
	if !ok {
		return nil, fmt.Errorf("web session %s not connected", sessionID)
	}
	return conn, nil
}

// Send implements api.Channel. Replies carry both the markdown and its
// rendered HTML.
func (c *WebChannel) Send(sc api.SessionContext, message string) error {
	conn, err := c.conn(sc.SessionID)
	if err != nil {
		return err
	}
	return conn.WriteJSON(OutgoingMessage{Type: "reply", Text: message, HTML: RenderMarkdown(message)})
}

// SendSignal implements api.SignalingChannel.
func (c *WebChannel) SendSignal(sc api.SessionContext, signal string) error {
	conn, err := c.conn(sc.SessionID)
	if err != nil {
		return err
	}
	return conn.WriteJSON(OutgoingMessage{Type: "signal", Value: signal})
}

func (c *WebChannel) handleTasks(w http.ResponseWriter, r *http.Request) {
	resp := TasksResponse{Tasks: []string{}}
	if c.deps.Tasks == nil {
		resp.Error = tasks.PanelErrorText
	} else {
		ctx := r.Context()
		if ms := c.deps.System.TaskPanelTimeoutMs; ms > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
			defer cancel()
		}
		panel := tasks.Snapshot(ctx, c.deps.Tasks)
		if panel.Err != nil {
			resp.Error = tasks.PanelErrorText
		} else if panel.Tasks != nil {
			resp.Tasks = panel.Tasks
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("Failed to write tasks response", "error", err)
	}
}

// sessionKey mirrors api.SessionContext.Key for history lookups.
func sessionKey(sessionID string) string {
	return api.SessionContext{ChannelID: channelID, SessionID: sessionID}.Key()
}

func (c *WebChannel) history(sessionID string) []HistoryRecord {
	if c.deps.Sessions == nil {
		return nil
	}
	sess, ok := c.deps.Sessions.Lookup(sessionKey(sessionID))
	if !ok {
		return nil
	}
	turns := sess.History.Turns()
	out := make([]HistoryRecord, 0, len(turns))
	for _, t := range turns {
		rec := HistoryRecord{Role: string(t.Role), Text: t.Text}
		if t.Role == session.RoleAssistant {
			rec.HTML = RenderMarkdown(t.Text)
		}
		out = append(out, rec)
	}
	return out
}

// decodeFrame accepts {"text": ...}, a bare JSON string, or plain text.
func decodeFrame(data []byte) string {
	var incoming IncomingMessage
	if err := json.Unmarshal(data, &incoming); err == nil {
		return incoming.Text
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return text
	}
	return string(data)
}

func (c *WebChannel) handleWebSocket(w http.ResponseWriter, r *http.Request, ctx api.ChannelContext) {
	sessionID := r.URL.Query().Get("session")
	if _, err := uuid.Parse(sessionID); err != nil {
		sessionID = uuid.NewString()
	}

	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS upgrade failed", "error", err)
		return
	}
	conn := &SafeConn{Conn: rawConn}

	c.mu.Lock()
	if old, ok := c.connections[sessionID]; ok {
		old.Close()
	}
	c.connections[sessionID] = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.connections[sessionID] == conn {
			delete(c.connections, sessionID)
		}
		c.mu.Unlock()
		conn.Close()
	}()

	if err := conn.WriteJSON(OutgoingMessage{Type: "session", ID: sessionID}); err != nil {
		return
	}
	if records := c.history(sessionID); len(records) > 0 {
		if err := conn.WriteJSON(OutgoingMessage{Type: "history", Data: records}); err != nil {
			return
		}
	}

	slog.Info("Web session connected", "session", sessionID, "remote", r.RemoteAddr)

	sc := api.SessionContext{
		ChannelID: channelID,
		SessionID: sessionID,
		UserID:    sessionID,
		Username:  "WebUser",
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Web socket closed", "session", sessionID, "error", err)
			}
			return
		}

		content := decodeFrame(data)
		if strings.TrimSpace(content) == "" {
			continue
		}

		ctx.OnMessage(c.ID(), &api.UnifiedMessage{Session: sc, Content: content})
	}
}
