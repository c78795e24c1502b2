package terminal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"taskmate/pkg/api"
	"taskmate/pkg/channels"
	"taskmate/pkg/tasks"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	channelID = "terminal"
	sessionID = "local"
)

type TerminalConfig struct {
	// Plain selects the line REPL instead of the full-screen UI.
	Plain    bool   `json:"plain"`
	Username string `json:"username"`
	Disabled bool   `json:"disabled"`
}

// TerminalChannel is the local front end: a bubbletea UI or a plain REPL.
// There is exactly one session.
type TerminalChannel struct {
	config TerminalConfig
	deps   channels.Deps
	in     io.Reader
	out    io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

func NewTerminalChannel(cfg TerminalConfig, deps channels.Deps) *TerminalChannel {
	if cfg.Username == "" {
		cfg.Username = os.Getenv("USER")
	}
	return &TerminalChannel{
		config: cfg,
		deps:   deps,
		in:     os.Stdin,
		out:    os.Stdout,
		done:   make(chan struct{}),
	}
}

// SetIO replaces stdin/stdout.
func (c *TerminalChannel) SetIO(in io.Reader, out io.Writer) {
	c.in = in
	c.out = out
}

func (c *TerminalChannel) ID() string {
	return channelID
}

func (c *TerminalChannel) session() api.SessionContext {
	return api.SessionContext{
		ChannelID: channelID,
		SessionID: sessionID,
		UserID:    c.config.Username,
		Username:  c.config.Username,
	}
}

// Start launches the UI in the background. When the user quits, the
// process shutdown hook is called.
func (c *TerminalChannel) Start(ctx api.ChannelContext) error {
	submit := func(text string) {
		ctx.OnMessage(c.ID(), &api.UnifiedMessage{Session: c.session(), Content: text})
	}

	if c.config.Plain {
		go func() {
			defer c.finish()
			if err := runREPL(c.in, c.out, submit); err != nil {
				slog.Error("Terminal input failed", "error", err)
			}
		}()
		return nil
	}

	p := tea.NewProgram(NewModel(submit, c.fetchPanel),
		tea.WithAltScreen(),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
	)
	c.mu.Lock()
	c.program = p
	c.mu.Unlock()

	go func() {
		defer c.finish()
		if _, err := p.Run(); err != nil {
			slog.Error("Terminal UI failed", "error", err)
		}
	}()
	return nil
}

func (c *TerminalChannel) finish() {
	close(c.done)
	if c.deps.Shutdown != nil {
		c.deps.Shutdown()
	}
}

// Done is closed when the user has left the UI.
func (c *TerminalChannel) Done() <-chan struct{} {
	return c.done
}

func (c *TerminalChannel) fetchPanel() tasks.Panel {
	if c.deps.Tasks == nil {
		return tasks.Panel{Err: fmt.Errorf("no task service")}
	}
	ctx := context.Background()
	if c.deps.System != nil && c.deps.System.TaskPanelTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.deps.System.TaskPanelTimeoutMs)*time.Millisecond)
		defer cancel()
	}
	return tasks.Snapshot(ctx, c.deps.Tasks)
}

func (c *TerminalChannel) Stop() error {
	c.mu.Lock()
	p := c.program
	c.mu.Unlock()
	if p != nil {
		p.Quit()
	}
	return nil
}

// Send implements api.Channel.
func (c *TerminalChannel) Send(_ api.SessionContext, message string) error {
	c.mu.Lock()
	p := c.program
	c.mu.Unlock()

	if p != nil {
		p.Send(replyMsg{text: message})
		return nil
	}
	_, err := fmt.Fprintln(c.out, message)
	return err
}

// SendSignal implements api.SignalingChannel. The REPL ignores signals and
// the UI reloads its panel on its own once a submit returns.
func (c *TerminalChannel) SendSignal(_ api.SessionContext, signal string) error {
	c.mu.Lock()
	p := c.program
	c.mu.Unlock()
	if p != nil && signal == api.SignalThinking {
		p.Send(thinkingMsg{})
	}
	return nil
}
