// Package handler turns gateway messages into agent turns and routes the
// replies back to the originating channel.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"taskmate/pkg/api"
	"taskmate/pkg/config"
	"taskmate/pkg/monitor"
	"taskmate/pkg/session"
	"taskmate/pkg/tasks"
	"taskmate/pkg/tools"

	"github.com/google/uuid"
)

// User-facing texts.
const (
	ErrorReplyText   = "Sorry, something went wrong while answering. Please try again."
	TimeoutReplyText = "Sorry, the assistant took too long to answer. Please try again."
	HelpText         = "Ask anything or manage tasks.\n\nCommands:\n/tasks - show your task list\n/help - show this help"
	UnknownCmdText   = "Unknown command. Type /help for the list of commands."
)

// ChatHandler orchestrates one user message: session lookup, slash
// commands, the agent turn and reply routing. It implements
// api.GatewayHandler.
type ChatHandler struct {
	engine    api.AgentEngine
	sessions  *session.Manager
	tasks     tasks.Service
	sysCfg    *config.SystemConfig
	responder api.MessageResponder
}

func NewChatHandler(engine api.AgentEngine, sessions *session.Manager, svc tasks.Service, sysCfg *config.SystemConfig) *ChatHandler {
	if sysCfg == nil {
		sysCfg = config.DefaultSystemConfig()
	}
	return &ChatHandler{
		engine:   engine,
		sessions: sessions,
		tasks:    svc,
		sysCfg:   sysCfg,
	}
}

// SetResponder implements api.ResponderAware.
func (h *ChatHandler) SetResponder(responder api.MessageResponder) {
	h.responder = responder
}

// OnMessage implements api.MessageProcessor. It blocks until the reply has
// been handed to the channel.
func (h *ChatHandler) OnMessage(msg *api.UnifiedMessage) {
	if msg.TraceID == "" {
		msg.TraceID = uuid.NewString()[:8]
	}
	ctx := monitor.WithTraceID(context.Background(), msg.TraceID)
	start := time.Now()

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}

	slog.InfoContext(ctx, "Message received", "channel", msg.Session.ChannelID, "session", msg.Session.SessionID, "user", msg.Session.Username, "chars", len(content))

	// Front ends reload their task panel after every answered message.
	defer h.signal(ctx, msg.Session, api.SignalTasksChanged)

	if strings.HasPrefix(content, "/") {
		h.handleSlashCommand(ctx, msg.Session, content)
		return
	}

	h.signal(ctx, msg.Session, api.SignalThinking)

	sess := h.sessions.Get(msg.Session.Key())
	reply, err := h.engine.HandleTurn(ctx, sess, content)
	if err != nil {
		slog.ErrorContext(ctx, "Turn failed", "session", sess.ID, "error", err)
		text := ErrorReplyText
		if errors.Is(err, context.DeadlineExceeded) {
			text = TimeoutReplyText
		}
		h.reply(ctx, msg.Session, text)
		return
	}

	h.reply(ctx, msg.Session, reply.Text)

	slog.InfoContext(ctx, "Turn finished", "duration", time.Since(start).String(), "tool_calls", len(reply.ToolCalls), "added_task", reply.UsedTool(tools.AddTaskName))
}

// handleSlashCommand answers local commands. They never reach the model
// and are not recorded in the history.
func (h *ChatHandler) handleSlashCommand(ctx context.Context, sc api.SessionContext, content string) {
	cmd := strings.ToLower(strings.Fields(content)[0])
	switch cmd {
	case "/help":
		h.reply(ctx, sc, HelpText)
	case "/tasks":
		h.reply(ctx, sc, h.renderTasks(ctx))
	default:
		h.reply(ctx, sc, UnknownCmdText)
	}
}

func (h *ChatHandler) renderTasks(ctx context.Context) string {
	timeout := time.Duration(h.sysCfg.TaskPanelTimeoutMs) * time.Millisecond
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	panel := tasks.Snapshot(ctx, h.tasks)
	if panel.Err != nil {
		return tasks.PanelErrorText
	}
	return tools.FormatTaskList(panel.Tasks)
}

func (h *ChatHandler) reply(ctx context.Context, sc api.SessionContext, text string) {
	if h.responder == nil {
		slog.WarnContext(ctx, "No responder set, dropping reply", "session", sc.Key())
		return
	}
	if err := h.responder.SendReply(sc, text); err != nil {
		slog.ErrorContext(ctx, "Failed to send reply", "session", sc.Key(), "error", err)
	}
}

func (h *ChatHandler) signal(ctx context.Context, sc api.SessionContext, signal string) {
	if h.responder == nil {
		return
	}
	if err := h.responder.SendSignal(sc, signal); err != nil {
		slog.DebugContext(ctx, "Signal not delivered", "signal", signal, "error", err)
	}
}
