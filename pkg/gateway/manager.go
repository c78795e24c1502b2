package gateway

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"taskmate/pkg/monitor"
)

// GatewayManager owns the registered channels and routes messages between
// them and the handler. It implements api.ChannelContext.
type GatewayManager struct {
	channels   map[string]Channel
	msgHandler MessageHandler
	monitor    monitor.Monitor
	mu         sync.RWMutex
}

func NewGatewayManager() *GatewayManager {
	return &GatewayManager{
		channels: make(map[string]Channel),
	}
}

// SetMessageHandler sets the callback for incoming messages.
func (g *GatewayManager) SetMessageHandler(handler MessageHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.msgHandler = handler
}

// SetMonitor sets the traffic mirror.
func (g *GatewayManager) SetMonitor(m monitor.Monitor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.monitor = m
}

// Register adds c, replacing any channel with the same ID.
func (g *GatewayManager) Register(c Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
}

func (g *GatewayManager) GetChannel(id string) (Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.channels[id]
	return c, ok
}

// ChannelIDs lists the registered channels in sorted order.
func (g *GatewayManager) ChannelIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.channels))
	for id := range g.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartAll starts every channel in ID order. Start must not block.
func (g *GatewayManager) StartAll() error {
	for _, id := range g.ChannelIDs() {
		c, _ := g.GetChannel(id)
		slog.Info("Starting channel", "id", id)
		if err := c.Start(g); err != nil {
			return fmt.Errorf("start channel %s: %w", id, err)
		}
	}
	return nil
}

// StopAll stops every channel, logging failures.
func (g *GatewayManager) StopAll() {
	for _, id := range g.ChannelIDs() {
		c, _ := g.GetChannel(id)
		slog.Info("Stopping channel", "id", id)
		if err := c.Stop(); err != nil {
			slog.Error("Error stopping channel", "id", id, "error", err)
		}
	}
}

func (g *GatewayManager) mirror(kind string, session SessionContext, content string) {
	g.mu.RLock()
	m := g.monitor
	g.mu.RUnlock()
	if m == nil {
		return
	}
	m.OnMessage(monitor.MonitorMessage{
		Timestamp:   time.Now(),
		MessageType: kind,
		ChannelID:   session.ChannelID,
		SessionID:   session.SessionID,
		Username:    session.Username,
		Content:     content,
	})
}

// SendReply implements api.MessageResponder.
func (g *GatewayManager) SendReply(session SessionContext, content string) error {
	slog.Debug("Gateway reply", "channel", session.ChannelID, "session", session.SessionID, "chars", len(content))
	g.mirror(monitor.KindAssistant, session, content)

	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}
	if err := c.Send(session, content); err != nil {
		g.mirror(monitor.KindError, session, err.Error())
		return fmt.Errorf("send to %s: %w", session.ChannelID, err)
	}
	return nil
}

// SendSignal implements api.MessageResponder. Channels without signal
// support ignore it.
func (g *GatewayManager) SendSignal(session SessionContext, signal string) error {
	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}
	if sc, ok := c.(SignalingChannel); ok {
		slog.Debug("Gateway signal", "channel", session.ChannelID, "session", session.SessionID, "signal", signal)
		return sc.SendSignal(session, signal)
	}
	return nil
}

// OnMessage implements api.ChannelContext.
func (g *GatewayManager) OnMessage(channelID string, msg *UnifiedMessage) {
	if msg.Session.ChannelID == "" {
		msg.Session.ChannelID = channelID
	}
	slog.Debug("Gateway received", "channel", channelID, "session", msg.Session.SessionID, "user", msg.Session.Username)
	g.mirror(monitor.KindUser, msg.Session, msg.Content)

	g.mu.RLock()
	handler := g.msgHandler
	g.mu.RUnlock()

	if handler == nil {
		slog.Warn("No message handler set, dropping message", "channel", channelID)
		return
	}
	handler(msg)
}
