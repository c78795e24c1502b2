package gateway

import (
	"fmt"

	"taskmate/pkg/api"
	"taskmate/pkg/monitor"
)

// GatewayBuilder assembles a GatewayManager from pre-built parts and
// starts it.
type GatewayBuilder struct {
	gw       *GatewayManager
	monitor  monitor.Monitor
	handler  api.MessageProcessor
	channels []api.Channel
}

func NewGatewayBuilder() *GatewayBuilder {
	return &GatewayBuilder{
		gw: NewGatewayManager(),
	}
}

// WithMonitor sets a monitor that Build starts.
func (b *GatewayBuilder) WithMonitor(m monitor.Monitor) *GatewayBuilder {
	b.monitor = m
	return b
}

func (b *GatewayBuilder) WithChannel(channels ...api.Channel) *GatewayBuilder {
	b.channels = append(b.channels, channels...)
	return b
}

// WithHandler sets the message processor. A processor that implements
// api.ResponderAware receives the gateway as its responder.
func (b *GatewayBuilder) WithHandler(h api.MessageProcessor) *GatewayBuilder {
	b.handler = h
	return b
}

// Build wires everything and starts the monitor and the channels.
func (b *GatewayBuilder) Build() (*GatewayManager, error) {
	if len(b.channels) == 0 {
		return nil, fmt.Errorf("no channels configured")
	}

	if b.monitor != nil {
		b.gw.SetMonitor(b.monitor)
		if err := b.monitor.Start(); err != nil {
			return nil, fmt.Errorf("failed to start monitor: %w", err)
		}
	}

	for _, c := range b.channels {
		b.gw.Register(c)
	}

	if b.handler != nil {
		if setter, ok := b.handler.(api.ResponderAware); ok {
			setter.SetResponder(b.gw)
		}
		b.gw.SetMessageHandler(b.handler.OnMessage)
	}

	if err := b.gw.StartAll(); err != nil {
		b.gw.StopAll()
		return nil, fmt.Errorf("failed to start channels: %w", err)
	}

	return b.gw, nil
}

// Shutdown stops the channels and then the monitor.
func (g *GatewayManager) Shutdown() {
	g.StopAll()
	g.mu.RLock()
	m := g.monitor
	g.mu.RUnlock()
	if m != nil {
		m.Stop()
	}
}
