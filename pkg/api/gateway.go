package api

// Signals understood by SignalingChannel implementations.
const (
	SignalThinking     = "thinking"
	SignalTasksChanged = "tasks_changed" // sent after every answered message
)

// Channel defines the lifecycle of a front end registered with the gateway.
type Channel interface {
	ID() string
	Start(ctx ChannelContext) error
	Stop() error
	Send(session SessionContext, message string) error
}

// SignalingChannel is an optional extension for front ends that react to
// control signals such as a typing indicator or a task list refresh.
type SignalingChannel interface {
	Channel
	SendSignal(session SessionContext, signal string) error
}

// ChannelContext is what a Channel uses to talk back to the gateway.
type ChannelContext interface {
	MessageResponder
	OnMessage(channelID string, msg *UnifiedMessage)
}

// MessageResponder sends replies and signals to a channel.
type MessageResponder interface {
	SendReply(session SessionContext, content string) error
	SendSignal(session SessionContext, signal string) error
}

// UnifiedMessage is one line of user input from any front end.
type UnifiedMessage struct {
	Session SessionContext
	Content string
	// TraceID groups the log lines of the turn handling this message.
	TraceID string
}

// SessionContext routes a message back to its origin.
type SessionContext struct {
	ChannelID string // "web", "terminal", "telegram"
	SessionID string // conversation key inside the channel (tab id, chat id)
	UserID    string
	Username  string
}

// Key returns the gateway-wide session key.
func (s SessionContext) Key() string {
	return s.ChannelID + ":" + s.SessionID
}

// MessageHandler is the callback signature for incoming messages.
type MessageHandler func(*UnifiedMessage)

// OnMessage lets MessageHandler satisfy MessageProcessor.
func (h MessageHandler) OnMessage(msg *UnifiedMessage) {
	h(msg)
}

// MessageProcessor handles incoming messages.
type MessageProcessor interface {
	OnMessage(msg *UnifiedMessage)
}

// ResponderAware components receive the responder during gateway build.
type ResponderAware interface {
	SetResponder(responder MessageResponder)
}

// GatewayHandler is a processor that also needs the responder.
type GatewayHandler interface {
	MessageProcessor
	ResponderAware
}
