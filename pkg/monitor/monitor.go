package monitor

import "time"

// Message kinds mirrored to a Monitor.
const (
	KindUser      = "USER"
	KindAssistant = "ASSISTANT"
	KindError     = "ERROR"
)

// MonitorMessage is one piece of gateway traffic.
type MonitorMessage struct {
	Timestamp   time.Time
	MessageType string
	ChannelID   string
	SessionID   string
	Username    string
	Content     string
}

// Monitor observes gateway traffic.
type Monitor interface {
	Start() error
	Stop() error
	OnMessage(msg MonitorMessage)
}
