package monitor

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// CLIMonitor prints gateway traffic from every channel to a terminal.
type CLIMonitor struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewCLIMonitor creates a monitor writing to w, or stdout when w is nil.
func NewCLIMonitor(w io.Writer) *CLIMonitor {
	if w == nil {
		w = os.Stdout
	}
	return &CLIMonitor{writer: w}
}

func (m *CLIMonitor) Start() error {
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	fmt.Fprintln(m.writer, "Monitor active - chat traffic from all channels appears here")
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	return nil
}

func (m *CLIMonitor) Stop() error {
	return nil
}

// OnMessage prints one line per message.
func (m *CLIMonitor) OnMessage(msg MonitorMessage) {
	timestamp := msg.Timestamp.Format("2006-01-02 15:04:05")

	var line string
	switch msg.MessageType {
	case KindAssistant:
		line = fmt.Sprintf("[AI -> %s/%s] %s", msg.ChannelID, msg.SessionID, msg.Content)
	case KindError:
		line = fmt.Sprintf("[ERR %s/%s] %s", msg.ChannelID, msg.SessionID, msg.Content)
	default:
		line = fmt.Sprintf("[%s/%s] %s", msg.ChannelID, msg.Username, msg.Content)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.writer, "\033[90m[%s]\033[0m %s\n", timestamp, line)
}
