package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"taskmate/pkg/monitor"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// DebugRoot is where raw provider chunks are written when chunk debugging is on.
var DebugRoot = filepath.Join("debug", "chunks")

// StreamDebugger appends raw provider chunks to a per-call file, grouped
// by the trace id of the turn when one is present on the context.
type StreamDebugger struct {
	mu   sync.Mutex
	file *os.File
}

// NewStreamDebugger opens the debug file for one provider call. A disabled
// or failed debugger is returned as a no-op.
func NewStreamDebugger(ctx context.Context, provider string, enabled bool) *StreamDebugger {
	if !enabled {
		return &StreamDebugger{}
	}

	dir := filepath.Join(DebugRoot, unsafePathChars.ReplaceAllString(provider, "_"))
	if id := monitor.TraceID(ctx); id != "" {
		dir = filepath.Join(DebugRoot, unsafePathChars.ReplaceAllString(id, "_"), unsafePathChars.ReplaceAllString(provider, "_"))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.ErrorContext(ctx, "Failed to create debug directory", "dir", dir, "error", err)
		return &StreamDebugger{}
	}

	name := filepath.Join(dir, fmt.Sprintf("%s.log", time.Now().Format("20060102_150405.000")))
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to open debug file", "file", name, "error", err)
		return &StreamDebugger{}
	}

	slog.DebugContext(ctx, "Chunk debugging on", "provider", provider, "file", name)
	return &StreamDebugger{file: f}
}

// Enabled reports whether writes reach a file.
func (d *StreamDebugger) Enabled() bool {
	return d != nil && d.file != nil
}

// WriteJSON appends v as one JSON line.
func (d *StreamDebugger) WriteJSON(v any) {
	if !d.Enabled() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		d.WriteString(fmt.Sprintf("marshal error: %v", err))
		return
	}
	d.write(data)
}

// WriteString appends s as one line.
func (d *StreamDebugger) WriteString(s string) {
	if !d.Enabled() {
		return
	}
	d.write([]byte(s))
}

func (d *StreamDebugger) write(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return
	}
	data = append(data, '\n')
	if _, err := d.file.Write(data); err != nil {
		slog.Warn("Failed to write debug file", "error", err)
	}
}

func (d *StreamDebugger) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file != nil {
		d.file.Close()
		d.file = nil
	}
}
