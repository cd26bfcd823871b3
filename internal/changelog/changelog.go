// Package changelog makes change events durable and operator-visible.
// Every event is appended to a log file and echoed to the console before
// the store mutation that it describes is written.
package changelog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/lotwatch/lotwatch/internal/inventory"
)

// Recorder receives change events. Record must make the event durable
// before returning; the reconciler relies on events being visible before
// or atomically with the store write.
type Recorder interface {
	Record(ev inventory.ChangeEvent) error
}

// FormatEvent renders the canonical change-log line.
func FormatEvent(ev inventory.ChangeEvent) string {
	return fmt.Sprintf("[%s] Change detected for %s: %s changed from '%s' to '%s'",
		ev.Timestamp.Format(inventory.TimestampLayout), ev.UUID, ev.Field, ev.Old, ev.New)
}

// FileRecorder appends change lines to a file and echoes them to a
// console writer.
type FileRecorder struct {
	path    string
	console io.Writer
}

// NewFileRecorder creates a recorder writing to the given path. console
// may be nil to suppress echoing.
func NewFileRecorder(path string, console io.Writer) *FileRecorder {
	return &FileRecorder{path: path, console: console}
}

// Record implements Recorder. The file is opened in append mode and
// synced per event; change events are rare enough that durability wins
// over batching.
func (r *FileRecorder) Record(ev inventory.ChangeEvent) error {
	line := FormatEvent(ev)

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("changelog: open %s: %w", r.path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("changelog: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("changelog: sync: %w", err)
	}

	if r.console != nil {
		fmt.Fprintln(r.console, line)
	}
	return nil
}

// MemoryRecorder collects events in memory for tests and inspection.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []inventory.ChangeEvent
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record implements Recorder.
func (r *MemoryRecorder) Record(ev inventory.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *MemoryRecorder) Events() []inventory.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.ChangeEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Reset clears recorded events for test reuse.
func (r *MemoryRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

var _ Recorder = (*FileRecorder)(nil)
var _ Recorder = (*MemoryRecorder)(nil)
