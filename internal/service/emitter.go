package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from whoever observes them
// ─────────────────────────────────────────────────────────────

// EventEmitter receives notifications about finished imports.
// The CLI wires a LogEmitter; tests use MockEmitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Event names emitted by ImportService.
const (
	EventImportCompleted = "import:completed"
	EventImportFailed    = "import:failed"
)

// ImportEvent is the payload of the import events.
type ImportEvent struct {
	JobID       string `json:"jobId"`
	Trigger     string `json:"trigger"`
	RowsRead    int    `json:"rowsRead"`
	RowsWritten int    `json:"rowsWritten"`
	Error       string `json:"error,omitempty"`
}

// LogEmitter writes every event to a zap logger.
type LogEmitter struct {
	Log *zap.Logger
}

func (e *LogEmitter) Emit(_ context.Context, event string, data any) {
	if e.Log == nil {
		return
	}
	e.Log.Info("event", zap.String("event", event), zap.Any("data", data))
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Snapshot returns a copy of the recorded events; safe while jobs run.
func (m *MockEmitter) Snapshot() []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmittedEvent, len(m.Events))
	copy(out, m.Events)
	return out
}
