// Package pipeline implements the generation orchestration pipeline: quota
// gating, image context resolution, the agentic build strategy with its
// compile-fix loop, the legacy two-stage strategy, and the progress stream
// the client watches while a run executes.
package pipeline

import "sync"

// EventType discriminates progress records on the wire.
type EventType string

const (
	EventStep     EventType = "step"
	EventPreview  EventType = "preview"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// StepStatus is the lifecycle of one step index.
type StepStatus string

const (
	StatusPending    StepStatus = "pending"
	StatusInProgress StepStatus = "in_progress"
	StatusCompleted  StepStatus = "completed"
	StatusError      StepStatus = "error"
)

// Step indices used by the legacy path. The agentic path reuses
// StepImageContext for all of its progress and skips the rest on success.
const (
	StepImageContext   = 0
	StepRequirements   = 1
	StepStructure      = 2
	StepGeneration     = 3
	StepInteractivity  = 4
	StepResponsiveness = 5
	StepDeployment     = 6
)

// Progress is the iteration counter attached to agentic progress events.
type Progress struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// ProgressEvent is one record of the progress stream. Events are strictly
// ordered, append-only, and never retracted.
type ProgressEvent struct {
	Type       EventType  `json:"type"`
	StepIndex  *int       `json:"stepIndex,omitempty"`
	Status     StepStatus `json:"status,omitempty"`
	Message    string     `json:"message,omitempty"`
	URL        string     `json:"url,omitempty"`
	PreviewURL string     `json:"previewUrl,omitempty"`
	Error      string     `json:"error,omitempty"`
	Progress   *Progress  `json:"progress,omitempty"`
}

// Stream is the forward-only progress channel for one run. The producer
// side closes it exactly once after the terminal event; if the consumer has
// already disconnected, emissions are silently dropped.
type Stream struct {
	ch   chan ProgressEvent
	done chan struct{}

	closeOnce sync.Once
	dropOnce  sync.Once
}

// NewStream creates a progress stream with the given buffer.
func NewStream(buffer int) *Stream {
	return &Stream{
		ch:   make(chan ProgressEvent, buffer),
		done: make(chan struct{}),
	}
}

// Events returns the consumer side of the stream. The channel is closed
// after the terminal event.
func (s *Stream) Events() <-chan ProgressEvent {
	return s.ch
}

// Emit delivers one event. A disconnected consumer turns Emit into a no-op.
func (s *Stream) Emit(ev ProgressEvent) {
	select {
	case <-s.done:
	default:
		select {
		case <-s.done:
		case s.ch <- ev:
		}
	}
}

// Close ends the stream. Called by the producer exactly once, after the
// terminal complete or error event.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

// Disconnect marks the consumer as gone. Subsequent emissions are dropped.
func (s *Stream) Disconnect() {
	s.dropOnce.Do(func() {
		close(s.done)
	})
}

// Step emits a step event for the given index.
func (s *Stream) Step(index int, status StepStatus, message string) {
	idx := index
	s.Emit(ProgressEvent{
		Type:      EventStep,
		StepIndex: &idx,
		Status:    status,
		Message:   message,
	})
}

// StepProgress emits a step event carrying an iteration counter. Percentage
// is derived from current/total.
func (s *Stream) StepProgress(index, current, total int, message string) {
	idx := index
	pct := 0
	if total > 0 {
		pct = current * 100 / total
	}
	s.Emit(ProgressEvent{
		Type:      EventStep,
		StepIndex: &idx,
		Status:    StatusInProgress,
		Message:   message,
		Progress:  &Progress{Current: current, Total: total, Percentage: pct},
	})
}

// Preview emits a preview event with the draft's preview URL.
func (s *Stream) Preview(previewURL string) {
	s.Emit(ProgressEvent{Type: EventPreview, PreviewURL: previewURL})
}

// Complete emits the terminal success event.
func (s *Stream) Complete(url, message string) {
	s.Emit(ProgressEvent{Type: EventComplete, URL: url, Message: message})
}

// Fail emits the terminal error event.
func (s *Stream) Fail(message string) {
	s.Emit(ProgressEvent{Type: EventError, Error: message})
}
