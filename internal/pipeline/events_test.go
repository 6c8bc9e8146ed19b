package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamOrderingAndClose(t *testing.T) {
	stream := NewStream(8)

	stream.Step(StepImageContext, StatusInProgress, "starting")
	stream.Step(StepImageContext, StatusCompleted, "done")
	stream.Preview("https://example.com/preview/abc")
	stream.Complete("https://example.com/preview/abc", "ready")
	stream.Close()

	events := collectEvents(stream)
	require.Len(t, events, 4)

	assert.Equal(t, EventStep, events[0].Type)
	assert.Equal(t, StatusInProgress, events[0].Status)
	assert.Equal(t, EventStep, events[1].Type)
	assert.Equal(t, EventPreview, events[2].Type)
	assert.Equal(t, "https://example.com/preview/abc", events[2].PreviewURL)
	assert.Equal(t, EventComplete, events[3].Type)
}

func TestStreamCloseIdempotent(t *testing.T) {
	stream := NewStream(1)
	stream.Close()
	assert.NotPanics(t, func() { stream.Close() })
}

func TestStreamDropsAfterDisconnect(t *testing.T) {
	stream := NewStream(1)
	stream.Disconnect()

	// Without the disconnect short-circuit these would block forever on
	// the full channel.
	stream.Step(0, StatusInProgress, "one")
	stream.Step(0, StatusInProgress, "two")
	stream.Step(0, StatusInProgress, "three")
	stream.Fail("boom")
	stream.Close()

	events := collectEvents(stream)
	assert.Empty(t, events)
}

func TestStreamDisconnectIdempotent(t *testing.T) {
	stream := NewStream(1)
	stream.Disconnect()
	assert.NotPanics(t, func() { stream.Disconnect() })
}

func TestStepProgressPercentage(t *testing.T) {
	stream := NewStream(4)
	stream.StepProgress(StepImageContext, 1, 3, "repairing")
	stream.StepProgress(StepImageContext, 3, 3, "repairing")
	stream.Close()

	events := collectEvents(stream)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].Progress)
	assert.Equal(t, 33, events[0].Progress.Percentage)
	assert.Equal(t, 100, events[1].Progress.Percentage)
}

func TestProgressEventWireFormat(t *testing.T) {
	idx := StepDeployment
	ev := ProgressEvent{
		Type:      EventStep,
		StepIndex: &idx,
		Status:    StatusCompleted,
		Message:   "Draft published",
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "step", decoded["type"])
	assert.Equal(t, float64(6), decoded["stepIndex"])
	assert.Equal(t, "completed", decoded["status"])
	assert.NotContains(t, decoded, "previewUrl")
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, decoded, "progress")
}

func TestTerminalErrorWireFormat(t *testing.T) {
	data, err := json.Marshal(ProgressEvent{Type: EventError, Error: "quota exhausted"})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "error", decoded["type"])
	assert.Equal(t, "quota exhausted", decoded["error"])
	assert.NotContains(t, decoded, "stepIndex")
}
