package pipeline

import (
	"errors"
	"fmt"
)

// Error taxonomy for the pipeline. Handlers and the stream map these onto
// user-facing messages; everything else wraps one of them.
var (
	ErrQuotaExceeded   = errors.New("generation quota exceeded")
	ErrDraftNotFound   = errors.New("draft not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrUpstreamAuth    = errors.New("upstream authentication failed")
	ErrRequestTimeout  = errors.New("upstream request timed out")
	ErrUpstream        = errors.New("upstream service error")
	ErrEmptyGeneration = errors.New("model returned no usable text")
	ErrPersistence     = errors.New("failed to persist generated draft")
	ErrRunInProgress   = errors.New("a generation is already running for this draft")
)

// UserMessage translates a pipeline error into the actionable message
// carried by the terminal error event.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "You have used all generations included in your plan. Upgrade to Pro for more."
	case errors.Is(err, ErrDraftNotFound):
		return "This draft no longer exists. Create a new draft and try again."
	case errors.Is(err, ErrAccountNotFound):
		return "The account owning this draft could not be found."
	case errors.Is(err, ErrUpstreamAuth):
		return "The AI service credential is missing or invalid. Set OPENAI_API_KEY (create one at https://platform.openai.com/api-keys) and restart the service."
	case errors.Is(err, ErrRequestTimeout):
		return "The AI service took too long to respond. Please try generating again."
	case errors.Is(err, ErrEmptyGeneration):
		return "The AI service returned an empty result. Please try generating again."
	case errors.Is(err, ErrPersistence):
		return "The generated site could not be saved. Please try again."
	case errors.Is(err, ErrRunInProgress):
		return "A generation is already running for this draft. Wait for it to finish."
	case errors.Is(err, ErrUpstream):
		return "The AI service is temporarily unavailable. Please try again in a moment."
	default:
		return "Generation failed unexpectedly. Please try again."
	}
}

// reason returns the short label recorded in metrics and run records.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrDraftNotFound):
		return "draft_not_found"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrUpstreamAuth):
		return "upstream_auth"
	case errors.Is(err, ErrRequestTimeout):
		return "timeout"
	case errors.Is(err, ErrEmptyGeneration):
		return "empty_generation"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrRunInProgress):
		return "run_in_progress"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "unknown"
	}
}

func wrapf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
