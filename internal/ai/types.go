// Package ai provides HTTP clients for the LLM backends used by the
// generation pipeline. Two classes of backend exist: a text chat completion
// endpoint and a vision-capable chat completion endpoint. Both speak the
// OpenAI-compatible JSON contract.
package ai

import (
	"context"
	"time"
)

// Role constants for chat messages.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage is one message in a chat completion request. Content is the
// plain-text form; Parts carries mixed text/image content for vision calls.
type ChatMessage struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"-"`
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image for a vision request.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float32
}

// ChatResponse is the generated text plus usage accounting.
type ChatResponse struct {
	Content  string
	Model    string
	Usage    Usage
	Duration time.Duration
}

// Usage tracks token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client is the contract both backend classes implement. Complete must
// respect ctx cancellation and deadlines.
type Client interface {
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ClientUsage tracks cumulative usage statistics for a backend client.
type ClientUsage struct {
	RequestCount int64     `json:"request_count"`
	TotalTokens  int64     `json:"total_tokens"`
	ErrorCount   int64     `json:"error_count"`
	AvgLatency   float64   `json:"avg_latency"`
	LastUsed     time.Time `json:"last_used"`
}
