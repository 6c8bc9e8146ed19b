package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Sentinel errors the pipeline matches on. The prefix tags keep raw logs
// greppable.
var (
	ErrUnauthorized = errors.New("UNAUTHORIZED: backend rejected the API key")
	ErrRateLimited  = errors.New("RATE_LIMIT: backend rate limit exceeded")
	ErrService      = errors.New("SERVICE_ERROR: backend temporarily unavailable")
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
// The same client serves text and vision calls; vision requests carry
// image_url content parts in their messages.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	usage   ClientUsage
	usageMu sync.RWMutex
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
}

// openAIMessage marshals Content as a plain string for text messages and as
// a content-part array when image parts are present.
type openAIMessage struct {
	Role    string
	Content string
	Parts   []ContentPart
}

func (m openAIMessage) MarshalJSON() ([]byte, error) {
	if len(m.Parts) > 0 {
		return json.Marshal(struct {
			Role    string        `json:"role"`
			Content []ContentPart `json:"content"`
		}{m.Role, m.Parts})
	}
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{m.Role, m.Content})
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient creates a client for the hosted OpenAI endpoint.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithBaseURL(apiKey, "https://api.openai.com/v1/chat/completions")
}

// NewOpenAIClientWithBaseURL creates a client against an explicit endpoint.
// Used for OpenAI-compatible proxies and for tests.
func NewOpenAIClientWithBaseURL(apiKey, baseURL string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		usage: ClientUsage{LastUsed: time.Now()},
	}
}

// Complete implements the Client interface.
func (o *OpenAIClient) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	startTime := time.Now()

	messages := make([]openAIMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{Role: m.Role, Content: m.Content, Parts: m.Parts})
	}

	apiReq := &openAIRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      false,
	}

	resp, err := o.makeRequest(ctx, apiReq)
	if err != nil {
		o.incrementErrorCount()
		return nil, err
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	duration := time.Since(startTime)
	o.updateUsage(resp.Usage.TotalTokens, duration)

	return &ChatResponse{
		Content:  content,
		Model:    resp.Model,
		Usage:    resp.Usage,
		Duration: duration,
	}, nil
}

// makeRequest sends the HTTP request and maps non-2xx statuses onto the
// sentinel error values.
func (o *OpenAIClient) makeRequest(ctx context.Context, req *openAIRequest) (*openAIResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: wait before retrying", ErrRateLimited)
		case 500, 502, 503, 504:
			return nil, fmt.Errorf("%w (status %d)", ErrService, resp.StatusCode)
		default:
			return nil, fmt.Errorf("%w: request failed with status %d: %s", ErrService, resp.StatusCode, truncate(string(body), 200))
		}
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrService, apiResp.Error.Message)
	}

	return &apiResp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (o *OpenAIClient) updateUsage(totalTokens int, duration time.Duration) {
	o.usageMu.Lock()
	defer o.usageMu.Unlock()

	o.usage.RequestCount++
	o.usage.TotalTokens += int64(totalTokens)
	o.usage.AvgLatency = (o.usage.AvgLatency*float64(o.usage.RequestCount-1) + duration.Seconds()) / float64(o.usage.RequestCount)
	o.usage.LastUsed = time.Now()
}

func (o *OpenAIClient) incrementErrorCount() {
	o.usageMu.Lock()
	defer o.usageMu.Unlock()
	o.usage.ErrorCount++
}

// GetUsage returns a snapshot of cumulative usage statistics.
func (o *OpenAIClient) GetUsage() ClientUsage {
	o.usageMu.RLock()
	defer o.usageMu.RUnlock()
	return o.usage
}
