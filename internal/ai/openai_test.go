package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestCompleteSuccess(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"model": "gpt-4o-mini",
		"choices": [{"message": {"role": "assistant", "content": "hello world"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`)
	defer server.Close()

	client := NewOpenAIClientWithBaseURL("test-key", server.URL)
	resp, err := client.Complete(context.Background(), &ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	usage := client.GetUsage()
	assert.Equal(t, int64(1), usage.RequestCount)
	assert.Equal(t, int64(15), usage.TotalTokens)
	assert.Equal(t, int64(0), usage.ErrorCount)
}

func TestCompleteStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrService},
		{"bad gateway", http.StatusBadGateway, ErrService},
		{"unexpected status", http.StatusTeapot, ErrService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.status, `{"error": {"message": "nope"}}`)
			defer server.Close()

			client := NewOpenAIClientWithBaseURL("test-key", server.URL)
			_, err := client.Complete(context.Background(), &ChatRequest{
				Model:    "gpt-4o-mini",
				Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, int64(1), client.GetUsage().ErrorCount)
		})
	}
}

func TestCompleteAPIErrorInBody(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"error": {"message": "model overloaded", "type": "server_error"}}`)
	defer server.Close()

	client := NewOpenAIClientWithBaseURL("test-key", server.URL)
	_, err := client.Complete(context.Background(), &ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrService)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestVisionMessageEncoding(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}], "usage": {}}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithBaseURL("test-key", server.URL)
	_, err := client.Complete(context.Background(), &ChatRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{{
			Role: RoleUser,
			Parts: []ContentPart{
				{Type: "text", Text: "describe this"},
				{Type: "image_url", ImageURL: &ImageURL{URL: "data:image/png;base64,AAAA"}},
			},
		}},
	})
	require.NoError(t, err)

	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 1)
	content := messages[0].(map[string]interface{})["content"]
	parts, ok := content.([]interface{})
	require.True(t, ok, "vision message content should be a content-part array")
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]interface{})["type"])
	assert.Equal(t, "image_url", parts[1].(map[string]interface{})["type"])
}

func TestTextMessageEncoding(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}], "usage": {}}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithBaseURL("test-key", server.URL)
	_, err := client.Complete(context.Background(), &ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []ChatMessage{{Role: RoleSystem, Content: "be brief"}},
	})
	require.NoError(t, err)

	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 1)
	content := messages[0].(map[string]interface{})["content"]
	_, isString := content.(string)
	assert.True(t, isString, "text message content should be a plain string")
}
