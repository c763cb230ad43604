package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)

		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "¡Hola!"}, "finish_reason": "stop"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	resp, err := c.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hola"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "¡Hola!", resp.Content)
	assert.False(t, resp.HasToolCalls())
}

func TestClient_Chat_ToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "",
			"tool_calls": [{"id": "call_1", "type": "function",
				"function": {"name": "search_cars", "arguments": "{\"make\": \"toyota\"}"}}]},
			"finish_reason": "tool_calls"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	resp, err := c.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	require.True(t, resp.HasToolCalls())
	assert.Equal(t, "search_cars", resp.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"make": "toyota"}`, resp.ToolCalls[0].Function.Arguments)
}

func TestClient_Chat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "bad request"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, IsTerminal(err))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(&APIError{StatusCode: 400}))
	assert.True(t, IsTerminal(&APIError{StatusCode: 422}))
	assert.False(t, IsTerminal(&APIError{StatusCode: 429}), "rate limit is retryable")
	assert.False(t, IsTerminal(&APIError{StatusCode: 500}))
	assert.False(t, IsTerminal(context.DeadlineExceeded))
}
