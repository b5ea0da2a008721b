package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...CompletionsOption) *CompletionsClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]CompletionsOption{WithURL(server.URL), WithCompletionsHTTPClient(server.Client())}, opts...)
	client, err := NewCompletionsClient("sk-test", opts...)
	require.NoError(t, err)
	return client
}

func TestNewCompletionsClient_RequiresKey(t *testing.T) {
	_, err := NewCompletionsClient("")
	assert.Error(t, err)
}

func TestComplete_RequestShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://finance.example", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Finance Chat", r.Header.Get("X-Title"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test/model", body["model"])
		assert.EqualValues(t, 1024, body["max_tokens"])
		assert.Len(t, body["messages"], 2)

		toolList, ok := body["tools"].([]any)
		if assert.True(t, ok) && assert.Len(t, toolList, 1) {
			tool := toolList[0].(map[string]any)
			assert.Equal(t, "get_balance", tool["name"])
			assert.Contains(t, tool, "input_schema")
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}],"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`))
	}, WithAttribution("https://finance.example", "Finance Chat"))

	reply, err := client.Complete(context.Background(), &CompletionRequest{
		Model:    "test/model",
		Messages: []Message{UserMessage("hi"), AssistantMessage("hey")},
		Tools: []tools.Descriptor{{
			Name:        "get_balance",
			Description: "Current balance",
			InputSchema: &jsonschema.Schema{Type: "object"},
		}},
		MaxTokens: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply.Content)
	assert.False(t, reply.HasToolCalls())
	assert.Equal(t, 13, reply.Usage.TotalTokens)
}

func TestComplete_OmitsToolsWhenEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "tools")
		assert.EqualValues(t, defaultMaxTokens, body["max_tokens"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	for _, descs := range [][]tools.Descriptor{nil, {}} {
		_, err := client.Complete(context.Background(), &CompletionRequest{
			Model:    "m",
			Messages: []Message{UserMessage("hi")},
			Tools:    descs,
		})
		require.NoError(t, err)
	}
}

func TestComplete_ParsesToolCallsInOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","tool_calls":[
			{"id":"call_a","type":"function","function":{"name":"get_balance","arguments":"{\"account\":\"checking\"}"}},
			{"id":"call_b","type":"function","function":{"name":"list_goals","arguments":""}}
		]}}]}`))
	})

	reply, err := client.Complete(context.Background(), &CompletionRequest{Model: "m", Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)
	require.True(t, reply.HasToolCalls())
	require.Len(t, reply.ToolCalls, 2)
	assert.Equal(t, tools.NewToolCall("call_a", "get_balance", `{"account":"checking"}`), reply.ToolCalls[0])
	assert.Equal(t, "call_b", reply.ToolCalls[1].ID)
	assert.Equal(t, "list_goals", reply.ToolCalls[1].Function.Name)
}

func TestComplete_TransportErrors(t *testing.T) {
	cases := []struct {
		name       string
		handler    http.HandlerFunc
		wantOp     string
		wantStatus int
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
		}, "status", http.StatusUnauthorized},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}, "status", http.StatusServiceUnavailable},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}, "decode", 0},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}, "decode", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tc.handler(w, r)
			})

			_, err := client.Complete(context.Background(), &CompletionRequest{Model: "m", Messages: []Message{UserMessage("hi")}})
			var terr *TransportError
			require.True(t, errors.As(err, &terr), "got %v", err)
			assert.Equal(t, tc.wantOp, terr.Op)
			assert.Equal(t, tc.wantStatus, terr.StatusCode)
			assert.Equal(t, int32(1), calls.Load(), "model calls are never retried")
		})
	}
}

func TestComplete_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewCompletionsClient("sk-test", WithURL(url))
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), &CompletionRequest{Model: "m", Messages: []Message{UserMessage("hi")}})

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "request", terr.Op)
	assert.Zero(t, terr.StatusCode)
}

func TestComplete_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Complete(ctx, &CompletionRequest{Model: "m", Messages: []Message{UserMessage("hi")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
