package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model       string   `json:"model"`
	Stream      bool     `json:"stream"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newOpenAITestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewOpenAIClient(Config{APIKey: "sk-test", Model: "test-model", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)
	return client
}

func TestOpenAIGenerate(t *testing.T) {
	requests := make(chan chatRequest, 1)
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests <- req
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"location\":\"Denver, CO\"}"},"finish_reason":"stop"}]}`)
	})

	text, err := client.Generate(context.Background(), "describe example.com", true)

	require.NoError(t, err)
	assert.Equal(t, `{"location":"Denver, CO"}`, text)
	got := <-requests
	assert.Equal(t, "test-model", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "describe example.com", got.Messages[0].Content)
}

func TestOpenAIGenerateEmptyContent(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  "}}]}`)
	})

	_, err := client.Generate(context.Background(), "p", false)

	assert.ErrorContains(t, err, "empty content")
}

func TestOpenAIGenerateUpstreamError(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"model overloaded","type":"server_error"}}`)
	})

	_, err := client.Generate(context.Background(), "p", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai request")
}

func sseChunk(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"id":     "s1",
		"object": "chat.completion.chunk",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]string{"content": content}},
		},
	})
	return "data: " + string(payload) + "\n\n"
}

func TestOpenAIStream(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{`{"term":"roof`, "", ` repair","category":"Generic"}` + "\n"} {
			fmt.Fprint(w, sseChunk(part))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var parts []string
	for text, err := range client.Stream(context.Background(), "classify") {
		require.NoError(t, err)
		parts = append(parts, text)
	}

	assert.Equal(t, []string{`{"term":"roof`, ` repair","category":"Generic"}` + "\n"}, parts)
	assert.Equal(t, `{"term":"roof repair","category":"Generic"}`+"\n", strings.Join(parts, ""))
}

func TestOpenAIStreamStopsOnConsumerBreak(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("a"))
		fmt.Fprint(w, sseChunk("b"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var parts []string
	for text, err := range client.Stream(context.Background(), "classify") {
		require.NoError(t, err)
		parts = append(parts, text)
		break
	}

	assert.Equal(t, []string{"a"}, parts)
}

func TestOpenAIStreamOpenError(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	var errs []error
	for text, err := range client.Stream(context.Background(), "classify") {
		assert.Empty(t, text)
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "openai stream")
}

func TestOpenAIStreamCancelledBeforeStart(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	client.limiter = newLimiter(1)
	require.True(t, client.limiter.Allow())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var errs []error
	for _, err := range client.Stream(ctx, "classify") {
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
}

func TestOpenAIZeroTemperatureIsSent(t *testing.T) {
	requests := make(chan chatRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests <- req
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()
	client, err := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Temperature: 0})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "p", false)

	require.NoError(t, err)
	got := <-requests
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0, *got.Temperature, 1e-6)
}
