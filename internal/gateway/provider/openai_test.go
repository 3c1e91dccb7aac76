package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"okxagent/internal/config"
	"okxagent/internal/pkg/circuit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const completionBody = `{"id":"cmpl-1","object":"chat.completion","created":1714550400,"model":"deepseek-chat",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"decisions\":[]}"}}],
"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`

func newServer(t *testing.T, check func(body gjson.Result)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		if check != nil {
			check(gjson.ParseBytes(raw))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCallSendsJSONModeAndReturnsContent(t *testing.T) {
	srv := newServer(t, func(body gjson.Result) {
		assert.Equal(t, "deepseek-chat", body.Get("model").String())
		assert.Equal(t, "json_object", body.Get("response_format.type").String())
		assert.Equal(t, "system", body.Get("messages.0.role").String())
		assert.Equal(t, "sys", body.Get("messages.0.content").String())
		assert.Equal(t, "user prompt", body.Get("messages.1.content").String())
		assert.Equal(t, int64(256), body.Get("max_tokens").Int())
	})
	p, err := NewOpenAIProvider(Config{BaseURL: srv.URL + "/v1/chat/completions", APIKey: "sk-test", JSONMode: true, MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "llm:deepseek-chat", p.ID())
	assert.True(t, p.ExpectsJSON())

	out, err := p.Call(context.Background(), ChatPayload{TraceID: "t1", System: "sys", User: "user prompt"})
	require.NoError(t, err)
	assert.Equal(t, `{"decisions":[]}`, out)
}

func TestCallAttachesImagesForVisionModels(t *testing.T) {
	srv := newServer(t, func(body gjson.Result) {
		content := body.Get("messages.0.content")
		require.True(t, content.IsArray())
		assert.Equal(t, "text", content.Get("0.type").String())
		assert.Equal(t, "image_url", content.Get("1.type").String())
		assert.Equal(t, "data:image/png;base64,AAAA", content.Get("1.image_url.url").String())
		assert.False(t, body.Get("response_format").Exists())
	})
	p, err := NewOpenAIProvider(Config{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-4o", Vision: true})
	require.NoError(t, err)
	_, err = p.Call(context.Background(), ChatPayload{
		User:   "look",
		Images: []ImagePayload{{DataURI: "data:image/png;base64,AAAA", Description: "BTC 3m"}},
	})
	require.NoError(t, err)
}

func TestCallErrorsAndBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()
	p, err := NewOpenAIProvider(Config{BaseURL: srv.URL, APIKey: "sk-test"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = p.Call(context.Background(), ChatPayload{User: "x"})
		require.Error(t, err)
	}
	_, err = p.Call(context.Background(), ChatPayload{User: "x"})
	assert.True(t, errors.Is(err, circuit.ErrOpen))
}

func TestNewOpenAIProviderRequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(Config{})
	require.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	p, err := NewFromConfig(config.LLMConfig{Provider: "deepseek", APIKey: "k", Model: "deepseek-chat", Vision: true})
	require.NoError(t, err)
	assert.Equal(t, "deepseek:deepseek-chat", p.ID())
	assert.True(t, p.SupportsVision())

	_, err = NewFromConfig(config.LLMConfig{Provider: "anthropic-native", APIKey: "k"})
	require.Error(t, err)
}
