package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFactory(t *testing.T) {
	for _, provider := range []string{"openrouter", "groq", "gemini", " Gemini "} {
		c, err := New(provider, "key")
		require.NoError(t, err, provider)
		assert.NotNil(t, c)
	}

	_, err := New("claude", "key")
	assert.Error(t, err)
}

func TestGeminiComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[]"}]}}]}`))
	}))
	defer srv.Close()

	c := &geminiClient{apiKey: "key", httpClient: srv.Client(), baseURL: srv.URL}
	out, err := c.Complete(context.Background(), Request{Prompt: "extract"})
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestGeminiRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &geminiClient{apiKey: "key", httpClient: srv.Client(), baseURL: srv.URL}
	_, err := c.Complete(context.Background(), Request{Prompt: "extract"})
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, ProviderGemini, rle.Provider)
}

func TestGeminiMissingKey(t *testing.T) {
	c := NewGemini("")
	_, err := c.Complete(context.Background(), Request{Prompt: "extract"})
	assert.Error(t, err)
}
