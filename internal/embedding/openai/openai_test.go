package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/embedding"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	t.Setenv("TEST_EMBED_KEY", "test-api-key")
	c, err := NewClient(Config{BaseURL: url, APIKeyEnv: "TEST_EMBED_KEY", Model: "text-embedding-3-small"})
	require.NoError(t, err)
	return c
}

func TestEmbed_OpenAIShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req["input"])
		assert.Equal(t, "text-embedding-3-small", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3],"index":0}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	v, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, v)
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbed_OllamaShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"embedding":[1,2]}`))
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL, APIKeyEnv: "UNSET_EMBED_KEY_FOR_TEST", AllowMissingKey: true})
	require.NoError(t, err)
	v, err := c.Embed(context.Background(), "local")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, v)
}

func TestEmbed_StatusErrorIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Embed(context.Background(), "x")
	require.Error(t, err)

	var serr *embedding.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusTooManyRequests, serr.Code)
	assert.True(t, serr.Temporary())
	assert.Equal(t, 1, calls)
}

func TestEmbed_EmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "no embedding returned")
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(Config{APIKeyEnv: "UNSET_EMBED_KEY_FOR_TEST"})
	assert.ErrorContains(t, err, "missing API key")
}
