package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lexa/internal/domain"
	"lexa/internal/retry"
)

const keyEnv = "LEXA_TEST_EMBED_KEY"

func fastRetry() *retry.Policy {
	return &retry.Policy{MaxAttempts: 3, TransientInitial: time.Millisecond, RateLimitInitial: time.Millisecond, Max: 2 * time.Millisecond}
}

func embeddingServer(t *testing.T, failures int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n <= failures {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"try later","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv(keyEnv, "")
	_, err := NewClient(Config{APIKeyEnv: keyEnv})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestEmbed_Success(t *testing.T) {
	t.Setenv(keyEnv, "secret")
	srv, calls := embeddingServer(t, 0, 0)

	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", APIKeyEnv: keyEnv, Model: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-small", c.Name())
	assert.Equal(t, 0, c.Dimension())

	vec, err := c.Embed(context.Background(), "offer and acceptance")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbed_RetriesServerErrors(t *testing.T) {
	t.Setenv(keyEnv, "secret")
	srv, calls := embeddingServer(t, 2, http.StatusBadGateway)

	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", APIKeyEnv: keyEnv, Retry: fastRetry(), Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "land use decree")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbed_UnauthorizedIsNotRetried(t *testing.T) {
	t.Setenv(keyEnv, "secret")
	srv, calls := embeddingServer(t, 10, http.StatusUnauthorized)

	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", APIKeyEnv: keyEnv, Retry: fastRetry()})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "land use decree")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
