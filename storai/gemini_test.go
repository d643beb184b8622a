package storai

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
)

func geminiTestConfig(baseURL string) *Config {
	return &Config{
		GeminiAPIKey:      "test-key",
		GeminiBaseURL:     baseURL,
		GeminiModel:       "gemini-1.5-flash",
		GeminiTimeout:     5 * time.Second,
		GeminiMaxAttempts: 5,
		GeminiRetryDelay:  10 * time.Millisecond,
	}
}

func geminiSuccessBody(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]string{{"text": text}},
				},
			},
		},
	}
}

func TestGeminiClientContinue(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "gemini-1.5-flash:generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "a haunted violin")
		assert.Equal(t, defaultGenerationConfig, req.GenerationConfig)

		json.NewEncoder(w).Encode(geminiSuccessBody("raw story text"))
	}))
	defer ts.Close()

	client := NewGeminiClient(geminiTestConfig(ts.URL))
	text, err := client.Continue(context.Background(), "a haunted violin", "")
	require.NoError(t, err)
	assert.Equal(t, "raw story text", text)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGeminiClientRetryBound(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer ts.Close()

	cfg := geminiTestConfig(ts.URL)
	client := NewGeminiClient(cfg)

	start := time.Now()
	_, err := client.Continue(context.Background(), "ctx", "choice")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.EqualValues(t, cfg.GeminiMaxAttempts, atomic.LoadInt32(&calls))
	// Delays separate attempts: attempts-1 waits of the fixed delay.
	assert.GreaterOrEqual(t, elapsed, time.Duration(cfg.GeminiMaxAttempts-1)*cfg.GeminiRetryDelay)
}

func TestGeminiClientMissingCandidateIsRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// 200 but structurally unexpected: no candidates.
			json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
			return
		}
		json.NewEncoder(w).Encode(geminiSuccessBody("recovered"))
	}))
	defer ts.Close()

	client := NewGeminiClient(geminiTestConfig(ts.URL))
	text, err := client.Continue(context.Background(), "ctx", "")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGeminiClientContextCancelStopsRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cfg := geminiTestConfig(ts.URL)
	cfg.GeminiRetryDelay = 10 * time.Second
	client := NewGeminiClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Continue(ctx, "ctx", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGeminiClientDistillTrimsResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiSuccessBody("  a robot in neon rain \n"))
	}))
	defer ts.Close()

	client := NewGeminiClient(geminiTestConfig(ts.URL))
	prompt, err := client.DistillImagePrompt(context.Background(), "some story segment")
	require.NoError(t, err)
	assert.Equal(t, "a robot in neon rain", prompt)
}
