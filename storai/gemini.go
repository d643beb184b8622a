package storai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrExhausted is returned once every retry attempt against the text
// provider has failed. Callers must treat it as a service failure.
var ErrExhausted = errors.New("text generation attempts exhausted")

// Generation parameters are static configuration, not tunable per call.
var defaultGenerationConfig = generationConfig{
	Temperature:     0.9,
	TopK:            40,
	TopP:            0.95,
	MaxOutputTokens: 1024,
}

// GeminiClient calls the Gemini text-generation endpoint with a bounded
// retry policy: a fixed number of attempts with a fixed delay between
// them, no backoff growth.
type GeminiClient struct {
	http        *http.Client
	baseURL     string
	model       string
	apiKey      string
	maxAttempts int
	retryDelay  time.Duration
}

func NewGeminiClient(cfg *Config) *GeminiClient {
	return &GeminiClient{
		http:        &http.Client{Timeout: cfg.GeminiTimeout},
		baseURL:     strings.TrimRight(cfg.GeminiBaseURL, "/"),
		model:       cfg.GeminiModel,
		apiKey:      cfg.GeminiAPIKey,
		maxAttempts: cfg.GeminiMaxAttempts,
		retryDelay:  cfg.GeminiRetryDelay,
	}
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Continue produces the next part of a story. userChoice may be empty,
// which the prompt treats as the story's beginning. The returned text is
// raw and still carries the section markers for ParseStoryResponse.
func (c *GeminiClient) Continue(ctx context.Context, storyContext, userChoice string) (string, error) {
	return c.generate(ctx, continuationPrompt(storyContext, userChoice))
}

// DistillImagePrompt turns a story segment into a short image-generation
// prompt.
func (c *GeminiClient) DistillImagePrompt(ctx context.Context, segment string) (string, error) {
	text, err := c.generate(ctx, distillPrompt(segment))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// generate sends one prompt and retries on any transport failure or
// structurally unexpected response. After the final attempt it returns
// ErrExhausted wrapping the last failure.
func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		text, err := c.call(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", c.maxAttempts).
			Msg("text generation attempt failed")
	}
	return "", fmt.Errorf("%w after %d attempts: %v", ErrExhausted, c.maxAttempts, lastErr)
}

func (c *GeminiClient) call(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: defaultGenerationConfig,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling text provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	// The usable text lives in the first candidate's first content part.
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("response missing candidate text")
	}
	text := parsed.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", fmt.Errorf("response candidate text is empty")
	}
	return text, nil
}
