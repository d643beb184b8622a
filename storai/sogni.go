package storai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Cheap, fast defaults: very few steps and low guidance keep generation
// inside the free tier.
const (
	defaultSteps    = 4
	defaultGuidance = 1.0
)

// ModelDescriptor is one provider-side generation backend. The worker
// count is used as a capacity/reliability proxy when picking a model.
type ModelDescriptor struct {
	ID          string `json:"id"`
	WorkerCount int    `json:"workerCount"`
}

// ImageOptions carries optional per-job tuning. Zero values fall back to
// the cheap defaults above.
type ImageOptions struct {
	Steps          int
	Guidance       float64
	StylePrompt    string
	NegativePrompt string
}

// ProgressFunc receives job progress events. Progress is observational
// only and never affects completion.
type ProgressFunc func(jobID string, percent int)

// SogniClient wraps the Sogni image-generation API. The session (login
// token, model list, event socket) is established lazily on first use and
// reused across calls; concurrent first callers share one initialization.
type SogniClient struct {
	cfg        *Config
	http       *http.Client
	appID      string
	onProgress ProgressFunc

	group singleflight.Group

	mu      sync.Mutex
	session *sogniSession
}

type sogniSession struct {
	token  string
	models []ModelDescriptor
	events *websocket.Conn // best-effort; nil when the socket could not be opened
	done   chan struct{}
}

func (s *sogniSession) close() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	if s.events != nil {
		s.events.Close()
	}
}

func NewSogniClient(cfg *Config) *SogniClient {
	return &SogniClient{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.SogniTimeout},
		appID: "storai-" + uuid.New().String(),
	}
}

// OnProgress registers a callback for job progress events. Call before
// first use.
func (c *SogniClient) OnProgress(fn ProgressFunc) {
	c.onProgress = fn
}

// Reset tears the session down; the next call re-initializes it. Used for
// recovery after a fatal session error.
func (c *SogniClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Forget the in-flight init too, so a caller arriving after the reset
	// cannot be handed the pre-reset session.
	c.group.Forget("session")
	if c.session != nil {
		c.session.close()
		c.session = nil
		log.Info().Msg("sogni session reset")
	}
}

func (c *SogniClient) getSession(ctx context.Context) (*sogniSession, error) {
	c.mu.Lock()
	if s := c.session; s != nil {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	// Serialize concurrent initialization: a second caller awaits the
	// in-flight login rather than starting a duplicate.
	v, err, _ := c.group.Do("session", func() (interface{}, error) {
		s, err := c.connect(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.session = s
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sogniSession), nil
}

func (c *SogniClient) connect(ctx context.Context) (*sogniSession, error) {
	log.Info().Str("network", c.cfg.SogniNetwork).Msg("initializing sogni session")

	var login struct {
		Token string `json:"token"`
	}
	err := c.post(ctx, "", "/v1/account/login", map[string]string{
		"appId":    c.appID,
		"network":  c.cfg.SogniNetwork,
		"username": c.cfg.SogniUsername,
		"password": c.cfg.SogniPassword,
	}, &login)
	if err != nil {
		return nil, fmt.Errorf("sogni login: %w", err)
	}

	var modelList struct {
		Models []ModelDescriptor `json:"models"`
	}
	if err := c.get(ctx, login.Token, "/v1/models", &modelList); err != nil {
		return nil, fmt.Errorf("listing sogni models: %w", err)
	}
	if len(modelList.Models) == 0 {
		return nil, fmt.Errorf("no sogni models available")
	}

	s := &sogniSession{
		token:  login.Token,
		models: modelList.Models,
		done:   make(chan struct{}),
	}
	s.events = c.dialEvents(login.Token)
	if s.events != nil {
		go c.readEvents(s)
	}

	log.Info().Int("models", len(s.models)).Msg("sogni session ready")
	return s, nil
}

// dialEvents opens the provider's job event socket. The socket only
// carries progress notifications, so failure to connect is logged and
// tolerated.
func (c *SogniClient) dialEvents(token string) *websocket.Conn {
	u, err := url.Parse(c.cfg.SogniBaseURL)
	if err != nil {
		return nil
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/v1/events"
	u.RawQuery = "token=" + url.QueryEscape(token)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("sogni event socket unavailable, progress events disabled")
		return nil
	}
	return conn
}

type jobEvent struct {
	Type     string `json:"type"`
	JobID    string `json:"jobId"`
	Progress int    `json:"progress"`
}

func (c *SogniClient) readEvents(s *sogniSession) {
	for {
		var ev jobEvent
		if err := s.events.ReadJSON(&ev); err != nil {
			select {
			case <-s.done:
			default:
				log.Warn().Err(err).Msg("sogni event socket closed")
			}
			return
		}
		if ev.Type != "progress" {
			continue
		}
		log.Debug().Str("job_id", ev.JobID).Int("progress", ev.Progress).Msg("generation progress")
		if c.onProgress != nil {
			c.onProgress(ev.JobID, ev.Progress)
		}
	}
}

// SelectModel picks the model with the highest worker count. Ties resolve
// to whichever the provider listed first.
func SelectModel(models []ModelDescriptor) (ModelDescriptor, error) {
	if len(models) == 0 {
		return ModelDescriptor{}, fmt.Errorf("no models available")
	}
	best := models[0]
	for _, m := range models[1:] {
		if m.WorkerCount > best.WorkerCount {
			best = m
		}
	}
	return best, nil
}

type jobRequest struct {
	ModelID        string  `json:"modelId"`
	PositivePrompt string  `json:"positivePrompt"`
	NegativePrompt string  `json:"negativePrompt,omitempty"`
	StylePrompt    string  `json:"stylePrompt,omitempty"`
	Steps          int     `json:"steps"`
	Guidance       float64 `json:"guidance"`
	NumberOfImages int     `json:"numberOfImages"`
	// TokenType is deliberately left unset so jobs run on the free tier.
}

type jobStatus struct {
	ID        string   `json:"id"`
	Status    string   `json:"status"` // "queued", "processing", "completed", "failed"
	ImageURLs []string `json:"imageUrls"`
	ErrorCode int      `json:"errorCode"`
	Message   string   `json:"message"`
}

// GenerateImage submits a generation job and waits for its first image
// URL. Failures are classified into a ProviderError before being
// returned; callers that cannot handle errors should use
// GenerateImageWithFallback instead. Returned URLs expire after 24 hours
// on the provider side.
func (c *SogniClient) GenerateImage(ctx context.Context, prompt string, opts *ImageOptions) (string, error) {
	imageURL, err := c.generate(ctx, prompt, opts)
	if err != nil {
		perr := ClassifyError(err)
		log.Warn().Str("kind", string(perr.Kind)).Str("hint", perr.Hint).Err(err).
			Msg("image generation failed")
		return "", perr
	}
	return imageURL, nil
}

func (c *SogniClient) generate(ctx context.Context, prompt string, opts *ImageOptions) (string, error) {
	s, err := c.getSession(ctx)
	if err != nil {
		return "", err
	}

	model, err := SelectModel(s.models)
	if err != nil {
		return "", err
	}

	if opts == nil {
		opts = &ImageOptions{}
	}
	steps := opts.Steps
	if steps == 0 {
		steps = defaultSteps
	}
	guidance := opts.Guidance
	if guidance == 0 {
		guidance = defaultGuidance
	}

	job := jobRequest{
		ModelID:        model.ID,
		PositivePrompt: sanitizePrompt(prompt),
		NegativePrompt: sanitizePrompt(opts.NegativePrompt),
		StylePrompt:    sanitizePrompt(opts.StylePrompt),
		Steps:          steps,
		Guidance:       guidance,
		NumberOfImages: 1,
	}

	log.Info().Str("model", model.ID).Str("prompt", truncate(prompt, 50)).Msg("submitting image job")

	var created jobStatus
	if err := c.post(ctx, s.token, "/v1/projects", job, &created); err != nil {
		return "", fmt.Errorf("creating project: %w", err)
	}

	return c.awaitCompletion(ctx, s.token, created.ID)
}

func (c *SogniClient) awaitCompletion(ctx context.Context, token, jobID string) (string, error) {
	ticker := time.NewTicker(c.cfg.SogniPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		var status jobStatus
		if err := c.get(ctx, token, "/v1/projects/"+jobID, &status); err != nil {
			return "", fmt.Errorf("polling project %s: %w", jobID, err)
		}

		switch status.Status {
		case "completed":
			if len(status.ImageURLs) == 0 {
				return "", fmt.Errorf("project %s completed with no images", jobID)
			}
			return status.ImageURLs[0], nil
		case "failed":
			return "", &apiError{Code: status.ErrorCode, Message: status.Message}
		}
	}
}

// Square brackets show up as artifacts of list-style model output and
// confuse the image provider, so they are stripped from every prompt.
func sanitizePrompt(prompt string) string {
	return strings.NewReplacer("[", "", "]", "").Replace(prompt)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func (c *SogniClient) post(ctx context.Context, token, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SogniBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, token, out)
}

func (c *SogniClient) get(ctx context.Context, token, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SogniBaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, token, out)
}

func (c *SogniClient) do(req *http.Request, token string, out interface{}) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &apiError{Status: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
