package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/chyiyaqing/trendscope/internal/trend"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	defaultTimeout = 90 * time.Second
)

var retryBackoff = 2 * time.Second

// ErrMissingAPIKey is returned when no credential for the generation service
// is configured. It is reported before any network call is made.
var ErrMissingAPIKey = errors.New("gemini API key is not configured (set GEMINI_API_KEY)")

// ServiceError wraps a failed call to the generation service.
type ServiceError struct {
	Status int
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("generation service returned %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("generation service: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether the call may succeed if repeated.
func (e *ServiceError) Retryable() bool {
	if e.Status == http.StatusTooManyRequests || e.Status >= 500 {
		return true
	}
	var netErr net.Error
	return e.Status == 0 && errors.As(e.Err, &netErr) && netErr.Timeout()
}

type Config struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Budget is the longest Search can run with this config: every attempt hits
// its timeout and the linear backoff runs between them.
func (c Config) Budget() time.Duration {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := max(c.MaxRetries, 1)

	d := time.Duration(attempts) * timeout
	for a := 1; a < attempts; a++ {
		d += time.Duration(a) * retryBackoff
	}
	return d
}

// generator is the subset of *genai.Models the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client runs search-grounded generation calls against Gemini.
type Client struct {
	models     generator
	model      string
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(gc.Models, cfg, logger), nil
}

func newClient(models generator, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		models:     models,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	return c
}

// Search sends prompt with the Google Search tool enabled and returns the
// reply text plus the web sources it was grounded on. A response without
// candidates is an empty reply, not an error.
func (c *Client) Search(ctx context.Context, prompt string) (*trend.Reply, error) {
	// responseMimeType cannot be combined with the search tool, so the reply
	// comes back as plain text.
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	var lastErr *ServiceError
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.generate(ctx, prompt, config)
		if err == nil {
			return toReply(resp), nil
		}
		lastErr = classify(err)
		if !lastErr.Retryable() || attempt == c.maxRetries {
			break
		}
		c.logger.Warn("generation call failed, retrying",
			"attempt", attempt, "max_attempts", c.maxRetries, "error", err)
		select {
		case <-ctx.Done():
			return nil, &ServiceError{Err: ctx.Err()}
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return nil, lastErr
}

func (c *Client) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
}

func classify(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{Status: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &ServiceError{Status: apiErrPtr.Code, Err: err}
	}
	return &ServiceError{Err: err}
}

func toReply(resp *genai.GenerateContentResponse) *trend.Reply {
	reply := &trend.Reply{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return reply
	}
	cand := resp.Candidates[0]

	if cand.Content != nil {
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
		reply.Text = sb.String()
	}

	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			reply.References = append(reply.References, trend.GroundingRef{
				Title: chunk.Web.Title,
				URI:   chunk.Web.URI,
			})
		}
	}
	return reply
}
