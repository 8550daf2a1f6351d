// Package llm talks to an OpenAI-compatible chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	wlog "weft/internal/logger"
)

const (
	ModelVersatile = "llama-3.3-70b-versatile"
	ModelInstant   = "llama-3.1-8b-instant"

	DefaultBaseURL   = "https://api.groq.com/openai/v1"
	DefaultMaxTokens = 400
	MaxTokensLimit   = 4000
	MaxPromptLength  = 50000

	defaultTimeout = 30 * time.Second
)

// AllowedModels lists the models the client will forward requests for.
var AllowedModels = []string{ModelVersatile, ModelInstant}

// Options tune a single completion. Zero values fall back to defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Temperature is a helper for filling Options.Temperature.
func Temperature(t float64) *float64 {
	return &t
}

// Generator produces a completion for a single user prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Config holds the connection settings for Client.
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	RetryMax int
}

// Client is a Generator backed by a chat completions API.
type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
	logger  *zap.Logger
}

// NewClient builds a client. A missing API key is reported at call time
// with ErrNotConfigured so the rest of the service can still start.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := retryablehttp.NewClient()
	r.RetryMax = cfg.RetryMax
	r.RetryWaitMin = 250 * time.Millisecond
	r.RetryWaitMax = 2 * time.Second
	r.HTTPClient.Timeout = cfg.Timeout
	r.CheckRetry = checkRetry
	r.ErrorHandler = retryablehttp.PassthroughErrorHandler
	r.Logger = wlog.Retryable(logger)

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    r,
		logger:  logger,
	}
}

// checkRetry leaves rate limiting and unavailability to the caller, who
// decides whether to keep going. Connection failures and other 5xx retry.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as a single user message and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	body, err := buildRequest(prompt, opts)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", &TimeoutError{Err: err}
		}
		return "", &ProviderError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("LLM request rejected",
			zap.String("model", body.Model),
			zap.Int("status", resp.StatusCode),
		)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			return "", &RateLimitError{StatusCode: resp.StatusCode, Body: string(b)}
		}
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", &ProviderError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode chat response: %w", err)}
	}
	if len(cr.Choices) == 0 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Err: errors.New("empty chat response")}
	}

	c.logger.Debug("LLM completion",
		zap.String("model", body.Model),
		zap.Int("max_tokens", body.MaxTokens),
		zap.Duration("took", time.Since(start)),
	)
	return cr.Choices[0].Message.Content, nil
}

func buildRequest(prompt string, opts Options) (*chatRequest, error) {
	model := opts.Model
	if model == "" {
		model = ModelVersatile
	}
	if !IsAllowedModel(model) {
		return nil, fmt.Errorf("%w: %q (allowed: %s)", ErrModelNotAllowed, model, strings.Join(AllowedModels, ", "))
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return nil, ErrPromptTooLong
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if maxTokens > MaxTokensLimit {
		maxTokens = MaxTokensLimit
	}

	req := &chatRequest{
		Model:     model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	}
	if opts.Temperature != nil {
		t := min(max(*opts.Temperature, 0), 2)
		req.Temperature = &t
	}
	return req, nil
}

// IsAllowedModel reports whether model is on the allowlist.
func IsAllowedModel(model string) bool {
	for _, m := range AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
