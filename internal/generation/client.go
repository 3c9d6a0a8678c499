// Package generation talks to an OpenAI compatible chat completions API.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ronappleton/rubricflow/internal/config"
	"github.com/ronappleton/rubricflow/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	completionsPath     = "/chat/completions"
	contentTypeHeader   = "Content-Type"
	applicationJSON     = "application/json"
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	maxErrorBody        = 64 << 10
)

const stepSystemPrompt = "You are a direct and precise assistant. Provide ONLY the requested output without any explanations, " +
	"introductions, or additional commentary. Do not include phrases like 'Here's the result' or 'I hope this helps'. " +
	"Output exactly what is asked for and nothing more."

type Options struct {
	BaseURL           string
	VisionModel       string
	TextModel         string
	ChatModel         string
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerMinute int
	// Transport overrides the instrumented default transport.
	Transport http.RoundTripper
}

// OptionsFromConfig maps the openai config section onto Options.
func OptionsFromConfig(cfg config.OpenAIConfig) Options {
	return Options{
		BaseURL:           cfg.BaseURL,
		VisionModel:       cfg.VisionModel,
		TextModel:         cfg.TextModel,
		ChatModel:         cfg.TutorModel,
		MaxTokens:         cfg.MaxTokens,
		Timeout:           config.Duration(cfg.Timeout, 60*time.Second),
		RequestsPerMinute: cfg.RequestsPerMinute,
	}
}

// Client issues one request per call and never retries.
type Client struct {
	opts    Options
	creds   CredentialSource
	http    *http.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewClient(opts Options, creds CredentialSource, m *metrics.Metrics, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60)
	}
	return &Client{
		opts:    opts,
		creds:   creds,
		http:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		metrics: m,
		logger:  logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiErrorBody `json:"error,omitempty"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Ready checks that a well formed key is available.
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.apiKey(ctx)
	return err
}

func (c *Client) apiKey(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", ErrMissingCredential
	}
	key, err := c.creds.APIKey(ctx)
	if err != nil {
		return "", err
	}
	if err := CheckKey(key); err != nil {
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// Complete sends a single prompt and returns the raw reply. An empty model
// selects the configured text model.
func (c *Client) Complete(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = c.opts.TextModel
	}
	temp := 0.7
	return c.do(ctx, "complete", chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: stepSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: &temp,
	})
}

// Chat sends a system prompt and one user message to the chat model.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	temp := 0.7
	return c.do(ctx, "chat", chatRequest{
		Model: c.opts.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: &temp,
	})
}

// DetectQuestion extracts the question record from an image data URL.
func (c *Client) DetectQuestion(ctx context.Context, imageDataURL, prompt string) (DetectedQuestion, error) {
	if !IsImageDataURL(imageDataURL) {
		return DetectedQuestion{}, ErrInvalidImage
	}
	content, err := c.do(ctx, "detect", chatRequest{
		Model: c.opts.VisionModel,
		Messages: []chatMessage{
			{Role: "system", Content: detectionSystemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: detectionPrompt(prompt)},
				{Type: "image_url", ImageURL: &imageURL{URL: imageDataURL, Detail: "high"}},
			}},
		},
		MaxTokens: c.opts.MaxTokens,
	})
	if err != nil {
		return DetectedQuestion{}, err
	}
	d, err := ParseDetection(content)
	if err != nil {
		return DetectedQuestion{}, err
	}
	if d.Type == "" {
		c.logger.Warn("invalid question type detected", zap.String("type", d.RawType))
	}
	return d, nil
}

// Generate detects a question when input is an image data URL and
// otherwise completes prompt (or input when prompt is empty) as text.
func (c *Client) Generate(ctx context.Context, input, prompt string) (Result, error) {
	if IsImageDataURL(input) {
		d, err := c.DetectQuestion(ctx, input, prompt)
		if err != nil {
			return nil, err
		}
		return QuestionResult{Question: d}, nil
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = input
	}
	text, err := c.Complete(ctx, prompt, "")
	if err != nil {
		return nil, err
	}
	return TextResult{Text: text}, nil
}

func (c *Client) do(ctx context.Context, operation string, body chatRequest) (out string, err error) {
	start := time.Now()
	defer func() {
		c.metrics.ModelRequest(operation, err, time.Since(start))
	}()

	key, err := c.apiKey(ctx)
	if err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+completionsPath, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set(contentTypeHeader, applicationJSON)
	req.Header.Set(authorizationHeader, bearerPrefix+key)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("%s read response: %w", operation, err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode >= http.StatusBadRequest || parsed.Error != nil {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if parsed.Error != nil {
			apiErr.Code = parsed.Error.Code
			apiErr.Message = parsed.Error.Message
		} else if len(data) > 0 {
			apiErr.Message = truncate(string(data), maxErrorBody)
		}
		apiErr.Kind = classify(resp.StatusCode, apiErr.Code)
		c.logger.Warn("model API error",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return "", apiErr
	}
	if decodeErr != nil {
		return "", &APIError{Kind: ErrMalformedResponse, StatusCode: resp.StatusCode, Message: decodeErr.Error()}
	}
	if len(parsed.Choices) == 0 {
		return "", &APIError{Kind: ErrMalformedResponse, StatusCode: resp.StatusCode, Message: "no choices in response"}
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
