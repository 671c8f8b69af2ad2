// Package analyzer calls an OpenAI-compatible backend to score the
// originality of submitted text.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/textproof/textproof/internal/config"
)

var (
	// ErrBackend indicates a transport failure or a non-success status
	// from the analysis backend.
	ErrBackend = errors.New("analysis backend unavailable")
	// ErrMalformedResponse indicates the backend answered with a body the
	// client could not interpret.
	ErrMalformedResponse = errors.New("malformed analysis response")
)

// errTransient marks backend errors worth one retry (connection-level
// failures, as opposed to a definitive non-success status).
var errTransient = errors.New("transient")

const verdictPrefix = "Originality assessment: "

// Verdict is the outcome of one analysis call.
// When Success is false, Summary carries a user-safe error message.
type Verdict struct {
	Summary string `json:"summary"`
	Success bool   `json:"success"`
}

// Client sends extracted text to the analysis backend.
// Stateless per call; safe for use by a single processing loop.
type Client struct {
	logger      *slog.Logger
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
}

// NewClient builds a Client from the analyzer configuration.
func NewClient(log *slog.Logger, cfg config.AnalyzerConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultAnalyzerURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		logger:      log.With(slog.String("component", "analyzer")),
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze asks the backend to assess the originality of text.
// The caller's context bounds the whole call including the retry; errors are
// classified as ErrBackend or ErrMalformedResponse and carry no backend
// internals beyond the status code.
func (c *Client) Analyze(ctx context.Context, text string) (Verdict, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: "Assess the originality of the following text:\n" + text + "\n" +
				"Answer with an originality percentage. If the text is plain plagiarism, say so.",
		}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal request: %w", err)
	}

	// One bounded retry for transport failures; status errors are final.
	raw, err := c.post(ctx, body)
	if err != nil && errors.Is(err, errTransient) && ctx.Err() == nil {
		c.logger.Warn("analysis call failed, retrying once", slog.Any("error", err))
		select {
		case <-ctx.Done():
			return Verdict{}, fmt.Errorf("%w: %v", ErrBackend, ctx.Err())
		case <-time.After(time.Second):
		}
		raw, err = c.post(ctx, body)
	}
	if err != nil {
		return Verdict{}, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	return Verdict{Summary: verdictPrefix + summary, Success: true}, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackend, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w: %v", ErrBackend, errTransient, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrBackend, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
	}
	return raw, nil
}

// FailureVerdict renders a classified pipeline error as a user-safe verdict.
func FailureVerdict(message string) Verdict {
	return Verdict{Summary: message, Success: false}
}
