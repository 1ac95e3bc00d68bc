package classifier

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

	"go.uber.org/zap"

	"procbse/server/internal/config"
)

var (
	// ErrRateLimited maps the gateway's 429: the caller should advise the
	// visitor to retry shortly.
	ErrRateLimited = errors.New("classifier rate limited")

	// ErrUnavailable maps the gateway's 402 (billing or capacity).
	ErrUnavailable = errors.New("classifier unavailable")
)

// Verdict is the classifier's judgement on one screenshot. Only the boolean
// and a timestamp are ever persisted; the reason is display-only.
type Verdict struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason"`
}

// Client talks to an OpenAI-compatible vision gateway.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	rubrics    map[int]string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg config.ClassifierConfig, logger *zap.Logger) *Client {
	rubrics := map[int]string{
		1: defaultStep1Rubric,
		2: defaultStep2Rubric,
	}
	if cfg.Step1Rubric != "" {
		rubrics[1] = cfg.Step1Rubric
	}
	if cfg.Step2Rubric != "" {
		rubrics[2] = cfg.Step2Rubric
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		rubrics:    rubrics,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Verify sends the image and the step rubric to the gateway and returns the
// parsed verdict. An unparsable model reply is a negative verdict, not an
// error; errors are reserved for transport and gateway failures.
func (c *Client) Verify(ctx context.Context, step int, imageDataURL string) (Verdict, error) {
	rubric, ok := c.rubrics[step]
	if !ok {
		return Verdict{}, fmt.Errorf("no rubric for step %d", step)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: rubric},
				{Type: "image_url", ImageURL: &imageURL{URL: imageDataURL}},
			},
		}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to marshal classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to create classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("classifier gateway error",
			zap.Int("status", resp.StatusCode),
			zap.Int("step", step),
			zap.ByteString("body", body))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return Verdict{}, ErrRateLimited
		case http.StatusPaymentRequired:
			return Verdict{}, ErrUnavailable
		default:
			return Verdict{}, fmt.Errorf("classifier gateway returned status %d", resp.StatusCode)
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to read classifier response: %w", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return Verdict{}, fmt.Errorf("failed to decode classifier envelope: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Verdict{}, fmt.Errorf("classifier returned no choices")
	}

	content := chat.Choices[0].Message.Content
	verdict := ParseVerdict(content)
	if verdict.Reason == parseFailureReason {
		c.logger.Warn("unparsable classifier reply",
			zap.Int("step", step),
			zap.String("content", content))
	}
	return verdict, nil
}

const parseFailureReason = "Could not parse AI response"

// ParseVerdict extracts the {verified, reason} object from free-form model
// text. Models wrap JSON in markdown fences or chatter despite the rubric
// telling them not to, so the parse strips fences and falls back to the
// outermost brace-delimited substring. Any failure yields the canonical
// negative verdict; a parse problem must never read as success.
func ParseVerdict(content string) Verdict {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return Verdict{Verified: false, Reason: parseFailureReason}
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &verdict); err != nil {
		return Verdict{Verified: false, Reason: parseFailureReason}
	}
	return verdict
}
