package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmarchetti/vera/internal/reliability"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-1.5-flash"
	defaultGeminiTimeout = 60 * time.Second
)

// GeminiConfig controls client construction.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	cfg    GeminiConfig
	client *http.Client
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGeminiTimeout
	}
	return &GeminiClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	res, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &Error{Kind: KindNetwork, Message: err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", &Error{
			Kind:       kindForStatus(res.StatusCode),
			StatusCode: res.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Message: fmt.Sprintf("read response: %v", err)}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &Error{Kind: KindUnknown, Message: fmt.Sprintf("decode response: %v", err)}
	}

	var out strings.Builder
	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			out.WriteString(part.Text)
		}
		break
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", &Error{Kind: KindUnknown, Message: "empty candidate text"}
	}
	return text, nil
}

func kindForStatus(code int) Kind {
	switch {
	case reliability.IsRetryableHTTPStatus(code):
		return KindRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code >= 400 && code < 500:
		return KindBadRequest
	default:
		return KindUnknown
	}
}
