package nlquery

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
)

const (
	defaultLLMBaseURL = "https://openrouter.ai/api/v1"
	defaultLLMModel   = "meta-llama/llama-3.1-8b-instruct"
)

const extractionPrompt = `Extract movie search parameters from the user query.
Respond with a single JSON object and nothing else, using only these keys
(omit any that do not apply): "year" (int), "decade" (int, e.g. 1990),
"genres" (array of lowercase genre names), "min_rating" (float, 0-10),
"sort_by" ("popularity" or omit), "keywords" (short string).`

// LLMClient extracts structured requests through an OpenRouter-style
// chat completion endpoint. All failures are returned as errors so the
// caller can fall back; it never panics and never blocks past its
// timeout.
type LLMClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// NewLLMClient returns nil when apiKey is empty, which callers treat as
// "not configured". An empty model selects the default.
func NewLLMClient(apiKey, model string) *LLMClient {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = defaultLLMModel
	}
	return &LLMClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultLLMBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Extract asks the model for the structured form of query.
func (c *LLMClient) Extract(ctx context.Context, query string) (_ Request, err error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: extractionPrompt},
			{Role: "user", Content: query},
		},
		Temperature: 0.1,
		MaxTokens:   256,
	})
	if err != nil {
		return Request{}, fmt.Errorf("nlquery: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Request{}, fmt.Errorf("nlquery: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Request{}, fmt.Errorf("nlquery: completion request: %w", err)
	}
	defer func() {
		err = errors.Join(err, resp.Body.Close())
	}()

	if resp.StatusCode != http.StatusOK {
		return Request{}, fmt.Errorf("nlquery: completion status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Request{}, fmt.Errorf("nlquery: read response: %w", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return Request{}, fmt.Errorf("nlquery: decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Request{}, errors.New("nlquery: completion returned no choices")
	}

	parsed, err := parseExtraction(chat.Choices[0].Message.Content)
	if err != nil {
		return Request{}, err
	}
	return parsed, nil
}

// parseExtraction decodes the model's reply, tolerating prose around
// the JSON object.
func parseExtraction(content string) (Request, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return Request{}, errors.New("nlquery: no JSON object in completion")
	}
	var req Request
	if err := json.Unmarshal([]byte(content[start:end+1]), &req); err != nil {
		return Request{}, fmt.Errorf("nlquery: decode extraction: %w", err)
	}
	return req, nil
}
