// Package llm implements the OpenRouter-backed completion client used by the
// document pipeline: plain text completions and vision completions over a
// single inline PNG image.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel   = "google/gemini-2.0-flash-001"
)

// Client handles communication with the OpenRouter API.
type Client struct {
	apiKey      string
	model       string
	visionModel string
	baseURL     string
	httpClient  *http.Client
	logger      *observability.Logger
}

// Config holds client construction options.
type Config struct {
	APIKey      string
	Model       string
	VisionModel string
	BaseURL     string
	HTTPClient  *http.Client
	Logger      *observability.Logger
}

// NewClient creates a new LLM client. The API key is required; everything
// else falls back to defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ConfigError("OPENROUTER_API_KEY not set", nil)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = model
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	return &Client{
		apiKey:      cfg.APIKey,
		model:       model,
		visionModel: visionModel,
		baseURL:     baseURL,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	TopK        int       `json:"top_k,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage holds the assistant content of a choice
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends a text-in/text-out completion request.
func (c *Client) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	req := &Request{
		Model: c.model,
		Messages: []Message{{
			Role:    "user",
			Content: []ContentPart{{Type: "text", Text: prompt}},
		}},
	}
	applyOptions(req, opts)

	return c.send(ctx, req)
}

// CompleteWithImage sends a multimodal completion request with one inline
// PNG image, base64-encoded as a data URL.
func (c *Client) CompleteWithImage(ctx context.Context, prompt string, pngImage []byte, opts domain.CompletionOptions) (string, error) {
	if len(pngImage) == 0 {
		return "", domain.ValidationError("empty image payload", nil)
	}

	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngImage)

	req := &Request{
		Model: c.visionModel,
		Messages: []Message{{
			Role: "user",
			Content: []ContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
			},
		}},
	}
	applyOptions(req, opts)

	return c.send(ctx, req)
}

func applyOptions(req *Request, opts domain.CompletionOptions) {
	req.Temperature = opts.Temperature
	req.TopP = opts.TopP
	req.TopK = opts.TopK
	req.MaxTokens = opts.MaxTokens
}

// send marshals the request, executes it with retry, and extracts the first
// choice's content.
func (c *Client) send(ctx context.Context, req *Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", domain.APIError("Failed to marshal request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		// Clone the request body for each retry
		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("HTTP-Referer", "https://github.com/healthspec-ai/healthspec")
		httpReq.Header.Set("X-Title", "HealthSpec Requirements Engine")

		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return "", domain.APIError("Failed to send request", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.APIError("Failed to read response body", err)
	}

	var apiResp Response
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", domain.APIError("Failed to parse API response", err)
	}

	if len(apiResp.Choices) == 0 {
		return "", domain.APIError("No choices in API response", nil)
	}

	return apiResp.Choices[0].Message.Content, nil
}
