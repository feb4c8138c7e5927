package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOpenAIBaseURL is the OpenAI API root.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIOracle calls any OpenAI-compatible /chat/completions endpoint.
// Images are sent as data-URL image_url content parts.
type OpenAIOracle struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIOracle creates an OpenAI-compatible oracle.
func NewOpenAIOracle(cfg Config) *OpenAIOracle {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIOracle{
		name:    cfg.name("openai"),
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  &http.Client{Timeout: cfg.timeout()},
	}
}

func (o *OpenAIOracle) Name() string    { return o.name }
func (o *OpenAIOracle) Model() string   { return o.model }
func (o *OpenAIOracle) Available() bool { return o.apiKey != "" }

// Invoke sends one chat completion request.
func (o *OpenAIOracle) Invoke(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	if o.apiKey == "" {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "missing credentials", Err: ErrNoAPIKey}
	}

	body := openAIRequest{Model: model}
	if req.System != "" {
		body.Messages = append(body.Messages, openAIMessage{Role: "system", Content: req.System})
	}

	text := req.UserText()
	if req.Media != nil {
		parts := []openAIPart{}
		if text != "" {
			parts = append(parts, openAIPart{Type: "text", Text: text})
		}
		parts = append(parts, openAIPart{Type: "image_url", ImageURL: &openAIImageURL{URL: req.Media.DataURL()}})
		body.Messages = append(body.Messages, openAIMessage{Role: "user", Content: parts})
	} else {
		body.Messages = append(body.Messages, openAIMessage{Role: "user", Content: text})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "encoding request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "building request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	start := time.Now()
	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "request failed", Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxOutputSize))
	if err != nil {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "reading response", Err: err}
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "HTTP 429", Err: ErrRateLimited}
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", &TransportError{Oracle: o.name, Model: model,
			Message: fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode, truncate(string(respBody), 200))}
	}

	var oaiResp openAIResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "decoding response", Err: err}
	}
	if len(oaiResp.Choices) == 0 || strings.TrimSpace(oaiResp.Choices[0].Message.Content) == "" {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "no choices in response", Err: ErrEmptyResponse}
	}

	logCall(o.name, model, req.Role, time.Since(start), len(oaiResp.Choices[0].Message.Content))
	return oaiResp.Choices[0].Message.Content, nil
}

// OpenAI API types
type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

// openAIMessage content is either a string or a list of parts.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
