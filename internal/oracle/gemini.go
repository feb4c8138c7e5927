package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultGeminiBaseURL is the Gemini API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiOracle calls the Gemini generateContent API. Images are sent as
// inline_data parts.
type GeminiOracle struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGeminiOracle creates a Gemini oracle.
func NewGeminiOracle(cfg Config) *GeminiOracle {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-pro"
	}
	return &GeminiOracle{
		name:    cfg.name("gemini"),
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  &http.Client{Timeout: cfg.timeout()},
	}
}

func (o *GeminiOracle) Name() string    { return o.name }
func (o *GeminiOracle) Model() string   { return o.model }
func (o *GeminiOracle) Available() bool { return o.apiKey != "" }

// Invoke sends one generateContent request.
func (o *GeminiOracle) Invoke(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	if o.apiKey == "" {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "missing credentials", Err: ErrNoAPIKey}
	}

	user := geminiContent{Role: "user"}
	if text := req.UserText(); text != "" {
		user.Parts = append(user.Parts, geminiPart{Text: text})
	}
	if req.Media != nil {
		user.Parts = append(user.Parts, geminiPart{InlineData: &geminiBlob{
			MimeType: req.Media.MIMEType,
			Data:     req.Media.Base64(),
		}})
	}

	body := geminiRequest{Contents: []geminiContent{user}}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "encoding request", Err: err}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		o.baseURL, url.PathEscape(model), url.QueryEscape(o.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "building request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		// The URL carries the key; report the failure without it.
		return "", &TransportError{Oracle: o.name, Model: model, Message: "request failed", Err: redactURLError(err)}
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

	var gemResp geminiResponse
	if err := json.Unmarshal(respBody, &gemResp); err != nil {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "decoding response", Err: err}
	}
	if len(gemResp.Candidates) == 0 {
		return "", &TransportError{Oracle: o.name, Model: model, Message: "no candidates in response", Err: ErrEmptyResponse}
	}

	var content strings.Builder
	for _, part := range gemResp.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}
	if strings.TrimSpace(content.String()) == "" {
		return "", &TransportError{Oracle: o.name, Model: model,
			Message: "empty candidate (finish reason " + gemResp.Candidates[0].FinishReason + ")", Err: ErrEmptyResponse}
	}

	logCall(o.name, model, req.Role, time.Since(start), content.Len())
	return content.String(), nil
}

func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

// Gemini API types
type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inline_data,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}
