package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// remoteProvider implements Provider against an OpenAI-compatible
// chat-completions API (OpenRouter by default).
type remoteProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  http.Client
}

type remoteRequest struct {
	Model          string            `json:"model"`
	Messages       []remoteMessage   `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat *remoteRespFormat `json:"response_format,omitempty"`
}

type remoteMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type remoteRespFormat struct {
	Type string `json:"type"`
}

type remoteResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (r *remoteProvider) Name() string {
	return "remote-api/" + r.model
}

func (r *remoteProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	messages := make([]remoteMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, remoteMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, remoteMessage{Role: "user", Content: prompt})

	req := remoteRequest{
		Model:       r.model,
		Messages:    messages,
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if strings.ToLower(opts.Format) == "json" {
		req.ResponseFormat = &remoteRespFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", ErrBadRequest, err)
	}

	url := r.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrBadRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &BackendError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var remoteResp remoteResponse
	if err := json.Unmarshal(respBody, &remoteResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrBadRequest, err)
	}
	if remoteResp.Error != nil {
		return "", &BackendError{StatusCode: resp.StatusCode, Body: remoteResp.Error.Message}
	}
	if len(remoteResp.Choices) == 0 {
		return "", &BackendError{StatusCode: resp.StatusCode, Body: "empty choices in response"}
	}

	return strings.TrimSpace(remoteResp.Choices[0].Message.Content), nil
}
