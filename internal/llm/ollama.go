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

// ollamaProvider implements Provider against Ollama's native /api/chat
// endpoint (non-streaming).
type ollamaProvider struct {
	baseURL string
	model   string
	client  http.Client
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func (o *ollamaProvider) Name() string {
	return "ollama/" + o.model
}

func (o *ollamaProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	messages := make([]ollamaMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: prompt})

	req := ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
		Options:  &ollamaOptions{Temperature: opts.Temperature, NumPredict: opts.MaxTokens},
	}
	if strings.ToLower(opts.Format) == "json" {
		req.Format = "json"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", ErrBadRequest, err)
	}

	url := o.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrBadRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
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

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding ollama response: %v", ErrBadRequest, err)
	}
	if chatResp.Error != "" {
		return "", &BackendError{StatusCode: resp.StatusCode, Body: chatResp.Error}
	}

	return strings.TrimSpace(chatResp.Message.Content), nil
}
