package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/kumanday/OmniLearn/pkg/httpclient"
)

// chatProvider speaks the OpenAI chat-completions wire format. OpenRouter
// exposes the same API, so both providers share this implementation.
type chatProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *httpclient.CircuitBreakerClient
}

func newChatProvider(name, baseURL, apiKey, model string, client *httpclient.CircuitBreakerClient) *chatProvider {
	return &chatProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  client,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *chatProvider) Name() string {
	return p.name
}

func (p *chatProvider) GenerateCompletion(ctx context.Context, messages []Message, jsonMode bool) (string, error) {
	body := chatRequest{Model: p.model, Messages: messages}
	if jsonMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.apiKey)

	var out chatResponse
	if err := postJSON(ctx, p.client, p.name, p.baseURL+"/chat/completions", header, body, &out); err != nil {
		return "", err
	}

	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", &UpstreamError{Provider: p.name, StatusCode: http.StatusOK, Err: errEmptyReply}
	}
	return out.Choices[0].Message.Content, nil
}
