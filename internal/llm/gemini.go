package llm

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/kumanday/OmniLearn/pkg/httpclient"
)

// jsonOnlyInstruction is appended to Gemini prompts in JSON mode; the
// generateContent call is made without a structured-output flag.
const jsonOnlyInstruction = "Respond with JSON only."

// geminiProvider calls the Gemini generateContent API. The conversation is
// flattened into a single user turn, one "role: content" line per message.
type geminiProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *httpclient.CircuitBreakerClient
}

func newGeminiProvider(baseURL, apiKey, model string, client *httpclient.CircuitBreakerClient) *geminiProvider {
	return &geminiProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  client,
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

func (p *geminiProvider) Name() string {
	return ProviderGemini
}

func (p *geminiProvider) GenerateCompletion(ctx context.Context, messages []Message, jsonMode bool) (string, error) {
	body := geminiRequest{Contents: []geminiContent{{
		Role:  "user",
		Parts: []geminiPart{{Text: flattenPrompt(messages, jsonMode)}},
	}}}

	header := http.Header{}
	header.Set("x-goog-api-key", p.apiKey)

	endpoint := p.baseURL + "/models/" + url.PathEscape(p.model) + ":generateContent"

	var out geminiResponse
	if err := postJSON(ctx, p.client, ProviderGemini, endpoint, header, body, &out); err != nil {
		return "", err
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 ||
		strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text) == "" {
		return "", &UpstreamError{Provider: ProviderGemini, StatusCode: http.StatusOK, Err: errEmptyReply}
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func flattenPrompt(messages []Message, jsonMode bool) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	if jsonMode {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(jsonOnlyInstruction)
	}
	return b.String()
}
