package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// DefaultOllamaBaseURL is the OpenAI-compatible endpoint of a local Ollama.
const DefaultOllamaBaseURL = "http://localhost:11434/v1"

// ollamaAPIKey is sent to Ollama, which ignores it; go-openai always sets the header.
const ollamaAPIKey = "ollama"

type OpenAIClient struct {
	client *openai.Client
	model  string
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone request to avoid mutating the original
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

func NewOpenAI(apiKey, baseURL, model string, headers http.Header) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if len(headers) > 0 {
		config.HTTPClient = &http.Client{Transport: headerTransport{rt: http.DefaultTransport, headers: headers}}
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// NewOllama talks to a local Ollama server through its OpenAI-compatible API.
func NewOllama(baseURL, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	return NewOpenAI(ollamaAPIKey, baseURL, model, nil)
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: oaMsgs,
	})
	if err != nil {
		return Response{}, fmt.Errorf("%w: chat completion: %v", ErrInferenceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: empty choices in response", ErrInferenceUnavailable)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return Response{
		Content:          resp.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
