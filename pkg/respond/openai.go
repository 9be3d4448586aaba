package respond

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider is the provider id of the OpenAI-backed generator.
const OpenAIProvider = "openai"

const defaultOpenAIModel = openai.ChatModelGPT4o

// OpenAIGenerator produces replies through the OpenAI chat API, or any
// compatible endpoint via a custom base URL.
type OpenAIGenerator struct {
	client openai.Client
	model  string
	rules  *Rules
}

// OpenAIOption configures an OpenAIGenerator.
type OpenAIOption func(*OpenAIGenerator)

// WithOpenAIModel overrides the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(g *OpenAIGenerator) { g.model = model }
}

// WithOpenAIRules attaches a rule store whose active rules are embedded
// in every prompt.
func WithOpenAIRules(rules *Rules) OpenAIOption {
	return func(g *OpenAIGenerator) { g.rules = rules }
}

// NewOpenAIGenerator builds a generator authenticated with apiKey.
// baseURL may be empty for the default endpoint.
func NewOpenAIGenerator(apiKey, baseURL string, opts ...OpenAIOption) *OpenAIGenerator {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	g := &OpenAIGenerator{
		client: openai.NewClient(reqOpts...),
		model:  defaultOpenAIModel,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req *Request) (*Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(promptFor(req, g.rules)))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return &Response{Text: stripFences(text), Provider: OpenAIProvider}, nil
}
