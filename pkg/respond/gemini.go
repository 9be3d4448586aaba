package respond

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider is the provider id of the Gemini-backed generator.
const GeminiProvider = "gemini"

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiGenerator produces replies through the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	rules  *Rules
}

// GeminiOption configures a GeminiGenerator.
type GeminiOption func(*GeminiGenerator)

// WithGeminiModel overrides the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(g *GeminiGenerator) { g.model = model }
}

// WithGeminiRules attaches a rule store whose active rules are embedded
// in every prompt.
func WithGeminiRules(rules *Rules) GeminiOption {
	return func(g *GeminiGenerator) { g.rules = rules }
}

// NewGeminiGenerator builds a generator authenticated with apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	g := &GeminiGenerator{client: client, model: defaultGeminiModel}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req *Request) (*Response, error) {
	var config *genai.GenerateContentConfig
	if req.SystemPrompt != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: req.SystemPrompt}},
			},
		}
	}

	prompt := promptFor(req, g.rules)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{Parts: []*genai.Part{{Text: prompt}}, Role: "user"},
	}, config)
	if err != nil {
		return nil, fmt.Errorf("genai generate: %w", err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return &Response{Text: stripFences(sb.String()), Provider: GeminiProvider}, nil
}
