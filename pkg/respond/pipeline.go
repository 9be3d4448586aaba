package respond

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

// PipelineProvider is the provider id of the hosted pipeline generator.
const PipelineProvider = "pipeline"

const defaultPipelineTimeout = 30 * time.Second

// PipelineClient generates replies through a hosted LLM pipeline that
// accepts a single prompt string and returns the completion in one of
// several envelope shapes. Failed calls are not retried; the caller
// decides whether the turn degrades or aborts.
type PipelineClient struct {
	url    string
	apiKey string
	rules  *Rules
	hc     *http.Client
}

// PipelineOption configures a PipelineClient.
type PipelineOption func(*PipelineClient)

// WithRules attaches a rule store whose active rules are embedded in
// every prompt.
func WithRules(rules *Rules) PipelineOption {
	return func(c *PipelineClient) { c.rules = rules }
}

// WithPipelineTimeout overrides the per-request deadline.
func WithPipelineTimeout(d time.Duration) PipelineOption {
	return func(c *PipelineClient) { c.hc.Timeout = d }
}

// WithPipelineHTTPClient substitutes the underlying HTTP client.
func WithPipelineHTTPClient(hc *http.Client) PipelineOption {
	return func(c *PipelineClient) { c.hc = hc }
}

// NewPipelineClient returns a generator posting to the given pipeline
// execution URL.
func NewPipelineClient(url, apiKey string, opts ...PipelineOption) *PipelineClient {
	c := &PipelineClient{
		url:    url,
		apiKey: apiKey,
		hc:     &http.Client{Timeout: defaultPipelineTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pipelineRequest struct {
	Variables   map[string]string `json:"variables,omitempty"`
	UserInput   string            `json:"userInput"`
	AsyncOutput bool              `json:"asyncOutput"`
}

func (c *PipelineClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	payload := pipelineRequest{
		UserInput:   promptFor(req, c.rules),
		AsyncOutput: false,
	}
	if req.SystemPrompt != "" {
		payload.Variables = map[string]string{"systemPrompt": req.SystemPrompt}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	text, err := c.execute(ctx, body)
	if err != nil {
		return nil, err
	}
	return &Response{Text: text, Provider: PipelineProvider}, nil
}

// Complete sends a raw prompt through the pipeline and returns the
// extracted completion text. The Analyzer uses it for non-turn calls.
func (c *PipelineClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(pipelineRequest{UserInput: prompt, AsyncOutput: false})
	if err != nil {
		return "", err
	}
	return c.execute(ctx, body)
}

func (c *PipelineClient) execute(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("pipeline request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("pipeline response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{
			Provider:   PipelineProvider,
			HTTPStatus: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}
	return extractPipelineText(raw), nil
}

// extractPipelineText pulls the completion out of the pipeline's
// envelope. Known shapes are a bare JSON string or an object whose
// answer sits in "output", "result", "message", or "output_text"; any
// other body is returned verbatim.
func extractPipelineText(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return stripFences(s)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"output", "result", "message", "output_text"} {
			if v, ok := obj[key].(string); ok && v != "" {
				return stripFences(v)
			}
		}
	}
	return stripFences(strings.TrimSpace(string(raw)))
}

// stripFences removes a markdown code fence wrapper if the model
// returned one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[7:]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
