package respond

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// insightPrompt instructs the model to review a transcript against the
// current rule set and emit an updated one.
const insightPrompt = `You are an expert conversational AI analyst.
Your goal is to review transcripts of an AI scheduling assistant speaking with users and identify ways to improve the system's instructions.
You will be provided with:
1. The current list of assistant instructions/rules.
2. A new conversation transcript.

Focus on:
1. Did the assistant collect all necessary information efficiently?
2. Were there points of confusion or repeated questions?
3. Did the assistant sound overly robotic or unnatural?

IMPORTANT:
- Do not over-fit or add a new rule for every single user's quirk. Only introduce new rules, or modify existing ones, if there is a systemic pattern of failure or a clearly missing instruction.
- If a current rule is causing problems, you should modify or remove it.
- If the conversation went perfectly and the current rules are sufficient, do not hallucinate improvements. Simply return the exact same list of rules you were given.
- If the current list of rules is completely empty (i.e. []), you should create the first set of rules from scratch based on the transcript's failures. If the list is empty AND the conversation went perfectly, just return an empty list.

Output a JSON object with exactly two keys:
1. "insights": A list of specific findings or observations from the transcript. (Empty list if no issues)
2. "final_active_rules": The COMPLETE, updated list of rules the system should use going forward. Each object in the list must contain a "rule" (string value) and a "confidence_score" (integer between 0 and 100 representing how confident you are in this rule being active).`

// Completer runs a raw prompt through a model and returns the text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleteFunc adapts a function to the Completer interface.
type CompleteFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleteFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Rule is one improvement rule with the model's confidence in it.
type Rule struct {
	Rule            string `json:"rule"`
	ConfidenceScore int    `json:"confidence_score"`
}

// Analysis is the model's verdict on a conversation transcript.
type Analysis struct {
	Insights         []string `json:"insights"`
	FinalActiveRules []Rule   `json:"final_active_rules"`
}

// Analyzer feeds finished conversations back into the rule set. Each
// run sends the transcript plus the current rules to the model and
// persists whatever rule list comes back.
type Analyzer struct {
	completer Completer
	rules     *Rules
}

// NewAnalyzer builds an analyzer over the given model and rule store.
func NewAnalyzer(completer Completer, rules *Rules) *Analyzer {
	return &Analyzer{completer: completer, rules: rules}
}

// Analyze reviews transcript against the current rules, persists the
// updated rule list when the model returns one, and reports the
// verdict. Model responses are repaired before parsing since LLM JSON
// output is frequently malformed around the edges.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (*Analysis, error) {
	existing := a.rules.Load()
	rulesJSON, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("%s\n\nEXISTING RULES:\n%s\n\nTRANSCRIPT:\n%s",
		insightPrompt, rulesJSON, transcript)

	raw, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyze transcript: %w", err)
	}

	var verdict Analysis
	if err := unmarshalLenient([]byte(stripFences(raw)), &verdict); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}

	if updated := ruleStrings(verdict.FinalActiveRules); len(updated) > 0 {
		if err := a.rules.Save(updated); err != nil {
			return nil, fmt.Errorf("save rules: %w", err)
		}
	}
	return &verdict, nil
}

func ruleStrings(rules []Rule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Rule != "" {
			out = append(out, r.Rule)
		}
	}
	return out
}

// unmarshalLenient unmarshals JSON, attempting a repair pass when the
// input has a syntax error.
func unmarshalLenient(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, ferr := jsonrepair.JSONRepair(string(data))
		if ferr != nil {
			return ferr
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}
