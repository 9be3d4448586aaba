package respond

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRules seed the improvement-rule set before any analysis run
// has persisted its own.
var DefaultRules = []string{
	"Do not assume appointment availability.",
	"Always confirm date and time before finalizing booking.",
	"If the user changes their request, discard previous booking attempts.",
	"Keep responses under 5 sentences unless clarification is needed.",
	"Do not fabricate policies or business hours.",
}

// Rules is a file-backed list of improvement rules fed into every turn
// prompt and rewritten by the Analyzer.
type Rules struct {
	path string
}

// NewRules returns a rule store persisted at path. The file is created
// lazily on the first Save.
func NewRules(path string) *Rules {
	return &Rules{path: path}
}

// Load returns the active rules. A missing file yields DefaultRules; a
// corrupt file yields an empty list so the Analyzer can rebuild it.
func (r *Rules) Load() []string {
	data, err := os.ReadFile(r.path)
	if err != nil {
		out := make([]string, len(DefaultRules))
		copy(out, DefaultRules)
		return out
	}
	var rules []string
	if err := json.Unmarshal(data, &rules); err != nil {
		return []string{}
	}
	return rules
}

// Save replaces the persisted rule set.
func (r *Rules) Save(rules []string) error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(rules, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o644)
}

// Bulleted renders the active rules as a markdown bullet list for
// inclusion in a prompt.
func (r *Rules) Bulleted() string {
	rules := r.Load()
	lines := make([]string, len(rules))
	for i, rule := range rules {
		lines[i] = "- " + rule
	}
	return strings.Join(lines, "\n")
}
