package respond

import (
	"fmt"
	"strings"
)

const (
	summaryWindow   = 12
	summaryMaxChars = 220
)

// Summarize produces a rolling conversation summary from at most the
// last summaryWindow messages. Each entry is collapsed to single spaces
// and truncated to summaryMaxChars. With no history it returns
// "No prior context." so the prompt template never has an empty slot.
func Summarize(history []Message) string {
	recent := history
	if len(recent) > summaryWindow {
		recent = recent[len(recent)-summaryWindow:]
	}
	if len(recent) == 0 {
		return "No prior context."
	}
	var sb strings.Builder
	sb.WriteString("Conversation summary:")
	for _, m := range recent {
		content := strings.Join(strings.Fields(m.Content), " ")
		if len(content) > summaryMaxChars {
			content = content[:summaryMaxChars] + "..."
		}
		sb.WriteString("\n- ")
		sb.WriteString(capitalize(m.Role))
		sb.WriteString(": ")
		sb.WriteString(content)
	}
	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// BuildPrompt assembles the turn prompt from the conversation summary,
// the active improvement rules, and the current user message.
func BuildPrompt(summary, rules, userText string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are continuing an ongoing conversation.

CONVERSATION SUMMARY:
%s

IMPORTANT IMPROVEMENT RULES:
%s

CURRENT USER MESSAGE:
%s

Instructions:
1. Use the conversation summary to maintain context.
2. Do not repeat past information unnecessarily.
3. Only use relevant details from the summary.
4. If key details are missing, ask a focused clarification question.
5. Follow the improvement rules strictly.
6. Respond naturally and clearly.

Return only the final assistant response.
`, summary, rules, userText))
}

// promptFor builds the full prompt for a request using the given rule
// set. A nil rules store contributes an empty rules block.
func promptFor(req *Request, rules *Rules) string {
	var rulesBlock string
	if rules != nil {
		rulesBlock = rules.Bulleted()
	}
	return BuildPrompt(Summarize(req.History), rulesBlock, req.UserText)
}
