// Package signal derives conversational signals from one turn's transcript.
//
// Everything here is a pure function of the transcript text and the
// provider-supplied utterance metadata. No network calls, no hidden state:
// identical input always yields an identical Bundle.
package signal

import (
	"math"
	"sort"
	"strings"

	"github.com/almosthuman-ai/voiceloop/pkg/stt"
)

// Intent is a classified caller intent.
type Intent struct {
	Label      string  `json:"label" msgpack:"label"`
	Confidence float64 `json:"confidence" msgpack:"confidence"`
	Reason     string  `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

// Emotion is a classified caller emotion.
type Emotion struct {
	Label      string  `json:"label" msgpack:"label"`
	Confidence float64 `json:"confidence" msgpack:"confidence"`
	Source     string  `json:"source" msgpack:"source"`
}

// Bundle is the full set of signals derived from one turn.
type Bundle struct {
	Intent           Intent            `json:"intent" msgpack:"intent"`
	Emotion          Emotion           `json:"emotion" msgpack:"emotion"`
	Sentiment        string            `json:"sentiment" msgpack:"sentiment"`
	ToxicityRisk     float64           `json:"toxicity_risk" msgpack:"toxicity_risk"`
	EscalationRisk   float64           `json:"escalation_risk" msgpack:"escalation_risk"`
	InterruptionRisk float64           `json:"interruption_risk" msgpack:"interruption_risk"`
	SpeakingPaceWPM  *float64          `json:"speaking_pace_wpm" msgpack:"speaking_pace_wpm"`
	ComplianceFlags  []string          `json:"compliance_flags" msgpack:"compliance_flags"`
	PIIDetected      bool              `json:"pii_detected" msgpack:"pii_detected"`
	Accents          []string          `json:"accents" msgpack:"accents"`
	Languages        []string          `json:"languages" msgpack:"languages"`
	Speakers         []int             `json:"speakers" msgpack:"speakers"`
	Extra            map[string]string `json:"extra,omitempty" msgpack:"extra,omitempty"`
}

// Intent labels.
const (
	IntentReschedule     = "reschedule_appointment"
	IntentCancel         = "cancel_appointment"
	IntentSchedule       = "schedule_appointment"
	IntentConfirm        = "confirm_appointment"
	IntentGeneralInquiry = "general_inquiry"
)

// intentRule is one keyword-matched intent category. Rules are evaluated in
// order; the first match wins.
type intentRule struct {
	label      string
	confidence float64
	keywords   []string
}

var intentRules = []intentRule{
	{IntentReschedule, 0.84, []string{"reschedule", "move appointment"}},
	{IntentCancel, 0.87, []string{"cancel", "cancellation"}},
	{IntentSchedule, 0.9, []string{"schedule", "book", "appointment"}},
	{IntentConfirm, 0.78, []string{"confirm", "confirmation"}},
}

// ClassifyIntent classifies the transcript text into a fixed intent set.
// Unmatched text falls back to general_inquiry.
func ClassifyIntent(text string) Intent {
	lowered := strings.ToLower(text)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return Intent{Label: rule.label, Confidence: rule.confidence, Reason: "keyword_match"}
			}
		}
	}
	return Intent{Label: IntentGeneralInquiry, Confidence: 0.55, Reason: "fallback"}
}

// ClassifyEmotion is the coarse text-heuristic emotion classifier used when
// the provider supplies no utterance emotion tags.
func ClassifyEmotion(text string) Emotion {
	lowered := strings.ToLower(text)
	for _, kw := range []string{"angry", "upset", "frustrated"} {
		if strings.Contains(lowered, kw) {
			return Emotion{Label: "Frustrated", Confidence: 0.72, Source: "text_heuristic"}
		}
	}
	for _, kw := range []string{"thanks", "great", "happy"} {
		if strings.Contains(lowered, kw) {
			return Emotion{Label: "Happy", Confidence: 0.67, Source: "text_heuristic"}
		}
	}
	return Emotion{Label: "Neutral", Confidence: 0.6, Source: "text_heuristic"}
}

// DominantEmotion returns the majority emotion label among utterances that
// carry one, with confidence = share of tagged utterances, rounded to two
// decimals. On a tie the label that appears earliest in the utterance order
// wins, keeping the result deterministic. Returns false when no utterance
// carries an emotion tag.
func DominantEmotion(utterances []stt.Utterance) (Emotion, bool) {
	counts := make(map[string]int)
	var order []string
	for _, u := range utterances {
		if u.Emotion == "" {
			continue
		}
		if _, seen := counts[u.Emotion]; !seen {
			order = append(order, u.Emotion)
		}
		counts[u.Emotion]++
	}
	if len(order) == 0 {
		return Emotion{}, false
	}

	best := order[0]
	for _, label := range order[1:] {
		if counts[label] > counts[best] {
			best = label
		}
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return Emotion{
		Label:      best,
		Confidence: round2(float64(counts[best]) / float64(total)),
		Source:     "provider_stt",
	}, true
}

var (
	positiveEmotions = map[string]bool{"Happy": true, "Confident": true, "Relieved": true}
	negativeEmotions = map[string]bool{"Angry": true, "Frustrated": true, "Concerned": true, "Sad": true, "Anxious": true}
	escalatory       = map[string]bool{"Angry": true, "Frustrated": true, "Anxious": true}

	profanity  = []string{"stupid", "idiot", "hate"}
	piiMarkers = []string{"<PII>", "<PHI>"}
)

// Derive computes the full signal bundle for a transcript.
func Derive(t *stt.Transcript) Bundle {
	intent := ClassifyIntent(t.Text)

	emotion, ok := DominantEmotion(t.Utterances)
	if !ok {
		emotion = ClassifyEmotion(t.Text)
	}

	var languages, accents []string
	var speakers []int
	langSet := make(map[string]bool)
	accentSet := make(map[string]bool)
	speakerSet := make(map[int]bool)
	for _, u := range t.Utterances {
		if u.Language != "" && !langSet[u.Language] {
			langSet[u.Language] = true
			languages = append(languages, u.Language)
		}
		if u.Accent != "" && !accentSet[u.Accent] {
			accentSet[u.Accent] = true
			accents = append(accents, u.Accent)
		}
		if u.Speaker != nil && !speakerSet[*u.Speaker] {
			speakerSet[*u.Speaker] = true
			speakers = append(speakers, *u.Speaker)
		}
	}
	sort.Strings(languages)
	sort.Strings(accents)
	sort.Ints(speakers)

	sentiment := "neutral"
	if positiveEmotions[emotion.Label] {
		sentiment = "positive"
	} else if negativeEmotions[emotion.Label] {
		sentiment = "negative"
	}

	lowered := strings.ToLower(t.Text)
	toxicity := 0.05
	for _, word := range profanity {
		if strings.Contains(lowered, word) {
			toxicity = 0.7
			break
		}
	}
	escalation := 0.2
	if escalatory[emotion.Label] {
		escalation = 0.65
	}
	interruption := 0.1
	if len(speakers) > 1 {
		interruption = 0.35
	}

	pii := containsPIIMarker(t)
	var flags []string
	if pii {
		flags = append(flags, "pii_or_phi_detected")
	}

	return Bundle{
		Intent:           intent,
		Emotion:          emotion,
		Sentiment:        sentiment,
		ToxicityRisk:     toxicity,
		EscalationRisk:   escalation,
		InterruptionRisk: interruption,
		SpeakingPaceWPM:  paceWPM(t.Text, t.DurationMS),
		ComplianceFlags:  flags,
		PIIDetected:      pii,
		Accents:          accents,
		Languages:        languages,
		Speakers:         speakers,
		Extra:            map[string]string{"transport": string(t.Transport)},
	}
}

// containsPIIMarker reports whether any PII/PHI tagging marker appears in the
// transcript text or any utterance text.
func containsPIIMarker(t *stt.Transcript) bool {
	for _, marker := range piiMarkers {
		if strings.Contains(t.Text, marker) {
			return true
		}
		for _, u := range t.Utterances {
			if strings.Contains(u.Text, marker) {
				return true
			}
		}
	}
	return false
}

// paceWPM estimates words-per-minute speaking pace. Nil when the duration is
// non-positive; a zero-length recording has no defined pace.
func paceWPM(text string, durationMS int) *float64 {
	if durationMS <= 0 {
		return nil
	}
	words := len(strings.Fields(text))
	minutes := float64(durationMS) / 60000
	wpm := round2(float64(words) / minutes)
	return &wpm
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
