package detection

import (
	"fmt"
	"math"
	"strings"
)

// HumanThreshold is the minimum confidence for a human verdict to drive a transition.
const HumanThreshold = 0.6

// Source identifies which evidence produced a verdict.
type Source string

const (
	SourceProvider   Source = "provider"
	SourceLexical    Source = "lexical"
	SourceContinuity Source = "continuity"
)

// Verdict is a human/non-human decision with a confidence in [0,1].
type Verdict struct {
	Human      bool    `json:"human"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
	Reason     string  `json:"reason"`
	Transcript string  `json:"transcript,omitempty"`
}

// IsHuman applies the decision threshold.
func (v Verdict) IsHuman(threshold float64) bool {
	return v.Human && v.Confidence >= threshold
}

// ProviderVerdict is the short-circuit for provider machine detection = human.
func ProviderVerdict() Verdict {
	return Verdict{Human: true, Confidence: 1.0, Source: SourceProvider, Reason: "provider answered-by human"}
}

// ContinuityVerdict is the fallback signal from sustained speech onsets.
func ContinuityVerdict(onsets int) Verdict {
	return Verdict{
		Human:      true,
		Confidence: HumanThreshold,
		Source:     SourceContinuity,
		Reason:     fmt.Sprintf("%d consecutive speech onsets", onsets),
	}
}

var ivrPhrases = []string{
	"press 1",
	"press 2",
	"press 3",
	"say or press",
	"for billing",
	"for technical",
	"for account",
	"main menu",
	"please hold",
	"your call is important",
	"estimated wait time",
	"all representatives are busy",
	"for english",
	"para español",
	"please listen carefully",
	"menu has changed",
	"thank you for calling",
}

var humanPhrases = []string{
	"how can i help you",
	"how may i help",
	"what can i do for you",
	"good morning",
	"good afternoon",
	"my name is",
	"speaking with",
	"who am i speaking",
	"can i get your",
	"what's your account",
	"let me pull up",
	"one moment please",
	"bear with me",
	"i understand",
	"i can help",
	"sorry to hear",
}

// ClassifyTranscript decides human vs IVR from one transcribed utterance.
// IVR phrases win over human phrases; with no phrase match, a long question
// counts as conversational, and anything else defaults to hold.
func ClassifyTranscript(text string) Verdict {
	normalized := strings.ToLower(text)

	if matches := matchPhrases(normalized, ivrPhrases); len(matches) > 0 {
		return Verdict{
			Human:      false,
			Confidence: capped(0.9, 0.5+0.1*float64(len(matches))),
			Source:     SourceLexical,
			Reason:     fmt.Sprintf("ivr phrase %q", matches[0]),
			Transcript: text,
		}
	}

	if matches := matchPhrases(normalized, humanPhrases); len(matches) > 0 {
		return Verdict{
			Human:      true,
			Confidence: capped(0.95, 0.6+0.1*float64(len(matches))),
			Source:     SourceLexical,
			Reason:     fmt.Sprintf("human phrase %q", matches[0]),
			Transcript: text,
		}
	}

	if len(strings.Fields(text)) > 5 && strings.Contains(text, "?") {
		return Verdict{Human: true, Confidence: 0.65, Source: SourceLexical, Reason: "conversational question", Transcript: text}
	}

	return Verdict{Human: false, Confidence: 0.4, Source: SourceLexical, Reason: "no indicators", Transcript: text}
}

func matchPhrases(normalized string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if strings.Contains(normalized, p) {
			out = append(out, p)
		}
	}
	return out
}

// capped rounds to two decimals so 0.5+0.1*2 compares as 0.7.
func capped(limit, v float64) float64 {
	return math.Min(limit, math.Round(v*100)/100)
}
