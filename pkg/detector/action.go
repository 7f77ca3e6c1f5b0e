package detector

import (
	"regexp"
	"strings"
)

// Completeness weights for action items. Description carries the most
// weight; owner and deadline split the rest. Sums to 1.0.
const (
	WeightDescription = 0.4
	WeightOwner       = 0.3
	WeightDeadline    = 0.3
)

// DetectedAction is a commitment spotted in an utterance ("I'll send the
// deck by Friday"). Completeness measures how fully it is specified.
type DetectedAction struct {
	Description  string
	Owner        string
	Deadline     string
	Completeness float64
}

var (
	// "Sarah will ...", "Sarah should ..."
	namedOwnerRe = regexp.MustCompile(`^([A-Z][a-z]+)\s+(?:will|should|is going to|needs to)\b`)

	// deadline phrases: "by Friday", "by end of week", "before the demo", "tomorrow"
	deadlineRe = regexp.MustCompile(`(?i)\b(by\s+(?:end of\s+)?\w+(?:\s\w+)?|before\s+\w+(?:\s\w+)?|tomorrow|today|tonight|next\s+\w+|this\s+(?:week|month|quarter))\b`)
)

// Capitalized sentence-leading pronouns are not owners.
var pronouns = map[string]bool{
	"We": true, "They": true, "He": true, "She": true, "You": true, "It": true, "Everyone": true, "Somebody": true, "Someone": true,
}

var commitmentMarkers = []string{
	"i'll ",
	"i will ",
	"i can take",
	"we need to",
	"we should",
	"let me ",
	"action item",
	"follow up on",
	"take care of",
}

// DetectAction returns a detected action item, or nil when the utterance
// carries no commitment. speaker is used as the owner for first-person
// commitments.
func DetectAction(text string, speaker string) *DetectedAction {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	lower := strings.ToLower(trimmed)

	var owner string
	committed := false

	if m := namedOwnerRe.FindStringSubmatch(trimmed); m != nil {
		committed = true
		if !pronouns[m[1]] {
			owner = m[1]
		}
	}

	if !committed {
		for _, marker := range commitmentMarkers {
			if strings.Contains(lower, marker) {
				committed = true
				if strings.HasPrefix(marker, "i'") || strings.HasPrefix(marker, "i ") || marker == "let me " || marker == "i can take" {
					owner = speaker
				}
				break
			}
		}
	}

	if !committed {
		return nil
	}

	action := &DetectedAction{
		Description: trimmed,
		Owner:       owner,
	}

	if m := deadlineRe.FindString(trimmed); m != "" {
		action.Deadline = m
	}

	action.Completeness = completenessScore(action)
	return action
}

// completenessScore is the weighted sum of the three independently
// observable components, capped at 1.0 by construction.
func completenessScore(a *DetectedAction) float64 {
	score := 0.0
	if strings.TrimSpace(a.Description) != "" {
		score += WeightDescription
	}
	if strings.TrimSpace(a.Owner) != "" {
		score += WeightOwner
	}
	if strings.TrimSpace(a.Deadline) != "" {
		score += WeightDeadline
	}
	return score
}
