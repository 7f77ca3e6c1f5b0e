package resolver

import (
	"fmt"
	"sort"
	"strings"

	"live-insights-be/internal/entity"
	"live-insights-be/pkg/store"
)

// liveMatchFloor is the minimum token-overlap score for a buffered
// sentence to count as evidence. Deliberately looser than the vector
// relevance floor: spoken answers rarely echo the question's wording.
const liveMatchFloor = 0.25

const maxLiveEvidence = 3

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "what": true, "when": true, "where": true, "who": true,
	"why": true, "how": true, "do": true, "does": true, "did": true,
	"can": true, "could": true, "should": true, "would": true, "will": true,
	"our": true, "we": true, "i": true, "you": true, "it": true, "to": true,
	"of": true, "in": true, "on": true, "for": true, "and": true, "or": true,
}

// rankLiveEvidence scores buffered sentences against the question by
// content-token overlap and returns the best matches as documents. The
// question may already have been answered earlier in the same call.
func rankLiveEvidence(question string, sentences []*entity.TranscriptSentence) []store.Document {
	queryTokens := contentTokens(question)
	if len(queryTokens) == 0 {
		return nil
	}

	type scored struct {
		sentence *entity.TranscriptSentence
		score    float64
	}

	var matches []scored
	for _, s := range sentences {
		tokens := contentTokens(s.Text)
		if len(tokens) == 0 {
			continue
		}

		overlap := 0
		for tok := range queryTokens {
			if tokens[tok] {
				overlap++
			}
		}

		score := float64(overlap) / float64(len(queryTokens))
		if score >= liveMatchFloor {
			matches = append(matches, scored{sentence: s, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if len(matches) > maxLiveEvidence {
		matches = matches[:maxLiveEvidence]
	}

	docs := make([]store.Document, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, store.Document{
			Title:   fmt.Sprintf("%s at %s", m.sentence.Speaker, m.sentence.Timestamp.Format("15:04:05")),
			Content: m.sentence.Text,
			Score:   float32(m.score),
			Metadata: map[string]interface{}{
				"speaker":   m.sentence.Speaker,
				"timestamp": m.sentence.Timestamp,
			},
		})
	}
	return docs
}

func contentTokens(text string) map[string]bool {
	tokens := map[string]bool{}
	for _, field := range strings.Fields(strings.ToLower(text)) {
		tok := strings.Trim(field, ".,!?;:\"'()")
		if tok == "" || stopwords[tok] {
			continue
		}
		tokens[tok] = true
	}
	return tokens
}
