package detector

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"live-insights-be/internal/entity"
	"live-insights-be/pkg/llm"
)

// Confidence levels assigned per detection path. The fast path is rule
// based and trusted; the slow path leans on the LLM and is discounted.
const (
	FastPathConfidence = 0.9
	SlowPathConfidence = 0.7
)

// DetectedQuestion is a positive classification of an utterance.
type DetectedQuestion struct {
	Text       string
	Type       entity.QuestionType
	Confidence float64
}

// Detector classifies utterances as explicit or implied questions.
// It is stateless between calls and safe for concurrent use across sessions.
type Detector struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

func NewDetector(llmProvider llm.LLMProvider, logger *log.Logger) *Detector {
	return &Detector{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

// interrogatives are leading tokens that mark an explicit question even
// without a question mark ("what was our budget").
var interrogatives = map[string]bool{
	"what": true, "when": true, "where": true, "who": true, "whom": true,
	"whose": true, "which": true, "why": true, "how": true,
	"is": true, "are": true, "was": true, "were": true,
	"do": true, "does": true, "did": true,
	"can": true, "could": true, "should": true, "would": true, "will": true,
	"shall": true, "may": true, "might": true,
}

// hedges mark uncertainty that may imply an unstated question; only these
// trigger the slower LLM path.
var hedges = []string{
	"i wonder",
	"i'm not sure",
	"im not sure",
	"not sure if",
	"i guess",
	"maybe we",
	"unclear",
	"no idea",
	"don't know whether",
	"dont know whether",
}

// DetectAndClassify returns the detected question, or nil when the
// utterance is not a question on either path. A nil result with nil error
// is an ordinary outcome; callers must not create an insight for it.
func (d *Detector) DetectAndClassify(ctx context.Context, text string, recentContext string) (*DetectedQuestion, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	if hasExplicitMarker(trimmed) {
		return &DetectedQuestion{
			Text:       trimmed,
			Type:       classifyType(trimmed),
			Confidence: FastPathConfidence,
		}, nil
	}

	if !hasHedging(trimmed) {
		return nil, nil
	}

	return d.detectImplicit(ctx, trimmed, recentContext)
}

func hasExplicitMarker(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return false
	}
	first := strings.Trim(fields[0], ",.;:")
	return interrogatives[first]
}

func hasHedging(text string) bool {
	lower := strings.ToLower(text)
	for _, h := range hedges {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// classifyType applies keyword rules; the default bucket is factual.
func classifyType(text string) entity.QuestionType {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "should we") ||
		strings.Contains(lower, "do we want") ||
		strings.Contains(lower, "which option") ||
		strings.Contains(lower, "decide"):
		return entity.QuestionDecision

	case strings.Contains(lower, "how do") ||
		strings.Contains(lower, "how does") ||
		strings.Contains(lower, "how can") ||
		strings.Contains(lower, "what's the process") ||
		strings.Contains(lower, "what is the process") ||
		strings.Contains(lower, "steps"):
		return entity.QuestionProcess

	case strings.Contains(lower, "what do you mean") ||
		strings.Contains(lower, "did you say") ||
		strings.Contains(lower, "can you repeat") ||
		strings.Contains(lower, "clarify"):
		return entity.QuestionClarification

	default:
		return entity.QuestionFactual
	}
}

type implicitClassification struct {
	IsQuestion bool    `json:"is_question"`
	Question   string  `json:"question"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// detectImplicit delegates to the language-understanding capability. Any
// provider failure degrades to "no question": detection must never fail a
// chunk.
func (d *Detector) detectImplicit(ctx context.Context, text string, recentContext string) (*DetectedQuestion, error) {
	prompt := d.buildImplicitPrompt(text, recentContext)

	response, err := d.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		d.logger.Printf("[WARN] Implicit question detection failed: %v", err)
		return nil, nil
	}

	jsonContent := extractJSON(response)
	if jsonContent == "" {
		d.logger.Printf("[WARN] No JSON in implicit detection response")
		return nil, nil
	}

	var result implicitClassification
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		d.logger.Printf("[WARN] Implicit detection parse failed: %v", err)
		return nil, nil
	}

	if !result.IsQuestion {
		return nil, nil
	}

	question := strings.TrimSpace(result.Question)
	if question == "" {
		question = text
	}

	return &DetectedQuestion{
		Text:       question,
		Type:       normalizeType(result.Type),
		Confidence: SlowPathConfidence,
	}, nil
}

func (d *Detector) buildImplicitPrompt(text string, recentContext string) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You analyze meeting utterances. Your ONLY job is to decide whether the utterance implies a question the speaker wants answered.\n")
	prompt.WriteString("You do NOT answer questions. You only classify.\n")
	prompt.WriteString("</system>\n\n")

	if recentContext != "" {
		prompt.WriteString("<recent_conversation>\n")
		prompt.WriteString(recentContext)
		prompt.WriteString("\n</recent_conversation>\n\n")
	}

	prompt.WriteString("<utterance>\n")
	prompt.WriteString(text)
	prompt.WriteString("\n</utterance>\n\n")

	prompt.WriteString("<types>\n")
	prompt.WriteString("factual: asks for a fact or figure\n")
	prompt.WriteString("decision: asks what the group should choose\n")
	prompt.WriteString("process: asks how something is done\n")
	prompt.WriteString("clarification: asks to restate or explain something already said\n")
	prompt.WriteString("</types>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"is_question\": true,\n")
	prompt.WriteString("  \"question\": \"the implied question, rephrased explicitly\",\n")
	prompt.WriteString("  \"type\": \"factual|decision|process|clarification\",\n")
	prompt.WriteString("  \"confidence\": 0.8\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

func normalizeType(raw string) entity.QuestionType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "decision":
		return entity.QuestionDecision
	case "process":
		return entity.QuestionProcess
	case "clarification":
		return entity.QuestionClarification
	default:
		return entity.QuestionFactual
	}
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
