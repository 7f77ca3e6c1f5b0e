package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"live-insights-be/internal/entity"
	"live-insights-be/pkg/llm"
	"live-insights-be/pkg/store"
)

// SynthesisResult is the raw output of the synthesis capability before the
// acceptance gate is applied.
type SynthesisResult struct {
	Text       string
	Confidence float64
}

// Synthesizer turns tier evidence into a natural-language answer with a
// self-reported confidence. It holds no state and is safe for concurrent
// use.
type Synthesizer struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

func NewSynthesizer(llmProvider llm.LLMProvider, logger *log.Logger) *Synthesizer {
	return &Synthesizer{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

func (s *Synthesizer) Synthesize(
	ctx context.Context,
	question string,
	questionType entity.QuestionType,
	evidence []store.Document,
	source entity.AnswerSource,
) (*SynthesisResult, error) {

	prompt := s.buildPrompt(question, questionType, evidence, source)

	response, err := s.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.2))
	if err != nil {
		return nil, fmt.Errorf("synthesis call failed: %w", err)
	}

	return s.parseResult(response)
}

func (s *Synthesizer) buildPrompt(
	question string,
	questionType entity.QuestionType,
	evidence []store.Document,
	source entity.AnswerSource,
) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You answer questions raised during a live meeting.\n")
	prompt.WriteString("Be concise: two or three sentences, no preamble.\n")
	prompt.WriteString("Report an honest confidence between 0.0 and 1.0 for your answer.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<question>\n")
	prompt.WriteString(question)
	prompt.WriteString(fmt.Sprintf("\n(type: %s)\n", questionType))
	prompt.WriteString("</question>\n\n")

	if len(evidence) > 0 {
		prompt.WriteString("<evidence>\n")
		prompt.WriteString("Answer ONLY from the evidence below. If the evidence does not contain the answer, report low confidence.\n\n")
		for i, doc := range evidence {
			prompt.WriteString(fmt.Sprintf("[%d] %s (relevance %.2f)\n%s\n\n", i+1, doc.Title, doc.Score, doc.Content))
		}
		prompt.WriteString("</evidence>\n\n")
	} else {
		// Generative fallback: no retrieved evidence, explicitly lower trust.
		prompt.WriteString("<no_evidence>\n")
		prompt.WriteString("No retrieved evidence is available. Answer from general knowledge only if you are reasonably certain, and discount your confidence accordingly.\n")
		prompt.WriteString("</no_evidence>\n\n")
	}

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"answer\": \"the answer text\",\n")
	prompt.WriteString("  \"confidence\": 0.85\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

type synthesisResponse struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

func (s *Synthesizer) parseResult(response string) (*SynthesisResult, error) {
	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in synthesis response")
	}

	var parsed synthesisResponse
	if err := json.Unmarshal([]byte(jsonContent), &parsed); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	if strings.TrimSpace(parsed.Answer) == "" {
		return nil, fmt.Errorf("synthesis returned an empty answer")
	}

	// Clamp: providers occasionally report confidence on a 0-100 scale.
	confidence := parsed.Confidence
	if confidence > 1.0 {
		confidence = confidence / 100.0
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return &SynthesisResult{
		Text:       strings.TrimSpace(parsed.Answer),
		Confidence: confidence,
	}, nil
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
