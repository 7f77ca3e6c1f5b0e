package detector

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"live-insights-be/internal/entity"
	"live-insights-be/pkg/llm"
)

// stubLLM returns a canned response for every prompt.
type stubLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	s.calls++
	return s.response, s.err
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	s.calls++
	return s.response, s.err
}

func newTestDetector(provider llm.LLMProvider) *Detector {
	return NewDetector(provider, log.New(os.Stderr, "", 0))
}

func TestDetectAndClassifyFastPath(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantType entity.QuestionType
	}{
		{
			name:     "question mark",
			text:     "Did we ship the beta last week?",
			wantType: entity.QuestionFactual,
		},
		{
			name:     "leading interrogative without mark",
			text:     "what was our Q3 budget for contractors",
			wantType: entity.QuestionFactual,
		},
		{
			name:     "decision question",
			text:     "Should we go with the annual plan or monthly?",
			wantType: entity.QuestionDecision,
		},
		{
			name:     "process question",
			text:     "How do we roll back a bad deploy?",
			wantType: entity.QuestionProcess,
		},
		{
			name:     "clarification question",
			text:     "Sorry, can you repeat the last number?",
			wantType: entity.QuestionClarification,
		},
	}

	provider := &stubLLM{}
	d := newTestDetector(provider)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.DetectAndClassify(context.Background(), tt.text, "")
			if err != nil {
				t.Fatalf("DetectAndClassify error: %v", err)
			}
			if got == nil {
				t.Fatalf("expected detection for %q, got nil", tt.text)
			}
			if got.Confidence != FastPathConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, FastPathConfidence)
			}
			if got.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", got.Type, tt.wantType)
			}
		})
	}

	if provider.calls != 0 {
		t.Errorf("fast path must not call the LLM, got %d calls", provider.calls)
	}
}

func TestDetectAndClassifyNonQuestions(t *testing.T) {
	provider := &stubLLM{}
	d := newTestDetector(provider)

	for _, text := range []string{
		"",
		"   ",
		"The deploy finished at noon.",
		"Revenue grew eight percent quarter over quarter.",
	} {
		got, err := d.DetectAndClassify(context.Background(), text, "")
		if err != nil {
			t.Fatalf("DetectAndClassify(%q) error: %v", text, err)
		}
		if got != nil {
			t.Errorf("DetectAndClassify(%q) = %+v, want nil", text, got)
		}
	}

	if provider.calls != 0 {
		t.Errorf("plain statements must not reach the LLM, got %d calls", provider.calls)
	}
}

func TestDetectAndClassifySlowPath(t *testing.T) {
	provider := &stubLLM{
		response: `Here is my analysis: {"is_question": true, "question": "What is the current API rate limit?", "type": "factual", "confidence": 0.85}`,
	}
	d := newTestDetector(provider)

	got, err := d.DetectAndClassify(context.Background(), "I'm not sure what the rate limit is these days", "")
	if err != nil {
		t.Fatalf("DetectAndClassify error: %v", err)
	}
	if got == nil {
		t.Fatal("expected implicit detection, got nil")
	}
	if got.Text != "What is the current API rate limit?" {
		t.Errorf("Text = %q, want rephrased question", got.Text)
	}
	if got.Confidence != SlowPathConfidence {
		t.Errorf("Confidence = %v, want %v", got.Confidence, SlowPathConfidence)
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 LLM call, got %d", provider.calls)
	}
}

func TestDetectAndClassifySlowPathNegative(t *testing.T) {
	provider := &stubLLM{
		response: `{"is_question": false, "question": "", "type": "", "confidence": 0.2}`,
	}
	d := newTestDetector(provider)

	got, err := d.DetectAndClassify(context.Background(), "I guess maybe we move on", "")
	if err != nil {
		t.Fatalf("DetectAndClassify error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for negative classification, got %+v", got)
	}
}

func TestDetectAndClassifyDegradesOnProviderFailure(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubLLM
	}{
		{name: "provider error", provider: &stubLLM{err: errors.New("connection refused")}},
		{name: "no json in response", provider: &stubLLM{response: "I cannot help with that."}},
		{name: "malformed json", provider: &stubLLM{response: `{"is_question": tru`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(tt.provider)
			got, err := d.DetectAndClassify(context.Background(), "I wonder about the timeline here", "")
			if err != nil {
				t.Fatalf("detection must not surface provider failures, got %v", err)
			}
			if got != nil {
				t.Errorf("expected nil on degraded path, got %+v", got)
			}
		})
	}
}

func TestDetectAndClassifyFallsBackToUtteranceText(t *testing.T) {
	provider := &stubLLM{
		response: `{"is_question": true, "question": "  ", "type": "decision", "confidence": 0.7}`,
	}
	d := newTestDetector(provider)

	text := "I'm not sure we picked the right vendor"
	got, err := d.DetectAndClassify(context.Background(), text, "")
	if err != nil {
		t.Fatalf("DetectAndClassify error: %v", err)
	}
	if got == nil {
		t.Fatal("expected detection, got nil")
	}
	if got.Text != text {
		t.Errorf("Text = %q, want original utterance fallback", got.Text)
	}
	if got.Type != entity.QuestionDecision {
		t.Errorf("Type = %s, want decision", got.Type)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{name: "bare json", response: `{"a":1}`, want: `{"a":1}`},
		{name: "wrapped in prose", response: "Sure: {\"a\":1} hope that helps", want: `{"a":1}`},
		{name: "no braces", response: "nothing here", want: ""},
		{name: "reversed braces", response: "} {", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.response); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.response, got, tt.want)
			}
		})
	}
}
