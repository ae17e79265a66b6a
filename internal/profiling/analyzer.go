// Package profiling derives prosody guidance from the generated script: an
// analysis of what the narration needs, then a concrete delivery profile.
package profiling

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"stillpoint/internal/logging"
	"stillpoint/internal/pipeline"
	"stillpoint/internal/prosody"
	"stillpoint/internal/services"
	"stillpoint/internal/services/llm"
)

// Completer is the LLM surface the prosody stages need.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const analysisSystemPrompt = `You are a prosody analysis expert for meditation narration with deep expertise in SSML for AWS Polly Neural voices.

Analyze the script comprehensively, considering emotional undertones and progression, natural speech patterns and pauses, breathing patterns and their timing, sections that require changes in pace, pitch, or volume, and words or phrases that deserve emphasis.

Neural voices do not support emphasis tags, auto-breaths, or whispered effects; recommend prosody and break alternatives instead.

Respond with a JSON object containing: overall_tone, key_terms (array), breathing_patterns (array of {type, phases}), recommended_emphasis_points (array of {phrase, reason}), and section_characteristics (object mapping section names to descriptions).`

// Analyzer is the prosody-analysis stage handler.
type Analyzer struct {
	completer Completer
	logger    *slog.Logger
}

// NewAnalyzer builds the prosody-analysis handler.
func NewAnalyzer(completer Completer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{completer: completer, logger: logger}
}

// Prepare requires a script from the previous stage.
func (a *Analyzer) Prepare(_ context.Context, record *pipeline.Record) error {
	if record.Script == nil || strings.TrimSpace(record.Script.Content) == "" {
		return services.Wrap(services.ErrValidation, pipeline.StageProsodyAnalysis, "prepare", "no script to analyze", nil)
	}
	return nil
}

// Execute analyzes the script's prosody needs. Undecodable model output
// degrades to the deterministic default analysis, never to a stage failure.
func (a *Analyzer) Execute(ctx context.Context, record *pipeline.Record) error {
	prompt := a.analysisPrompt(record)
	analysis, err := decodeWithRetry[prosody.Analysis](ctx, a.completer, analysisSystemPrompt, prompt)
	if err != nil {
		a.logger.Warn("prosody analysis unusable, using defaults", logging.Error(err))
		analysis = prosody.DefaultAnalysis(keyTermsFromScript(record.Script))
	}
	record.ProsodyAnalysis = analysis
	return nil
}

func (a *Analyzer) analysisPrompt(record *pipeline.Record) string {
	req := record.Request
	var b strings.Builder
	b.WriteString("I need a detailed prosody analysis for this meditation script that will be narrated with AWS Polly Neural voices.\n\n")
	fmt.Fprintf(&b, "Script context:\n- Emotional state: %s\n- Meditation style: %s\n- Theme: %s\n- Duration: %d minutes\n- Language: %s\n\n",
		req.EmotionalState, req.MeditationStyle, req.MeditationTheme, req.DurationMinutes, req.LanguageCode)
	b.WriteString("Here is the meditation script:\n")
	b.WriteString(record.Script.Content)
	b.WriteString("\n\nIdentify the overall tone, key terms for emphasis, breathing techniques with pause timings for each phase, emphasis points, and per-section characteristics.")
	return b.String()
}

// keyTermsFromScript picks fallback key terms present in the script text.
func keyTermsFromScript(script *pipeline.Script) []string {
	candidates := []string{"breath", "present", "awareness", "release", "calm", "rest"}
	lower := strings.ToLower(script.Content)
	var terms []string
	for _, term := range candidates {
		if strings.Contains(lower, term) {
			terms = append(terms, term)
		}
	}
	return terms
}

// decodeWithRetry decodes a JSON completion strictly, grants one reformat
// retry on failure, and reports an error only when both attempts are unusable.
func decodeWithRetry[T any](ctx context.Context, completer Completer, systemPrompt, userPrompt string) (*T, error) {
	payload, err := completer.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}
	target := new(T)
	if decodeErr := llm.DecodeLLMJSON(payload, target); decodeErr == nil {
		return target, nil
	}
	reformatted, err := completer.CompleteJSON(ctx, systemPrompt,
		"The previous response could not be parsed as JSON. Reformat it as valid JSON with the required structure and return only the JSON.\n\nOriginal response:\n"+payload)
	if err != nil {
		return nil, err
	}
	target = new(T)
	if decodeErr := llm.DecodeLLMJSON(reformatted, target); decodeErr != nil {
		return nil, decodeErr
	}
	return target, nil
}
