// Package ssml generates speech markup for the narration and iteratively
// reviews it for tag balance and Polly Neural compatibility.
package ssml

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"stillpoint/internal/logging"
	"stillpoint/internal/pipeline"
	"stillpoint/internal/services"
)

// Completer is the LLM surface the markup stages need.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const generationSystemPrompt = `You are an expert SSML generator for AWS Polly Neural voices. Create optimized SSML markup for meditation narration.

IMPORTANT CONSTRAINTS FOR NEURAL VOICES:
1. Use only fully supported tags: <speak>, <break>, <prosody>, <p>, <s>
2. DO NOT use unsupported tags: <emphasis>, <amazon:auto-breaths>, whispered or soft-phonation effects
3. For emphasis, use <prosody> with adjusted rate/pitch; for breath sounds, use <break> tags; for soft speech, use <prosody volume="x-soft" rate="slow" pitch="low">

TECHNIQUES:
- Slow breathing instructions (<prosody rate="60%">) followed by pauses matched to the instruction
- Paragraph tags for major sections with longer breaks between them
- Gradually slower rate and lower pitch as the meditation deepens
- Subtle prosody shifts on key terms rather than hard emphasis

TECHNICAL REQUIREMENTS:
- Every opening tag has a matching closing tag, properly nested
- <break> times always carry units ("500ms", "2s"); percentages carry the % symbol

Return only the complete SSML markup inside <speak> tags.`

var speakPattern = regexp.MustCompile(`(?s)<speak>.*?</speak>`)

// Generator is the markup-generation stage handler.
type Generator struct {
	completer Completer
	logger    *slog.Logger
}

// NewGenerator builds the markup-generation handler.
func NewGenerator(completer Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{completer: completer, logger: logger}
}

// Prepare requires the script and prosody profile from earlier stages.
func (g *Generator) Prepare(_ context.Context, record *pipeline.Record) error {
	if record.Script == nil || strings.TrimSpace(record.Script.Content) == "" {
		return services.Wrap(services.ErrValidation, pipeline.StageMarkupGeneration, "prepare", "no script content", nil)
	}
	if record.ProsodyProfile == nil {
		return services.Wrap(services.ErrValidation, pipeline.StageMarkupGeneration, "prepare", "no prosody profile", nil)
	}
	return nil
}

// Execute generates markup and extracts the speak document from the model's
// response; a response without speak tags is wrapped rather than rejected.
func (g *Generator) Execute(ctx context.Context, record *pipeline.Record) error {
	prompt, err := g.generationPrompt(record)
	if err != nil {
		return err
	}
	content, err := g.completer.Complete(ctx, generationSystemPrompt, prompt)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, pipeline.StageMarkupGeneration, "generate markup", "", err)
	}
	markup := ExtractSpeak(content)
	if markup == "" {
		g.logger.Warn("no speak document in response, wrapping raw content")
		markup = "<speak>\n" + strings.TrimSpace(content) + "\n</speak>"
	}
	record.MarkupOutput = markup
	g.logger.Info("markup generated", logging.Int("chars", len(markup)))
	return nil
}

func (g *Generator) generationPrompt(record *pipeline.Record) (string, error) {
	profileJSON, err := json.MarshalIndent(record.ProsodyProfile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode profile: %w", err)
	}
	analysisJSON, err := json.MarshalIndent(record.ProsodyAnalysis, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}
	req := record.Request
	var b strings.Builder
	b.WriteString("Generate optimal SSML markup for this meditation script.\n\n")
	fmt.Fprintf(&b, "CONTEXT:\n- Emotional state: %s\n- Meditation style: %s\n- Theme: %s\n- Duration: %d minutes\n- Language: %s\n- Voice: %s\n\n",
		req.EmotionalState, req.MeditationStyle, req.MeditationTheme, req.DurationMinutes, req.LanguageCode, req.VoiceType)
	b.WriteString("PROSODY PROFILE:\n")
	b.Write(profileJSON)
	b.WriteString("\n\nPROSODY ANALYSIS:\n")
	b.Write(analysisJSON)
	b.WriteString("\n\nMEDITATION SCRIPT:\n")
	b.WriteString(record.Script.Content)
	b.WriteString("\n\nReturn only the complete SSML markup inside <speak> tags, with all tags balanced and properly nested.")
	return b.String(), nil
}

// ExtractSpeak returns the first speak document found in content, or "".
func ExtractSpeak(content string) string {
	return speakPattern.FindString(content)
}
