// Package script generates the narration script and its typed sections.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"stillpoint/internal/logging"
	"stillpoint/internal/pipeline"
	"stillpoint/internal/services"
	"stillpoint/internal/services/llm"
)

const wordsPerMinute = 125

// Completer is the LLM surface the generator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generator produces the meditation script for a request.
type Generator struct {
	completer Completer
	logger    *slog.Logger
}

// NewGenerator builds the script stage handler.
func NewGenerator(completer Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{completer: completer, logger: logger}
}

// Prepare validates that the request carries enough to write a script.
func (g *Generator) Prepare(_ context.Context, record *pipeline.Record) error {
	req := &record.Request
	if req.DurationMinutes <= 0 {
		return services.Wrap(services.ErrValidation, pipeline.StageScript, "prepare", "duration must be positive", nil)
	}
	if strings.TrimSpace(req.MeditationStyle) == "" {
		req.MeditationStyle = "mindfulness"
	}
	if strings.TrimSpace(req.EmotionalState) == "" {
		req.EmotionalState = "calm"
	}
	if strings.TrimSpace(req.LanguageCode) == "" {
		req.LanguageCode = "en-US"
	}
	return nil
}

// Execute generates the script content, then derives typed sections from a
// second structured analysis pass. Unparseable analysis output degrades to
// marker extraction, never to a stage failure.
func (g *Generator) Execute(ctx context.Context, record *pipeline.Record) error {
	content, err := g.completer.Complete(ctx, generationSystemPrompt, g.generationPrompt(record.Request))
	if err != nil {
		return services.Wrap(services.ErrExternalTool, pipeline.StageScript, "generate script", "", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return services.Wrap(services.ErrExternalTool, pipeline.StageScript, "generate script", "empty script content", nil)
	}
	g.logger.Info("script generated", logging.Int("chars", len(content)))

	sections := g.analyzeSections(ctx, content)
	record.Script = &pipeline.Script{Content: content, Sections: sections}
	return nil
}

func (g *Generator) generationPrompt(req pipeline.Request) string {
	theme := strings.TrimSpace(req.MeditationTheme)
	if theme == "" {
		theme = "inner calm"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Create a %d-minute %s meditation script focused on %s for someone feeling %s.\n\n",
		req.DurationMinutes, req.MeditationStyle, theme, req.EmotionalState)
	fmt.Fprintf(&b, "The script should be in %s and voiced by a %s voice.\n\n", req.LanguageCode, req.VoiceType)
	b.WriteString("Include these essential components:\n")
	b.WriteString("1. A welcoming introduction (30-45 seconds)\n")
	b.WriteString("2. Grounding/centering instructions\n")
	b.WriteString("3. Breathing guidance appropriate for this style and emotional state\n")
	fmt.Fprintf(&b, "4. The main practice section specific to %s\n", req.MeditationStyle)
	b.WriteString("5. A gentle closing with integration (30-45 seconds)\n\n")
	b.WriteString("Structure the script clearly with section markers like [INTRODUCTION], [BREATHING], [BODY_SCAN], etc.\n\n")
	fmt.Fprintf(&b, "For a %d-minute meditation, the script should be approximately %d words. ",
		req.DurationMinutes, req.DurationMinutes*wordsPerMinute)
	b.WriteString("Allow for natural pauses and breathing spaces, and pace the script to avoid rushing while maintaining engagement.")
	return b.String()
}

type sectionPayload struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Function string `json:"function"`
}

// analyzeSections asks the model to split the script into typed sections. A
// decode failure earns one reformat retry, then deterministic extraction.
func (g *Generator) analyzeSections(ctx context.Context, content string) []pipeline.ScriptSection {
	prompt := fmt.Sprintf(`Analyze this meditation script and identify distinct sections with their boundaries.

SCRIPT:
%s

Return the analysis as a JSON array in which each section object carries the section type, content, and function.`, content)

	payload, err := g.completer.CompleteJSON(ctx, sectionAnalysisSystemPrompt, prompt)
	if err == nil {
		if sections, decodeErr := decodeSections(payload); decodeErr == nil {
			return sections
		}
		reformatted, retryErr := g.completer.CompleteJSON(ctx, sectionAnalysisSystemPrompt,
			sectionReformatPrompt+"\n\nOriginal response:\n"+payload)
		if retryErr == nil {
			if sections, decodeErr := decodeSections(reformatted); decodeErr == nil {
				return sections
			}
		}
	}
	g.logger.Warn("section analysis unusable, extracting sections from markers")
	return ExtractSections(content)
}

func decodeSections(payload string) ([]pipeline.ScriptSection, error) {
	var decoded []sectionPayload
	if err := llm.DecodeLLMJSON(payload, &decoded); err != nil {
		return nil, err
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("no sections in payload")
	}
	sections := make([]pipeline.ScriptSection, 0, len(decoded))
	for _, section := range decoded {
		sectionType := normalizeSectionType(section.Type)
		text := strings.TrimSpace(section.Content)
		if text == "" {
			continue
		}
		sections = append(sections, pipeline.ScriptSection{Type: sectionType, Content: text})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("sections carried no content")
	}
	return sections, nil
}

var markerPattern = regexp.MustCompile(`(?s)\[([^\[\]]+)\]([^\[]*)`)

// ExtractSections recovers typed sections from bracketed markers in the
// script text, falling back to paragraph splitting with keyword heuristics
// when no markers are present.
func ExtractSections(content string) []pipeline.ScriptSection {
	matches := markerPattern.FindAllStringSubmatch(content, -1)
	var sections []pipeline.ScriptSection
	for _, match := range matches {
		text := strings.TrimSpace(match[2])
		if text == "" {
			continue
		}
		sections = append(sections, pipeline.ScriptSection{
			Type:    normalizeSectionType(match[1]),
			Content: text,
		})
	}
	if len(sections) > 0 {
		return sections
	}

	paragraphs := strings.Split(content, "\n\n")
	index := 0
	total := 0
	for _, paragraph := range paragraphs {
		if strings.TrimSpace(paragraph) != "" {
			total++
		}
	}
	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		sectionType := "body"
		switch index {
		case 0:
			sectionType = "introduction"
		case total - 1:
			sectionType = "closing"
		}
		if detected := detectSectionType(paragraph); detected != "" {
			sectionType = detected
		}
		sections = append(sections, pipeline.ScriptSection{Type: sectionType, Content: paragraph})
		index++
	}
	return sections
}

var (
	breathingWords     = regexp.MustCompile(`(?i)\b(breathe|inhale|exhale|respira|inhala|exhala)`)
	bodyScanWords      = regexp.MustCompile(`(?i)\b(body|cuerpo|scan|muscles|músculos)`)
	visualizationWords = regexp.MustCompile(`(?i)\b(imagine|visualize|visualiza|imagina)`)
)

func detectSectionType(text string) string {
	switch {
	case breathingWords.MatchString(text):
		return "breathing"
	case bodyScanWords.MatchString(text):
		return "body_scan"
	case visualizationWords.MatchString(text):
		return "visualization"
	}
	return ""
}

func normalizeSectionType(raw string) string {
	sectionType := strings.ToLower(strings.TrimSpace(raw))
	sectionType = strings.ReplaceAll(sectionType, " ", "_")
	switch {
	case strings.Contains(sectionType, "intro"):
		return "introduction"
	case strings.Contains(sectionType, "body") && strings.Contains(sectionType, "scan"):
		return "body_scan"
	case strings.Contains(sectionType, "breath"):
		return "breathing"
	case strings.Contains(sectionType, "visual"):
		return "visualization"
	case strings.Contains(sectionType, "affirm"):
		return "affirmations"
	case strings.Contains(sectionType, "clos"):
		return "closing"
	case strings.Contains(sectionType, "ground"):
		return "grounding"
	}
	if sectionType == "" {
		return "body"
	}
	return sectionType
}
