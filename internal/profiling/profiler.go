package profiling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"stillpoint/internal/logging"
	"stillpoint/internal/pipeline"
	"stillpoint/internal/prosody"
	"stillpoint/internal/services"
)

const profileSystemPrompt = `You create prosody profiles for meditation narration synthesized with AWS Polly Neural voices.

Given a prosody analysis and the meditation request, produce a concrete delivery profile. Respond with a JSON object containing: pitch (base_pitch, range, contour_pattern, emotional_contours), rate (base_rate, variation, special_sections, emotional_rates), pauses (short_pause, medium_pause, long_pause, breath_pause, sentence_pattern, breathing_patterns), emphasis (intensity, key_terms, emotional_emphasis), volume, voice_quality, section_profiles, language_adjustments, and progression.

Pause durations must carry units ("800ms", "3s"); pitch shifts must carry the % symbol.`

// Profiler is the prosody-profile stage handler.
type Profiler struct {
	completer Completer
	logger    *slog.Logger
}

// NewProfiler builds the prosody-profile handler.
func NewProfiler(completer Completer, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Profiler{completer: completer, logger: logger}
}

// Prepare requires the analysis from the previous stage.
func (p *Profiler) Prepare(_ context.Context, record *pipeline.Record) error {
	if record.ProsodyAnalysis == nil {
		return services.Wrap(services.ErrValidation, pipeline.StageProsodyProfile, "prepare", "no prosody analysis", nil)
	}
	return nil
}

// Execute turns the analysis into a concrete profile, falling back to the
// default profile when the model output is unusable.
func (p *Profiler) Execute(ctx context.Context, record *pipeline.Record) error {
	prompt, err := p.profilePrompt(record)
	if err != nil {
		return err
	}
	profile, err := decodeWithRetry[prosody.Profile](ctx, p.completer, profileSystemPrompt, prompt)
	if err != nil {
		p.logger.Warn("prosody profile unusable, using defaults", logging.Error(err))
		profile = prosody.DefaultProfile()
	}
	fillProfileDefaults(profile)
	record.ProsodyProfile = profile
	return nil
}

func (p *Profiler) profilePrompt(record *pipeline.Record) (string, error) {
	analysisJSON, err := json.MarshalIndent(record.ProsodyAnalysis, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}
	req := record.Request
	var b strings.Builder
	fmt.Fprintf(&b, "Create a prosody profile for a %d-minute %s meditation in %s for someone feeling %s.\n\n",
		req.DurationMinutes, req.MeditationStyle, req.LanguageCode, req.EmotionalState)
	b.WriteString("PROSODY ANALYSIS:\n")
	b.Write(analysisJSON)
	b.WriteString("\n\nThe profile should slow and soften delivery as the meditation deepens, honor the detected breathing patterns, and stay within what Neural voices support.")
	return b.String(), nil
}

// fillProfileDefaults backfills structural fields a sparse model response may
// omit, so the markup stage always has timings to work with.
func fillProfileDefaults(profile *prosody.Profile) {
	defaults := prosody.DefaultProfile()
	if strings.TrimSpace(profile.Pitch.BasePitch) == "" {
		profile.Pitch = defaults.Pitch
	}
	if strings.TrimSpace(profile.Rate.BaseRate) == "" {
		profile.Rate = defaults.Rate
	}
	if strings.TrimSpace(profile.Pauses.MediumPause) == "" {
		profile.Pauses = defaults.Pauses
	}
	if len(profile.Pauses.BreathingPatterns) == 0 {
		profile.Pauses.BreathingPatterns = prosody.DefaultBreathingPatterns()
	}
	if strings.TrimSpace(profile.Volume) == "" {
		profile.Volume = defaults.Volume
	}
	if len(profile.LanguageAdjustments) == 0 {
		profile.LanguageAdjustments = prosody.DefaultLanguageAdjustments()
	}
	if len(profile.Progression) == 0 {
		profile.Progression = defaults.Progression
	}
}
