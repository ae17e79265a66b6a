package synthesis

import (
	"context"
	"strings"

	"stillpoint/internal/pipeline"
	"stillpoint/internal/services"
	"stillpoint/internal/voices"
)

// Stage adapts the synthesis engine to the pipeline handler contract.
type Stage struct {
	engine *Engine
}

// NewStage wraps the engine as the speech-synthesis stage.
func NewStage(engine *Engine) *Stage {
	return &Stage{engine: engine}
}

// Prepare requires reviewed markup from the earlier stages.
func (s *Stage) Prepare(_ context.Context, record *pipeline.Record) error {
	if strings.TrimSpace(record.MarkupOutput) == "" {
		return services.Wrap(services.ErrValidation, pipeline.StageSpeechSynthesis, "prepare", "no markup to synthesize", nil)
	}
	return nil
}

// Execute renders the markup and records the narration file.
func (s *Stage) Execute(ctx context.Context, record *pipeline.Record) error {
	languageCode := voices.NormalizeLanguage(record.Request.LanguageCode)
	voiceID := voices.Resolve(languageCode, record.Request.VoiceType)
	narrationPath, err := s.engine.Synthesize(ctx, record.MarkupOutput, voiceID, languageCode)
	if err != nil {
		return err
	}
	record.AudioOutput = &pipeline.AudioOutput{
		NarrationFile: narrationPath,
		Status:        pipeline.AudioStatusGenerated,
	}
	return nil
}
