package mixing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stillpoint/internal/logging"
	"stillpoint/internal/pipeline"
	"stillpoint/internal/services"
)

// StageOptions configures the audio-mixing stage.
type StageOptions struct {
	SoundscapeDir string
	Volume        float64
	CreateSample  bool
	SampleSeconds int

	// JSONDir, when set, receives a full-record JSON export once mixing
	// completes; its path is recorded on the audio output.
	JSONDir string
}

// Stage adapts the mixer to the pipeline handler contract.
type Stage struct {
	mixer *Mixer
	opts  StageOptions
}

// NewStage wraps the mixer as the audio-mixing stage.
func NewStage(mixer *Mixer, opts StageOptions) *Stage {
	return &Stage{mixer: mixer, opts: opts}
}

// Prepare requires a synthesized narration file.
func (s *Stage) Prepare(_ context.Context, record *pipeline.Record) error {
	if record.AudioOutput == nil || strings.TrimSpace(record.AudioOutput.NarrationFile) == "" {
		return services.Wrap(services.ErrValidation, pipeline.StageAudioMixing, "prepare", "no narration file to mix", nil)
	}
	return nil
}

// Execute selects a soundscape, mixes it under the narration, and marks the
// audio output completed.
func (s *Stage) Execute(ctx context.Context, record *pipeline.Record) error {
	background, err := s.mixer.FindBackground(s.opts.SoundscapeDir, record.Request.Soundscape)
	if err != nil {
		return err
	}
	mixed, sample, err := s.mixer.Mix(ctx, MixRequest{
		NarrationPath:  record.AudioOutput.NarrationFile,
		BackgroundPath: background,
		Volume:         s.opts.Volume,
		CreateSample:   s.opts.CreateSample,
		SampleSeconds:  s.opts.SampleSeconds,
	})
	if err != nil {
		return err
	}
	record.AudioOutput.MixedFile = mixed
	record.AudioOutput.SampleFile = sample
	record.AudioOutput.Status = pipeline.AudioStatusCompleted

	if dir := strings.TrimSpace(s.opts.JSONDir); dir != "" {
		exportPath, err := exportRecord(dir, record)
		if err != nil {
			s.mixer.logger.Warn("record export failed", logging.Error(err))
		} else {
			record.AudioOutput.SnapshotFile = exportPath
		}
	}
	return nil
}

// exportRecord writes the finished record alongside the audio outputs so
// listeners can inspect what produced a given file without the state store.
func exportRecord(dir string, record *pipeline.Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create json directory: %w", err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	name := fmt.Sprintf("meditation_%s.json", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write record export: %w", err)
	}
	return path, nil
}
