package pipeline

import (
	"strings"

	"stillpoint/internal/prosody"
)

// Request captures the user's meditation order. It is set when a run begins
// and never modified by stages.
type Request struct {
	EmotionalState  string `json:"emotional_state"`
	MeditationStyle string `json:"meditation_style"`
	MeditationTheme string `json:"meditation_theme"`
	DurationMinutes int    `json:"duration_minutes"`
	LanguageCode    string `json:"language_code"`
	VoiceType       string `json:"voice_type"`
	Soundscape      string `json:"soundscape,omitempty"`
}

// ScriptSection is one typed portion of the narration script.
type ScriptSection struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Script is the narration text produced by the script stage, both as raw
// content and split into typed sections.
type Script struct {
	Content  string          `json:"content"`
	Sections []ScriptSection `json:"sections,omitempty"`
}

// Audio output statuses.
const (
	AudioStatusGenerated = "generated"
	AudioStatusCompleted = "completed"
)

// AudioOutput records the files produced by the synthesis and mixing stages.
type AudioOutput struct {
	NarrationFile string `json:"narration_file,omitempty"`
	MixedFile     string `json:"mixed_file,omitempty"`
	SampleFile    string `json:"sample_file,omitempty"`
	Status        string `json:"status,omitempty"`
	SnapshotFile  string `json:"snapshot_file,omitempty"`
}

// Record is the shared state threaded through the pipeline. Each stage reads
// the fields earlier stages filled in and overwrites only its own; optional
// fields stay nil until the owning stage runs so re-runs are idempotent.
type Record struct {
	Request         Request           `json:"request"`
	Script          *Script           `json:"script,omitempty"`
	ProsodyAnalysis *prosody.Analysis `json:"prosody_analysis,omitempty"`
	ProsodyProfile  *prosody.Profile  `json:"prosody_profile,omitempty"`
	MarkupOutput    string            `json:"markup_output,omitempty"`
	AudioOutput     *AudioOutput      `json:"audio_output,omitempty"`
	Error           string            `json:"error,omitempty"`
	CurrentStep     string            `json:"current_step,omitempty"`
}

// NewRecord returns a fresh record for the given request.
func NewRecord(req Request) *Record {
	return &Record{Request: req}
}

// Failed reports whether the record carries a terminal error.
func (r *Record) Failed() bool {
	return strings.TrimSpace(r.Error) != ""
}

// SetFailed marks the record with a terminal error message.
func (r *Record) SetFailed(message string) {
	r.Error = strings.TrimSpace(message)
}
