package prosody

// PitchProfile describes pitch adjustments for speech synthesis.
type PitchProfile struct {
	BasePitch         string            `json:"base_pitch"`
	Range             string            `json:"range"`
	ContourPattern    string            `json:"contour_pattern"`
	EmotionalContours map[string]string `json:"emotional_contours,omitempty"`
}

// RateProfile describes speech rate adjustments for speech synthesis.
type RateProfile struct {
	BaseRate        string            `json:"base_rate"`
	Variation       string            `json:"variation"`
	SpecialSections map[string]string `json:"special_sections,omitempty"`
	EmotionalRates  map[string]string `json:"emotional_rates,omitempty"`
}

// PauseProfile describes pause durations for speech synthesis.
type PauseProfile struct {
	ShortPause        string                       `json:"short_pause"`
	MediumPause       string                       `json:"medium_pause"`
	LongPause         string                       `json:"long_pause"`
	BreathPause       string                       `json:"breath_pause"`
	SentencePattern   string                       `json:"sentence_pattern"`
	BreathingPatterns map[string]map[string]string `json:"breathing_patterns,omitempty"`
}

// EmphasisProfile describes word emphasis for speech synthesis.
type EmphasisProfile struct {
	Intensity         string            `json:"intensity"`
	KeyTerms          []string          `json:"key_terms"`
	EmotionalEmphasis map[string]string `json:"emotional_emphasis,omitempty"`
}

// Profile is the complete prosody profile for a specific emotional state and
// meditation context. It is produced by the prosody-profile stage and consumed
// only by the markup-generation collaborator; the pipeline core treats it as
// opaque structured data.
type Profile struct {
	Pitch        PitchProfile    `json:"pitch"`
	Rate         RateProfile     `json:"rate"`
	Pauses       PauseProfile    `json:"pauses"`
	Emphasis     EmphasisProfile `json:"emphasis"`
	Volume       string          `json:"volume"`
	VoiceQuality string          `json:"voice_quality,omitempty"`

	SectionProfiles     map[string]map[string]string `json:"section_profiles,omitempty"`
	LanguageAdjustments map[string]map[string]string `json:"language_adjustments,omitempty"`
	Progression         map[string]map[string]string `json:"progression,omitempty"`
}

// BreathingPattern captures one detected breathing technique with its phase timings.
type BreathingPattern struct {
	Type   string            `json:"type"`
	Phases map[string]string `json:"phases,omitempty"`
}

// EmphasisPoint marks a phrase that should receive prosodic emphasis.
type EmphasisPoint struct {
	Phrase string `json:"phrase"`
	Reason string `json:"reason,omitempty"`
}

// Analysis captures the prosody needs of a specific meditation script. It is
// produced by the prosody-analysis stage.
type Analysis struct {
	OverallTone               string             `json:"overall_tone"`
	KeyTerms                  []string           `json:"key_terms"`
	BreathingPatterns         []BreathingPattern `json:"breathing_patterns"`
	RecommendedEmphasisPoints []EmphasisPoint    `json:"recommended_emphasis_points"`
	SectionCharacteristics    map[string]string  `json:"section_characteristics"`
}
