package prosody

// DefaultProfile returns a calm baseline profile used when the profile
// collaborator produces no usable output. Timings mirror a slow, low-pitched
// meditation delivery with gentle pauses throughout.
func DefaultProfile() *Profile {
	return &Profile{
		Pitch: PitchProfile{
			BasePitch:      "-15%",
			Range:          "moderate",
			ContourPattern: "gradual_descent",
			EmotionalContours: map[string]string{
				"peaceful":  "flat_descent",
				"grounded":  "steady_low",
				"uplifting": "gentle_rise",
			},
		},
		Rate: RateProfile{
			BaseRate:  "slow",
			Variation: "minimal",
			SpecialSections: map[string]string{
				"breathing":     "x-slow",
				"body_scan":     "x-slow",
				"visualization": "slow",
			},
			EmotionalRates: defaultEmotionalRates(),
		},
		Pauses: PauseProfile{
			ShortPause:        "800ms",
			MediumPause:       "2s",
			LongPause:         "4s",
			BreathPause:       "3s",
			SentencePattern:   "medium_after_sentence",
			BreathingPatterns: DefaultBreathingPatterns(),
		},
		Emphasis: EmphasisProfile{
			Intensity: "reduced",
			KeyTerms:  []string{"breath", "present", "awareness", "release"},
			EmotionalEmphasis: map[string]string{
				"grounding": "moderate",
				"calming":   "reduced",
			},
		},
		Volume:       "soft",
		VoiceQuality: "breathy",
		SectionProfiles: map[string]map[string]string{
			"introduction": {"rate": "slow", "pitch": "-10%", "volume": "medium"},
			"grounding":    {"rate": "x-slow", "pitch": "-15%", "volume": "soft"},
			"body_scan":    {"rate": "x-slow", "pitch": "-20%", "volume": "soft"},
			"breath_focus": {"rate": "x-slow", "pitch": "-15%", "volume": "x-soft"},
			"closing":      {"rate": "slow", "pitch": "-10%", "volume": "soft"},
		},
		LanguageAdjustments: DefaultLanguageAdjustments(),
		Progression: map[string]map[string]string{
			"opening":    {"rate": "slow", "pitch": "-10%"},
			"middle":     {"rate": "x-slow", "pitch": "-15%"},
			"deepest":    {"rate": "x-slow", "pitch": "-20%"},
			"transition": {"rate": "slow", "pitch": "-15%"},
			"closing":    {"rate": "slow", "pitch": "-10%"},
		},
	}
}

func defaultEmotionalRates() map[string]string {
	return map[string]string{
		"calm":      "slow",
		"peaceful":  "x-slow",
		"grounded":  "slow",
		"energized": "medium",
		"focused":   "slow",
	}
}

// DefaultBreathingPatterns returns the pause timings for the breathing
// techniques the markup stage recognizes.
func DefaultBreathingPatterns() map[string]map[string]string {
	return map[string]map[string]string{
		"4-7-8": {
			"inhale": "4s",
			"hold":   "7s",
			"exhale": "8s",
		},
		"box": {
			"inhale":     "4s",
			"hold_in":    "4s",
			"exhale":     "4s",
			"hold_empty": "4s",
		},
		"deep": {
			"inhale": "4s",
			"exhale": "6s",
		},
	}
}

// DefaultLanguageAdjustments returns baseline pitch and rate shifts applied
// per narration language.
func DefaultLanguageAdjustments() map[string]map[string]string {
	return map[string]map[string]string{
		"en-US": {"pitch_shift": "0%", "rate_shift": "0%"},
		"es-ES": {"pitch_shift": "-5%", "rate_shift": "-10%"},
	}
}

// DefaultAnalysis returns a neutral analysis used when the analysis
// collaborator produces no usable output for the given script.
func DefaultAnalysis(keyTerms []string) *Analysis {
	if len(keyTerms) == 0 {
		keyTerms = []string{"breath", "present", "awareness"}
	}
	return &Analysis{
		OverallTone:       "calm",
		KeyTerms:          keyTerms,
		BreathingPatterns: []BreathingPattern{{Type: "deep", Phases: DefaultBreathingPatterns()["deep"]}},
		RecommendedEmphasisPoints: []EmphasisPoint{
			{Phrase: "notice your breath", Reason: "anchors attention"},
		},
		SectionCharacteristics: map[string]string{
			"introduction": "welcoming, settling",
			"body":         "slow, spacious",
			"closing":      "gentle return",
		},
	}
}
