package pipeline

import "fmt"

// Stage names in declared pipeline order.
const (
	StageScript           = "script"
	StageProsodyAnalysis  = "prosody-analysis"
	StageProsodyProfile   = "prosody-profile"
	StageMarkupGeneration = "markup-generation"
	StageMarkupReview     = "markup-review"
	StageSpeechSynthesis  = "speech-synthesis"
	StageAudioMixing      = "audio-mixing"
)

// Order is the fixed linear execution order of the pipeline.
var Order = []string{
	StageScript,
	StageProsodyAnalysis,
	StageProsodyProfile,
	StageMarkupGeneration,
	StageMarkupReview,
	StageSpeechSynthesis,
	StageAudioMixing,
}

// Index returns the position of the named stage in Order, or an error for an
// unknown stage name.
func Index(name string) (int, error) {
	for i, stage := range Order {
		if stage == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// Previous returns the stage preceding name in Order, or "" when name is the
// first stage.
func Previous(name string) (string, error) {
	idx, err := Index(name)
	if err != nil {
		return "", err
	}
	if idx == 0 {
		return "", nil
	}
	return Order[idx-1], nil
}
