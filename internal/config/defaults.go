package config

const (
	defaultStateDir      = "~/.local/share/stillpoint/state"
	defaultAudioDir      = "~/.local/share/stillpoint/audio"
	defaultJSONDir       = "~/.local/share/stillpoint/json"
	defaultSoundscapeDir = "~/.local/share/stillpoint/soundscapes"
	defaultLogDir        = "~/.local/share/stillpoint/logs"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultLLMBaseURL        = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel          = "gpt-4o"
	defaultLLMTimeoutSeconds = 120

	defaultPollyRegion         = "us-east-1"
	defaultPollyEngine         = "neural"
	defaultPollyOutputFormat   = "mp3"
	defaultPollyTimeoutSeconds = 60

	// Polly enforces an input ceiling on SSML; stay conservatively under it.
	defaultMaxChunkChars          = 2900
	defaultSynthesisTimeoutSecs   = 120
	defaultBackgroundVolume       = 0.3
	defaultSampleDurationSeconds  = 30
	defaultMixingTimeoutSeconds   = 300
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:      defaultStateDir,
			AudioDir:      defaultAudioDir,
			JSONDir:       defaultJSONDir,
			SoundscapeDir: defaultSoundscapeDir,
			LogDir:        defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Polly: Polly{
			Region:         defaultPollyRegion,
			Engine:         defaultPollyEngine,
			OutputFormat:   defaultPollyOutputFormat,
			TimeoutSeconds: defaultPollyTimeoutSeconds,
		},
		Synthesis: Synthesis{
			MaxChunkChars:  defaultMaxChunkChars,
			FFmpegBinary:   defaultFFmpegBinary,
			TimeoutSeconds: defaultSynthesisTimeoutSecs,
		},
		Mixing: Mixing{
			BackgroundVolume:      defaultBackgroundVolume,
			CreateSample:          true,
			SampleDurationSeconds: defaultSampleDurationSeconds,
			FFmpegBinary:          defaultFFmpegBinary,
			FFprobeBinary:         defaultFFprobeBinary,
			TimeoutSeconds:        defaultMixingTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
