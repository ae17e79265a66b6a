package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizePolly()
	c.normalizeSynthesis()
	c.normalizeMixing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.AudioDir, err = expandPath(c.Paths.AudioDir); err != nil {
		return fmt.Errorf("paths.audio_dir: %w", err)
	}
	if c.Paths.JSONDir, err = expandPath(c.Paths.JSONDir); err != nil {
		return fmt.Errorf("paths.json_dir: %w", err)
	}
	if c.Paths.SoundscapeDir, err = expandPath(c.Paths.SoundscapeDir); err != nil {
		return fmt.Errorf("paths.soundscape_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizePolly() {
	if c.Polly.Profile == "" {
		c.Polly.Profile = strings.TrimSpace(os.Getenv("AWS_PROFILE"))
	}
	if strings.TrimSpace(c.Polly.Region) == "" {
		if region := strings.TrimSpace(os.Getenv("AWS_DEFAULT_REGION")); region != "" {
			c.Polly.Region = region
		} else {
			c.Polly.Region = defaultPollyRegion
		}
	}
	c.Polly.Engine = strings.ToLower(strings.TrimSpace(c.Polly.Engine))
	if c.Polly.Engine == "" {
		c.Polly.Engine = defaultPollyEngine
	}
	c.Polly.OutputFormat = strings.ToLower(strings.TrimSpace(c.Polly.OutputFormat))
	if c.Polly.OutputFormat == "" {
		c.Polly.OutputFormat = defaultPollyOutputFormat
	}
	if c.Polly.TimeoutSeconds <= 0 {
		c.Polly.TimeoutSeconds = defaultPollyTimeoutSeconds
	}
}

func (c *Config) normalizeSynthesis() {
	if c.Synthesis.MaxChunkChars <= 0 {
		c.Synthesis.MaxChunkChars = defaultMaxChunkChars
	}
	if strings.TrimSpace(c.Synthesis.FFmpegBinary) == "" {
		c.Synthesis.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Synthesis.TimeoutSeconds <= 0 {
		c.Synthesis.TimeoutSeconds = defaultSynthesisTimeoutSecs
	}
}

func (c *Config) normalizeMixing() {
	if c.Mixing.SampleDurationSeconds <= 0 {
		c.Mixing.SampleDurationSeconds = defaultSampleDurationSeconds
	}
	if strings.TrimSpace(c.Mixing.FFmpegBinary) == "" {
		c.Mixing.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Mixing.FFprobeBinary) == "" {
		c.Mixing.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Mixing.TimeoutSeconds <= 0 {
		c.Mixing.TimeoutSeconds = defaultMixingTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
