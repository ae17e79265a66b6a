package config

import (
	"errors"
	"fmt"
)

var validPollyEngines = map[string]struct{}{
	"neural":   {},
	"standard": {},
}

var validPollyFormats = map[string]struct{}{
	"mp3":        {},
	"ogg_vorbis": {},
	"pcm":        {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validatePolly(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateMixing(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/stillpoint/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'stillpoint config init')", defaultPath)
	}
	return nil
}

func (c *Config) validatePolly() error {
	if _, ok := validPollyEngines[c.Polly.Engine]; !ok {
		return fmt.Errorf("polly.engine must be one of neural, standard (got %q)", c.Polly.Engine)
	}
	if _, ok := validPollyFormats[c.Polly.OutputFormat]; !ok {
		return fmt.Errorf("polly.output_format must be one of mp3, ogg_vorbis, pcm (got %q)", c.Polly.OutputFormat)
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if c.Synthesis.MaxChunkChars < 100 {
		return errors.New("synthesis.max_chunk_chars must be at least 100")
	}
	return nil
}

func (c *Config) validateMixing() error {
	if c.Mixing.BackgroundVolume < 0 || c.Mixing.BackgroundVolume > 1 {
		return errors.New("mixing.background_volume must be between 0 and 1")
	}
	if c.Mixing.SampleDurationSeconds <= 0 {
		return errors.New("mixing.sample_duration_seconds must be positive")
	}
	return nil
}
