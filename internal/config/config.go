package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for pipeline output.
type Paths struct {
	StateDir      string `toml:"state_dir"`
	AudioDir      string `toml:"audio_dir"`
	JSONDir       string `toml:"json_dir"`
	SoundscapeDir string `toml:"soundscape_dir"`
	LogDir        string `toml:"log_dir"`
}

// LLM contains connection settings for the generative text collaborator.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Polly contains settings for the AWS Polly speech synthesis provider.
type Polly struct {
	Region         string `toml:"region"`
	Profile        string `toml:"profile"`
	Engine         string `toml:"engine"`
	OutputFormat   string `toml:"output_format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Synthesis contains chunked speech synthesis settings.
type Synthesis struct {
	// MaxChunkChars is the provider-imposed input ceiling; markup longer
	// than this is split into fragments before synthesis.
	MaxChunkChars  int    `toml:"max_chunk_chars"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Mixing contains soundscape mixing settings.
type Mixing struct {
	BackgroundVolume      float64 `toml:"background_volume"`
	CreateSample          bool    `toml:"create_sample"`
	SampleDurationSeconds int     `toml:"sample_duration_seconds"`
	FFmpegBinary          string  `toml:"ffmpeg_binary"`
	FFprobeBinary         string  `toml:"ffprobe_binary"`
	TimeoutSeconds        int     `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for stillpoint.
//
// Configuration sections by subsystem:
//   - Paths: state snapshots, audio output, JSON exports, soundscapes, logs
//   - LLM: generative text collaborator connection settings
//   - Polly: speech synthesis provider settings
//   - Synthesis: chunking ceiling and concat tooling
//   - Mixing: background volume, preview samples, ffmpeg/ffprobe binaries
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	LLM       LLM       `toml:"llm"`
	Polly     Polly     `toml:"polly"`
	Synthesis Synthesis `toml:"synthesis"`
	Mixing    Mixing    `toml:"mixing"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/stillpoint/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stillpoint.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes to. The
// soundscape directory is created on a best-effort basis since it normally
// holds user-provided files.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.AudioDir, c.Paths.JSONDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.SoundscapeDir) != "" {
		_ = os.MkdirAll(c.Paths.SoundscapeDir, 0o755)
	}
	return nil
}

// ExpandPath resolves ~ and relative segments to an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
