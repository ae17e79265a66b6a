package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"stillpoint/internal/logging"
	"stillpoint/internal/services"
)

const defaultMaxChunkChars = 2900

// SpeechClient renders one self-contained SSML document into an audio file.
type SpeechClient interface {
	SynthesizeSSML(ctx context.Context, markup, voiceID, languageCode, outPath string) error
	FileExtension() string
}

// Options configures the synthesis engine.
type Options struct {
	OutputDir     string
	MaxChunkChars int
	FFmpegBinary  string
	Timeout       time.Duration
	Logger        *slog.Logger
}

// Engine turns arbitrarily long SSML into a single narration file, splitting
// it into provider-sized fragments and concatenating the results losslessly.
type Engine struct {
	client        SpeechClient
	outputDir     string
	maxChunkChars int
	ffmpegBinary  string
	timeout       time.Duration
	logger        *slog.Logger
}

// Test hook for the ffmpeg concat invocation.
var runFFmpeg = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.CombinedOutput()
}

// NewEngine builds a synthesis engine over the given speech client.
func NewEngine(client SpeechClient, opts Options) *Engine {
	maxChars := opts.MaxChunkChars
	if maxChars <= 0 {
		maxChars = defaultMaxChunkChars
	}
	binary := strings.TrimSpace(opts.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		client:        client,
		outputDir:     opts.OutputDir,
		maxChunkChars: maxChars,
		ffmpegBinary:  binary,
		timeout:       opts.Timeout,
		logger:        logger,
	}
}

// Synthesize renders markup with the given voice and returns the path of the
// finished narration file. Markup longer than the chunk budget is split into
// fragments that are synthesized strictly in order; any fragment failure
// aborts the whole operation and removes every fragment already written.
func (e *Engine) Synthesize(ctx context.Context, markup, voiceID, languageCode string) (string, error) {
	fragments, err := e.splitMarkup(markup)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "", "split markup", "", err)
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}

	ext := e.client.FileExtension()
	base := fmt.Sprintf("meditation_%s", time.Now().UTC().Format("20060102_150405"))
	finalPath := filepath.Join(e.outputDir, base+ext)

	if len(fragments) == 1 {
		if err := e.synthesizeFragment(ctx, fragments[0], voiceID, languageCode, finalPath); err != nil {
			return "", err
		}
		return finalPath, nil
	}

	e.logger.Info("markup exceeds chunk budget, synthesizing fragments",
		logging.Int("fragments", len(fragments)),
		logging.Int("markup_chars", len(markup)))

	chunkPaths := make([]string, 0, len(fragments))
	cleanup := func() {
		for _, path := range chunkPaths {
			os.Remove(path)
		}
	}
	for i, fragment := range fragments {
		chunkPath := filepath.Join(e.outputDir, fmt.Sprintf("%s_chunk_%02d%s", base, i, ext))
		if err := e.synthesizeFragment(ctx, fragment, voiceID, languageCode, chunkPath); err != nil {
			cleanup()
			return "", err
		}
		// The next fragment is not requested until this one is on disk.
		if _, err := os.Stat(chunkPath); err != nil {
			cleanup()
			return "", services.Wrap(services.ErrExternalTool, "", "synthesize fragment",
				fmt.Sprintf("fragment %d missing after synthesis", i), err)
		}
		chunkPaths = append(chunkPaths, chunkPath)
	}

	if err := e.concat(ctx, chunkPaths, finalPath); err != nil {
		cleanup()
		os.Remove(finalPath)
		return "", err
	}
	cleanup()
	return finalPath, nil
}

func (e *Engine) synthesizeFragment(ctx context.Context, fragment, voiceID, languageCode, outPath string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.client.SynthesizeSSML(ctx, fragment, voiceID, languageCode, outPath)
}

// concat joins fragment files losslessly with the ffmpeg concat demuxer.
func (e *Engine) concat(ctx context.Context, inputs []string, outPath string) error {
	listFile, err := os.CreateTemp(e.outputDir, "concat-*.txt")
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	listPath := listFile.Name()
	defer os.Remove(listPath)

	var list strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			listFile.Close()
			return fmt.Errorf("resolve fragment path: %w", err)
		}
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if _, err := listFile.WriteString(list.String()); err != nil {
		listFile.Close()
		return fmt.Errorf("write concat list: %w", err)
	}
	if err := listFile.Close(); err != nil {
		return fmt.Errorf("flush concat list: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", outPath}
	if output, err := runFFmpeg(ctx, e.ffmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "", "concat fragments",
			strings.TrimSpace(string(output)), err)
	}
	return nil
}
