package mixing

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"stillpoint/internal/logging"
	"stillpoint/internal/media/ffprobe"
	"stillpoint/internal/services"
)

const mixSampleRate = 44100

// Options configures the mixer.
type Options struct {
	FFmpegBinary  string
	FFprobeBinary string
	Timeout       time.Duration
	Logger        *slog.Logger
	Rand          *rand.Rand
}

// MixRequest describes one mixing operation.
type MixRequest struct {
	NarrationPath  string
	BackgroundPath string
	// Volume scales the background track only, 0..1.
	Volume        float64
	CreateSample  bool
	SampleSeconds int
}

// Mixer layers a narration track over looped or trimmed background audio.
type Mixer struct {
	ffmpegBinary  string
	ffprobeBinary string
	timeout       time.Duration
	logger        *slog.Logger
	rng           *rand.Rand
}

// Test hooks.
var (
	runFFmpeg = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, binary, args...)
		return cmd.CombinedOutput()
	}
	probeMedia = ffprobe.Inspect
)

// New builds a mixer. An explicit Rand makes offset selection deterministic;
// by default offsets are drawn from a time-seeded source.
func New(opts Options) *Mixer {
	ffmpegBin := strings.TrimSpace(opts.FFmpegBinary)
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	ffprobeBin := strings.TrimSpace(opts.FFprobeBinary)
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	return &Mixer{
		ffmpegBinary:  ffmpegBin,
		ffprobeBinary: ffprobeBin,
		timeout:       opts.Timeout,
		logger:        logger,
		rng:           rng,
	}
}

// Mix layers the narration over the background and returns the mixed file
// path plus an optional sample path. The result is exactly as long as the
// narration; the background is trimmed from a random offset when longer and
// whole-loop repeated when shorter, and only the background is attenuated.
// On any failure no partial output file is left in place.
func (m *Mixer) Mix(ctx context.Context, req MixRequest) (string, string, error) {
	if req.Volume < 0 || req.Volume > 1 {
		return "", "", services.Wrap(services.ErrValidation, "", "mix audio",
			fmt.Sprintf("background volume %.2f out of range", req.Volume), nil)
	}
	for _, path := range []string{req.NarrationPath, req.BackgroundPath} {
		if _, err := os.Stat(path); err != nil {
			return "", "", services.Wrap(services.ErrNotFound, "", "mix audio", path, err)
		}
	}

	narrDur, err := m.duration(ctx, req.NarrationPath)
	if err != nil {
		return "", "", err
	}
	bgDur, err := m.duration(ctx, req.BackgroundPath)
	if err != nil {
		return "", "", err
	}

	var filter string
	if bgDur >= narrDur {
		maxStart := bgDur - narrDur
		start := m.rng.Float64() * maxStart
		filter = fmt.Sprintf(
			"[1:a]atrim=start=%.2f:duration=%.2f,asetpts=PTS-STARTPTS,volume=%.2f[bg];[0:a][bg]amix=inputs=2:duration=first[aout]",
			start, narrDur, req.Volume)
	} else {
		loops := int(narrDur/bgDur) + 1
		size := int(bgDur * mixSampleRate)
		filter = fmt.Sprintf(
			"[1:a]aloop=loop=%d:size=%d,atrim=duration=%.2f,asetpts=PTS-STARTPTS,volume=%.2f[bg];[0:a][bg]amix=inputs=2:duration=first[aout]",
			loops, size, narrDur, req.Volume)
	}

	mixedPath := mixedName(req.NarrationPath, req.BackgroundPath)
	args := []string{
		"-y",
		"-i", req.NarrationPath,
		"-i", req.BackgroundPath,
		"-filter_complex", filter,
		"-map", "[aout]",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		mixedPath,
	}
	if err := m.run(ctx, args); err != nil {
		os.Remove(mixedPath)
		return "", "", services.Wrap(services.ErrExternalTool, "", "mix audio", "", err)
	}
	m.logger.Info("mixed narration with background",
		logging.String("mixed_file", mixedPath),
		logging.Float64("narration_seconds", narrDur))

	if !req.CreateSample {
		return mixedPath, "", nil
	}
	samplePath, err := m.extractSample(ctx, mixedPath, narrDur, req.SampleSeconds)
	if err != nil {
		return "", "", err
	}
	return mixedPath, samplePath, nil
}

// extractSample stream-copies a short preview out of the mixed file. The
// start offset skips the first 10 seconds when enough material exists.
func (m *Mixer) extractSample(ctx context.Context, mixedPath string, totalDur float64, sampleSeconds int) (string, error) {
	if sampleSeconds <= 0 {
		sampleSeconds = 30
	}
	maxStart := totalDur - float64(sampleSeconds)
	start := 0.0
	if maxStart > 10 {
		start = 10 + m.rng.Float64()*(maxStart-10)
	}

	samplePath := filepath.Join(filepath.Dir(mixedPath), "sample_"+filepath.Base(mixedPath))
	args := []string{
		"-y",
		"-i", mixedPath,
		"-ss", fmt.Sprintf("%.2f", start),
		"-t", fmt.Sprintf("%d", sampleSeconds),
		"-acodec", "copy",
		samplePath,
	}
	if err := m.run(ctx, args); err != nil {
		os.Remove(samplePath)
		return "", services.Wrap(services.ErrExternalTool, "", "extract sample", "", err)
	}
	return samplePath, nil
}

func (m *Mixer) duration(ctx context.Context, path string) (float64, error) {
	result, err := probeMedia(ctx, m.ffprobeBinary, path)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "", "probe audio", path, err)
	}
	if result.AudioStreamCount() == 0 {
		return 0, services.Wrap(services.ErrValidation, "", "probe audio",
			fmt.Sprintf("%s contains no audio stream", path), nil)
	}
	duration := result.DurationSeconds()
	if duration <= 0 {
		return 0, services.Wrap(services.ErrExternalTool, "", "probe audio",
			fmt.Sprintf("%s reports no duration", path), nil)
	}
	return duration, nil
}

func (m *Mixer) run(ctx context.Context, args []string) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	if output, err := runFFmpeg(ctx, m.ffmpegBinary, args...); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func mixedName(narrationPath, backgroundPath string) string {
	narrBase := strings.TrimSuffix(filepath.Base(narrationPath), filepath.Ext(narrationPath))
	bgBase := strings.TrimSuffix(filepath.Base(backgroundPath), filepath.Ext(backgroundPath))
	return filepath.Join(filepath.Dir(narrationPath), narrBase+"_with_"+bgBase+".mp3")
}
