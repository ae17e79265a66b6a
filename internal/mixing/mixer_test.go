package mixing

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"stillpoint/internal/media/ffprobe"
	"stillpoint/internal/services"
)

func fixedRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

// swapHooks replaces the ffmpeg and ffprobe hooks for the test, returning the
// captured ffmpeg invocations. Durations maps file base names to probed
// durations in seconds.
func swapHooks(t *testing.T, durations map[string]float64, ffmpegErr error) *[][]string {
	t.Helper()
	invocations := &[][]string{}

	originalRun := runFFmpeg
	runFFmpeg = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		*invocations = append(*invocations, args)
		if ffmpegErr != nil {
			return []byte("boom"), ffmpegErr
		}
		return nil, os.WriteFile(args[len(args)-1], []byte("mix"), 0o644)
	}
	originalProbe := probeMedia
	probeMedia = func(_ context.Context, _ string, path string) (ffprobe.Result, error) {
		dur, ok := durations[filepath.Base(path)]
		if !ok {
			return ffprobe.Result{}, errors.New("undecodable input")
		}
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "audio", Channels: 2}},
			Format:  ffprobe.Format{Duration: strconv.FormatFloat(dur, 'f', 2, 64)},
		}, nil
	}
	t.Cleanup(func() {
		runFFmpeg = originalRun
		probeMedia = originalProbe
	})
	return invocations
}

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	narration := filepath.Join(dir, "meditation_20260801_120000.mp3")
	background := filepath.Join(dir, "ocean_waves.mp3")
	for _, path := range []string{narration, background} {
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
	}
	return narration, background
}

func filterArg(t *testing.T, args []string) string {
	t.Helper()
	for i, arg := range args {
		if arg == "-filter_complex" && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatalf("no filter_complex in %v", args)
	return ""
}

func TestMixLoopsShortBackground(t *testing.T) {
	narration, background := writeInputs(t)
	invocations := swapHooks(t, map[string]float64{
		filepath.Base(narration):  600,
		filepath.Base(background): 60,
	}, nil)

	mixer := New(Options{Rand: fixedRand()})
	mixed, _, err := mixer.Mix(context.Background(), MixRequest{
		NarrationPath:  narration,
		BackgroundPath: background,
		Volume:         0.3,
	})
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}

	filter := filterArg(t, (*invocations)[0])
	// 600s narration over 60s background needs 11 loop iterations.
	if !strings.Contains(filter, "aloop=loop=11:size=2646000") {
		t.Fatalf("unexpected loop filter: %s", filter)
	}
	if !strings.Contains(filter, "volume=0.30") {
		t.Fatalf("background volume not applied: %s", filter)
	}
	if !strings.Contains(filter, "amix=inputs=2:duration=first") {
		t.Fatalf("mix not bounded by narration duration: %s", filter)
	}
	if want := "meditation_20260801_120000_with_ocean_waves.mp3"; filepath.Base(mixed) != want {
		t.Fatalf("mixed name = %s, want %s", filepath.Base(mixed), want)
	}
}

func TestMixTrimsLongBackgroundFromRandomOffset(t *testing.T) {
	narration, background := writeInputs(t)
	invocations := swapHooks(t, map[string]float64{
		filepath.Base(narration):  300,
		filepath.Base(background): 3600,
	}, nil)

	mixer := New(Options{Rand: fixedRand()})
	if _, _, err := mixer.Mix(context.Background(), MixRequest{
		NarrationPath:  narration,
		BackgroundPath: background,
		Volume:         0.5,
	}); err != nil {
		t.Fatalf("Mix: %v", err)
	}

	filter := filterArg(t, (*invocations)[0])
	if !strings.Contains(filter, "atrim=start=") || !strings.Contains(filter, ":duration=300.00") {
		t.Fatalf("long background not trimmed to narration length: %s", filter)
	}
	if strings.Contains(filter, "aloop") {
		t.Fatalf("long background should not loop: %s", filter)
	}
}

func TestMixCreatesSample(t *testing.T) {
	narration, background := writeInputs(t)
	invocations := swapHooks(t, map[string]float64{
		filepath.Base(narration):  600,
		filepath.Base(background): 60,
	}, nil)

	mixer := New(Options{Rand: fixedRand()})
	mixed, sample, err := mixer.Mix(context.Background(), MixRequest{
		NarrationPath:  narration,
		BackgroundPath: background,
		Volume:         0.3,
		CreateSample:   true,
		SampleSeconds:  30,
	})
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if filepath.Base(sample) != "sample_"+filepath.Base(mixed) {
		t.Fatalf("sample name = %s", filepath.Base(sample))
	}
	if len(*invocations) != 2 {
		t.Fatalf("expected mix + sample invocations, got %d", len(*invocations))
	}
	sampleArgs := (*invocations)[1]
	joined := strings.Join(sampleArgs, " ")
	if !strings.Contains(joined, "-t 30") || !strings.Contains(joined, "-acodec copy") {
		t.Fatalf("sample not stream-copied at requested length: %v", sampleArgs)
	}
	// With 570s of slack the offset must skip the first 10 seconds.
	for i, arg := range sampleArgs {
		if arg == "-ss" {
			start, err := strconv.ParseFloat(sampleArgs[i+1], 64)
			if err != nil || start < 10 {
				t.Fatalf("sample offset %q should be >= 10s", sampleArgs[i+1])
			}
		}
	}
}

func TestMixRejectsVolumeOutOfRange(t *testing.T) {
	narration, background := writeInputs(t)
	swapHooks(t, nil, nil)
	mixer := New(Options{Rand: fixedRand()})
	if _, _, err := mixer.Mix(context.Background(), MixRequest{
		NarrationPath:  narration,
		BackgroundPath: background,
		Volume:         1.5,
	}); err == nil {
		t.Fatal("expected validation error for volume 1.5")
	}
}

func TestMixMissingInputIsNotFound(t *testing.T) {
	swapHooks(t, nil, nil)
	mixer := New(Options{Rand: fixedRand()})
	_, _, err := mixer.Mix(context.Background(), MixRequest{
		NarrationPath:  "/nonexistent/narration.mp3",
		BackgroundPath: "/nonexistent/bg.mp3",
		Volume:         0.3,
	})
	if !services.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestMixRejectsInputWithoutAudioStream(t *testing.T) {
	narration, background := writeInputs(t)
	swapHooks(t, nil, nil)
	probeMedia = func(_ context.Context, _ string, _ string) (ffprobe.Result, error) {
		// A container ffprobe can read but with no audio in it.
		return ffprobe.Result{Format: ffprobe.Format{Duration: "600.00"}}, nil
	}

	mixer := New(Options{Rand: fixedRand()})
	_, _, err := mixer.Mix(context.Background(), MixRequest{
		NarrationPath:  narration,
		BackgroundPath: background,
		Volume:         0.3,
	})
	if err == nil || !strings.Contains(err.Error(), "no audio stream") {
		t.Fatalf("expected no-audio-stream validation error, got %v", err)
	}
}

func TestMixFailureLeavesNoPartialOutput(t *testing.T) {
	narration, background := writeInputs(t)
	swapHooks(t, map[string]float64{
		filepath.Base(narration):  600,
		filepath.Base(background): 60,
	}, errors.New("exit status 1"))

	mixer := New(Options{Rand: fixedRand()})
	if _, _, err := mixer.Mix(context.Background(), MixRequest{
		NarrationPath:  narration,
		BackgroundPath: background,
		Volume:         0.3,
	}); err == nil {
		t.Fatal("expected mixing failure")
	}
	entries, err := os.ReadDir(filepath.Dir(narration))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), "_with_") {
			t.Fatalf("partial mixed file %s left behind", entry.Name())
		}
	}
}
