package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"stillpoint/internal/config"
	"stillpoint/internal/deps"
	"stillpoint/internal/logging"
	"stillpoint/internal/mixing"
	"stillpoint/internal/pipeline"
	"stillpoint/internal/profiling"
	"stillpoint/internal/runs"
	"stillpoint/internal/script"
	"stillpoint/internal/services/llm"
	"stillpoint/internal/services/polly"
	"stillpoint/internal/ssml"
	"stillpoint/internal/statestore"
	"stillpoint/internal/synthesis"
)

// runtime bundles the fully wired pipeline and its supporting stores for one
// CLI invocation. Close releases the run lock and the ledger database.
type runtime struct {
	cfg    *config.Config
	engine *pipeline.Engine
	store  *statestore.Store
	ledger *runs.Store
	lock   *flock.Flock
}

func (r *runtime) Close() {
	if r.ledger != nil {
		_ = r.ledger.Close()
	}
	if r.lock != nil {
		_ = r.lock.Unlock()
	}
}

// buildRuntime constructs the engine with every stage handler registered.
// Only one invocation may drive the pipeline against a state directory at a
// time; the advisory lock enforces that across processes.
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	if err := deps.Verify(cfg); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(cfg.Paths.StateDir, "stillpoint.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another stillpoint run is already using %s", cfg.Paths.StateDir)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "stillpoint.log")},
	})
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := statestore.New(cfg.Paths.StateDir)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	completer := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	speech, err := polly.New(ctx, polly.Config{
		Region:         cfg.Polly.Region,
		Profile:        cfg.Polly.Profile,
		Engine:         cfg.Polly.Engine,
		OutputFormat:   cfg.Polly.OutputFormat,
		TimeoutSeconds: cfg.Polly.TimeoutSeconds,
	})
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	synthEngine := synthesis.NewEngine(speech, synthesis.Options{
		OutputDir:     cfg.Paths.AudioDir,
		MaxChunkChars: cfg.Synthesis.MaxChunkChars,
		FFmpegBinary:  cfg.Synthesis.FFmpegBinary,
		Timeout:       time.Duration(cfg.Synthesis.TimeoutSeconds) * time.Second,
		Logger:        logger,
	})

	mixer := mixing.New(mixing.Options{
		FFmpegBinary:  cfg.Mixing.FFmpegBinary,
		FFprobeBinary: cfg.Mixing.FFprobeBinary,
		Timeout:       time.Duration(cfg.Mixing.TimeoutSeconds) * time.Second,
		Logger:        logger,
	})

	engine := pipeline.NewEngine(store, logger)
	handlers := map[string]pipeline.Handler{
		pipeline.StageScript:           script.NewGenerator(completer, logger),
		pipeline.StageProsodyAnalysis:  profiling.NewAnalyzer(completer, logger),
		pipeline.StageProsodyProfile:   profiling.NewProfiler(completer, logger),
		pipeline.StageMarkupGeneration: ssml.NewGenerator(completer, logger),
		pipeline.StageMarkupReview:     ssml.NewReviewer(completer, logger),
		pipeline.StageSpeechSynthesis:  synthesis.NewStage(synthEngine),
		pipeline.StageAudioMixing: mixing.NewStage(mixer, mixing.StageOptions{
			SoundscapeDir: cfg.Paths.SoundscapeDir,
			Volume:        cfg.Mixing.BackgroundVolume,
			CreateSample:  cfg.Mixing.CreateSample,
			SampleSeconds: cfg.Mixing.SampleDurationSeconds,
			JSONDir:       cfg.Paths.JSONDir,
		}),
	}
	for _, stage := range pipeline.Order {
		if err := engine.Register(stage, handlers[stage]); err != nil {
			_ = lock.Unlock()
			return nil, err
		}
	}

	ledger, err := runs.Open(filepath.Join(cfg.Paths.StateDir, "runs.db"))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	engine.SetLedger(ledger)

	return &runtime{cfg: cfg, engine: engine, store: store, ledger: ledger, lock: lock}, nil
}
