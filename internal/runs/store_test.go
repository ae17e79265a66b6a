package runs

import (
	"context"
	"path/filepath"
	"testing"

	"stillpoint/internal/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBeginAndFinishRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	req := pipeline.Request{
		EmotionalState:  "anxious",
		MeditationStyle: "mindfulness",
		DurationMinutes: 10,
		LanguageCode:    "en-US",
		VoiceType:       "female",
	}
	if err := store.Begin(ctx, "run-1", req); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	record := pipeline.NewRecord(req)
	record.AudioOutput = &pipeline.AudioOutput{
		NarrationFile: "/audio/meditation.mp3",
		MixedFile:     "/audio/meditation_with_ocean.mp3",
		Status:        pipeline.AudioStatusCompleted,
	}
	if err := store.Finish(ctx, "run-1", record); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	listed, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 run, got %d", len(listed))
	}
	run := listed[0]
	if run.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", run.Status)
	}
	if run.MixedFile != "/audio/meditation_with_ocean.mp3" {
		t.Fatalf("mixed file not recorded: %q", run.MixedFile)
	}
	if run.FinishedAt == nil {
		t.Fatal("finished_at not set")
	}
}

func TestFinishFailedRunKeepsError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Begin(ctx, "run-2", pipeline.Request{DurationMinutes: 5}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	record := pipeline.NewRecord(pipeline.Request{})
	record.SetFailed("speech-synthesis: polly unavailable")
	if err := store.Finish(ctx, "run-2", record); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	listed, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if listed[0].Status != StatusFailed || listed[0].ErrorMessage == "" {
		t.Fatalf("failed run not recorded: %+v", listed[0])
	}
}

func TestFinishUnknownRunIsNoOp(t *testing.T) {
	store := openTestStore(t)
	record := pipeline.NewRecord(pipeline.Request{})
	if err := store.Finish(context.Background(), "never-started", record); err != nil {
		t.Fatalf("Finish of unknown run should not error: %v", err)
	}
}

func TestBeginRequiresRunID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Begin(context.Background(), " ", pipeline.Request{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}
