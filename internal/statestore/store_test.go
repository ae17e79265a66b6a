package statestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stillpoint/internal/pipeline"
	"stillpoint/internal/services"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestSaveNamesSortLexicallyInTimeOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	record := pipeline.NewRecord(pipeline.Request{DurationMinutes: 5})

	var names []string
	for i := 0; i < 3; i++ {
		name, err := store.Save(ctx, record, pipeline.StageScript)
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		names = append(names, name)
	}
	for i := 1; i < len(names); i++ {
		if names[i] <= names[i-1] {
			t.Fatalf("names not strictly increasing: %q then %q", names[i-1], names[i])
		}
	}
}

func TestSaveIsMonotonicWithFrozenClock(t *testing.T) {
	store := newTestStore(t)
	frozen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return frozen }

	ctx := context.Background()
	record := pipeline.NewRecord(pipeline.Request{})
	first, err := store.Save(ctx, record, pipeline.StageScript)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := store.Save(ctx, record, pipeline.StageScript)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if second <= first {
		t.Fatalf("frozen clock produced non-increasing names: %q, %q", first, second)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	record := pipeline.NewRecord(pipeline.Request{MeditationStyle: "loving-kindness", LanguageCode: "es-ES"})
	record.MarkupOutput = "<speak>hola</speak>"

	name, err := store.Save(ctx, record, pipeline.StageMarkupReview)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load(ctx, name)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Request.MeditationStyle != "loving-kindness" || loaded.MarkupOutput != record.MarkupOutput {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load(context.Background(), "state_script_20260101_000000.000000000.json")
	if !services.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestLoadCorruptedIsDecodeFailureNotAbsence(t *testing.T) {
	store := newTestStore(t)
	name := "state_script_20260101_000000.000000000.json"
	if err := os.WriteFile(filepath.Join(store.Dir(), name), []byte("{\"request\": tru"), 0o644); err != nil {
		t.Fatalf("write corrupted snapshot: %v", err)
	}
	_, err := store.Load(context.Background(), name)
	if err == nil {
		t.Fatal("expected decode failure")
	}
	if services.IsNotFound(err) {
		t.Fatalf("corrupted snapshot reported as absent: %v", err)
	}
}

func TestLatestPicksLexicallyLastForStage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := pipeline.NewRecord(pipeline.Request{MeditationTheme: "tide pools"})
	if _, err := store.Save(ctx, older, pipeline.StageScript); err != nil {
		t.Fatalf("Save: %v", err)
	}
	newer := pipeline.NewRecord(pipeline.Request{MeditationTheme: "mountain air"})
	if _, err := store.Save(ctx, newer, pipeline.StageScript); err != nil {
		t.Fatalf("Save: %v", err)
	}

	record, _, err := store.Latest(ctx, pipeline.StageScript)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if record.Request.MeditationTheme != "mountain air" {
		t.Fatalf("Latest returned stale snapshot: %+v", record.Request)
	}
}

func TestLatestAnyPrefersFurthestStageOverNewestWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	far := pipeline.NewRecord(pipeline.Request{MeditationTheme: "far"})
	if _, err := store.Save(ctx, far, pipeline.StageSpeechSynthesis); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// A later wall-clock write for an earlier stage must not win.
	early := pipeline.NewRecord(pipeline.Request{MeditationTheme: "early"})
	if _, err := store.Save(ctx, early, pipeline.StageScript); err != nil {
		t.Fatalf("Save: %v", err)
	}

	record, name, err := store.LatestAny(ctx)
	if err != nil {
		t.Fatalf("LatestAny: %v", err)
	}
	if !strings.Contains(name, pipeline.StageSpeechSynthesis) {
		t.Fatalf("LatestAny picked %q, want speech-synthesis snapshot", name)
	}
	if record.Request.MeditationTheme != "far" {
		t.Fatalf("LatestAny returned wrong record: %+v", record.Request)
	}
}

func TestLatestAnyEmptyStore(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.LatestAny(context.Background()); !services.IsNotFound(err) {
		t.Fatalf("expected not-found on empty store, got %v", err)
	}
}

func TestSaveRejectsUnknownStage(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Save(context.Background(), pipeline.NewRecord(pipeline.Request{}), "mastering"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestParseNameRoundTrip(t *testing.T) {
	store := newTestStore(t)
	name, err := store.Save(context.Background(), pipeline.NewRecord(pipeline.Request{}), pipeline.StageMarkupReview)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	stage, ts, err := ParseName(name)
	if err != nil {
		t.Fatalf("ParseName(%q): %v", name, err)
	}
	if stage != pipeline.StageMarkupReview {
		t.Fatalf("stage = %q, want %q", stage, pipeline.StageMarkupReview)
	}
	if ts.IsZero() || time.Since(ts) > time.Hour {
		t.Fatalf("implausible timestamp %v", ts)
	}
}

func TestParseNameRejectsMalformed(t *testing.T) {
	for _, name := range []string{
		"state_script.json",
		"notes.txt",
		"state_mastering_20240101_000000.000000000.json",
	} {
		if _, _, err := ParseName(name); err == nil {
			t.Fatalf("ParseName(%q) succeeded, want error", name)
		}
	}
}
