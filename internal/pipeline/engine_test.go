package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"stillpoint/internal/pipeline"
	"stillpoint/internal/services"
)

type memoryStore struct {
	mu        sync.Mutex
	snapshots []memorySnapshot
	saveErr   error
}

type memorySnapshot struct {
	id     string
	stage  string
	record pipeline.Record
}

func (s *memoryStore) Save(_ context.Context, record *pipeline.Record, stage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	id := fmt.Sprintf("state_%s_%04d.json", stage, len(s.snapshots))
	s.snapshots = append(s.snapshots, memorySnapshot{id: id, stage: stage, record: *record})
	return id, nil
}

func (s *memoryStore) Load(_ context.Context, snapshotID string) (*pipeline.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.snapshots {
		if snap.id == snapshotID {
			record := snap.record
			return &record, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *memoryStore) Latest(_ context.Context, stage string) (*pipeline.Record, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].stage == stage {
			record := s.snapshots[i].record
			return &record, s.snapshots[i].id, nil
		}
	}
	return nil, "", services.ErrNotFound
}

func (s *memoryStore) LatestAny(_ context.Context) (*pipeline.Record, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return nil, "", services.ErrNotFound
	}
	snap := s.snapshots[len(s.snapshots)-1]
	record := snap.record
	return &record, snap.id, nil
}

func (s *memoryStore) stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap.stage)
	}
	return out
}

type stubStage struct {
	name    string
	execErr error
	panics  bool
	calls   *[]string
}

func (s *stubStage) Prepare(context.Context, *pipeline.Record) error { return nil }

func (s *stubStage) Execute(_ context.Context, record *pipeline.Record) error {
	*s.calls = append(*s.calls, s.name)
	if s.panics {
		panic("collaborator went sideways")
	}
	if s.execErr != nil {
		return s.execErr
	}
	if s.name == pipeline.StageScript {
		record.Script = &pipeline.Script{Content: "breathe in, breathe out"}
	}
	return nil
}

func newTestEngine(t *testing.T, store *memoryStore, failures map[string]error, panics map[string]bool) (*pipeline.Engine, *[]string) {
	t.Helper()
	engine := pipeline.NewEngine(store, nil)
	calls := &[]string{}
	for _, name := range pipeline.Order {
		stage := &stubStage{name: name, calls: calls}
		if failures != nil {
			stage.execErr = failures[name]
		}
		if panics != nil {
			stage.panics = panics[name]
		}
		if err := engine.Register(name, stage); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	return engine, calls
}

func TestRunExecutesAllStagesInOrder(t *testing.T) {
	store := &memoryStore{}
	engine, calls := newTestEngine(t, store, nil, nil)

	record, err := engine.Run(context.Background(), pipeline.Request{
		EmotionalState:  "anxious",
		MeditationStyle: "mindfulness",
		DurationMinutes: 10,
		LanguageCode:    "en-US",
		VoiceType:       "male",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Failed() {
		t.Fatalf("unexpected record error: %q", record.Error)
	}
	if got, want := strings.Join(*calls, ","), strings.Join(pipeline.Order, ","); got != want {
		t.Fatalf("stage order = %s, want %s", got, want)
	}
	if record.CurrentStep != pipeline.StageAudioMixing {
		t.Fatalf("current step = %q, want %q", record.CurrentStep, pipeline.StageAudioMixing)
	}
	if got := store.stages(); len(got) != len(pipeline.Order) {
		t.Fatalf("expected %d snapshots, got %d (%v)", len(pipeline.Order), len(got), got)
	}
}

func TestRunRangeHaltsOnStageError(t *testing.T) {
	store := &memoryStore{}
	stageErr := services.Wrap(services.ErrExternalTool, pipeline.StageSpeechSynthesis, "synthesize", "polly unavailable", nil)
	engine, calls := newTestEngine(t, store, map[string]error{pipeline.StageSpeechSynthesis: stageErr}, nil)

	record, err := engine.Run(context.Background(), pipeline.Request{DurationMinutes: 5})
	if err == nil {
		t.Fatal("expected error from failing stage")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error class lost: %v", err)
	}
	if !record.Failed() {
		t.Fatal("record should carry terminal error")
	}
	if strings.Contains(record.Error, services.ErrExternalTool.Error()) {
		t.Fatalf("record error should strip marker prefix, got %q", record.Error)
	}

	// No stage after the failure runs, and the failing record is persisted.
	for _, name := range *calls {
		if name == pipeline.StageAudioMixing {
			t.Fatal("audio-mixing ran after synthesis failure")
		}
	}
	stages := store.stages()
	if len(stages) == 0 || stages[len(stages)-1] != pipeline.StageSpeechSynthesis {
		t.Fatalf("failing snapshot not persisted last: %v", stages)
	}
}

func TestRunRangeRecoversStagePanic(t *testing.T) {
	store := &memoryStore{}
	engine, _ := newTestEngine(t, store, nil, map[string]bool{pipeline.StageMarkupReview: true})

	record, err := engine.Run(context.Background(), pipeline.Request{DurationMinutes: 5})
	if err == nil {
		t.Fatal("expected error from panicking stage")
	}
	if !strings.Contains(record.Error, "stage panic") {
		t.Fatalf("panic not converted to record error: %q", record.Error)
	}
}

func TestRunRangeResumesFromPrecedingSnapshot(t *testing.T) {
	store := &memoryStore{}
	engine, calls := newTestEngine(t, store, nil, nil)

	seeded := pipeline.NewRecord(pipeline.Request{MeditationStyle: "body-scan", DurationMinutes: 15})
	seeded.MarkupOutput = "<speak>rest</speak>"
	if _, err := store.Save(context.Background(), seeded, pipeline.StageMarkupReview); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	record, err := engine.RunRange(context.Background(), pipeline.StageSpeechSynthesis, pipeline.StageAudioMixing, nil)
	if err != nil {
		t.Fatalf("RunRange: %v", err)
	}
	if record.Request.MeditationStyle != "body-scan" {
		t.Fatalf("resumed record lost request: %+v", record.Request)
	}
	if got, want := strings.Join(*calls, ","), pipeline.StageSpeechSynthesis+","+pipeline.StageAudioMixing; got != want {
		t.Fatalf("resumed range ran %s, want %s", got, want)
	}
}

func TestRunRangeClearsStaleErrorOnResume(t *testing.T) {
	store := &memoryStore{}
	engine, _ := newTestEngine(t, store, nil, nil)

	failed := pipeline.NewRecord(pipeline.Request{DurationMinutes: 5})
	failed.SetFailed("previous run died")
	if _, err := store.Save(context.Background(), failed, pipeline.StageMarkupReview); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	record, err := engine.RunRange(context.Background(), pipeline.StageSpeechSynthesis, pipeline.StageSpeechSynthesis, nil)
	if err != nil {
		t.Fatalf("RunRange: %v", err)
	}
	if record.Failed() {
		t.Fatalf("stale error survived resume: %q", record.Error)
	}
}

func TestRunRangeWithoutSnapshotStartsFresh(t *testing.T) {
	store := &memoryStore{}
	engine, calls := newTestEngine(t, store, nil, nil)

	record, err := engine.RunRange(context.Background(), pipeline.StageProsodyAnalysis, pipeline.StageProsodyProfile, nil)
	if err != nil {
		t.Fatalf("RunRange: %v", err)
	}
	if record.Request.DurationMinutes != 0 {
		t.Fatalf("fresh record should carry zero request, got %+v", record.Request)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected 2 stages, ran %v", *calls)
	}
}

func TestRunRangeRejectsInvertedRange(t *testing.T) {
	engine, _ := newTestEngine(t, &memoryStore{}, nil, nil)
	if _, err := engine.RunRange(context.Background(), pipeline.StageAudioMixing, pipeline.StageScript, nil); err == nil {
		t.Fatal("expected error for inverted stage range")
	}
}

func TestRunRangeRejectsUnknownStage(t *testing.T) {
	engine, _ := newTestEngine(t, &memoryStore{}, nil, nil)
	if _, err := engine.RunRange(context.Background(), "mastering", pipeline.StageAudioMixing, nil); err == nil {
		t.Fatal("expected error for unknown stage name")
	}
}

type recordingLedger struct {
	begun    int
	finished int
	lastErr  string
}

func (l *recordingLedger) Begin(context.Context, string, pipeline.Request) error {
	l.begun++
	return nil
}

func (l *recordingLedger) Finish(_ context.Context, _ string, record *pipeline.Record) error {
	l.finished++
	l.lastErr = record.Error
	return nil
}

func TestLedgerSeesRunLifecycle(t *testing.T) {
	store := &memoryStore{}
	stageErr := errors.New("flat synth")
	engine, _ := newTestEngine(t, store, map[string]error{pipeline.StageScript: stageErr}, nil)
	ledger := &recordingLedger{}
	engine.SetLedger(ledger)

	if _, err := engine.Run(context.Background(), pipeline.Request{}); err == nil {
		t.Fatal("expected run failure")
	}
	if ledger.begun != 1 || ledger.finished != 1 {
		t.Fatalf("ledger calls begin=%d finish=%d", ledger.begun, ledger.finished)
	}
	if ledger.lastErr == "" {
		t.Fatal("ledger should observe terminal error")
	}
}
