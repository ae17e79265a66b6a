package script

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stillpoint/internal/pipeline"
)

type fakeCompleter struct {
	completeOut string
	completeErr error
	jsonOuts    []string
	jsonErr     error
	jsonCalls   int
}

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.completeOut, f.completeErr
}

func (f *fakeCompleter) CompleteJSON(context.Context, string, string) (string, error) {
	if f.jsonErr != nil {
		return "", f.jsonErr
	}
	out := ""
	if f.jsonCalls < len(f.jsonOuts) {
		out = f.jsonOuts[f.jsonCalls]
	}
	f.jsonCalls++
	return out, nil
}

const sampleScript = `[INTRODUCTION]
Welcome to this practice. Find a comfortable position.

[BREATHING]
Inhale slowly through your nose. Exhale and let go.

[CLOSING]
Gently return your attention to the room.`

func TestExecuteUsesStructuredSectionAnalysis(t *testing.T) {
	completer := &fakeCompleter{
		completeOut: sampleScript,
		jsonOuts: []string{`[
			{"type": "Introduction", "content": "Welcome to this practice.", "function": "welcome"},
			{"type": "breathing", "content": "Inhale slowly.", "function": "breath"}
		]`},
	}
	generator := NewGenerator(completer, nil)
	record := pipeline.NewRecord(pipeline.Request{DurationMinutes: 10})
	if err := generator.Prepare(context.Background(), record); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := generator.Execute(context.Background(), record); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if record.Script == nil || record.Script.Content != sampleScript {
		t.Fatal("script content not recorded")
	}
	if len(record.Script.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %+v", record.Script.Sections)
	}
	if record.Script.Sections[0].Type != "introduction" {
		t.Fatalf("section type not normalized: %q", record.Script.Sections[0].Type)
	}
}

func TestExecuteReformatRetryThenMarkerFallback(t *testing.T) {
	completer := &fakeCompleter{
		completeOut: sampleScript,
		jsonOuts:    []string{"this is not json", "still not json"},
	}
	generator := NewGenerator(completer, nil)
	record := pipeline.NewRecord(pipeline.Request{DurationMinutes: 5})
	if err := generator.Execute(context.Background(), record); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if completer.jsonCalls != 2 {
		t.Fatalf("expected exactly one reformat retry, got %d analysis calls", completer.jsonCalls)
	}
	sections := record.Script.Sections
	if len(sections) != 3 {
		t.Fatalf("marker fallback should find 3 sections, got %+v", sections)
	}
	if sections[1].Type != "breathing" || !strings.Contains(sections[1].Content, "Inhale") {
		t.Fatalf("unexpected breathing section: %+v", sections[1])
	}
}

func TestExecuteFailsWhenGenerationFails(t *testing.T) {
	completer := &fakeCompleter{completeErr: errors.New("model offline")}
	generator := NewGenerator(completer, nil)
	record := pipeline.NewRecord(pipeline.Request{DurationMinutes: 5})
	if err := generator.Execute(context.Background(), record); err == nil {
		t.Fatal("expected error when script generation fails")
	}
}

func TestPrepareRejectsNonPositiveDuration(t *testing.T) {
	generator := NewGenerator(&fakeCompleter{}, nil)
	record := pipeline.NewRecord(pipeline.Request{DurationMinutes: 0})
	if err := generator.Prepare(context.Background(), record); err == nil {
		t.Fatal("expected validation error for zero duration")
	}
}

func TestExtractSectionsParagraphHeuristics(t *testing.T) {
	content := "Welcome to this moment of rest.\n\n" +
		"Inhale deeply, then exhale with a sigh.\n\n" +
		"Imagine a warm light above you.\n\n" +
		"Slowly open your eyes."
	sections := ExtractSections(content)
	if len(sections) != 4 {
		t.Fatalf("expected 4 sections, got %+v", sections)
	}
	want := []string{"introduction", "breathing", "visualization", "closing"}
	for i, sectionType := range want {
		if sections[i].Type != sectionType {
			t.Errorf("section %d type = %q, want %q", i, sections[i].Type, sectionType)
		}
	}
}
