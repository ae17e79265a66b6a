package synthesis

import (
	"fmt"
	"strings"
	"testing"
)

func testEngine(maxChars int) *Engine {
	return NewEngine(nil, Options{MaxChunkChars: maxChars})
}

func TestSplitMarkupShortInputIsUntouched(t *testing.T) {
	markup := "<speak><p>Welcome. Settle into your seat.</p></speak>"
	fragments, err := testEngine(2900).splitMarkup(markup)
	if err != nil {
		t.Fatalf("splitMarkup: %v", err)
	}
	if len(fragments) != 1 || fragments[0] != markup {
		t.Fatalf("short markup should pass through unchanged, got %v", fragments)
	}
}

func TestSplitMarkupPacksParagraphs(t *testing.T) {
	// Twelve paragraphs of ~750 chars each, ~9000 chars total.
	var b strings.Builder
	b.WriteString("<speak>")
	for i := 0; i < 12; i++ {
		b.WriteString(fmt.Sprintf("<p>Paragraph %02d. %s</p>", i, strings.Repeat("Breathe slowly and rest. ", 28)))
	}
	b.WriteString("</speak>")
	markup := b.String()

	engine := testEngine(2900)
	fragments, err := engine.splitMarkup(markup)
	if err != nil {
		t.Fatalf("splitMarkup: %v", err)
	}
	if len(fragments) < 4 {
		t.Fatalf("expected at least 4 fragments for %d chars, got %d", len(markup), len(fragments))
	}
	for i, fragment := range fragments {
		if len(fragment) > 2900 {
			t.Errorf("fragment %d is %d chars, over budget", i, len(fragment))
		}
		if !strings.HasPrefix(fragment, "<speak>") || !strings.HasSuffix(fragment, "</speak>") {
			t.Errorf("fragment %d is not self-contained: %q", i, fragment[:40])
		}
	}

	// Packing preserves order and drops no paragraph.
	joined := strings.Join(fragments, "")
	for i := 0; i < 12; i++ {
		marker := fmt.Sprintf("Paragraph %02d.", i)
		if !strings.Contains(joined, marker) {
			t.Errorf("paragraph %d lost during split", i)
		}
	}
	if strings.Index(joined, "Paragraph 00.") > strings.Index(joined, "Paragraph 11.") {
		t.Error("paragraph order not preserved")
	}
}

func TestSplitMarkupFallsBackToSentences(t *testing.T) {
	// No paragraph structure, just one long prosody-wrapped run of text.
	text := strings.Repeat("Notice the breath as it moves. Let each exhale soften you. ", 80)
	markup := "<speak><prosody rate=\"slow\">" + text + "</prosody></speak>"

	fragments, err := testEngine(1000).splitMarkup(markup)
	if err != nil {
		t.Fatalf("splitMarkup: %v", err)
	}
	if len(fragments) < 2 {
		t.Fatalf("expected sentence fallback to produce multiple fragments, got %d", len(fragments))
	}
	for i, fragment := range fragments {
		if len(fragment) > 1000 {
			t.Errorf("fragment %d is %d chars, over budget", i, len(fragment))
		}
		if strings.Contains(fragment, "<prosody") {
			t.Errorf("fragment %d kept markup after tag stripping", i)
		}
		if !strings.HasPrefix(fragment, "<speak>") || !strings.HasSuffix(fragment, "</speak>") {
			t.Errorf("fragment %d is not wrapped: %q", i, fragment[:30])
		}
	}
}

func TestSplitMarkupOversizedParagraphFallsBackToSentences(t *testing.T) {
	huge := strings.Repeat("Stay with this feeling for a moment. ", 60)
	markup := "<speak><p>Short opener.</p><p>" + huge + "</p></speak>"

	fragments, err := testEngine(800).splitMarkup(markup)
	if err != nil {
		t.Fatalf("splitMarkup: %v", err)
	}
	for i, fragment := range fragments {
		if len(fragment) > 800 {
			t.Errorf("fragment %d is %d chars, over budget", i, len(fragment))
		}
	}
	joined := strings.Join(fragments, " ")
	if !strings.Contains(joined, "Short opener.") {
		t.Error("small paragraph lost when sibling overflowed")
	}
	if !strings.Contains(joined, "Stay with this feeling") {
		t.Error("oversized paragraph content lost")
	}
}

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"One. Two. Three.", 3},
		{"Just one sentence", 1},
		{"Really?! Yes.", 2},
		{"", 0},
	}
	for _, tc := range cases {
		got := splitSentences(tc.in)
		if len(got) != tc.want {
			t.Errorf("splitSentences(%q) = %v, want %d parts", tc.in, got, tc.want)
		}
	}
}
