package synthesis

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	speakOpen  = "<speak>"
	speakClose = "</speak>"

	// Headroom reserved when packing paragraph fragments, covering the
	// closing speak tag.
	paragraphHeadroom = 10
	// Headroom reserved when repacking plain sentences, covering the speak
	// wrapper added afterwards.
	sentenceHeadroom = 50
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// SplitMarkup splits SSML into self-contained fragments, each wrapped in its
// own speak root and no longer than maxChars once serialized. Markup already
// within the budget is returned as a single fragment untouched.
func (e *Engine) splitMarkup(markup string) ([]string, error) {
	markup = strings.TrimSpace(markup)
	if markup == "" {
		return nil, fmt.Errorf("split markup: empty markup")
	}
	if len(markup) <= e.maxChunkChars {
		return []string{markup}, nil
	}

	paragraphs, err := extractParagraphs(markup)
	if err != nil || len(paragraphs) == 0 {
		// No usable paragraph structure; fall back to sentence packing over
		// the stripped text.
		return packSentences(stripTags(innerMarkup(markup)), e.maxChunkChars), nil
	}

	limit := e.maxChunkChars - paragraphHeadroom
	var fragments []string
	current := speakOpen
	flush := func() {
		if current != speakOpen {
			fragments = append(fragments, current+speakClose)
			current = speakOpen
		}
	}
	for _, paragraph := range paragraphs {
		if len(speakOpen)+len(paragraph) > limit {
			// A single oversized paragraph is repacked sentence by sentence.
			flush()
			fragments = append(fragments, packSentences(stripTags(paragraph), e.maxChunkChars)...)
			continue
		}
		if len(current)+len(paragraph) > limit {
			flush()
		}
		current += paragraph
	}
	flush()
	return fragments, nil
}

// extractParagraphs returns the raw serialized <p> elements that sit directly
// under the speak root, in document order.
func extractParagraphs(markup string) ([]string, error) {
	decoder := xml.NewDecoder(strings.NewReader(markup))
	var (
		paragraphs []string
		depth      int
		pStart     int64 = -1
		pDepth     int
	)
	offset := decoder.InputOffset()
	for {
		tokenStart := offset
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse markup: %w", err)
		}
		offset = decoder.InputOffset()
		switch t := token.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local == "p" && pStart < 0 && depth == 2 {
				pStart = tokenStart
				pDepth = depth
			}
		case xml.EndElement:
			if t.Name.Local == "p" && pStart >= 0 && depth == pDepth {
				paragraphs = append(paragraphs, markup[pStart:offset])
				pStart = -1
			}
			depth--
		}
	}
	return paragraphs, nil
}

// packSentences splits plain text into sentences and repacks them into speak
// fragments under the character budget.
func packSentences(text string, maxChars int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	limit := maxChars - sentenceHeadroom
	var fragments []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			fragments = append(fragments, speakOpen+current.String()+speakClose)
			current.Reset()
		}
	}
	for _, sentence := range sentences {
		needed := len(sentence)
		if current.Len() > 0 {
			needed++ // joining space
		}
		if current.Len()+needed > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()
	return fragments
}

// splitSentences breaks text on terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '.' && text[i] != '!' && text[i] != '?' {
			continue
		}
		// consume a run of terminal punctuation
		end := i
		for end+1 < len(text) && (text[end+1] == '.' || text[end+1] == '!' || text[end+1] == '?') {
			end++
		}
		if end+1 >= len(text) || text[end+1] == ' ' {
			sentence := strings.TrimSpace(text[start : end+1])
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = end + 1
		}
		i = end
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func stripTags(markup string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(markup, " "))
}

// innerMarkup drops the outer speak wrapper when present.
func innerMarkup(markup string) string {
	trimmed := strings.TrimSpace(markup)
	if strings.HasPrefix(trimmed, speakOpen) && strings.HasSuffix(trimmed, speakClose) {
		return trimmed[len(speakOpen) : len(trimmed)-len(speakClose)]
	}
	return trimmed
}
