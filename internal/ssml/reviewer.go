package ssml

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"stillpoint/internal/logging"
	"stillpoint/internal/pipeline"
	"stillpoint/internal/services"
)

const reviewSystemPrompt = `You are an expert SSML reviewer specializing in meditation audio for AWS Polly Neural voices.

Priorities in order:
1. Technical correctness: fix unbalanced tags, wrong nesting, missing units on <break> durations, missing % on pitch/rate values
2. Neural voice compatibility: replace <emphasis>, auto-breath, and whispered effects with prosody and break alternatives
3. Meditation pacing: progressive slowing, 3-6s pauses after breathing instructions, lower pitch and softer volume in deeper sections

If the SSML is technically correct and well optimized, state that no improvements are needed. Otherwise return your analysis followed by the complete improved SSML, which must be valid XML.`

const maxReviewIterations = 3

var fencedSpeakPattern = regexp.MustCompile("(?s)```(?:xml)?\\s*(<speak>.*?</speak>)\\s*```")

// Reviewer is the markup-review stage handler.
type Reviewer struct {
	completer Completer
	logger    *slog.Logger
}

// NewReviewer builds the markup-review handler.
func NewReviewer(completer Completer, logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reviewer{completer: completer, logger: logger}
}

// Prepare requires markup from the generation stage.
func (r *Reviewer) Prepare(_ context.Context, record *pipeline.Record) error {
	if strings.TrimSpace(record.MarkupOutput) == "" {
		return services.Wrap(services.ErrValidation, pipeline.StageMarkupReview, "prepare", "no markup to review", nil)
	}
	return nil
}

// Execute runs a bounded review loop. Each candidate must parse as XML;
// invalid or unextractable candidates are discarded and the prior markup
// kept, so a misbehaving reviewer can never make the markup worse.
func (r *Reviewer) Execute(ctx context.Context, record *pipeline.Record) error {
	markup := record.MarkupOutput
	for iteration := 1; iteration <= maxReviewIterations; iteration++ {
		response, err := r.completer.Complete(ctx, reviewSystemPrompt, reviewPrompt(markup))
		if err != nil {
			r.logger.Warn("markup review unavailable, keeping current markup",
				logging.Int("iteration", iteration), logging.Error(err))
			break
		}
		if noImprovementsNeeded(response) {
			r.logger.Info("markup review clean", logging.Int("iteration", iteration))
			break
		}
		candidate := extractCandidate(response)
		if candidate == "" {
			r.logger.Warn("no markup in review response, keeping current markup",
				logging.Int("iteration", iteration))
			continue
		}
		if err := ValidateXML(candidate); err != nil {
			r.logger.Warn("review produced invalid markup, keeping current markup",
				logging.Int("iteration", iteration), logging.Error(err))
			continue
		}
		markup = candidate
	}
	record.MarkupOutput = markup
	return nil
}

func reviewPrompt(markup string) string {
	var b strings.Builder
	b.WriteString("Review and fix the following SSML for a meditation:\n\n```xml\n")
	b.WriteString(markup)
	b.WriteString("\n```\n\nFix ALL technical issues first, then Neural voice compatibility, then pacing. ")
	b.WriteString("If the SSML is already correct and well optimized, state that no improvements are needed. ")
	b.WriteString("Otherwise return the complete improved SSML as valid XML.")
	return b.String()
}

func noImprovementsNeeded(response string) bool {
	lower := strings.ToLower(response)
	return strings.Contains(lower, "no improvements are needed") ||
		strings.Contains(lower, "ssml looks good")
}

// extractCandidate prefers a fenced xml block, then any bare speak document.
func extractCandidate(response string) string {
	if match := fencedSpeakPattern.FindStringSubmatch(response); match != nil {
		return match[1]
	}
	return ExtractSpeak(response)
}

// ValidateXML checks that markup parses as a well-formed XML document.
func ValidateXML(markup string) error {
	decoder := xml.NewDecoder(strings.NewReader(markup))
	for {
		if _, err := decoder.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
