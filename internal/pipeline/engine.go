package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"stillpoint/internal/logging"
	"stillpoint/internal/services"
)

// Handler is the stage contract the engine drives. Prepare validates that the
// record carries what the stage needs; Execute performs the work and mutates
// only the stage's own fields.
type Handler interface {
	Prepare(context.Context, *Record) error
	Execute(context.Context, *Record) error
}

// Store persists record snapshots between stages.
type Store interface {
	Save(ctx context.Context, record *Record, stage string) (string, error)
	Load(ctx context.Context, snapshotID string) (*Record, error)
	Latest(ctx context.Context, stage string) (*Record, string, error)
	LatestAny(ctx context.Context) (*Record, string, error)
}

// Ledger records run lifecycle events. Implementations must tolerate being
// called for runs they have never seen.
type Ledger interface {
	Begin(ctx context.Context, runID string, req Request) error
	Finish(ctx context.Context, runID string, record *Record) error
}

// Engine executes stages in declared order against a shared record.
type Engine struct {
	store    Store
	handlers map[string]Handler
	logger   *slog.Logger
	ledger   Ledger
}

// NewEngine builds an engine over the given snapshot store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:    store,
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register installs the handler for a stage name.
func (e *Engine) Register(name string, handler Handler) error {
	if _, err := Index(name); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("nil handler for stage %q", name)
	}
	e.handlers[name] = handler
	return nil
}

// SetLedger attaches an optional run ledger.
func (e *Engine) SetLedger(ledger Ledger) {
	e.ledger = ledger
}

// Run executes the full pipeline for a fresh request.
func (e *Engine) Run(ctx context.Context, req Request) (*Record, error) {
	return e.RunRange(ctx, Order[0], Order[len(Order)-1], NewRecord(req))
}

// RunRange executes stages start through end inclusive. A nil seed resumes
// from the latest snapshot of the stage preceding start; with no such snapshot
// the range starts from an empty record. The record is persisted after every
// stage, including a failing one, and execution halts at the first stage that
// leaves a terminal error on the record.
func (e *Engine) RunRange(ctx context.Context, start, end string, seed *Record) (*Record, error) {
	startIdx, err := Index(start)
	if err != nil {
		return nil, err
	}
	endIdx, err := Index(end)
	if err != nil {
		return nil, err
	}
	if startIdx > endIdx {
		return nil, fmt.Errorf("stage %q comes after %q", start, end)
	}

	record, err := e.seedRecord(ctx, start, seed)
	if err != nil {
		return nil, err
	}
	record.Error = ""

	runID := uuid.NewString()
	runCtx := logging.WithRunID(ctx, runID)
	if e.ledger != nil {
		if err := e.ledger.Begin(runCtx, runID, record.Request); err != nil {
			e.logger.Warn("run ledger begin failed", logging.Error(err))
		}
	}

	for i := startIdx; i <= endIdx; i++ {
		name := Order[i]
		stageCtx := logging.WithStage(runCtx, name)
		stageLogger := logging.WithContext(stageCtx, e.logger)

		handler, ok := e.handlers[name]
		if !ok {
			record.SetFailed(fmt.Sprintf("no handler registered for stage %s", name))
			e.persistFailure(stageCtx, stageLogger, record, name)
			e.finishRun(runCtx, runID, record)
			return record, fmt.Errorf("no handler registered for stage %q", name)
		}

		record.CurrentStep = name
		stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

		if stageErr := e.runStage(stageCtx, handler, record); stageErr != nil {
			record.SetFailed(services.Details(stageErr))
			e.persistFailure(stageCtx, stageLogger, record, name)
			stageLogger.Error(
				"stage failed",
				logging.String(logging.FieldEventType, "stage_failure"),
				logging.Error(stageErr),
			)
			e.finishRun(runCtx, runID, record)
			return record, stageErr
		}

		snapshotID, err := e.store.Save(stageCtx, record, name)
		if err != nil {
			e.finishRun(runCtx, runID, record)
			return record, fmt.Errorf("persist %s snapshot: %w", name, err)
		}
		stageLogger.Info(
			"stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String(logging.FieldSnapshot, snapshotID),
		)
	}

	e.finishRun(runCtx, runID, record)
	return record, nil
}

func (e *Engine) seedRecord(ctx context.Context, start string, seed *Record) (*Record, error) {
	if seed != nil {
		return seed, nil
	}
	previous, err := Previous(start)
	if err != nil {
		return nil, err
	}
	if previous == "" {
		return &Record{}, nil
	}
	record, snapshotID, err := e.store.Latest(ctx, previous)
	if errors.Is(err, services.ErrNotFound) {
		e.logger.Warn("no snapshot for preceding stage, starting fresh",
			logging.String("stage", previous))
		return &Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest %s snapshot: %w", previous, err)
	}
	e.logger.Info("resuming from snapshot", logging.String(logging.FieldSnapshot, snapshotID))
	return record, nil
}

// runStage drives one handler and converts panics into stage errors so a
// misbehaving collaborator cannot take down the whole run.
func (e *Engine) runStage(ctx context.Context, handler Handler, record *Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v\n%s", r, debug.Stack())
		}
	}()
	if err := handler.Prepare(ctx, record); err != nil {
		return err
	}
	return handler.Execute(ctx, record)
}

func (e *Engine) persistFailure(ctx context.Context, logger *slog.Logger, record *Record, stage string) {
	if _, err := e.store.Save(ctx, record, stage); err != nil {
		logger.Error("failed to persist failing snapshot", logging.Error(err))
	}
}

func (e *Engine) finishRun(ctx context.Context, runID string, record *Record) {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.Finish(ctx, runID, record); err != nil {
		e.logger.Warn("run ledger finish failed",
			logging.String("run_id", strings.TrimSpace(runID)),
			logging.Error(err))
	}
}
