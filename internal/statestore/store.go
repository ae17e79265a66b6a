package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"stillpoint/internal/pipeline"
	"stillpoint/internal/services"
)

const (
	snapshotPrefix = "state_"
	snapshotSuffix = ".json"

	// Fixed-width UTC stamp so snapshot names sort lexically in time order.
	timestampLayout = "20060102_150405.000000000"
)

// Store persists pipeline records as append-only JSON snapshots in a flat
// directory. Snapshots are never overwritten or compacted.
type Store struct {
	dir string

	mu     sync.Mutex
	lastTS time.Time
	now    func() time.Time
}

// New opens a snapshot store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "open state store", "state directory is required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the directory snapshots are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes a new snapshot for the given stage and returns its ID (the
// file name). Timestamps are forced strictly monotonic so two saves in the
// same nanosecond still produce distinct, ordered names.
func (s *Store) Save(_ context.Context, record *pipeline.Record, stage string) (string, error) {
	if record == nil {
		return "", services.Wrap(services.ErrValidation, stage, "save snapshot", "record is required", nil)
	}
	if _, err := pipeline.Index(stage); err != nil {
		return "", services.Wrap(services.ErrValidation, stage, "save snapshot", err.Error(), nil)
	}

	s.mu.Lock()
	ts := s.now().UTC()
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = ts
	s.mu.Unlock()

	name := snapshotPrefix + stage + "_" + ts.Format(timestampLayout) + snapshotSuffix
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("flush snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("finalize snapshot: %w", err)
	}
	return name, nil
}

// Load reads the snapshot with the given ID. A file that exists but cannot be
// decoded is a load failure, never treated as absent.
func (s *Store) Load(_ context.Context, snapshotID string) (*pipeline.Record, error) {
	path := filepath.Join(s.dir, filepath.Base(snapshotID))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, services.Wrap(services.ErrNotFound, "", "load snapshot", snapshotID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", snapshotID, err)
	}
	var record pipeline.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", snapshotID, err)
	}
	return &record, nil
}

// Latest loads the newest snapshot for the given stage.
func (s *Store) Latest(ctx context.Context, stage string) (*pipeline.Record, string, error) {
	if _, err := pipeline.Index(stage); err != nil {
		return nil, "", services.Wrap(services.ErrValidation, stage, "find snapshot", err.Error(), nil)
	}
	names, err := s.list()
	if err != nil {
		return nil, "", err
	}
	prefix := snapshotPrefix + stage + "_"
	for i := len(names) - 1; i >= 0; i-- {
		if strings.HasPrefix(names[i], prefix) {
			record, err := s.Load(ctx, names[i])
			if err != nil {
				return nil, "", err
			}
			return record, names[i], nil
		}
	}
	return nil, "", services.Wrap(services.ErrNotFound, stage, "find snapshot", "no snapshots for stage", nil)
}

// LatestAny loads the newest snapshot of the stage furthest along the
// pipeline, regardless of which snapshot was written most recently.
func (s *Store) LatestAny(ctx context.Context) (*pipeline.Record, string, error) {
	for i := len(pipeline.Order) - 1; i >= 0; i-- {
		record, name, err := s.Latest(ctx, pipeline.Order[i])
		if err == nil {
			return record, name, nil
		}
		if !services.IsNotFound(err) {
			return nil, "", err
		}
	}
	return nil, "", services.Wrap(services.ErrNotFound, "", "find snapshot", "state store is empty", nil)
}

// ParseName splits a snapshot name into its stage and timestamp.
func ParseName(name string) (string, time.Time, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
	if trimmed == name || len(trimmed) <= len(timestampLayout) {
		return "", time.Time{}, fmt.Errorf("malformed snapshot name %q", name)
	}
	stamp := trimmed[len(trimmed)-len(timestampLayout):]
	stage := strings.TrimSuffix(trimmed[:len(trimmed)-len(timestampLayout)], "_")
	ts, err := time.Parse(timestampLayout, stamp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("malformed snapshot name %q: %w", name, err)
	}
	if _, err := pipeline.Index(stage); err != nil {
		return "", time.Time{}, fmt.Errorf("malformed snapshot name %q: %w", name, err)
	}
	return stage, ts, nil
}

// List returns all snapshot names in lexical (time) order.
func (s *Store) List(context.Context) ([]string, error) {
	return s.list()
}

func (s *Store) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, snapshotSuffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
