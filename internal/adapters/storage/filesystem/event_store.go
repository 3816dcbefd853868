// Package filesystem provides a filesystem-based event store implementation.
// Events are stored as JSON files in a directory structure organized by aggregate ID.
package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deepresearch/internal/core/ports"
)

// EventStore implements ports.EventStore using the filesystem. Layout:
//
//	<baseDir>/<aggregateID>/events/000001_<type>.json, 000002_<type>.json, ...
//	<baseDir>/<aggregateID>/snapshot.json
type EventStore struct {
	baseDir string
}

// NewEventStore creates a filesystem-backed event store rooted at baseDir.
func NewEventStore(baseDir string) *EventStore {
	os.MkdirAll(baseDir, 0755)
	return &EventStore{baseDir: baseDir}
}

var _ ports.EventStore = (*EventStore)(nil)

func (s *EventStore) eventDir(aggregateID string) string {
	return filepath.Join(s.baseDir, aggregateID, "events")
}

func (s *EventStore) snapshotPath(aggregateID string) string {
	return filepath.Join(s.baseDir, aggregateID, "snapshot.json")
}

// readDir lists a directory's entries, treating a missing directory as
// simply empty rather than an error — the common case for an aggregate that
// hasn't been written to yet.
func readDir(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

// AppendEvents writes newEvents to aggregateID's stream, one file per event,
// after checking expectedVersion against the stream's current tail version.
func (s *EventStore) AppendEvents(ctx context.Context, aggregateID string, newEvents []ports.Event, expectedVersion int) error {
	dir := s.eventDir(aggregateID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create event dir: %w", err)
	}

	existing, err := s.LoadEvents(ctx, aggregateID)
	if err != nil {
		return err
	}

	current := 0
	if len(existing) > 0 {
		current = existing[len(existing)-1].GetVersion()
	}
	if expectedVersion > 0 && current != expectedVersion {
		return fmt.Errorf("version conflict: expected %d, got %d", expectedVersion, current)
	}

	for _, event := range newEvents {
		if err := s.writeEvent(dir, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventStore) writeEvent(dir string, event ports.Event) error {
	filename := fmt.Sprintf("%06d_%s.json", event.GetVersion(), sanitizeFilename(event.GetType()))
	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// LoadEvents retrieves every event recorded for aggregateID, in version order.
func (s *EventStore) LoadEvents(ctx context.Context, aggregateID string) ([]ports.Event, error) {
	entries, err := readDir(s.eventDir(aggregateID))
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var result []ports.Event
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.eventDir(aggregateID), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read event %s: %w", entry.Name(), err)
		}

		event, err := deserializeEvent(data)
		if err != nil {
			return nil, fmt.Errorf("deserialize event %s: %w", entry.Name(), err)
		}
		result = append(result, event)
	}
	return result, nil
}

// LoadEventsFrom retrieves events with version strictly greater than fromVersion.
func (s *EventStore) LoadEventsFrom(ctx context.Context, aggregateID string, fromVersion int) ([]ports.Event, error) {
	all, err := s.LoadEvents(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	var result []ports.Event
	for _, event := range all {
		if event.GetVersion() > fromVersion {
			result = append(result, event)
		}
	}
	return result, nil
}

// LoadSnapshot retrieves the most recent snapshot for aggregateID, or nil if
// none has been taken.
func (s *EventStore) LoadSnapshot(ctx context.Context, aggregateID string) (*ports.Snapshot, error) {
	data, err := os.ReadFile(s.snapshotPath(aggregateID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snapshot ports.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// SaveSnapshot persists snapshot, overwriting any prior snapshot for aggregateID.
func (s *EventStore) SaveSnapshot(ctx context.Context, aggregateID string, snapshot ports.Snapshot) error {
	path := s.snapshotPath(aggregateID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetAllAggregateIDs lists the subdirectories of baseDir. An aggregate whose
// directory holds only a snapshot and no events is listed too.
func (s *EventStore) GetAllAggregateIDs(ctx context.Context) ([]string, error) {
	entries, err := readDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// sanitizeFilename replaces characters that are awkward in filenames, such
// as the dots in a dotted event type ("worker.started" -> "worker_started").
func sanitizeFilename(s string) string {
	return strings.ReplaceAll(s, ".", "_")
}
