// Package memstore provides an ephemeral, thread-safe, in-memory
// implementation of eventgraph.Store.
//
// It keeps one record per (app, camera) pair behind a sync.RWMutex and is
// meant for tests, demos and single-box runs without a database. Nothing
// survives a restart.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/eventgraph"
)

type key struct{ app, camera string }

// Store is an in-memory eventgraph.Store.
type Store struct {
	mu      sync.RWMutex
	records map[key]eventgraph.InferenceRecord
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{records: map[key]eventgraph.InferenceRecord{}, now: time.Now}
}

// CreateSchema is a no-op.
func (s *Store) CreateSchema(context.Context) error { return nil }

// DropSchema removes every record.
func (s *Store) DropSchema(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = map[key]eventgraph.InferenceRecord{}
	return nil
}

// SaveInference upserts the record of rec's (app, camera) pair. The stored
// record keeps its original id.
func (s *Store) SaveInference(_ context.Context, rec *eventgraph.InferenceRecord) (*eventgraph.InferenceRecord, error) {
	if rec.AppID == "" || rec.CameraID == "" {
		return nil, eventgraph.ErrInvalidRecord
	}
	settings, err := clonePayload(rec.Settings)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{rec.AppID, rec.CameraID}
	stored := *rec
	stored.Settings = settings
	if prev, ok := s.records[k]; ok {
		stored.ID = prev.ID
	} else if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.UpdatedAt = s.now().UTC()
	s.records[k] = stored
	return detach(stored)
}

// GetInference returns nil, nil if no record exists.
func (s *Store) GetInference(_ context.Context, appID, cameraID string) (*eventgraph.InferenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key{appID, cameraID}]
	if !ok {
		return nil, nil
	}
	return detach(rec)
}

// ListInferences returns the records of an app ordered by camera id.
// Returns an empty slice (not nil) if none found.
func (s *Store) ListInferences(_ context.Context, appID string) ([]eventgraph.InferenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []eventgraph.InferenceRecord{}
	for k, rec := range s.records {
		if k.app != appID {
			continue
		}
		cp, err := detach(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out, nil
}

// DeleteInference removes a record. No error if it doesn't exist.
func (s *Store) DeleteInference(_ context.Context, appID, cameraID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key{appID, cameraID})
	return nil
}

// detach returns a copy of rec that shares no memory with the store.
func detach(rec eventgraph.InferenceRecord) (*eventgraph.InferenceRecord, error) {
	settings, err := clonePayload(rec.Settings)
	if err != nil {
		return nil, err
	}
	rec.Settings = settings
	return &rec, nil
}

// clonePayload detaches the stored payload from the caller's slices by
// going through the wire encoding, the same path a database takes.
func clonePayload(p eventgraph.Payload) (eventgraph.Payload, error) {
	raw, err := json.Marshal(p.Configs)
	if err != nil {
		return eventgraph.Payload{}, fmt.Errorf("memstore: encode configs: %w", err)
	}
	configs := []eventgraph.EventSetting{}
	if err := json.Unmarshal(raw, &configs); err != nil {
		return eventgraph.Payload{}, fmt.Errorf("memstore: decode configs: %w", err)
	}
	if configs == nil {
		configs = []eventgraph.EventSetting{}
	}
	return eventgraph.Payload{Version: p.Version, Configs: configs}, nil
}
