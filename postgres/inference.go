package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/meikuraledutech/eventgraph"
)

const selectRecord = `SELECT id, app_id, camera_id, version, configs, accepted, message, updated_at FROM inference_records`

// SaveInference upserts the record of rec's (app, camera) pair.
// A new record gets a UUID; an existing one keeps its ID.
// Returns the stored record.
func (s *PGStore) SaveInference(ctx context.Context, rec *eventgraph.InferenceRecord) (*eventgraph.InferenceRecord, error) {
	if rec.AppID == "" || rec.CameraID == "" {
		return nil, eventgraph.ErrInvalidRecord
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	configs := rec.Settings.Configs
	if configs == nil {
		configs = []eventgraph.EventSetting{}
	}
	raw, err := json.Marshal(configs)
	if err != nil {
		return nil, fmt.Errorf("eventgraph: encode configs: %w", err)
	}

	row := s.db.QueryRow(ctx, `
INSERT INTO inference_records (id, app_id, camera_id, version, configs, accepted, message, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (app_id, camera_id) DO UPDATE SET
    version    = EXCLUDED.version,
    configs    = EXCLUDED.configs,
    accepted   = EXCLUDED.accepted,
    message    = EXCLUDED.message,
    updated_at = EXCLUDED.updated_at
RETURNING id, app_id, camera_id, version, configs, accepted, message, updated_at`,
		id, rec.AppID, rec.CameraID, rec.Settings.Version, raw, rec.Accepted, rec.Message,
	)
	out, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("eventgraph: save inference: %w", err)
	}
	return out, nil
}

// GetInference fetches the record of an (app, camera) pair.
// Returns nil, nil if not found.
func (s *PGStore) GetInference(ctx context.Context, appID, cameraID string) (*eventgraph.InferenceRecord, error) {
	row := s.db.QueryRow(ctx, selectRecord+` WHERE app_id = $1 AND camera_id = $2`, appID, cameraID)
	rec, err := scanRecord(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("eventgraph: get inference: %w", err)
	}
	return rec, nil
}

// ListInferences returns all records of an app, ordered by camera id.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListInferences(ctx context.Context, appID string) ([]eventgraph.InferenceRecord, error) {
	rows, err := s.db.Query(ctx, selectRecord+` WHERE app_id = $1 ORDER BY camera_id`, appID)
	if err != nil {
		return nil, fmt.Errorf("eventgraph: query inferences: %w", err)
	}
	defer rows.Close()

	out := []eventgraph.InferenceRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("eventgraph: scan inference: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventgraph: rows inferences: %w", err)
	}
	return out, nil
}

// DeleteInference removes the record of an (app, camera) pair.
// No error if it doesn't exist.
func (s *PGStore) DeleteInference(ctx context.Context, appID, cameraID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM inference_records WHERE app_id = $1 AND camera_id = $2`, appID, cameraID)
	if err != nil {
		return fmt.Errorf("eventgraph: delete inference: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*eventgraph.InferenceRecord, error) {
	var (
		rec eventgraph.InferenceRecord
		raw []byte
	)
	if err := row.Scan(&rec.ID, &rec.AppID, &rec.CameraID, &rec.Settings.Version, &raw,
		&rec.Accepted, &rec.Message, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Settings.Configs = []eventgraph.EventSetting{}
	if err := json.Unmarshal(raw, &rec.Settings.Configs); err != nil {
		return nil, fmt.Errorf("decode configs: %w", err)
	}
	if rec.Settings.Configs == nil {
		rec.Settings.Configs = []eventgraph.EventSetting{}
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}
