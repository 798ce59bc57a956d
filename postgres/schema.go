package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS inference_records (
    id         TEXT PRIMARY KEY,
    app_id     TEXT NOT NULL,
    camera_id  TEXT NOT NULL,
    version    TEXT NOT NULL,
    configs    JSONB NOT NULL DEFAULT '[]',
    accepted   BOOLEAN NOT NULL DEFAULT FALSE,
    message    TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (app_id, camera_id)
);

CREATE INDEX IF NOT EXISTS idx_inference_records_app_id ON inference_records(app_id);
`

// CreateSchema creates the inference_records table if it doesn't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the inference_records table.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS inference_records CASCADE;`)
	return err
}
