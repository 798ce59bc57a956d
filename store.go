package eventgraph

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRecordNotFound = errors.New("eventgraph: inference record not found")
	ErrInvalidRecord  = errors.New("eventgraph: inference record needs app and camera ids")
)

// InferenceRecord is the stored pipeline configuration of one
// (vision-app, camera) pair.
type InferenceRecord struct {
	ID       string  `json:"id,omitempty"`
	AppID    string  `json:"appId"`
	CameraID string  `json:"cameraId"`
	Settings Payload `json:"settings"`
	// Accepted is false when the compositor rejected the stored settings.
	Accepted  bool      `json:"compositorAccepted"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveResult is the response of a save call. A false Accepted is a soft
// failure: the record was stored, but the compositor refused it.
type SaveResult struct {
	Accepted bool   `json:"compositorAccepted"`
	Message  string `json:"message,omitempty"`
}

// Store defines the contract for persisting inference records.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Inference records, at most one per (app, camera).
	SaveInference(ctx context.Context, rec *InferenceRecord) (*InferenceRecord, error)
	GetInference(ctx context.Context, appID, cameraID string) (*InferenceRecord, error)
	ListInferences(ctx context.Context, appID string) ([]InferenceRecord, error)
	DeleteInference(ctx context.Context, appID, cameraID string) error
}
