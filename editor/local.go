package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/meikuraledutech/eventgraph"
)

// ErrCompositorUnavailable is returned when the compositor could not be
// asked about a payload. Nothing is stored in that case.
var ErrCompositorUnavailable = errors.New("editor: compositor unavailable")

// Local saves straight into a Store after asking a Compositor. It serves
// sessions that run next to the store, and the HTTP server.
type Local struct {
	Store      eventgraph.Store
	Compositor eventgraph.Compositor
}

// SaveInference implements Saver. A rejected payload is still stored,
// flagged as not accepted.
func (l Local) SaveInference(ctx context.Context, appID, cameraID string, p eventgraph.Payload) (eventgraph.SaveResult, error) {
	compositor := l.Compositor
	if compositor == nil {
		compositor = eventgraph.CheckingCompositor{}
	}
	accepted, message, err := compositor.Accept(ctx, appID, cameraID, p)
	if err != nil {
		return eventgraph.SaveResult{}, fmt.Errorf("%w: %w", ErrCompositorUnavailable, err)
	}
	_, err = l.Store.SaveInference(ctx, &eventgraph.InferenceRecord{
		AppID:    appID,
		CameraID: cameraID,
		Settings: p,
		Accepted: accepted,
		Message:  message,
	})
	if err != nil {
		return eventgraph.SaveResult{}, err
	}
	return eventgraph.SaveResult{Accepted: accepted, Message: message}, nil
}

// LoadInference implements Loader.
func (l Local) LoadInference(ctx context.Context, appID, cameraID string) (*eventgraph.InferenceRecord, error) {
	return l.Store.GetInference(ctx, appID, cameraID)
}
