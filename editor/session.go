// Package editor holds the state of one open pipeline editor: the graph,
// its live validation warnings and the bus other components listen on.
//
// A Session is not safe for concurrent use. Each editor owns its own.
package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/meikuraledutech/eventgraph"
	"github.com/meikuraledutech/eventgraph/logging"
)

// ErrSaveFailed wraps transport failures of a save. The graph is unchanged.
var ErrSaveFailed = errors.New("editor: save failed")

// RejectedError is returned when the record was stored but the compositor
// refused it.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "editor: pipeline rejected by compositor"
	}
	return "editor: pipeline rejected by compositor: " + e.Message
}

// Saver persists a compiled payload for one camera of an app.
type Saver interface {
	SaveInference(ctx context.Context, appID, cameraID string, p eventgraph.Payload) (eventgraph.SaveResult, error)
}

// Loader fetches the stored record of one camera of an app. A nil record
// with a nil error means nothing was saved yet.
type Loader interface {
	LoadInference(ctx context.Context, appID, cameraID string) (*eventgraph.InferenceRecord, error)
}

// Session is the editing state of one (app, camera) pipeline.
type Session struct {
	AppID    string
	CameraID string

	graph    *eventgraph.Graph
	warnings eventgraph.Warnings
	bus      *Bus
}

// NewSession starts an empty session. bus may be nil.
func NewSession(appID, cameraID string, bus *Bus) *Session {
	s := &Session{AppID: appID, CameraID: cameraID, graph: eventgraph.New(), bus: bus}
	s.revalidate()
	return s
}

// OpenSession starts a session editing g. The session takes ownership of
// g. bus may be nil.
func OpenSession(appID, cameraID string, g *eventgraph.Graph, bus *Bus) *Session {
	s := &Session{AppID: appID, CameraID: cameraID, graph: g, bus: bus}
	s.revalidate()
	return s
}

// Graph returns the live graph. Callers must mutate it through the session.
func (s *Session) Graph() *eventgraph.Graph { return s.graph }

// Warnings returns the current per-node warnings.
func (s *Session) Warnings() eventgraph.Warnings { return s.warnings }

func (s *Session) revalidate() {
	s.warnings = s.graph.Validate()
}

// AddNode places a fresh node of kind at pos.
func (s *Session) AddNode(kind eventgraph.Kind, pos eventgraph.Position) (eventgraph.Node, error) {
	n, err := s.graph.AddNode(kind, pos)
	if err != nil {
		return n, err
	}
	s.revalidate()
	s.bus.Publish(Event{Type: NodeAdded, NodeID: n.ID})
	return n, nil
}

// MoveNode repositions a node. Positions never affect warnings.
func (s *Session) MoveNode(id string, pos eventgraph.Position) error {
	if err := s.graph.MoveNode(id, pos); err != nil {
		return err
	}
	s.bus.Publish(Event{Type: NodeUpdated, NodeID: id})
	return nil
}

// UpdateNode replaces the name and payload of a node.
func (s *Session) UpdateNode(id, name string, data eventgraph.NodeData) error {
	if err := s.graph.UpdateNode(id, name, data); err != nil {
		return err
	}
	s.revalidate()
	s.bus.Publish(Event{Type: NodeUpdated, NodeID: id})
	return nil
}

// RemoveNode deletes the node and its edges, publishing EdgeRemoved for
// each edge before NodeRemoved.
func (s *Session) RemoveNode(id string) error {
	removed, err := s.graph.RemoveNode(id)
	if err != nil {
		return err
	}
	s.revalidate()
	for i := range removed {
		s.bus.Publish(Event{Type: EdgeRemoved, Edge: &removed[i]})
	}
	s.bus.Publish(Event{Type: NodeRemoved, NodeID: id})
	return nil
}

// Connect links source to target. Edges it replaces are published as
// removed first.
func (s *Session) Connect(source, target string) (eventgraph.Edge, error) {
	created, replaced, err := s.graph.Connect(source, target)
	if err != nil {
		return created, err
	}
	s.revalidate()
	for i := range replaced {
		s.bus.Publish(Event{Type: EdgeRemoved, Edge: &replaced[i]})
	}
	s.bus.Publish(Event{Type: EdgeAdded, Edge: &created})
	return created, nil
}

// Disconnect removes an edge by id.
func (s *Session) Disconnect(edgeID string) error {
	e, err := s.graph.Disconnect(edgeID)
	if err != nil {
		return err
	}
	s.revalidate()
	s.bus.Publish(Event{Type: EdgeRemoved, Edge: &e})
	return nil
}

// ApplyTemplate appends a fresh copy of t, with its area step as area.
func (s *Session) ApplyTemplate(t eventgraph.Template, area eventgraph.Kind) (*eventgraph.Fragment, error) {
	frag, err := s.graph.ApplyTemplate(t, area)
	if err != nil {
		return nil, err
	}
	s.revalidate()
	for _, n := range frag.Nodes {
		s.bus.Publish(Event{Type: NodeAdded, NodeID: n.ID})
	}
	for i := range frag.Edges {
		s.bus.Publish(Event{Type: EdgeAdded, Edge: &frag.Edges[i]})
	}
	return frag, nil
}

// Save compiles the graph and hands the payload to saver. A transport
// failure wraps ErrSaveFailed; a compositor rejection is a *RejectedError.
// The graph is never modified, so a failed save can simply be retried.
func (s *Session) Save(ctx context.Context, saver Saver) (*eventgraph.Compiled, error) {
	logger := logging.FromContext(ctx).With("app", s.AppID, "camera", s.CameraID)

	compiled := s.graph.Compile()
	if n := s.countObjects(compiled.Elided); n > 0 {
		logger.Warn("object nodes are not saved and will be missing after reload",
			"objects", n)
	}
	if len(compiled.Invalid) > 0 {
		logger.Warn("nodes saved without their payload", "ids", compiled.Invalid)
	}

	res, err := saver.SaveInference(ctx, s.AppID, s.CameraID, compiled.Payload)
	if err != nil {
		logger.Error("save failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if !res.Accepted {
		logger.Warn("pipeline rejected by compositor", "message", res.Message)
		return compiled, &RejectedError{Message: res.Message}
	}
	logger.Info("pipeline saved", "records", len(compiled.Payload.Configs))
	return compiled, nil
}

// Load replaces the graph with the reverse compilation of the stored
// record. With nothing stored the session starts empty. On error the
// current graph is kept.
func (s *Session) Load(ctx context.Context, loader Loader) (*eventgraph.Decompiled, error) {
	logger := logging.FromContext(ctx).With("app", s.AppID, "camera", s.CameraID)

	rec, err := loader.LoadInference(ctx, s.AppID, s.CameraID)
	if err != nil {
		return nil, fmt.Errorf("editor: load: %w", err)
	}
	var dec *eventgraph.Decompiled
	if rec == nil {
		dec = &eventgraph.Decompiled{Graph: eventgraph.New()}
	} else {
		if rec.Settings.Version != eventgraph.SchemaVersion {
			logger.Warn("stored pipeline has a different schema version",
				"version", rec.Settings.Version, "want", eventgraph.SchemaVersion)
		}
		if !rec.Accepted && rec.Message != "" {
			logger.Warn("stored pipeline was rejected by compositor", "message", rec.Message)
		}
		dec = rec.Settings.Decompile()
		if n := countTargets(rec.Settings.Configs); n > 0 {
			logger.Warn("object nodes upstream of areas are not rebuilt",
				"areas", n)
		}
	}
	if dec.Lost() {
		logger.Warn("stored pipeline could not be fully rebuilt",
			"dropped", dec.Dropped, "unplaced", dec.Unplaced, "malformed", dec.Malformed)
	}
	logger.Debug("pipeline loaded", "nodes", len(dec.Graph.Nodes), "edges", len(dec.Graph.Edges))

	s.graph = dec.Graph
	s.revalidate()
	s.bus.Publish(Event{Type: GraphReplaced})
	return dec, nil
}

func (s *Session) countObjects(ids []string) int {
	n := 0
	for _, id := range ids {
		if node, ok := s.graph.Node(id); ok && node.Kind == eventgraph.KindObject {
			n++
		}
	}
	return n
}

// countTargets counts area records that had an Object upstream when saved.
func countTargets(configs []eventgraph.EventSetting) int {
	n := 0
	for _, rec := range configs {
		if rec.Target != nil {
			n++
		}
	}
	return n
}
