package eventgraph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNodeNotFound  = errors.New("eventgraph: node not found")
	ErrEdgeNotFound  = errors.New("eventgraph: edge not found")
	ErrCycleDetected = errors.New("eventgraph: cycle detected, pipeline must stay acyclic")
	ErrSelfLoop      = errors.New("eventgraph: node cannot connect to itself")
	ErrNoOutput      = errors.New("eventgraph: node kind has no output connector")
	ErrNoInput       = errors.New("eventgraph: node kind has no input connector")
	ErrUnknownKind   = errors.New("eventgraph: unknown node kind")
	ErrDuplicateID   = errors.New("eventgraph: duplicate node id")
	ErrInvalidPoint  = errors.New("eventgraph: point must be an [x, y] pair")
)

// newID returns a random 128-bit identifier in canonical UUID form.
var newID = uuid.NewString

// Position is the editor-only placement of a node. The compilers never read it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point is a normalized frame coordinate, encoded as [x, y].
type Point [2]float64

// UnmarshalJSON rejects arrays that are not exactly a pair.
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy []float64
	if err := json.Unmarshal(data, &xy); err != nil {
		return err
	}
	if len(xy) != 2 {
		return fmt.Errorf("%w: got %d coordinates", ErrInvalidPoint, len(xy))
	}
	*p = Point{xy[0], xy[1]}
	return nil
}

// Direction is the crossing direction a Line reacts to.
type Direction string

const (
	DirectionAToB Direction = "A2B"
	DirectionBToA Direction = "B2A"
	DirectionBoth Direction = "BOTH"
)

// Valid reports whether d is one of the three wire literals.
func (d Direction) Valid() bool {
	switch d {
	case DirectionAToB, DirectionBToA, DirectionBoth:
		return true
	}
	return false
}

// SensorBinding wires an Alarm node to one PLC/sensor output.
type SensorBinding struct {
	SensorID        int64   `json:"sensorId"`
	SensorTypeID    int64   `json:"sensorTypeId"`
	AlarmChannel    int     `json:"alarmChannel"`
	AlarmValue      int     `json:"alarmValue"`
	DurationSeconds float64 `json:"durationSeconds"`
	Priority        int     `json:"priority"`
}

// NodeData is the kind-specific payload of a node. Only the fields relevant
// to the node's kind are meaningful; the rest stay zero.
type NodeData struct {
	Classes     []string        `json:"classes,omitempty"`     // Object
	Classifiers []string        `json:"classifiers,omitempty"` // Object, only with Classes
	Points      []Point         `json:"points,omitempty"`      // Zone, Line
	Direction   Direction       `json:"direction,omitempty"`   // Line
	Condition   string          `json:"condition,omitempty"`   // Count
	Seconds     *float64        `json:"seconds,omitempty"`     // Timeout
	Sensors     []SensorBinding `json:"sensors,omitempty"`     // Alarm
}

// Node is a vertex of the pipeline diagram.
type Node struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge connects an upstream stage (Source) to a downstream one (Target).
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the operator-editable pipeline. A node has at most one outgoing
// edge; any number of edges may share a target.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{Nodes: []Node{}, Edges: []Edge{}}
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: append([]Edge{}, g.Edges...),
	}
	for i, n := range g.Nodes {
		n.Data = n.Data.clone()
		out.Nodes[i] = n
	}
	return out
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Outgoing returns the first outgoing edge of id, if any. Edited graphs
// have at most one.
func (g *Graph) Outgoing(id string) (Edge, bool) {
	for _, e := range g.Edges {
		if e.Source == id {
			return e, true
		}
	}
	return Edge{}, false
}

// Incoming returns every edge targeting id, in insertion order.
func (g *Graph) Incoming(id string) []Edge {
	var in []Edge
	for _, e := range g.Edges {
		if e.Target == id {
			in = append(in, e)
		}
	}
	return in
}

// AddNode instantiates a node of the given kind at pos, with the kind's
// default payload and display name. Returns the created node.
func (g *Graph) AddNode(kind Kind, pos Position) (Node, error) {
	spec, ok := Lookup(kind)
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	n := Node{
		ID:       newID(),
		Kind:     kind,
		Name:     spec.Label,
		Position: pos,
		Data:     spec.Defaults(),
	}
	g.Nodes = append(g.Nodes, n)
	return n, nil
}

// InsertNode adds a fully specified node. If n.ID is empty a UUID is
// generated. Returns the node id (generated or provided).
func (g *Graph) InsertNode(n Node) (string, error) {
	if _, ok := Lookup(n.Kind); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
	if n.ID == "" {
		n.ID = newID()
	}
	if _, exists := g.Node(n.ID); exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
	}
	g.Nodes = append(g.Nodes, n)
	return n.ID, nil
}

// MoveNode updates the editor position of a node.
func (g *Graph) MoveNode(id string, pos Position) error {
	n, ok := g.Node(id)
	if !ok {
		return ErrNodeNotFound
	}
	n.Position = pos
	return nil
}

// UpdateNode replaces the name and payload of a node. The kind is fixed for
// the lifetime of the node.
func (g *Graph) UpdateNode(id, name string, data NodeData) error {
	n, ok := g.Node(id)
	if !ok {
		return ErrNodeNotFound
	}
	n.Name = name
	n.Data = data.clone()
	return nil
}

// RemoveNode deletes a node together with every edge touching it.
// Returns the removed edges.
func (g *Graph) RemoveNode(id string) ([]Edge, error) {
	idx := -1
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNodeNotFound
	}
	g.Nodes = append(g.Nodes[:idx], g.Nodes[idx+1:]...)

	var removed []Edge
	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source == id || e.Target == id {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept
	return removed, nil
}

// Connect creates an edge from source to target. Every edge already
// leaving source is removed and returned as replaced. A graph rebuilt from
// records can carry several.
func (g *Graph) Connect(source, target string) (created Edge, replaced []Edge, err error) {
	if source == target {
		return Edge{}, nil, ErrSelfLoop
	}
	src, ok := g.Node(source)
	if !ok {
		return Edge{}, nil, fmt.Errorf("%w: source %s", ErrNodeNotFound, source)
	}
	dst, ok := g.Node(target)
	if !ok {
		return Edge{}, nil, fmt.Errorf("%w: target %s", ErrNodeNotFound, target)
	}
	if spec, _ := Lookup(src.Kind); !spec.HasOutput {
		return Edge{}, nil, fmt.Errorf("%w: %s", ErrNoOutput, src.Kind)
	}
	if spec, _ := Lookup(dst.Kind); !spec.HasInput {
		return Edge{}, nil, fmt.Errorf("%w: %s", ErrNoInput, dst.Kind)
	}
	if g.reaches(target, source) {
		return Edge{}, nil, ErrCycleDetected
	}

	created = Edge{ID: newID(), Source: source, Target: target}
	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source == source {
			replaced = append(replaced, e)
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = append(kept, created)
	return created, replaced, nil
}

// Disconnect removes an edge by id and returns it.
func (g *Graph) Disconnect(edgeID string) (Edge, error) {
	for i, e := range g.Edges {
		if e.ID == edgeID {
			g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
			return e, nil
		}
	}
	return Edge{}, ErrEdgeNotFound
}

// reaches reports whether to is downstream of from. A rebuilt graph may
// fan out, so every outgoing edge is followed.
func (g *Graph) reaches(from, to string) bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return true
		}
		for _, e := range g.Edges {
			if e.Source == cur && !seen[e.Target] {
				seen[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	return false
}

// Validate runs the default rule set over g.
func (g *Graph) Validate() Warnings {
	return Validate(g.Nodes, g.Edges)
}

func (d NodeData) clone() NodeData {
	out := d
	out.Classes = cloneSlice(d.Classes)
	out.Classifiers = cloneSlice(d.Classifiers)
	out.Points = cloneSlice(d.Points)
	out.Sensors = cloneSlice(d.Sensors)
	if d.Seconds != nil {
		s := *d.Seconds
		out.Seconds = &s
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
