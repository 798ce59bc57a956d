package eventgraph

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArea      = errors.New("eventgraph: template area must be Zone or Line")
	ErrEmptyTemplate    = errors.New("eventgraph: template has no steps")
	ErrTemplateNotFound = errors.New("eventgraph: template not found")
)

// KindArea is the placeholder kind a template step uses for the area the
// operator picks when applying it.
const KindArea Kind = "Area"

// Template placement geometry.
const (
	TemplateOriginX    = 100.0
	TemplateOriginY    = 50.0
	TemplateRowSpacing = 120.0
	TemplateColumnGap  = 300.0
)

// TemplateStep is one node of a template, in chain order.
type TemplateStep struct {
	Kind Kind `json:"kind"`
	// Name overrides the kind's label when set.
	Name string `json:"name,omitempty"`
	// Data fields that are set override the kind's defaults.
	Data NodeData `json:"data"`
}

// Template is a ready-made pipeline shape. Its steps are connected in order.
type Template struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []TemplateStep `json:"steps"`
}

// Fragment is a generated set of nodes and the edges linking them.
type Fragment struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ExpandTemplate generates fresh nodes and edges for t, with the area
// placeholder resolved to area. Nodes are stacked vertically in a column
// placed right of the rightmost node in existing.
func ExpandTemplate(t Template, area Kind, existing []Node) (*Fragment, error) {
	if !area.IsArea() {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidArea, area)
	}
	if len(t.Steps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTemplate, t.Key)
	}

	x := TemplateOriginX
	if len(existing) > 0 {
		right := existing[0].Position.X
		for _, n := range existing[1:] {
			right = max(right, n.Position.X)
		}
		x = right + TemplateColumnGap
	}

	frag := &Fragment{
		Nodes: make([]Node, 0, len(t.Steps)),
		Edges: make([]Edge, 0, len(t.Steps)-1),
	}
	for i, step := range t.Steps {
		kind := step.Kind
		if kind == KindArea {
			kind = area
		}
		spec, ok := Lookup(kind)
		if !ok {
			return nil, fmt.Errorf("%w: %q in template %s", ErrUnknownKind, step.Kind, t.Key)
		}
		name := step.Name
		if name == "" {
			name = spec.Label
		}
		frag.Nodes = append(frag.Nodes, Node{
			ID:       newID(),
			Kind:     kind,
			Name:     name,
			Position: Position{X: x, Y: TemplateOriginY + float64(i)*TemplateRowSpacing},
			Data:     overlay(spec.Defaults(), step.Data),
		})
		if i > 0 {
			frag.Edges = append(frag.Edges, Edge{
				ID:     newID(),
				Source: frag.Nodes[i-1].ID,
				Target: frag.Nodes[i].ID,
			})
		}
	}
	return frag, nil
}

// ApplyTemplate expands t next to the existing nodes and appends the result
// to g.
func (g *Graph) ApplyTemplate(t Template, area Kind) (*Fragment, error) {
	frag, err := ExpandTemplate(t, area, g.Nodes)
	if err != nil {
		return nil, err
	}
	g.Nodes = append(g.Nodes, frag.Nodes...)
	g.Edges = append(g.Edges, frag.Edges...)
	return frag, nil
}

func overlay(base, over NodeData) NodeData {
	out := base
	if len(over.Classes) > 0 {
		out.Classes = cloneSlice(over.Classes)
	}
	if len(over.Classifiers) > 0 {
		out.Classifiers = cloneSlice(over.Classifiers)
	}
	if len(over.Points) > 0 {
		out.Points = cloneSlice(over.Points)
	}
	if over.Direction != "" {
		out.Direction = over.Direction
	}
	if over.Condition != "" {
		out.Condition = over.Condition
	}
	if over.Seconds != nil {
		s := *over.Seconds
		out.Seconds = &s
	}
	if len(over.Sensors) > 0 {
		out.Sensors = cloneSlice(over.Sensors)
	}
	return out
}
