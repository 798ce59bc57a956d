// Package dot converts pipeline graphs to and from Graphviz DOT.
//
// Render writes a directed graph with one DOT node per pipeline node. The
// node kind travels in the comment attribute, the position in pos and the
// kind-specific data as JSON in tooltip, so Parse can rebuild the graph.
// Nodes carrying a validation warning are drawn in red with the warning as
// an external label.
package dot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"

	"github.com/meikuraledutech/eventgraph"
)

const graphName = "pipeline"

var shapes = map[eventgraph.Kind]string{
	eventgraph.KindObject:  "ellipse",
	eventgraph.KindZone:    "box",
	eventgraph.KindLine:    "box",
	eventgraph.KindEvent:   "diamond",
	eventgraph.KindCount:   "hexagon",
	eventgraph.KindTimeout: "hexagon",
	eventgraph.KindSpeed:   "hexagon",
	eventgraph.KindMerge:   "invtriangle",
	eventgraph.KindAlarm:   "doubleoctagon",
}

// Render returns the DOT source of g. warnings may be nil.
func Render(g *eventgraph.Graph, warnings eventgraph.Warnings) (string, error) {
	out := gographviz.NewGraph()
	if err := out.SetName(graphName); err != nil {
		return "", err
	}
	if err := out.SetDir(true); err != nil {
		return "", err
	}
	if err := out.AddAttr(graphName, "rankdir", "LR"); err != nil {
		return "", err
	}

	for _, n := range g.Nodes {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return "", fmt.Errorf("dot: encode node %s: %w", n.ID, err)
		}
		label := n.Name
		if label == "" {
			label = string(n.Kind)
		}
		attrs := map[string]string{
			"label":   strconv.Quote(label),
			"comment": strconv.Quote(string(n.Kind)),
			"pos":     strconv.Quote(fmt.Sprintf("%g,%g!", n.Position.X, n.Position.Y)),
			"tooltip": strconv.Quote(string(data)),
		}
		if shape, ok := shapes[n.Kind]; ok {
			attrs["shape"] = shape
		}
		if msg, ok := warnings[n.ID]; ok {
			attrs["color"] = "red"
			attrs["xlabel"] = strconv.Quote(msg)
		}
		if err := out.AddNode(graphName, strconv.Quote(n.ID), attrs); err != nil {
			return "", fmt.Errorf("dot: add node %s: %w", n.ID, err)
		}
	}

	for _, e := range g.Edges {
		if err := out.AddEdge(strconv.Quote(e.Source), strconv.Quote(e.Target), true, nil); err != nil {
			return "", fmt.Errorf("dot: add edge %s: %w", e.ID, err)
		}
	}
	return out.String(), nil
}

// Parse builds a graph from DOT source. Nodes without a kind comment take
// their kind from the label. Missing data falls back to the kind defaults,
// and edges are connected under the usual single-output rule.
func Parse(src string) (*eventgraph.Graph, error) {
	ast, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot: parse: %w", err)
	}
	c := newCollector()
	if err := gographviz.Analyse(ast, c); err != nil {
		return nil, fmt.Errorf("dot: analyse: %w", err)
	}

	g := eventgraph.New()
	for _, id := range c.order {
		attrs := c.nodes[id]
		n, err := nodeFrom(id, attrs)
		if err != nil {
			return nil, err
		}
		if _, err := g.InsertNode(n); err != nil {
			return nil, fmt.Errorf("dot: node %s: %w", id, err)
		}
	}
	for _, e := range c.edges {
		if _, _, err := g.Connect(e.from, e.to); err != nil {
			return nil, fmt.Errorf("dot: edge %s -> %s: %w", e.from, e.to, err)
		}
	}
	return g, nil
}

func nodeFrom(id string, attrs map[string]string) (eventgraph.Node, error) {
	kind := eventgraph.Kind(attrs["comment"])
	if kind == "" {
		kind = eventgraph.Kind(attrs["label"])
	}
	spec, ok := eventgraph.Lookup(kind)
	if !ok {
		return eventgraph.Node{}, fmt.Errorf("dot: node %s: %w: %q", id, eventgraph.ErrUnknownKind, kind)
	}

	n := eventgraph.Node{ID: id, Kind: kind, Name: attrs["label"], Data: spec.Defaults()}
	if n.Name == "" {
		n.Name = spec.Label
	}
	if pos, ok := attrs["pos"]; ok {
		x, y, err := parsePos(pos)
		if err != nil {
			return eventgraph.Node{}, fmt.Errorf("dot: node %s: %w", id, err)
		}
		n.Position = eventgraph.Position{X: x, Y: y}
	}
	if raw, ok := attrs["tooltip"]; ok && raw != "" {
		var data eventgraph.NodeData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return eventgraph.Node{}, fmt.Errorf("dot: node %s data: %w", id, err)
		}
		n.Data = data
	}
	return n, nil
}

func parsePos(s string) (float64, float64, error) {
	xs, ys, ok := strings.Cut(strings.TrimSuffix(s, "!"), ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid pos %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid pos %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid pos %q: %w", s, err)
	}
	return x, y, nil
}

type rawEdge struct{ from, to string }

// collector implements gographviz.Interface without attribute validation
// and keeps node definition order.
type collector struct {
	name  string
	order []string
	nodes map[string]map[string]string
	edges []rawEdge
}

func newCollector() *collector {
	return &collector{nodes: map[string]map[string]string{}}
}

func (c *collector) SetStrict(bool) error         { return nil }
func (c *collector) SetDir(bool) error            { return nil }
func (c *collector) SetName(n string) error       { c.name = unquote(n); return nil }
func (c *collector) String() string               { return c.name }
func (c *collector) AddAttr(_, _, _ string) error { return nil }

func (c *collector) AddSubGraph(_, _ string, _ map[string]string) error { return nil }

func (c *collector) AddNode(_ string, name string, attrs map[string]string) error {
	id := unquote(name)
	if _, ok := c.nodes[id]; !ok {
		c.nodes[id] = map[string]string{}
		c.order = append(c.order, id)
	}
	for k, v := range attrs {
		c.nodes[id][k] = unquote(v)
	}
	return nil
}

func (c *collector) AddEdge(src, dst string, _ bool, _ map[string]string) error {
	from, to := unquote(src), unquote(dst)
	// Edge statements may introduce nodes that were never declared.
	for _, id := range []string{from, to} {
		if _, ok := c.nodes[id]; !ok {
			c.nodes[id] = map[string]string{}
			c.order = append(c.order, id)
		}
	}
	c.edges = append(c.edges, rawEdge{from: from, to: to})
	return nil
}

func (c *collector) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return c.AddEdge(src, dst, directed, attrs)
}

// unquote strips the quotes and escapes of a DOT string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}
