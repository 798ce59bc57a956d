package eventgraph

import (
	"fmt"
	"math"
)

// WarnObjectUnconnected is attached to Object nodes that do not feed exactly
// one Zone or Line.
const WarnObjectUnconnected = "must connect to Zone or Line"

// Warnings maps node ids to their advisory warning. Nodes without a warning
// are absent.
type Warnings map[string]string

// Rule inspects one node and returns a warning, or "" when the node is fine.
type Rule func(n *Node, ix *Index) string

// DefaultRules is the rule set used by Validate. Earlier rules win when a
// node violates more than one.
var DefaultRules = []Rule{
	ObjectConnectedRule,
	GeometryRule,
	TimeoutRule,
	AlarmRule,
}

// Validate runs DefaultRules over the graph. Warnings never block compiling
// or saving.
func Validate(nodes []Node, edges []Edge) Warnings {
	return ValidateWith(DefaultRules, nodes, edges)
}

// ValidateWith runs the given rules over the graph.
func ValidateWith(rules []Rule, nodes []Node, edges []Edge) Warnings {
	ix := NewIndex(nodes, edges)
	out := Warnings{}
	for i := range nodes {
		n := &nodes[i]
		for _, rule := range rules {
			if msg := rule(n, ix); msg != "" {
				out[n.ID] = msg
				break
			}
		}
	}
	return out
}

// ObjectConnectedRule requires every Object node to have exactly one
// outgoing edge, and that edge must land on a Zone or Line.
func ObjectConnectedRule(n *Node, ix *Index) string {
	if n.Kind != KindObject {
		return ""
	}
	out := ix.Outgoing(n.ID)
	if len(out) != 1 {
		return WarnObjectUnconnected
	}
	target, ok := ix.Node(out[0].Target)
	if !ok || !target.Kind.IsArea() {
		return WarnObjectUnconnected
	}
	return ""
}

// GeometryRule checks the point count, coordinate range and direction of
// Zone and Line nodes.
func GeometryRule(n *Node, _ *Index) string {
	switch n.Kind {
	case KindZone:
		if len(n.Data.Points) < 3 {
			return "zone needs at least 3 points"
		}
	case KindLine:
		if len(n.Data.Points) != 2 {
			return "line needs exactly 2 points"
		}
		if !n.Data.Direction.Valid() {
			return fmt.Sprintf("line direction %q is not A2B, B2A or BOTH", n.Data.Direction)
		}
	default:
		return ""
	}
	for _, p := range n.Data.Points {
		if !inUnitRange(p) {
			return "points must lie within the frame"
		}
	}
	return ""
}

// TimeoutRule rejects negative, non-finite or missing dwell times.
func TimeoutRule(n *Node, _ *Index) string {
	if n.Kind != KindTimeout {
		return ""
	}
	if n.Data.Seconds == nil {
		return "timeout needs a duration"
	}
	if !finite(*n.Data.Seconds) {
		return "timeout must be a finite number"
	}
	if *n.Data.Seconds < 0 {
		return "timeout must not be negative"
	}
	return ""
}

// AlarmRule rejects sensor bindings whose duration cannot be sent.
func AlarmRule(n *Node, _ *Index) string {
	if n.Kind != KindAlarm {
		return ""
	}
	for _, s := range n.Data.Sensors {
		if !finite(s.DurationSeconds) {
			return fmt.Sprintf("sensor %d duration must be a finite number", s.SensorID)
		}
	}
	return ""
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func inUnitRange(p Point) bool {
	return p[0] >= 0 && p[0] <= 1 && p[1] >= 0 && p[1] <= 1
}
