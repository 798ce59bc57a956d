package eventgraph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	secs := func(v float64) *float64 { return &v }

	t.Run("object without outgoing edge", func(t *testing.T) {
		nodes := []Node{{ID: "o", Kind: KindObject}}
		w := Validate(nodes, nil)
		assert.Equal(t, WarnObjectUnconnected, w["o"])
	})

	t.Run("object into count", func(t *testing.T) {
		nodes := []Node{{ID: "o", Kind: KindObject}, {ID: "c", Kind: KindCount, Data: NodeData{Condition: ">=1"}}}
		edges := []Edge{{ID: "e", Source: "o", Target: "c"}}
		w := Validate(nodes, edges)
		assert.Equal(t, WarnObjectUnconnected, w["o"])
		assert.NotContains(t, w, "c")
	})

	t.Run("object into zone and line are fine", func(t *testing.T) {
		nodes := []Node{
			{ID: "o1", Kind: KindObject},
			{ID: "o2", Kind: KindObject},
			{ID: "z", Kind: KindZone, Data: NodeData{Points: []Point{{0, 0}, {1, 0}, {1, 1}}}},
			{ID: "l", Kind: KindLine, Data: NodeData{Points: []Point{{0, 0}, {1, 1}}, Direction: DirectionAToB}},
		}
		edges := []Edge{{ID: "e1", Source: "o1", Target: "z"}, {ID: "e2", Source: "o2", Target: "l"}}
		assert.Empty(t, Validate(nodes, edges))
	})

	t.Run("object with two outgoing edges from raw input", func(t *testing.T) {
		nodes := []Node{
			{ID: "o", Kind: KindObject},
			{ID: "z", Kind: KindZone, Data: NodeData{Points: []Point{{0, 0}, {1, 0}, {1, 1}}}},
		}
		edges := []Edge{{ID: "e1", Source: "o", Target: "z"}, {ID: "e2", Source: "o", Target: "z"}}
		assert.Equal(t, WarnObjectUnconnected, Validate(nodes, edges)["o"])
	})

	t.Run("dangling edge target", func(t *testing.T) {
		nodes := []Node{{ID: "o", Kind: KindObject}}
		edges := []Edge{{ID: "e", Source: "o", Target: "gone"}}
		assert.Equal(t, WarnObjectUnconnected, Validate(nodes, edges)["o"])
	})

	t.Run("geometry", func(t *testing.T) {
		nodes := []Node{
			{ID: "z", Kind: KindZone, Data: NodeData{Points: []Point{{0, 0}, {1, 1}}}},
			{ID: "l", Kind: KindLine, Data: NodeData{Points: []Point{{0, 0}}, Direction: DirectionBoth}},
			{ID: "d", Kind: KindLine, Data: NodeData{Points: []Point{{0, 0}, {1, 1}}, Direction: "UP"}},
			{ID: "r", Kind: KindZone, Data: NodeData{Points: []Point{{0, 0}, {1.5, 0}, {1, 1}}}},
		}
		w := Validate(nodes, nil)
		assert.Equal(t, "zone needs at least 3 points", w["z"])
		assert.Equal(t, "line needs exactly 2 points", w["l"])
		assert.Contains(t, w["d"], "direction")
		assert.Equal(t, "points must lie within the frame", w["r"])
	})

	t.Run("timeout", func(t *testing.T) {
		nodes := []Node{
			{ID: "neg", Kind: KindTimeout, Data: NodeData{Seconds: secs(-1)}},
			{ID: "nil", Kind: KindTimeout},
			{ID: "ok", Kind: KindTimeout, Data: NodeData{Seconds: secs(0)}},
			{ID: "inf", Kind: KindTimeout, Data: NodeData{Seconds: secs(math.Inf(1))}},
		}
		w := Validate(nodes, nil)
		assert.Contains(t, w, "neg")
		assert.Contains(t, w, "nil")
		assert.NotContains(t, w, "ok")
		assert.Equal(t, "timeout must be a finite number", w["inf"])
	})

	t.Run("alarm durations", func(t *testing.T) {
		nodes := []Node{
			{ID: "nan", Kind: KindAlarm, Data: NodeData{Sensors: []SensorBinding{{SensorID: 4, DurationSeconds: math.NaN()}}}},
			{ID: "ok", Kind: KindAlarm, Data: NodeData{Sensors: []SensorBinding{{SensorID: 5, DurationSeconds: 2}}}},
		}
		w := Validate(nodes, nil)
		assert.Equal(t, "sensor 4 duration must be a finite number", w["nan"])
		assert.NotContains(t, w, "ok")
	})

	t.Run("custom rule set", func(t *testing.T) {
		noSpeed := func(n *Node, _ *Index) string {
			if n.Kind == KindSpeed {
				return "speed disabled"
			}
			return ""
		}
		nodes := []Node{{ID: "s", Kind: KindSpeed}, {ID: "o", Kind: KindObject}}
		w := ValidateWith([]Rule{noSpeed}, nodes, nil)
		assert.Equal(t, Warnings{"s": "speed disabled"}, w)
	})
}

func TestResolveTarget(t *testing.T) {
	obj := Node{ID: "o", Kind: KindObject, Data: NodeData{Classes: []string{"person", "car"}, Classifiers: []string{"helmet"}}}
	zone := Node{ID: "z", Kind: KindZone}
	count := Node{ID: "c", Kind: KindCount}

	t.Run("direct object parent", func(t *testing.T) {
		tgt := ResolveTarget("z", []Node{obj, zone}, []Edge{{ID: "e", Source: "o", Target: "z"}})
		assert.Equal(t, &Target{Label: "person", Classifiers: []string{"helmet"}}, tgt)
	})

	t.Run("object further upstream", func(t *testing.T) {
		ev := Node{ID: "ev", Kind: KindEvent}
		tgt := ResolveTarget("z", []Node{obj, ev, zone}, []Edge{
			{ID: "e1", Source: "o", Target: "ev"},
			{ID: "e2", Source: "ev", Target: "z"},
		})
		assert.Equal(t, "person", tgt.Label)
	})

	t.Run("no object upstream", func(t *testing.T) {
		assert.Nil(t, ResolveTarget("z", []Node{count, zone}, []Edge{{ID: "e", Source: "c", Target: "z"}}))
		assert.Nil(t, ResolveTarget("z", []Node{zone}, nil))
	})

	t.Run("object without classes", func(t *testing.T) {
		empty := Node{ID: "o", Kind: KindObject}
		assert.Nil(t, ResolveTarget("z", []Node{empty, zone}, []Edge{{ID: "e", Source: "o", Target: "z"}}))
	})

	t.Run("classifiers omitted when none selected", func(t *testing.T) {
		plain := Node{ID: "o", Kind: KindObject, Data: NodeData{Classes: []string{"car"}}}
		tgt := ResolveTarget("z", []Node{plain, zone}, []Edge{{ID: "e", Source: "o", Target: "z"}})
		assert.Equal(t, &Target{Label: "car"}, tgt)
	})

	t.Run("upstream cycle terminates", func(t *testing.T) {
		a := Node{ID: "a", Kind: KindCount}
		b := Node{ID: "b", Kind: KindCount}
		tgt := ResolveTarget("z", []Node{a, b, zone}, []Edge{
			{ID: "1", Source: "a", Target: "z"},
			{ID: "2", Source: "b", Target: "a"},
			{ID: "3", Source: "a", Target: "b"},
		})
		assert.Nil(t, tgt)
	})
}
