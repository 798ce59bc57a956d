package eventgraph

// Auto-layout geometry used when rebuilding a graph from wire records, which
// carry no positions.
const (
	LayoutPasses        = 10
	LayoutOriginX       = 50.0
	LayoutOriginY       = 50.0
	LayoutColumnWidth   = 250.0
	LayoutRowHeight     = 150.0
	LayoutSiblingOffset = 60.0
)

// Decompiled is the result of the reverse compiler.
type Decompiled struct {
	Graph *Graph `json:"graph"`
	// Dropped holds ids of records whose eventType maps to no node kind,
	// records without an id, and duplicate ids after the first.
	Dropped []string `json:"dropped,omitempty"`
	// Unplaced holds ids of records whose parent never got placed (cycles,
	// parents that were dropped). They are not part of Graph.
	Unplaced []string `json:"unplaced,omitempty"`
	// Malformed holds ids of Alarm records whose ext could not be parsed.
	// The node is kept without sensor bindings.
	Malformed []string `json:"malformed,omitempty"`
}

// Lost reports whether any record failed to make it into the graph.
func (d *Decompiled) Lost() bool {
	return len(d.Dropped) > 0 || len(d.Unplaced) > 0
}

// Decompile rebuilds a graph from a flat record list. It never fails:
// unknown event types are dropped and dangling parent references turn
// records into roots. Object nodes are not reconstructed.
func Decompile(p Payload) *Decompiled {
	out := &Decompiled{Graph: New()}

	present := make(map[string]bool, len(p.Configs))
	for _, rec := range p.Configs {
		present[rec.ID] = true
	}

	nodes := make(map[string]Node, len(p.Configs))
	var roots, pending []EventSetting
	for _, rec := range p.Configs {
		if _, dup := nodes[rec.ID]; dup || rec.ID == "" {
			out.Dropped = append(out.Dropped, rec.ID)
			continue
		}
		n, ok, malformed := nodeFromRecord(rec)
		if !ok {
			out.Dropped = append(out.Dropped, rec.ID)
			continue
		}
		if malformed {
			out.Malformed = append(out.Malformed, rec.ID)
		}
		nodes[rec.ID] = n
		if rec.ParentID == "" || !present[rec.ParentID] {
			roots = append(roots, rec)
		} else {
			pending = append(pending, rec)
		}
	}

	placed := make(map[string]Position, len(nodes))
	for col, rec := range roots {
		placed[rec.ID] = Position{
			X: LayoutOriginX + float64(col)*LayoutColumnWidth,
			Y: LayoutOriginY,
		}
	}

	siblings := map[string]int{}
	for pass := 0; pass < LayoutPasses && len(pending) > 0; pass++ {
		var next []EventSetting
		for _, rec := range pending {
			parent, ok := placed[rec.ParentID]
			if !ok {
				next = append(next, rec)
				continue
			}
			nth := siblings[rec.ParentID]
			siblings[rec.ParentID]++
			placed[rec.ID] = Position{
				X: parent.X + float64(nth)*LayoutSiblingOffset,
				Y: parent.Y + LayoutRowHeight,
			}
			out.Graph.Edges = append(out.Graph.Edges, Edge{
				ID:     newID(),
				Source: rec.ParentID,
				Target: rec.ID,
			})
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	for _, rec := range pending {
		out.Unplaced = append(out.Unplaced, rec.ID)
	}

	for _, rec := range p.Configs {
		pos, ok := placed[rec.ID]
		if !ok {
			continue
		}
		n, ok := nodes[rec.ID]
		if !ok {
			continue
		}
		n.Position = pos
		out.Graph.Nodes = append(out.Graph.Nodes, n)
		delete(nodes, rec.ID)
	}
	return out
}

// Decompile is shorthand for Decompile(p).
func (p Payload) Decompile() *Decompiled {
	return Decompile(p)
}

// nodeFromRecord maps a record back to a node. ok is false for event types
// without a node kind.
func nodeFromRecord(rec EventSetting) (n Node, ok, malformed bool) {
	n = Node{ID: rec.ID, Name: rec.Name}
	switch rec.EventType {
	case WireROI:
		n.Kind = KindZone
		n.Data.Points = cloneSlice(rec.Points)
	case WireLine:
		n.Kind = KindLine
		n.Data.Points = cloneSlice(rec.Points)
		n.Data.Direction = rec.Direction
	case WireFilter:
		switch f := rec.Filter.(type) {
		case TimeoutFilter:
			n.Kind = KindTimeout
			secs := f.Seconds
			n.Data.Seconds = &secs
		case CountFilter:
			n.Kind = KindCount
			n.Data.Condition = f.Condition
		default:
			n.Kind = KindCount
		}
	case WireSpeed:
		n.Kind = KindSpeed
	case WireAnd:
		n.Kind = KindMerge
	case WireAlarm:
		n.Kind = KindAlarm
		sensors, err := DecodeSensors(rec.Ext)
		if err != nil {
			malformed = true
		}
		n.Data.Sensors = sensors
	default:
		return Node{}, false, false
	}
	return n, true, malformed
}
