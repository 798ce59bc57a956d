package eventgraph

// Compiled is the result of the forward compiler.
type Compiled struct {
	Payload Payload `json:"payload"`
	// Elided lists nodes that produced no record (Object and Event). Object
	// nodes cannot be rebuilt from the payload, so callers should surface
	// this list as round-trip loss.
	Elided []string `json:"elided,omitempty"`
	// Invalid lists nodes whose payload could not be expressed on the wire:
	// Timeouts without a duration and Alarms with unencodable sensors. Their
	// record is emitted without it, so CheckPayload or the compositor can
	// reject it.
	Invalid []string `json:"invalid,omitempty"`
}

// Compile translates the graph into the compositor's flat, parent-linked
// record list. Records follow node order.
func Compile(g *Graph) *Compiled {
	ix := NewIndex(g.Nodes, g.Edges)
	out := &Compiled{
		Payload: Payload{Version: SchemaVersion, Configs: []EventSetting{}},
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		rec, ok, valid := compileNode(n, ix)
		if !ok {
			out.Elided = append(out.Elided, n.ID)
			continue
		}
		if !valid {
			out.Invalid = append(out.Invalid, n.ID)
		}
		out.Payload.Configs = append(out.Payload.Configs, rec)
	}
	return out
}

// Compile is shorthand for Compile(g).
func (g *Graph) Compile() *Compiled {
	return Compile(g)
}

// compileNode maps one node to its record. ok is false for kinds without a
// wire type; valid is false when the node's payload was left out.
func compileNode(n *Node, ix *Index) (rec EventSetting, ok, valid bool) {
	wt, ok := WireTypeOf(n.Kind)
	if !ok {
		return EventSetting{}, false, false
	}
	rec = EventSetting{
		EventType: wt,
		ID:        n.ID,
		Name:      n.Name,
		ParentID:  parentOf(n.ID, ix),
	}
	valid = true
	switch n.Kind {
	case KindZone:
		rec.Points = cloneSlice(n.Data.Points)
		rec.Target = resolveTarget(n.ID, ix)
	case KindLine:
		rec.Points = cloneSlice(n.Data.Points)
		rec.Direction = n.Data.Direction
		rec.Target = resolveTarget(n.ID, ix)
	case KindCount:
		rec.Filter = CountFilter{Condition: n.Data.Condition}
	case KindTimeout:
		if n.Data.Seconds == nil {
			valid = false
			break
		}
		rec.Filter = TimeoutFilter{Seconds: *n.Data.Seconds}
	case KindAlarm:
		ext, err := EncodeSensors(n.Data.Sensors)
		if err != nil {
			valid = false
			break
		}
		rec.Ext = ext
	}
	return rec, true, valid
}

// parentOf resolves the parentId of a record by following the incoming
// edge. An Object upstream makes the record a root: it is elided, not
// skipped past. Other non-emitting stages (Event) are skipped to the
// nearest emitting ancestor.
func parentOf(id string, ix *Index) string {
	seen := map[string]bool{id: true}
	cur := id
	for {
		src, ok := ix.upstream(cur)
		if !ok || seen[src.ID] {
			return ""
		}
		seen[src.ID] = true
		if _, emits := WireTypeOf(src.Kind); emits {
			return src.ID
		}
		if spec, _ := Lookup(src.Kind); spec.TargetProvider {
			return ""
		}
		cur = src.ID
	}
}
