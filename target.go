package eventgraph

// Target is the detection-target descriptor a Zone or Line inherits from
// its nearest Object ancestor.
type Target struct {
	Label       string   `json:"label"`
	Classifiers []string `json:"classifiers,omitempty"`
}

// ResolveTarget walks upstream from nodeID and builds a Target from the
// first Object found. It returns nil when no Object is upstream, or when
// that Object has no class selected; the area then matches any class.
func ResolveTarget(nodeID string, nodes []Node, edges []Edge) *Target {
	return resolveTarget(nodeID, NewIndex(nodes, edges))
}

func resolveTarget(nodeID string, ix *Index) *Target {
	seen := map[string]bool{nodeID: true}
	cur := nodeID
	for {
		src, ok := ix.upstream(cur)
		if !ok || seen[src.ID] {
			return nil
		}
		seen[src.ID] = true
		if spec, _ := Lookup(src.Kind); spec.TargetProvider {
			return targetFrom(src)
		}
		cur = src.ID
	}
}

func targetFrom(obj *Node) *Target {
	if len(obj.Data.Classes) == 0 {
		return nil
	}
	t := &Target{Label: obj.Data.Classes[0]}
	if len(obj.Data.Classifiers) > 0 {
		t.Classifiers = cloneSlice(obj.Data.Classifiers)
	}
	return t
}
