package eventgraph

// AppOutput is one class label a vision app can detect, with the
// sub-labels its classifier stage may attach to it.
type AppOutput struct {
	Label       string   `json:"label"`
	Classifiers []string `json:"classifiers,omitempty"`
}

// ClassOptions returns the class labels selectable on an Object node.
func ClassOptions(outputs []AppOutput) []string {
	out := make([]string, 0, len(outputs))
	for _, o := range outputs {
		out = append(out, o.Label)
	}
	return out
}

// ClassifierOptions returns the classifier labels offered for the selected
// classes, deduplicated, in output order. Nothing is offered until a class
// is selected.
func ClassifierOptions(outputs []AppOutput, classes []string) []string {
	selected := make(map[string]bool, len(classes))
	for _, c := range classes {
		selected[c] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, o := range outputs {
		if !selected[o.Label] {
			continue
		}
		for _, c := range o.Classifiers {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
