package eventgraph

// Kind identifies what a node contributes to a detection pipeline.
type Kind string

const (
	KindObject  Kind = "Object"
	KindZone    Kind = "Zone"
	KindLine    Kind = "Line"
	KindEvent   Kind = "Event"
	KindCount   Kind = "Count"
	KindTimeout Kind = "Timeout"
	KindSpeed   Kind = "Speed"
	KindMerge   Kind = "Merge"
	KindAlarm   Kind = "Alarm"
)

// WireType is the compositor's eventType enum. It is disjoint from Kind.
type WireType string

const (
	WireROI    WireType = "ROI"
	WireLine   WireType = "Line"
	WireFilter WireType = "Filter"
	WireSpeed  WireType = "Speed"
	WireAnd    WireType = "And"
	WireAlarm  WireType = "Alarm"
)

// DefaultTimeoutSeconds is the dwell time a fresh Timeout node starts with.
const DefaultTimeoutSeconds = 5.0

// KindSpec is the static metadata of a node kind.
type KindSpec struct {
	Kind  Kind
	Label string
	// WireType is empty for kinds that never produce a wire record.
	WireType WireType
	HasInput bool
	// HasOutput is false only for terminal stages.
	HasOutput bool
	// TargetProvider marks kinds whose selection flows into descendant
	// Zone/Line records as a target instead of being emitted.
	TargetProvider bool
	Defaults       func() NodeData
}

var kindOrder = []Kind{
	KindObject, KindZone, KindLine, KindEvent, KindCount,
	KindTimeout, KindSpeed, KindMerge, KindAlarm,
}

var registry = map[Kind]KindSpec{
	KindObject: {
		Kind: KindObject, Label: "Object",
		HasOutput: true, TargetProvider: true,
		Defaults: func() NodeData { return NodeData{} },
	},
	KindZone: {
		Kind: KindZone, Label: "Zone", WireType: WireROI,
		HasInput: true, HasOutput: true,
		Defaults: func() NodeData {
			return NodeData{Points: []Point{{0.25, 0.25}, {0.75, 0.25}, {0.75, 0.75}, {0.25, 0.75}}}
		},
	},
	KindLine: {
		Kind: KindLine, Label: "Line", WireType: WireLine,
		HasInput: true, HasOutput: true,
		Defaults: func() NodeData {
			return NodeData{Points: []Point{{0.2, 0.5}, {0.8, 0.5}}, Direction: DirectionBoth}
		},
	},
	KindEvent: {
		Kind: KindEvent, Label: "Event",
		HasInput: true, HasOutput: true,
		Defaults: func() NodeData { return NodeData{} },
	},
	KindCount: {
		Kind: KindCount, Label: "Count", WireType: WireFilter,
		HasInput: true, HasOutput: true,
		Defaults: func() NodeData { return NodeData{Condition: ">=1"} },
	},
	KindTimeout: {
		Kind: KindTimeout, Label: "Timeout", WireType: WireFilter,
		HasInput: true, HasOutput: true,
		Defaults: func() NodeData {
			s := DefaultTimeoutSeconds
			return NodeData{Seconds: &s}
		},
	},
	KindSpeed: {
		Kind: KindSpeed, Label: "Speed", WireType: WireSpeed,
		HasInput: true, HasOutput: true,
		Defaults: func() NodeData { return NodeData{} },
	},
	KindMerge: {
		Kind: KindMerge, Label: "Merge", WireType: WireAnd,
		HasInput: true, HasOutput: true,
		Defaults: func() NodeData { return NodeData{} },
	},
	KindAlarm: {
		Kind: KindAlarm, Label: "Alarm", WireType: WireAlarm,
		HasInput: true,
		Defaults: func() NodeData { return NodeData{} },
	},
}

// Lookup returns the metadata of kind.
func Lookup(kind Kind) (KindSpec, bool) {
	spec, ok := registry[kind]
	return spec, ok
}

// Kinds lists every node kind in palette order.
func Kinds() []Kind {
	return append([]Kind{}, kindOrder...)
}

// WireTypeOf returns the wire eventType a node of this kind compiles to.
// ok is false for Object and Event.
func WireTypeOf(kind Kind) (WireType, bool) {
	spec, found := registry[kind]
	if !found || spec.WireType == "" {
		return "", false
	}
	return spec.WireType, true
}

// Valid reports whether k is a registered kind.
func (k Kind) Valid() bool {
	_, ok := registry[k]
	return ok
}

// IsArea reports whether k is a Zone or a Line.
func (k Kind) IsArea() bool {
	return k == KindZone || k == KindLine
}
